package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// BurnRecord is the immutable record of one reward lottery draw. The
// proof reference is globally unique so the same external transaction can
// never be redeemed twice, by anyone.
type BurnRecord struct {
	ID             int64     `json:"-"`
	RecordID       string    `json:"id"`
	PlayerID       string    `json:"player_id"`
	ProofReference string    `json:"proof_reference"`
	InputAmount    int64     `json:"input_amount"`
	TaxAmount      int64     `json:"tax_amount"`
	NetAmount      int64     `json:"net_amount"`
	AwardedTierID  string    `json:"awarded_tier_id"`
	CreatedAt      time.Time `json:"created_at"`
}

func (b *BurnRecord) ToJSON() ([]byte, error) {
	return json.Marshal(b)
}

// ApplyBurnTax deducts the configured tax fraction from an input amount
// before the draw. The tax is rounded down so the player is never charged
// a fractional token in their disfavor.
func ApplyBurnTax(inputAmount int64, taxRate float64) (tax, net int64) {
	taxDec := decimal.NewFromInt(inputAmount).Mul(decimal.NewFromFloat(taxRate)).Floor()
	tax = taxDec.IntPart()
	net = inputAmount - tax
	return tax, net
}
