/*
Copyright 2024 IdleForge Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package forge

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/idleforge/forge/config"
	"github.com/idleforge/forge/internal/apierror"
	"github.com/idleforge/forge/model"
)

// BurnRequest describes a player feeding tokens into The Forge. The
// proof reference identifies the on-chain burn transaction and can be
// redeemed exactly once, by exactly one player.
type BurnRequest struct {
	PlayerID       string
	Destination    string
	Network        string
	ProofReference string
	InputAmount    int64
}

// BurnResult is returned to the player after a successful burn: the
// tier the lottery awarded and the obligation the payout ledger now
// owes them.
type BurnResult struct {
	Burn       *model.BurnRecord       `json:"burn"`
	Tier       model.RewardTier        `json:"tier"`
	Obligation *model.PayoutObligation `json:"obligation"`
}

// ProcessBurn runs the full burn flow: proof validation, tax, lottery
// draw, and the atomic persistence of the burn record with its payout
// obligation. The proof format is checked before any lottery logic so
// malformed submissions never consume a draw.
func (f *Forge) ProcessBurn(ctx context.Context, req BurnRequest) (*BurnResult, error) {
	if !model.IsValidProofReference(req.ProofReference) {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Proof reference is not a valid transaction signature", nil)
	}
	if req.InputAmount <= 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Burn amount must be positive", nil)
	}

	exists, err := f.datasource.ProofReferenceExists(ctx, req.ProofReference)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apierror.NewAPIError(apierror.ErrConflict, "Proof reference has already been redeemed", nil)
	}

	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	taxAmount, netAmount := model.ApplyBurnTax(req.InputAmount, configuration.Lottery.TaxRate)

	tiers, err := f.datasource.GetAllRewardTiers(ctx)
	if err != nil {
		return nil, err
	}

	tier, err := f.selector.Draw(tiers, netAmount)
	if err != nil {
		if errors.Is(err, ErrNoAffordableReward) {
			return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Burned amount cannot afford any reward tier", err)
		}
		return nil, err
	}

	recordID := model.GenerateUUIDWithSuffix("brn")
	burn := &model.BurnRecord{
		RecordID:       recordID,
		PlayerID:       req.PlayerID,
		ProofReference: req.ProofReference,
		InputAmount:    req.InputAmount,
		TaxAmount:      taxAmount,
		NetAmount:      netAmount,
		AwardedTierID:  tier.TierID,
	}
	obligation := &model.PayoutObligation{
		PlayerID:    req.PlayerID,
		Destination: req.Destination,
		Network:     req.Network,
		Amount:      tier.Cost,
		ReasonKey:   fmt.Sprintf("burn:%s", recordID),
		MetaData: map[string]interface{}{
			"tier_id":   tier.TierID,
			"tier_name": tier.Name,
			"rarity":    tier.Rarity,
		},
	}

	saved, err := f.datasource.RecordBurn(ctx, burn, obligation)
	if err != nil {
		return nil, err
	}

	// The burn changed the on-chain balance; drop the cached read so the
	// next balance query hits the chain.
	if err := f.chain.Invalidate(ctx, req.Destination); err != nil {
		logrus.Warnf("failed to invalidate balance cache for %s: %v", req.Destination, err)
	}

	err = f.SendWebhook(NewWebhook{
		Event:     "burn.recorded",
		Reference: saved.RecordID,
		Payload:   BurnResult{Burn: saved, Tier: tier, Obligation: obligation},
	})
	if err != nil {
		logrus.Errorf("failed to enqueue burn webhook: %v", err)
	}

	return &BurnResult{Burn: saved, Tier: tier, Obligation: obligation}, nil
}
