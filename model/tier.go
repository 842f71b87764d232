package model

import "time"

const (
	RarityCommon    = "common"
	RarityUncommon  = "uncommon"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

// rarityRank orders rarity classes from most to least frequent.
var rarityRank = map[string]int{
	RarityCommon:    0,
	RarityUncommon:  1,
	RarityRare:      2,
	RarityEpic:      3,
	RarityLegendary: 4,
}

// RarityRank returns the position of a rarity class in the ordering, or
// -1 for an unknown class.
func RarityRank(rarity string) int {
	rank, ok := rarityRank[rarity]
	if !ok {
		return -1
	}
	return rank
}

// IsHighRarity reports whether the rarity class is one of the top two
// classes. Only these receive the lottery luck bonus.
func IsHighRarity(rarity string) bool {
	return rarity == RarityEpic || rarity == RarityLegendary
}

// RewardTier is an immutable catalog entry describing one obtainable
// reward. Tiers are seeded once and read-only at runtime.
type RewardTier struct {
	ID          int64     `json:"-"`
	TierID      string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Rarity      string    `json:"rarity"`
	Cost        int64     `json:"cost"`
	CreatedAt   time.Time `json:"created_at"`
}
