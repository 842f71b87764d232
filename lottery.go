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
	"math/rand"
	"sync"

	"github.com/pkg/errors"

	"github.com/idleforge/forge/model"
)

// ErrNoAffordableReward is returned when no tier in the catalog costs
// at most the burned amount. The caller reports it to the player; it is
// never mapped to a default or cheapest tier.
var ErrNoAffordableReward = errors.New("no reward tier affordable at this amount")

// Base weights per rarity class. Each step down in rarity is roughly an
// order of magnitude more likely than the step above it.
var rarityBaseWeights = map[string]float64{
	model.RarityCommon:    1000,
	model.RarityUncommon:  220,
	model.RarityRare:      48,
	model.RarityEpic:      11,
	model.RarityLegendary: 2,
}

// maxLuckBonus caps the multiplicative bonus applied to high-rarity
// tiers at +50%, reached when the burned amount hits the saturation
// point.
const maxLuckBonus = 0.5

// RaritySelector draws a reward tier from the catalog using weighted
// random sampling. The random source is injected so draws can be made
// deterministic in tests.
type RaritySelector struct {
	mu         sync.Mutex
	rnd        *rand.Rand
	saturation int64
}

func NewRaritySelector(saturationAmount int64, rnd *rand.Rand) *RaritySelector {
	return &RaritySelector{rnd: rnd, saturation: saturationAmount}
}

// luckBonus scales linearly with the burned amount and saturates at
// maxLuckBonus. Burning more never reduces the odds of a high-rarity
// draw.
func (s *RaritySelector) luckBonus(inputAmount int64) float64 {
	if s.saturation <= 0 || inputAmount <= 0 {
		return 0
	}
	ratio := float64(inputAmount) / float64(s.saturation)
	if ratio > 1 {
		ratio = 1
	}
	return ratio * maxLuckBonus
}

// Draw selects one tier among those the burned amount can afford. The
// luck bonus inflates the weights of epic and legendary tiers only;
// common tiers keep their base weight, so the bonus shifts probability
// mass upward without ever zeroing out the low end.
func (s *RaritySelector) Draw(tiers []model.RewardTier, inputAmount int64) (model.RewardTier, error) {
	affordable := make([]model.RewardTier, 0, len(tiers))
	weights := make([]float64, 0, len(tiers))
	bonus := s.luckBonus(inputAmount)

	total := 0.0
	for _, tier := range tiers {
		if tier.Cost > inputAmount {
			continue
		}
		weight, ok := rarityBaseWeights[tier.Rarity]
		if !ok {
			continue
		}
		if model.IsHighRarity(tier.Rarity) {
			weight *= 1 + bonus
		}
		affordable = append(affordable, tier)
		weights = append(weights, weight)
		total += weight
	}

	if len(affordable) == 0 || total <= 0 {
		return model.RewardTier{}, errors.Wrapf(ErrNoAffordableReward, "input amount %d", inputAmount)
	}
	if len(affordable) == 1 {
		return affordable[0], nil
	}

	s.mu.Lock()
	target := s.rnd.Float64() * total
	s.mu.Unlock()

	cumulative := 0.0
	for i, weight := range weights {
		cumulative += weight
		if target < cumulative {
			return affordable[i], nil
		}
	}
	// Float64 returns values in [0, 1); rounding can still leave target
	// at the upper edge, which belongs to the last candidate.
	return affordable[len(affordable)-1], nil
}
