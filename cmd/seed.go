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

package main

import (
	"context"
	"log"

	"github.com/spf13/cobra"

	"github.com/idleforge/forge/internal/apierror"
	"github.com/idleforge/forge/model"
)

// defaultTierCatalog is the catalog seeded into a fresh deployment. The
// costs span four orders of magnitude so every burn size has something
// to win and something to chase.
var defaultTierCatalog = []model.RewardTier{
	{Name: "Ember Shard", Description: "A faint spark from the forge", Rarity: model.RarityCommon, Cost: 50},
	{Name: "Iron Ingot", Description: "Sturdy, unremarkable, dependable", Rarity: model.RarityCommon, Cost: 100},
	{Name: "Copper Coil", Description: "Hums quietly when held", Rarity: model.RarityUncommon, Cost: 400},
	{Name: "Silver Sigil", Description: "Etched by a steady hand", Rarity: model.RarityUncommon, Cost: 800},
	{Name: "Gilded Hammer", Description: "Strikes truer than it should", Rarity: model.RarityRare, Cost: 3000},
	{Name: "Runed Anvil", Description: "The runes rearrange overnight", Rarity: model.RarityRare, Cost: 6000},
	{Name: "Drake Scale", Description: "Still warm to the touch", Rarity: model.RarityEpic, Cost: 20000},
	{Name: "Phoenix Feather", Description: "Burns but is not consumed", Rarity: model.RarityEpic, Cost: 40000},
	{Name: "Molten Core", Description: "The heart of the forge itself", Rarity: model.RarityLegendary, Cost: 150000},
}

// seedCommands creates the command that populates the reward tier
// catalog in a fresh database. Re-running it skips tiers that already
// exist.
func seedCommands(f *forgeInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "seed the default reward tier catalog",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			seeded := 0
			for _, tier := range defaultTierCatalog {
				created, err := f.forge.CreateRewardTier(ctx, tier)
				if err != nil {
					if apiErr, ok := err.(apierror.APIError); ok && apiErr.Code == apierror.ErrConflict {
						log.Printf("tier %q already exists, skipping", tier.Name)
						continue
					}
					log.Fatalf("Error seeding tier %q: %v", tier.Name, err)
				}
				seeded++
				log.Printf("seeded tier %s (%s)", created.Name, created.TierID)
			}
			log.Printf("seeded %d reward tiers", seeded)
		},
	}

	return cmd
}
