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

package database

import (
	"context"

	"github.com/idleforge/forge/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	payout // Interface for payout obligation operations
	burn   // Interface for burn record operations
	tier   // Interface for reward tier catalog operations
}

// payout defines methods for handling payout obligations.
type payout interface {
	CreateObligation(ctx context.Context, obligation *model.PayoutObligation) (*model.PayoutObligation, error)       // Creates an obligation, refusing duplicates per (player, reason key)
	GetObligationByID(ctx context.Context, id string) (*model.PayoutObligation, error)                               // Retrieves an obligation by ID
	GetObligationByReason(ctx context.Context, playerID, reasonKey string) (*model.PayoutObligation, error)          // Retrieves the live (non-failed) obligation for a player and reason
	TransitionObligation(ctx context.Context, id, newStatus, proofReference string) (*model.PayoutObligation, error) // Applies a status transition, enforcing the legal transition set
	GetPendingObligations(ctx context.Context, network string, limit, offset int) ([]*model.PayoutObligation, error) // Feeds the external disbursement poller
	GetObligations(ctx context.Context, status, playerID string, limit, offset int) ([]*model.PayoutObligation, error)
}

// burn defines methods for handling burn records.
type burn interface {
	RecordBurn(ctx context.Context, record *model.BurnRecord, obligation *model.PayoutObligation) (*model.BurnRecord, error) // Persists a burn draw and its reward obligation atomically
	ProofReferenceExists(ctx context.Context, proofReference string) (bool, error)                                           // Checks whether a proof has ever been redeemed by anyone
	GetBurnsByPlayer(ctx context.Context, playerID string, limit, offset int) ([]*model.BurnRecord, error)
}

// tier defines methods for the reward tier catalog.
type tier interface {
	CreateRewardTier(ctx context.Context, t model.RewardTier) (model.RewardTier, error)
	GetAllRewardTiers(ctx context.Context) ([]model.RewardTier, error)
}
