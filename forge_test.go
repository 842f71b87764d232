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
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idleforge/forge/config"
	"github.com/idleforge/forge/database"
	"github.com/idleforge/forge/internal/apierror"
	"github.com/idleforge/forge/internal/cache"
	"github.com/idleforge/forge/model"
)

const testProofReference = "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLyAbCdEfGh12"

func newTestForge(t *testing.T) (*Forge, sqlmock.Sqlmock) {
	t.Helper()
	config.MockConfig(&config.Configuration{
		Redis:       config.RedisConfig{Dns: "localhost:6379"},
		ChainLedger: config.ChainLedgerConfig{Endpoints: []string{"http://ledger.test/rpc"}, AssetID: "FORGE"},
	})

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := cache.NewMemoryCache(100, time.Minute)
	datasource := &database.Datasource{Conn: db}

	f, err := NewForge(datasource, store)
	require.NoError(t, err)
	return f, mock
}

func expectTierCatalog(mock sqlmock.Sqlmock, tiers ...model.RewardTier) {
	rows := sqlmock.NewRows([]string{"tier_id", "name", "description", "rarity", "cost", "created_at"})
	for _, tier := range tiers {
		rows.AddRow(tier.TierID, tier.Name, tier.Description, tier.Rarity, tier.Cost, time.Now())
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM reward_tiers")).WillReturnRows(rows)
}

func TestProcessBurn(t *testing.T) {
	f, mock := newTestForge(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs(testProofReference).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	expectTierCatalog(mock, model.RewardTier{TierID: "tier_1", Name: "Ember Shard", Rarity: model.RarityCommon, Cost: 100})
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO burn_records")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payout_obligations")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result, err := f.ProcessBurn(context.Background(), BurnRequest{
		PlayerID:       "player_1",
		Destination:    "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		Network:        "mainnet",
		ProofReference: testProofReference,
		InputAmount:    1000,
	})
	require.NoError(t, err)
	assert.Equal(t, "tier_1", result.Tier.TierID)
	assert.Equal(t, int64(200), result.Burn.TaxAmount)
	assert.Equal(t, int64(800), result.Burn.NetAmount)
	assert.Equal(t, "burn:"+result.Burn.RecordID, result.Obligation.ReasonKey)
	assert.Equal(t, int64(100), result.Obligation.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessBurnInvalidProof(t *testing.T) {
	f, _ := newTestForge(t)

	_, err := f.ProcessBurn(context.Background(), BurnRequest{
		PlayerID:       "player_1",
		ProofReference: "not-a-proof!",
		InputAmount:    1000,
	})
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrInvalidInput, apiErr.Code)
}

func TestProcessBurnDuplicateProof(t *testing.T) {
	f, mock := newTestForge(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs(testProofReference).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := f.ProcessBurn(context.Background(), BurnRequest{
		PlayerID:       "player_1",
		ProofReference: testProofReference,
		InputAmount:    1000,
	})
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
}

func TestProcessBurnNoAffordableTier(t *testing.T) {
	f, mock := newTestForge(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	expectTierCatalog(mock, model.RewardTier{TierID: "tier_1", Rarity: model.RarityCommon, Cost: 100000})

	_, err := f.ProcessBurn(context.Background(), BurnRequest{
		PlayerID:       "player_1",
		ProofReference: testProofReference,
		InputAmount:    100,
	})
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrBadRequest, apiErr.Code)
}

func TestGrantReward(t *testing.T) {
	f, mock := newTestForge(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payout_obligations")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	obligation, err := f.GrantReward(context.Background(), RewardRequest{
		PlayerID:    "player_1",
		Destination: "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		Network:     "mainnet",
		Amount:      5000,
		ReasonKey:   "achievement:first_forge",
	})
	require.NoError(t, err)
	assert.Contains(t, obligation.PayoutID, "pay_")
	assert.Equal(t, model.StatusPending, obligation.Status)
}

func TestGrantRewardDuplicateIsNoOp(t *testing.T) {
	f, mock := newTestForge(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payout_obligations")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "idx_obligations_player_reason"})

	existing := &model.PayoutObligation{
		PayoutID:  "pay_existing",
		PlayerID:  "player_1",
		ReasonKey: "achievement:first_forge",
		Status:    model.StatusPending,
		CreatedAt: time.Now(),
	}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE player_id = $1 AND reason_key = $2")).
		WithArgs("player_1", "achievement:first_forge").
		WillReturnRows(sqlmock.NewRows([]string{
			"payout_id", "player_id", "destination", "network", "amount",
			"reason_key", "status", "proof_reference", "created_at", "processed_at", "meta_data",
		}).AddRow(existing.PayoutID, existing.PlayerID, "", "", int64(5000),
			existing.ReasonKey, existing.Status, "", existing.CreatedAt, nil, []byte(`{}`)))

	obligation, err := f.GrantReward(context.Background(), RewardRequest{
		PlayerID:  "player_1",
		Network:   "mainnet",
		Amount:    5000,
		ReasonKey: "achievement:first_forge",
	})
	require.NoError(t, err)
	assert.Equal(t, "pay_existing", obligation.PayoutID)
}

func TestGrantRewardInvalidReasonKey(t *testing.T) {
	f, _ := newTestForge(t)

	_, err := f.GrantReward(context.Background(), RewardRequest{
		PlayerID:  "player_1",
		Amount:    5000,
		ReasonKey: "NotAReason",
	})
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrInvalidInput, apiErr.Code)
}

func TestCompletePayout(t *testing.T) {
	f, mock := newTestForge(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payout_obligations")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT payout_id")).
		WithArgs("pay_123").
		WillReturnRows(sqlmock.NewRows([]string{
			"payout_id", "player_id", "destination", "network", "amount",
			"reason_key", "status", "proof_reference", "created_at", "processed_at", "meta_data",
		}).AddRow("pay_123", "player_1", "", "mainnet", int64(5000),
			"achievement:first_forge", model.StatusCompleted, testProofReference, time.Now(), time.Now(), []byte(`{}`)))

	obligation, err := f.CompletePayout(context.Background(), "pay_123", testProofReference)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, obligation.Status)
	assert.NotNil(t, obligation.ProcessedAt)
}

func TestCompletePayoutRejectsMalformedProof(t *testing.T) {
	f, _ := newTestForge(t)

	_, err := f.CompletePayout(context.Background(), "pay_123", "bad proof")
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrInvalidInput, apiErr.Code)
}
