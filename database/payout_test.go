package database

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idleforge/forge/internal/apierror"
	"github.com/idleforge/forge/model"
)

func newTestDatasource(t *testing.T) (*Datasource, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Datasource{Conn: db}, mock
}

func TestCreateObligation(t *testing.T) {
	ds, mock := newTestDatasource(t)

	obligation := &model.PayoutObligation{
		PlayerID:    "player_1",
		Destination: "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		Network:     "mainnet",
		Amount:      5000,
		ReasonKey:   "achievement:first_forge",
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payout_obligations")).
		WithArgs(sqlmock.AnyArg(), obligation.PlayerID, obligation.Destination, obligation.Network, obligation.Amount, obligation.ReasonKey, model.StatusPending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	saved, err := ds.CreateObligation(context.Background(), obligation)
	require.NoError(t, err)
	assert.Contains(t, saved.PayoutID, "pay_")
	assert.Equal(t, model.StatusPending, saved.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateObligationDuplicate(t *testing.T) {
	ds, mock := newTestDatasource(t)

	obligation := &model.PayoutObligation{
		PlayerID:  "player_1",
		Network:   "mainnet",
		Amount:    5000,
		ReasonKey: "achievement:first_forge",
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payout_obligations")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "idx_obligations_player_reason"})

	_, err := ds.CreateObligation(context.Background(), obligation)
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
}

func obligationRows(obligations ...*model.PayoutObligation) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"payout_id", "player_id", "destination", "network", "amount",
		"reason_key", "status", "proof_reference", "created_at", "processed_at", "meta_data",
	})
	for _, o := range obligations {
		rows.AddRow(o.PayoutID, o.PlayerID, o.Destination, o.Network, o.Amount,
			o.ReasonKey, o.Status, o.ProofReference, o.CreatedAt, o.ProcessedAt, []byte(`{}`))
	}
	return rows
}

func TestGetObligationByID(t *testing.T) {
	ds, mock := newTestDatasource(t)

	want := &model.PayoutObligation{
		PayoutID:  "pay_123",
		PlayerID:  "player_1",
		Network:   "mainnet",
		Amount:    5000,
		ReasonKey: "achievement:first_forge",
		Status:    model.StatusPending,
		CreatedAt: time.Now(),
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payout_id, player_id, destination, network, amount, reason_key, status, proof_reference, created_at, processed_at, meta_data")).
		WithArgs("pay_123").
		WillReturnRows(obligationRows(want))

	got, err := ds.GetObligationByID(context.Background(), "pay_123")
	require.NoError(t, err)
	assert.Equal(t, want.PayoutID, got.PayoutID)
	assert.Equal(t, want.Amount, got.Amount)
}

func TestGetObligationByIDNotFound(t *testing.T) {
	ds, mock := newTestDatasource(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payout_id")).
		WithArgs("pay_missing").
		WillReturnRows(obligationRows())

	_, err := ds.GetObligationByID(context.Background(), "pay_missing")
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestTransitionObligation(t *testing.T) {
	ds, mock := newTestDatasource(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payout_obligations")).
		WithArgs("pay_123", model.StatusCompleted, "proof_abc", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	completed := &model.PayoutObligation{
		PayoutID:       "pay_123",
		PlayerID:       "player_1",
		Status:         model.StatusCompleted,
		ProofReference: "proof_abc",
		CreatedAt:      time.Now(),
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT payout_id")).
		WithArgs("pay_123").
		WillReturnRows(obligationRows(completed))

	got, err := ds.TransitionObligation(context.Background(), "pay_123", model.StatusCompleted, "proof_abc")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionObligationIllegal(t *testing.T) {
	ds, mock := newTestDatasource(t)

	// Conditional update matches nothing because the row is terminal.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payout_obligations")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	terminal := &model.PayoutObligation{
		PayoutID:  "pay_123",
		PlayerID:  "player_1",
		Status:    model.StatusCompleted,
		CreatedAt: time.Now(),
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT payout_id")).
		WithArgs("pay_123").
		WillReturnRows(obligationRows(terminal))

	_, err := ds.TransitionObligation(context.Background(), "pay_123", model.StatusFailed, "")
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrInvalidInput, apiErr.Code)
	assert.Contains(t, apiErr.Message, "completed -> failed")
}

func TestTransitionObligationUnknownStatus(t *testing.T) {
	ds, _ := newTestDatasource(t)

	_, err := ds.TransitionObligation(context.Background(), "pay_123", "shipped", "")
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrInvalidInput, apiErr.Code)
}

func TestGetPendingObligations(t *testing.T) {
	ds, mock := newTestDatasource(t)

	first := &model.PayoutObligation{PayoutID: "pay_1", PlayerID: "player_1", Network: "mainnet", Amount: 100, ReasonKey: "burn:brn_1", Status: model.StatusPending, CreatedAt: time.Now().Add(-time.Hour)}
	second := &model.PayoutObligation{PayoutID: "pay_2", PlayerID: "player_2", Network: "mainnet", Amount: 200, ReasonKey: "burn:brn_2", Status: model.StatusPending, CreatedAt: time.Now()}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'pending' AND network = $1")).
		WithArgs("mainnet", 50, 0).
		WillReturnRows(obligationRows(first, second))

	got, err := ds.GetPendingObligations(context.Background(), "mainnet", 50, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "pay_1", got[0].PayoutID)
	assert.Equal(t, "pay_2", got[1].PayoutID)
}

func TestGetObligationsFiltered(t *testing.T) {
	ds, mock := newTestDatasource(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE ($1 = '' OR status = $1) AND ($2 = '' OR player_id = $2)")).
		WithArgs(model.StatusFailed, "player_1", 20, 0).
		WillReturnRows(obligationRows())

	got, err := ds.GetObligations(context.Background(), model.StatusFailed, "player_1", 20, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
