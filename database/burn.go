package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/lib/pq"

	"github.com/idleforge/forge/internal/apierror"
	"github.com/idleforge/forge/model"
)

// RecordBurn persists a burn record together with the payout obligation
// it earned, in one transaction. Either both rows land or neither does,
// so a burn can never be acknowledged without its reward being owed.
func (d *Datasource) RecordBurn(ctx context.Context, burn *model.BurnRecord, obligation *model.PayoutObligation) (*model.BurnRecord, error) {
	ctx, span := otel.Tracer("payout.ledger").Start(ctx, "Saving burn record to db")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if burn.RecordID == "" {
		burn.RecordID = model.GenerateUUIDWithSuffix("brn")
	}
	burn.CreatedAt = time.Now()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO burn_records (record_id, player_id, proof_reference, input_amount, tax_amount, net_amount, awarded_tier_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, burn.RecordID, burn.PlayerID, burn.ProofReference, burn.InputAmount, burn.TaxAmount, burn.NetAmount, burn.AwardedTierID, burn.CreatedAt)
	if err != nil {
		return nil, mapBurnInsertError(err)
	}

	metaDataJSON, err := json.Marshal(obligation.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	obligation.PayoutID = model.GenerateUUIDWithSuffix("pay")
	obligation.Status = model.StatusPending
	obligation.CreatedAt = burn.CreatedAt

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payout_obligations (payout_id, player_id, destination, network, amount, reason_key, status, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, obligation.PayoutID, obligation.PlayerID, obligation.Destination, obligation.Network, obligation.Amount, obligation.ReasonKey, obligation.Status, obligation.CreatedAt, metaDataJSON)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return nil, apierror.NewAPIError(apierror.ErrConflict, "Obligation already exists for this player and reason", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create burn obligation", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit burn transaction", err)
	}

	return burn, nil
}

// mapBurnInsertError inspects constraint violations on the burn insert.
// A duplicate proof reference is a player replaying an old transaction
// and is rejected outright.
func mapBurnInsertError(err error) error {
	pqErr, ok := err.(*pq.Error)
	if ok && pqErr.Code.Name() == "unique_violation" {
		if strings.Contains(pqErr.Constraint, "proof_reference") {
			return apierror.NewAPIError(apierror.ErrConflict, "Proof reference has already been redeemed", err)
		}
		return apierror.NewAPIError(apierror.ErrConflict, "Burn record already exists", err)
	}
	return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record burn", err)
}

func (d *Datasource) ProofReferenceExists(ctx context.Context, proofReference string) (bool, error) {
	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM burn_records WHERE proof_reference = $1)
	`, proofReference).Scan(&exists)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check proof reference", err)
	}
	return exists, nil
}

func (d *Datasource) GetBurnsByPlayer(ctx context.Context, playerID string, limit, offset int) ([]*model.BurnRecord, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT record_id, player_id, proof_reference, input_amount, tax_amount, net_amount, awarded_tier_id, created_at
		FROM burn_records
		WHERE player_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, playerID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve burn records", err)
	}
	defer rows.Close()

	burns := []*model.BurnRecord{}
	for rows.Next() {
		burn := &model.BurnRecord{}
		var awardedTierID sql.NullString
		err := rows.Scan(
			&burn.RecordID,
			&burn.PlayerID,
			&burn.ProofReference,
			&burn.InputAmount,
			&burn.TaxAmount,
			&burn.NetAmount,
			&awardedTierID,
			&burn.CreatedAt,
		)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan burn record", err)
		}
		if awardedTierID.Valid {
			burn.AwardedTierID = awardedTierID.String
		}
		burns = append(burns, burn)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over burn records", err)
	}
	return burns, nil
}
