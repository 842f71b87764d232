package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/lib/pq"

	"github.com/idleforge/forge/internal/apierror"
	"github.com/idleforge/forge/model"
)

// CreateObligation persists a new payout obligation. The partial unique
// index on (player_id, reason_key) makes the duplicate check and the
// insert a single atomic operation; a conflict is mapped to ErrConflict
// and treated by callers as "already rewarded", not a retryable failure.
func (d *Datasource) CreateObligation(ctx context.Context, obligation *model.PayoutObligation) (*model.PayoutObligation, error) {
	ctx, span := otel.Tracer("payout.ledger").Start(ctx, "Saving obligation to db")
	defer span.End()

	metaDataJSON, err := json.Marshal(obligation.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	obligation.PayoutID = model.GenerateUUIDWithSuffix("pay")
	obligation.Status = model.StatusPending
	obligation.CreatedAt = time.Now()

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO payout_obligations (payout_id, player_id, destination, network, amount, reason_key, status, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, obligation.PayoutID, obligation.PlayerID, obligation.Destination, obligation.Network, obligation.Amount, obligation.ReasonKey, obligation.Status, obligation.CreatedAt, metaDataJSON)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return nil, apierror.NewAPIError(apierror.ErrConflict, "Obligation already exists for this player and reason", err)
			default:
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create obligation", err)
	}

	return obligation, nil
}

func (d *Datasource) GetObligationByID(ctx context.Context, id string) (*model.PayoutObligation, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT payout_id, player_id, destination, network, amount, reason_key, status, proof_reference, created_at, processed_at, meta_data
		FROM payout_obligations
		WHERE payout_id = $1
	`, id)

	obligation, err := scanObligation(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Obligation with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve obligation", err)
	}
	return obligation, nil
}

// GetObligationByReason returns the live obligation for a player and
// reason key. Failed obligations do not count; the reason becomes
// grantable again once its previous attempt failed.
func (d *Datasource) GetObligationByReason(ctx context.Context, playerID, reasonKey string) (*model.PayoutObligation, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT payout_id, player_id, destination, network, amount, reason_key, status, proof_reference, created_at, processed_at, meta_data
		FROM payout_obligations
		WHERE player_id = $1 AND reason_key = $2 AND status != 'failed'
	`, playerID, reasonKey)

	obligation, err := scanObligation(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("No obligation for player '%s' with reason '%s'", playerID, reasonKey), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve obligation", err)
	}
	return obligation, nil
}

// TransitionObligation moves an obligation to newStatus, enforcing the
// status machine with a single conditional update. The legal source
// statuses are part of the WHERE clause, so a concurrent transition that
// got there first makes this one fail rather than silently overwrite.
func (d *Datasource) TransitionObligation(ctx context.Context, id, newStatus, proofReference string) (*model.PayoutObligation, error) {
	ctx, span := otel.Tracer("payout.ledger").Start(ctx, "Transitioning obligation status")
	defer span.End()

	legalSources := model.LegalSources(newStatus)
	if len(legalSources) == 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("'%s' is not a reachable obligation status", newStatus), nil)
	}

	var processedAt *time.Time
	if model.IsTerminalStatus(newStatus) {
		now := time.Now()
		processedAt = &now
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE payout_obligations
		SET status = $2,
		    proof_reference = COALESCE(NULLIF($3, ''), proof_reference),
		    processed_at = COALESCE($4, processed_at)
		WHERE payout_id = $1 AND status = ANY($5)
	`, id, newStatus, proofReference, processedAt, pq.Array(legalSources))
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to transition obligation", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		// Distinguish a missing obligation from an illegal transition so
		// status machine violations are reported loudly, never swallowed.
		current, lookupErr := d.GetObligationByID(ctx, id)
		if lookupErr != nil {
			return nil, lookupErr
		}
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput,
			fmt.Sprintf("Illegal obligation transition %s -> %s for '%s'", current.Status, newStatus, id), nil)
	}

	return d.GetObligationByID(ctx, id)
}

// GetPendingObligations returns the pending queue for one destination
// network, oldest first. This feeds the external disbursement process.
func (d *Datasource) GetPendingObligations(ctx context.Context, network string, limit, offset int) ([]*model.PayoutObligation, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT payout_id, player_id, destination, network, amount, reason_key, status, proof_reference, created_at, processed_at, meta_data
		FROM payout_obligations
		WHERE status = 'pending' AND network = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`, network, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve pending obligations", err)
	}
	defer rows.Close()

	return scanObligations(rows)
}

// GetObligations lists obligations filtered by status and/or player for
// operator review. Empty filter values are ignored.
func (d *Datasource) GetObligations(ctx context.Context, status, playerID string, limit, offset int) ([]*model.PayoutObligation, error) {
	query := `
		SELECT payout_id, player_id, destination, network, amount, reason_key, status, proof_reference, created_at, processed_at, meta_data
		FROM payout_obligations
		WHERE ($1 = '' OR status = $1) AND ($2 = '' OR player_id = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := d.Conn.QueryContext(ctx, query, status, playerID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve obligations", err)
	}
	defer rows.Close()

	return scanObligations(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanObligation(row rowScanner) (*model.PayoutObligation, error) {
	obligation := &model.PayoutObligation{}
	var metaDataJSON []byte
	var proofReference sql.NullString
	var processedAt sql.NullTime

	err := row.Scan(
		&obligation.PayoutID,
		&obligation.PlayerID,
		&obligation.Destination,
		&obligation.Network,
		&obligation.Amount,
		&obligation.ReasonKey,
		&obligation.Status,
		&proofReference,
		&obligation.CreatedAt,
		&processedAt,
		&metaDataJSON,
	)
	if err != nil {
		return nil, err
	}

	if proofReference.Valid {
		obligation.ProofReference = proofReference.String
	}
	if processedAt.Valid {
		obligation.ProcessedAt = &processedAt.Time
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &obligation.MetaData); err != nil {
			return nil, err
		}
	}
	return obligation, nil
}

func scanObligations(rows *sql.Rows) ([]*model.PayoutObligation, error) {
	obligations := []*model.PayoutObligation{}
	for rows.Next() {
		obligation, err := scanObligation(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan obligation data", err)
		}
		obligations = append(obligations, obligation)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over obligations", err)
	}
	return obligations, nil
}
