package database

import (
	"database/sql"
	"log"

	"github.com/idleforge/forge/config"
	"github.com/idleforge/forge/internal/cache"

	_ "github.com/lib/pq"
)

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

// NewDataSource opens a postgres connection for the configuration and
// returns it behind the repository interface. Instances are constructed
// explicitly and injected; tests build their own against sqlmock.
func NewDataSource(configuration *config.Configuration, cache cache.Cache) (IDataSource, error) {
	con, err := ConnectDB(configuration.DataSource.Dns)
	if err != nil {
		return nil, err
	}
	return &Datasource{Conn: con, Cache: cache}, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	err = createRewardTierTable(db)
	if err != nil {
		return nil, err
	}
	err = createPayoutObligationTable(db)
	if err != nil {
		return nil, err
	}
	err = createBurnRecordTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createPayoutObligationTable creates the payout_obligations table. The
// partial unique index on (player_id, reason_key) excluding failed rows
// is what makes obligation creation an atomic check-and-insert: two
// concurrent requests for the same reward cannot both commit.
func createPayoutObligationTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS payout_obligations (
			id SERIAL PRIMARY KEY,
			payout_id TEXT NOT NULL UNIQUE,
			player_id TEXT NOT NULL,
			destination TEXT NOT NULL,
			network TEXT NOT NULL,
			amount BIGINT NOT NULL,
			reason_key TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('pending', 'claim_requested', 'completed', 'failed')),
			proof_reference TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			processed_at TIMESTAMP,
			meta_data JSONB
		)
	`)
	if err != nil {
		log.Printf("Error creating payout_obligations table: %v", err)
		return err
	}
	_, err = db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_obligations_player_reason
		ON payout_obligations (player_id, reason_key)
		WHERE status != 'failed'
	`)
	if err != nil {
		log.Printf("Error creating payout_obligations unique index: %v", err)
	}
	return err
}

// createBurnRecordTable creates the burn_records table. proof_reference
// is globally unique so the same external transaction can never be
// redeemed twice, including by different accounts.
func createBurnRecordTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS burn_records (
			id SERIAL PRIMARY KEY,
			record_id TEXT NOT NULL UNIQUE,
			player_id TEXT NOT NULL,
			proof_reference TEXT NOT NULL UNIQUE,
			input_amount BIGINT NOT NULL,
			tax_amount BIGINT NOT NULL,
			net_amount BIGINT NOT NULL,
			awarded_tier_id TEXT NOT NULL REFERENCES reward_tiers(tier_id),
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating burn_records table: %v", err)
	}
	return err
}

// createRewardTierTable creates the reward_tiers catalog table.
func createRewardTierTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS reward_tiers (
			id SERIAL PRIMARY KEY,
			tier_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL UNIQUE,
			description TEXT,
			rarity TEXT NOT NULL CHECK (rarity IN ('common', 'uncommon', 'rare', 'epic', 'legendary')),
			cost BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating reward_tiers table: %v", err)
	}
	return err
}
