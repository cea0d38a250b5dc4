package repository

import (
	"database/sql"
	"fmt"
)

// InitMigration initializes the database. In production, this would use a proper migration
// library like go-migrate
func InitMigration(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS monitor_configs (
			id UUID PRIMARY KEY,
			wallet_address VARCHAR(42) NOT NULL,
			email VARCHAR(320) NOT NULL,
			label VARCHAR(100) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			last_notification TIMESTAMP,
			UNIQUE(wallet_address, email)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_monitor_configs_wallet ON monitor_configs (wallet_address)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %s: %w", query, err)
		}
	}

	return nil
}
