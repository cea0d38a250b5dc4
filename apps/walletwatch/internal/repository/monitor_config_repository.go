package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"walletwatch/apps/walletwatch/internal/model"
	"walletwatch/apps/walletwatch/internal/monitor"
)

const uniqueViolation = "23505"

type MonitorConfigRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewMonitorConfigRepository(db *sql.DB, logger *zap.Logger) *MonitorConfigRepository {
	return &MonitorConfigRepository{db: db, logger: logger}
}

// Create inserts a new monitor config. A duplicate (wallet_address, email)
// pair surfaces as monitor.ErrDuplicateConfig.
func (r *MonitorConfigRepository) Create(cfg model.MonitorConfig) error {
	_, err := r.db.Exec(`
		INSERT INTO monitor_configs (id, wallet_address, email, label, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, cfg.ID, cfg.Address, cfg.Email, cfg.Label, cfg.IsActive, cfg.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return monitor.ErrDuplicateConfig
		}
		return fmt.Errorf("failed to create monitor config: %w", err)
	}

	r.logger.Info("Created monitor config",
		zap.String("id", cfg.ID),
		zap.String("wallet_address", cfg.Address),
		zap.String("email", cfg.Email))
	return nil
}

func (r *MonitorConfigRepository) GetByID(id string) (*model.MonitorConfig, error) {
	var cfg model.MonitorConfig
	err := r.db.QueryRow(`
		SELECT id, wallet_address, email, label, is_active, created_at, last_notification
		FROM monitor_configs
		WHERE id = $1
	`, id).Scan(&cfg.ID, &cfg.Address, &cfg.Email, &cfg.Label, &cfg.IsActive, &cfg.CreatedAt, &cfg.LastNotification)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, monitor.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get monitor config: %w", err)
	}

	return &cfg, nil
}

func (r *MonitorConfigRepository) List() ([]model.MonitorConfig, error) {
	rows, err := r.db.Query(`
		SELECT id, wallet_address, email, label, is_active, created_at, last_notification
		FROM monitor_configs
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list monitor configs: %w", err)
	}
	defer rows.Close()

	var configs []model.MonitorConfig
	for rows.Next() {
		var cfg model.MonitorConfig
		if err := rows.Scan(&cfg.ID, &cfg.Address, &cfg.Email, &cfg.Label, &cfg.IsActive, &cfg.CreatedAt, &cfg.LastNotification); err != nil {
			return nil, fmt.Errorf("failed to scan monitor config: %w", err)
		}
		configs = append(configs, cfg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating monitor configs: %w", err)
	}

	return configs, nil
}

// ListByAddress returns all configs registered for one normalized address.
func (r *MonitorConfigRepository) ListByAddress(address string) ([]model.MonitorConfig, error) {
	rows, err := r.db.Query(`
		SELECT id, wallet_address, email, label, is_active, created_at, last_notification
		FROM monitor_configs
		WHERE wallet_address = $1
	`, address)
	if err != nil {
		return nil, fmt.Errorf("failed to list monitor configs by address: %w", err)
	}
	defer rows.Close()

	var configs []model.MonitorConfig
	for rows.Next() {
		var cfg model.MonitorConfig
		if err := rows.Scan(&cfg.ID, &cfg.Address, &cfg.Email, &cfg.Label, &cfg.IsActive, &cfg.CreatedAt, &cfg.LastNotification); err != nil {
			return nil, fmt.Errorf("failed to scan monitor config: %w", err)
		}
		configs = append(configs, cfg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating monitor configs: %w", err)
	}

	return configs, nil
}

func (r *MonitorConfigRepository) SetActive(id string, active bool) error {
	result, err := r.db.Exec(`
		UPDATE monitor_configs SET is_active = $2 WHERE id = $1
	`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update monitor config: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return monitor.ErrNotFound
	}

	r.logger.Info("Updated monitor config state",
		zap.String("id", id),
		zap.Bool("is_active", active))
	return nil
}

func (r *MonitorConfigRepository) SetLastNotification(id string, at time.Time) error {
	result, err := r.db.Exec(`
		UPDATE monitor_configs SET last_notification = $2 WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("failed to update last notification: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return monitor.ErrNotFound
	}

	return nil
}

func (r *MonitorConfigRepository) Delete(id string) error {
	result, err := r.db.Exec(`
		DELETE FROM monitor_configs WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete monitor config: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return monitor.ErrNotFound
	}

	r.logger.Info("Deleted monitor config", zap.String("id", id))
	return nil
}
