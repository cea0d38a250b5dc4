package model

import (
	"time"
)

type MonitorConfig struct {
	ID               string     `db:"id"`
	Address          string     `db:"wallet_address"`
	Email            string     `db:"email"`
	Label            string     `db:"label"`
	IsActive         bool       `db:"is_active"`
	CreatedAt        time.Time  `db:"created_at"`
	LastNotification *time.Time `db:"last_notification"` // nullable field
}
