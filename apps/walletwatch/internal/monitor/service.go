package monitor

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"walletwatch/apps/walletwatch/internal/model"
)

// Store is the persistence boundary for monitor configs. The postgres
// implementation lives in the repository package; tests use an
// in-memory fake.
type Store interface {
	Create(cfg model.MonitorConfig) error
	GetByID(id string) (*model.MonitorConfig, error)
	List() ([]model.MonitorConfig, error)
	ListByAddress(address string) ([]model.MonitorConfig, error)
	SetActive(id string, active bool) error
	SetLastNotification(id string, at time.Time) error
	Delete(id string) error
}

// Watcher starts and stops the live subscriptions for a config.
type Watcher interface {
	Watch(cfg model.MonitorConfig)
	Unwatch(id string)
}

// Alerter delivers a transaction alert to one recipient.
type Alerter interface {
	SendTransactionAlert(ctx context.Context, to, walletLabel string, tx model.TransactionEvent) error
}

// Service owns the set of monitor configs and brokers every mutation
// against the watcher. All mutating operations are serialized so a
// concurrent create and delete can never leave a dangling watcher or an
// active record without one.
type Service struct {
	store   Store
	watcher Watcher
	alerter Alerter
	logger  *zap.Logger

	mu sync.Mutex
}

func NewService(store Store, watcher Watcher, alerter Alerter, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		watcher: watcher,
		alerter: alerter,
		logger:  logger,
	}
}

// Create validates and normalizes a new config, persists it and starts
// its watcher. The label defaults to a shortened form of the address.
func (s *Service) Create(address, email, label string) (*model.MonitorConfig, error) {
	if !common.IsHexAddress(address) {
		return nil, &ValidationError{Field: "address", Reason: "not a valid wallet address"}
	}

	parsed, err := mail.ParseAddress(email)
	if err != nil || parsed.Address != email {
		return nil, &ValidationError{Field: "email", Reason: "not a valid email address"}
	}

	normalizedAddress := strings.ToLower(address)
	normalizedEmail := strings.ToLower(email)

	if label == "" {
		label = shortenAddress(normalizedAddress)
	}

	cfg := model.MonitorConfig{
		ID:        uuid.New().String(),
		Address:   normalizedAddress,
		Email:     normalizedEmail,
		Label:     label,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Create(cfg); err != nil {
		return nil, err
	}

	s.watcher.Watch(cfg)

	return &cfg, nil
}

// Toggle flips isActive, starting or stopping the config's watcher to
// match the new state.
func (s *Service) Toggle(id string, active bool) (*model.MonitorConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.store.GetByID(id)
	if err != nil {
		return nil, err
	}

	if cfg.IsActive == active {
		return cfg, nil
	}

	if err := s.store.SetActive(id, active); err != nil {
		return nil, err
	}
	cfg.IsActive = active

	if active {
		s.watcher.Watch(*cfg)
	} else {
		s.watcher.Unwatch(id)
	}

	return cfg, nil
}

// Delete stops the config's watcher and removes the record.
func (s *Service) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.GetByID(id); err != nil {
		return err
	}

	s.watcher.Unwatch(id)

	return s.store.Delete(id)
}

func (s *Service) List() ([]model.MonitorConfig, error) {
	return s.store.List()
}

// ResumeActive restarts watchers for every active config. Called once on
// boot so monitoring survives process restarts.
func (s *Service) ResumeActive() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	configs, err := s.store.List()
	if err != nil {
		return fmt.Errorf("failed to load monitor configs: %w", err)
	}

	resumed := 0
	for _, cfg := range configs {
		if !cfg.IsActive {
			continue
		}
		s.watcher.Watch(cfg)
		resumed++
	}

	s.logger.Info("Resumed active monitors", zap.Int("count", resumed))
	return nil
}

// RecordNotification updates lastNotification after a successful alert
// dispatch. Implements the watcher's NotificationRecorder.
func (s *Service) RecordNotification(id string, at time.Time) {
	if err := s.store.SetLastNotification(id, at); err != nil {
		s.logger.Error("Failed to record notification timestamp",
			zap.String("id", id),
			zap.Error(err))
	}
}

// NotifyAddress fans an externally detected transaction (webhook push)
// out to every active config watching the address.
func (s *Service) NotifyAddress(ctx context.Context, address string, tx model.TransactionEvent) error {
	configs, err := s.store.ListByAddress(strings.ToLower(address))
	if err != nil {
		return fmt.Errorf("failed to look up configs for address %s: %w", address, err)
	}

	for _, cfg := range configs {
		if !cfg.IsActive {
			continue
		}

		if err := s.alerter.SendTransactionAlert(ctx, cfg.Email, cfg.Label, tx); err != nil {
			s.logger.Error("Failed to dispatch webhook alert",
				zap.String("id", cfg.ID),
				zap.String("tx_hash", tx.Hash),
				zap.Error(err))
			continue
		}

		s.RecordNotification(cfg.ID, time.Now().UTC())
	}

	return nil
}

// shortenAddress renders 0x1234...cdef style display labels.
func shortenAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
