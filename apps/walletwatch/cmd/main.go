package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"walletwatch/apps/walletwatch/internal/api"
	"walletwatch/apps/walletwatch/internal/config"
	"walletwatch/apps/walletwatch/internal/monitor"
	"walletwatch/apps/walletwatch/internal/notifier"
	"walletwatch/apps/walletwatch/internal/repository"
	"walletwatch/apps/walletwatch/internal/watcher"
)

func main() {
	// Initialize zap logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	// Load configuration from environment variables
	cfg := config.NewConfig()

	logger.Info("Starting walletwatch with configuration",
		zap.String("rpc_url", cfg.RpcURL),
		zap.String("db_url", cfg.DbURL),
		zap.Int("api_port", cfg.APIPort),
		zap.Int64("chain_id", cfg.ChainID),
		zap.String("native_symbol", cfg.NativeSymbol),
		zap.String("email_provider", cfg.Email.Provider),
	)

	// Connect to database
	db, err := sql.Open("postgres", cfg.DbURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize database tables
	if err := repository.InitMigration(db); err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	configRepository := repository.NewMonitorConfigRepository(db, logger)

	// Select the mail transport; an unrecognized provider is a
	// deployment error and stops the process here.
	sender, err := notifier.NewSender(cfg.Email, logger)
	if err != nil {
		logger.Fatal("Failed to create email sender", zap.Error(err))
	}
	emailNotifier := notifier.NewEmailNotifier(sender, cfg.ExplorerURL, logger)

	// Chain subscriptions need a WebSocket endpoint
	client, err := ethclient.Dial(cfg.RpcURL)
	if err != nil {
		logger.Fatal("Failed to connect to chain node", zap.Error(err))
	}
	defer client.Close()

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// The service implements the watcher's NotificationRecorder, so the
	// watcher gets a late-bound recorder to break the construction cycle.
	var service *monitor.Service
	chainWatcher := watcher.NewChainWatcher(client, emailNotifier, recorderFunc(func(id string, at time.Time) {
		service.RecordNotification(id, at)
	}), cfg.ChainID, cfg.NativeSymbol, logger)
	chainWatcher.Start(rootCtx)
	defer chainWatcher.Close()

	service = monitor.NewService(configRepository, chainWatcher, emailNotifier, logger)

	// Restart watchers for configs that were active before the last
	// shutdown
	if err := service.ResumeActive(); err != nil {
		logger.Fatal("Failed to resume active monitors", zap.Error(err))
	}

	// Create and start API server
	apiServer := api.NewServer(cfg.APIPort, service, cfg.WebhookSecret, logger)
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Fatal("API server failed", zap.Error(err))
		}
	}()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	<-sigChan
	logger.Info("Received shutdown signal, starting graceful shutdown...")

	// Create a context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown API server gracefully
	if err := apiServer.Stop(ctx); err != nil {
		logger.Error("Error shutting down API server", zap.Error(err))
	}

	logger.Info("Application shutdown complete")
}

// recorderFunc adapts a function to the watcher's NotificationRecorder.
type recorderFunc func(id string, at time.Time)

func (f recorderFunc) RecordNotification(id string, at time.Time) {
	f(id, at)
}
