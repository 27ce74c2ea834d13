// Package app wires configuration, storage and the REST server into a
// running process.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/chrissnell/electrotonic/internal/api"
	"github.com/chrissnell/electrotonic/internal/store"
	"github.com/chrissnell/electrotonic/pkg/config"
)

// App represents the long-running API service
type App struct {
	cfg    *config.ConfigData
	logger *zap.SugaredLogger
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Run starts the REST server and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg := a.cfg
	if cfg == nil {
		cfg = config.Default()
	}

	st, err := store.Open(cfg.Storage, a.logger.Named("store"))
	switch {
	case errors.Is(err, store.ErrNotConfigured):
		a.logger.Warn("no storage configured; run persistence endpoints are disabled")
		st = nil
	case err != nil:
		return err
	default:
		defer st.Close()
	}

	server, err := api.NewServer(ctx, &wg, cfg, st, a.logger.Named("api"))
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return err
	}

	a.logger.Info("application started successfully")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigs:
		a.logger.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down...")
	}

	cancel()

	a.logger.Info("waiting for the server to terminate...")
	wg.Wait()
	a.logger.Info("shutdown complete")

	return nil
}
