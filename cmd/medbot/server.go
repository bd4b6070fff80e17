package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/medbot/internal/index"
	"github.com/hyperjump/medbot/internal/server"
	"github.com/hyperjump/medbot/internal/watcher"
)

func newServerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(a)
		},
	}
}

func runServer(a *app) error {
	cfg, logger := a.cfg, a.logger
	logger.Info("config loaded", zap.String("config_path", a.loadedFrom))

	components, err := initializeComponents(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer components.Close()

	// Best effort: without an index the API still answers through keyword matching.
	startCtx, cancel := context.WithTimeout(context.Background(), cfg.Index.BuildTimeout)
	if err := components.Index.EnsureBuilt(startCtx, components.Storage.ListProviders); err != nil {
		logger.Warn("Vector index not available at startup, using keyword search", zap.Error(err))
	}
	cancel()

	if cfg.Index.WatchSource && components.Index.Available() {
		db := cfg.Storage.DatabasePath
		watchOpts := []watcher.WatcherOption{}
		if cfg.Debug || a.debug {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		w := watcher.NewWatcher([]string{db, db + "-wal"}, func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Index.BuildTimeout)
			defer cancel()
			err := components.Index.Rebuild(ctx, components.Storage.ListProviders)
			switch {
			case errors.Is(err, index.ErrBuildInProgress):
				logger.Debug("Source changed during a build, skipping rebuild")
			case err != nil:
				logger.Warn("Rebuild after source change failed", zap.Error(err))
			}
		}, watchOpts...)
		watchCtx, watchCancel := context.WithCancel(context.Background())
		defer watchCancel()
		if err := w.Start(watchCtx); err != nil {
			logger.Warn("Failed to watch provider database", zap.String("path", db), zap.Error(err))
		} else {
			defer w.Stop()
		}
	}

	srv := server.NewServer(components.Chat, components.Storage, components.Index, cfg, components.EncoderModel(), logger)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-errCh:
		logger.Error("Server failed", zap.Error(err))
		return err
	}

	logger.Info("Shutting down...")
	ctx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStop()
	return srv.Stop(ctx)
}
