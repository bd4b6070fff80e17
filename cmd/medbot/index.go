package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/medbot/internal/cli"
	"github.com/hyperjump/medbot/internal/index"
	"github.com/hyperjump/medbot/internal/storage"
)

func newIndexCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or inspect the vector index",
	}
	cmd.AddCommand(newIndexBuildCmd(a), newIndexStatusCmd(a), newIndexClearCmd(a))
	return cmd
}

func newIndexBuildCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Rebuild the vector index from the provider database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				bar   *progressbar.ProgressBar
				barMu sync.Mutex
			)
			progress := func(done, total int) {
				barMu.Lock()
				defer barMu.Unlock()
				if bar == nil {
					bar = progressbar.NewOptions(total,
						progressbar.OptionSetWriter(cmd.ErrOrStderr()),
						progressbar.OptionSetWidth(40),
						progressbar.OptionShowCount(),
						progressbar.OptionSetDescription("Encoding providers"),
						progressbar.OptionOnCompletion(func() {
							fmt.Fprintln(cmd.ErrOrStderr())
						}),
					)
				}
				_ = bar.Set(done)
			}

			components, err := initializeComponents(a.cfg, a.logger, progress)
			if err != nil {
				return err
			}
			defer components.Close()

			if err := components.Index.Rebuild(context.Background(), components.Storage.ListProviders); err != nil {
				return fmt.Errorf("index build failed: %w", err)
			}
			components.Index.Flush()

			status, err := collectStatus(context.Background(), a, components)
			if err != nil {
				return err
			}
			return cli.WriteIndexStatus(cmd.OutOrStdout(), status, cli.ParseFormat(a.output))
		},
	}
}

func newIndexStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show provider count and the persisted index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			components, err := initializeComponents(a.cfg, a.logger, nil)
			if err != nil {
				return err
			}
			defer components.Close()

			ctx := context.Background()
			if err := components.Index.Load(ctx); err != nil && !errors.Is(err, index.ErrNoSnapshot) {
				a.logger.Warn("Persisted index not usable", zap.Error(err))
			}
			status, err := collectStatus(ctx, a, components)
			if err != nil {
				return err
			}
			return cli.WriteIndexStatus(cmd.OutOrStdout(), status, cli.ParseFormat(a.output))
		},
	}
}

func newIndexClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the persisted index so the next start rebuilds it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.Index.PersistOrDefault() {
				fmt.Fprintln(cmd.OutOrStdout(), "Index persistence is disabled; nothing to clear.")
				return nil
			}
			snaps, err := index.OpenSnapshotStore(a.cfg.Storage.IndexPath)
			if err != nil {
				return err
			}
			defer snaps.Close()
			if err := snaps.Clear(); err != nil {
				return fmt.Errorf("clear index snapshot: %w", err)
			}
			a.logger.Info("Index snapshot cleared", zap.String("path", snaps.Path()))
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared persisted index at %s\n", snaps.Path())
			return nil
		},
	}
}

func collectStatus(ctx context.Context, a *app, c *Components) (*cli.IndexStatus, error) {
	count, err := c.Storage.CountProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("count providers failed: %w", err)
	}
	paths := storage.DatabaseFiles(a.cfg.Storage.DatabasePath)
	if a.cfg.Index.PersistOrDefault() {
		paths = append(paths, a.cfg.Storage.IndexPath)
	}
	status := &cli.IndexStatus{
		Providers: count,
		Index:     c.Index.Info(),
		Encoder:   c.EncoderModel(),
	}
	if diskBytes, err := storage.DiskUsageBytes(paths...); err == nil {
		status.DiskBytes = diskBytes
	}
	return status, nil
}
