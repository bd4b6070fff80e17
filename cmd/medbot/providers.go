package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/medbot/internal/cli"
	"github.com/hyperjump/medbot/internal/models"
	"github.com/hyperjump/medbot/internal/storage"
)

func newProvidersCmd(a *app) *cobra.Command {
	var filter models.ProviderFilter
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List providers, optionally filtered by keyword and speciality",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.NewSQLiteStorage(a.cfg.Storage.DatabasePath)
			if err != nil {
				return err
			}
			defer store.Close()

			providers, err := store.SearchProviders(context.Background(), filter)
			if err != nil {
				return err
			}
			return cli.WriteProviders(cmd.OutOrStdout(), providers, cli.ParseFormat(a.output))
		},
	}
	cmd.Flags().StringVar(&filter.Keyword, "keyword", "", "substring of the keywords column")
	cmd.Flags().StringVar(&filter.Specialty, "speciality", "", "substring of the speciality column")
	cmd.AddCommand(newProvidersRemoveCmd(a))
	return cmd
}

func newProvidersRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Delete providers by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid provider id %q", arg)
				}
				ids = append(ids, id)
			}

			store, err := storage.NewSQLiteStorage(a.cfg.Storage.DatabasePath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			for _, id := range ids {
				if err := store.DeleteProvider(ctx, id); err != nil {
					return err
				}
				a.logger.Info("provider removed", zap.Int64("id", id))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d provider(s). Run 'medbot index build' to refresh the index.\n", len(ids))
			return nil
		},
	}
}
