package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/medbot/internal/cli"
	"github.com/hyperjump/medbot/internal/ingest"
)

func newImportCmd(a *app) *cobra.Command {
	var rebuild bool
	cmd := &cobra.Command{
		Use:   "import <file-or-glob>...",
		Short: "Import providers from CSV, XLSX or YAML files",
		Long: `Import provider records into the database. Patterns may use ** to match
nested directories. Rows with an id replace the stored record; rows without one are added.

Examples:
  medbot import doctors.xlsx
  medbot import "data/**/*.csv" --rebuild`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := ingest.Expand(args)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no supported files (.csv, .xlsx, .yaml) in %v", args)
			}

			components, err := initializeComponents(a.cfg, a.logger, nil)
			if err != nil {
				return err
			}
			defer components.Close()

			ctx := context.Background()
			report, err := ingest.NewImporter(components.Storage, a.logger).ImportFiles(ctx, files)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			if err := cli.WriteImportReport(cmd.OutOrStdout(), report, cli.ParseFormat(a.output)); err != nil {
				return err
			}

			if rebuild && report.Imported > 0 {
				if err := components.Index.Rebuild(ctx, components.Storage.ListProviders); err != nil {
					a.logger.Warn("Index rebuild after import failed", zap.Error(err))
					return fmt.Errorf("providers imported but index rebuild failed: %w", err)
				}
				components.Index.Flush()
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "rebuild the vector index after importing")
	return cmd
}
