// Package main is the Med-Bot CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/medbot/internal/config"
	"github.com/hyperjump/medbot/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/medbot/config.yaml"

// app carries state shared by all subcommands once the root pre-run has loaded it.
type app struct {
	configPath string
	debug      bool
	output     string

	cfg        *config.Config
	loadedFrom string
	logger     *zap.Logger
}

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development). When the default file does not
// exist either, built-in defaults are used. Returns the config and the path it came from,
// which is empty for built-in defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "medbot",
		Short: "Med-Bot - healthcare provider recommendations over chat",
		Long: `Med-Bot answers free-text health questions with matching healthcare providers.
It searches a provider database semantically, falls back to keyword matching, and
phrases the reply with an optional language model.

Example usage:
  medbot import data/*.xlsx          # Load providers into the database
  medbot index build                 # Build the vector index
  medbot chat "skin doctor in Lahore"
  medbot server                      # Serve the HTTP API`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, from, err := loadConfig(a.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			debug := cfg.Debug || a.debug
			logger, err := utils.NewLogger(debug)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			a.cfg, a.loadedFrom, a.logger = cfg, from, logger
			logger.Debug("config loaded", zap.String("config_path", from), zap.Bool("debug", debug))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", defaultConfigPath, "config file path")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "text", "output format: text or json")

	root.AddCommand(
		newServerCmd(a),
		newChatCmd(a),
		newImportCmd(a),
		newIndexCmd(a),
		newProvidersCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "medbot version %s\n", version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
