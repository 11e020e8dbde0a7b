// Copyright 2025 Certen Protocol

package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/certen/sterling/pkg/config"
)

var (
	configPath string
	logLevel   string
	logFormat  string
)

// rootCmd builds the sterling command tree. Every subcommand reads its own
// flags; configPath/logLevel/logFormat are persistent so `--config`,
// `--log-level`, and `--log-format` work identically before or after the
// subcommand name.
func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sterling",
		Short:         "Produce and verify content-addressed search evidence bundles",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a sterling YAML config file (optional)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn, or error")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "console or json")

	cmd.AddCommand(newRunSearchCmd())
	cmd.AddCommand(newVerifyBundleCmd())
	cmd.AddCommand(newReplayCmd())
	cmd.AddCommand(newInspectCmd())
	return cmd
}

// loadConfig returns the config at --config, or a zero Config if the flag
// was never set — every field's zero value already has a sensible meaning
// via SearchPolicyConfig.Resolve's defaults.
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return &config.Config{}, nil
	}
	return config.Load(configPath)
}

// newLogger builds the zerolog.Logger each subcommand's RunE uses for its
// own CLI diagnostics; pkg/harness and pkg/verifier take no logger.
// Flags take precedence over a loaded config's LoggingConfig.
func newLogger(cfg *config.Config) zerolog.Logger {
	level := logLevel
	if level == "info" && cfg.Logging.Level != "" {
		level = cfg.Logging.Level
	}
	format := logFormat
	if format == "console" && cfg.Logging.Format != "" {
		format = cfg.Logging.Format
	}

	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if format == "json" {
		logger = zerolog.New(os.Stderr).Level(parsed).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(parsed).With().Timestamp().Logger()
	}
	return logger
}
