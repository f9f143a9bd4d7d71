/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"safetyportal/internal/bootstrap/logging"
	"safetyportal/internal/errs"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "safetyportal",
	Short:        "Safety observation reporting portal",
	Long:         "Submit, review, export and administer site safety observations over HTTP or from the terminal.",
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	// Config is not loaded yet, so the process logger reads its settings from
	// the same environment variables viper binds later.
	logger := logging.NewLogger(
		rootCmd.ErrOrStderr(),
		os.Getenv("SP_APP_LOG_FORMAT"),
		logging.ParseLevel(os.Getenv("SP_APP_LOG_LEVEL")),
	)
	ctx = logging.WithLogger(ctx, logger)
	ctx = logging.WithAttrs(ctx, slog.String("app", "safetyportal"))

	rootCmd.SetContext(ctx)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error(ctx, "command execution failed", slog.Any("err", errs.Loggable(err)))
		return errs.Wrap(err, "execute root command")
	}

	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path (default ./configs/config.yaml when present)")
}
