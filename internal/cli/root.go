// Package cli implements the portraits command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brunocoulet-rtm/portraits"
	"github.com/brunocoulet-rtm/portraits/internal/config"
	"github.com/brunocoulet-rtm/portraits/internal/logging"
	"github.com/brunocoulet-rtm/portraits/internal/utils"
)

var (
	// cfg is the configuration shared by subcommands, loaded in the root PersistentPreRunE
	cfg *config.Config

	cfgFile   string
	verbose   bool
	logFile   string
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:           "portraits",
	Short:         "Face-anchored 3:4 portrait thumbnails from batches of photographs",
	Version:       portraits.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		if verbose {
			loaded.Logging.Verbose = true
		}
		if logFile != "" {
			loaded.Logging.File = logFile
		}

		closer, err := logging.Setup(logging.Options{
			File:       loaded.Logging.File,
			MaxSizeMB:  loaded.Logging.MaxSizeMB,
			MaxBackups: loaded.Logging.MaxBackups,
			MaxAgeDays: loaded.Logging.MaxAgeDays,
			Compress:   loaded.Logging.Compress,
			Verbose:    loaded.Logging.Verbose,
		})
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		logCloser = closer
		cfg = loaded
		return nil
	},
}

// closeLog releases the rotated log file; registered as a finalizer so it runs when RunE fails too
func closeLog() {
	if logCloser != nil {
		logCloser.Close()
		logCloser = nil
	}
}

// loadConfig reads --config, else the default config path if present, else built-in defaults
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromFile(cfgFile)
	}
	if path := config.GetConfigPath(); utils.FileExists(path) {
		return config.LoadFromFile(path)
	}
	return config.Default(), nil
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "portraits:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnFinalize(closeLog)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file, YAML or JSON (default: "+config.GetConfigPath()+" when present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file, rotated")
}
