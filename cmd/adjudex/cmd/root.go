// Package cmd implements the adjudex command-line interface.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/adjudex/adjudex/internal/config"
	"github.com/adjudex/adjudex/pkg/logging"
)

var (
	configFile string
	verbose    bool
	quiet      bool

	appConfig *config.Config

	// Version information set by main.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// Date is the build date.
	Date = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "adjudex",
	Short: "French judicial real-estate auction aggregator",
	Long: `Adjudex scrapes judicial real-estate auction announcements from
multiple French sources, merges duplicate listings across them, geocodes
the results and keeps a history of every scraping run.

Records land in PostgreSQL when DATABASE_URL is set, otherwise in an
in-memory store useful for one-off runs.`,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		return initConfig()
	},
}

// Execute runs the root command with signal-aware context.
func Execute(version, commit, date string) {
	Version = version
	Commit = commit
	Date = date

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is $HOME/.adjudex.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log warnings and errors")

	cobra.CheckErr(viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")))
	cobra.CheckErr(viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")))
	cobra.CheckErr(viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet")))
}

// initConfig loads configuration and sets up logging before any command runs.
func initConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	appConfig = cfg

	configureLogging(cfg)
	return nil
}

// configureLogging sets up the logging system based on configuration.
func configureLogging(cfg *config.Config) {
	level := zerolog.InfoLevel
	if cfg.Verbose {
		level = zerolog.DebugLevel
	}
	if cfg.Quiet {
		level = zerolog.WarnLevel
	}
	if parsed, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" && !cfg.Verbose && !cfg.Quiet {
		level = parsed
	}

	logging.Configure(&logging.Config{
		Level:     level.String(),
		Format:    cfg.LogFormat,
		Output:    cfg.LogOutput,
		AddCaller: level <= zerolog.DebugLevel,
	})
}

// shutdownContext returns a fresh context for cleanup work after the
// signal context has been canceled.
func shutdownContext(budget time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), budget)
}
