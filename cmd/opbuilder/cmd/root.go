package cmd

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/solatis/opbuilder/internal/core/config"
	"github.com/solatis/opbuilder/internal/core/db"
	"github.com/solatis/opbuilder/internal/core/logging"
)

// Version is the release reported by serve.
const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "opbuilder",
	Short: "Helper term compiler and evaluator for security event rules",
	Long: `opbuilder compiles declarative helper calls (target field, helper name,
arguments) into reusable terms and evaluates them against JSON events.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatJSON, "log format (json, text)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig applies flags over environment, config file and defaults.
func loadConfig(cmd *cobra.Command) (*config.EngineConfig, error) {
	v := viper.New()
	if cmd.Flags().Changed("db-url") {
		v.Set("engine.database_url", dbURL)
	}
	for flag, key := range map[string]string{
		"host":           "engine.host",
		"port":           "engine.port",
		"metrics-addr":   "engine.metrics_addr",
		"definition-set": "engine.definition_set",
	} {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	cfg, err := config.LoadConfigWith(v, configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger() (*zap.SugaredLogger, error) {
	logger, err := logging.New(logLevel, logFormat)
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// openMigrated opens the configured database and refuses to continue while
// migrations are pending.
func openMigrated(ctx context.Context, cfg *config.EngineConfig) (*sqlx.DB, error) {
	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	statuses, err := db.MigrateStatus(ctx, database)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			database.Close()
			return nil, fmt.Errorf("migration %s not applied - run 'opbuilder migrate up' first", s.ID)
		}
	}
	return database, nil
}
