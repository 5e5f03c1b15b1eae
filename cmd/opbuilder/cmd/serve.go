package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solatis/opbuilder/internal/core/api"
	"github.com/solatis/opbuilder/internal/core/config"
	"github.com/solatis/opbuilder/internal/core/db"
	"github.com/solatis/opbuilder/internal/core/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Evaluator gRPC service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50061, "gRPC server port")
	serveCmd.Flags().String("metrics-addr", ":9090", "Prometheus listen address (empty disables)")
	serveCmd.Flags().String("definition-set", "", "stored definition set to bind at startup")
}

// newService opens the definition store and builds the evaluator over it.
// The store backs ReloadDefinitions even when no set is bound at startup.
func newService(ctx context.Context, cfg *config.EngineConfig, reg prometheus.Registerer, logger *zap.SugaredLogger) (*api.EvaluatorService, func() error, error) {
	database, err := openMigrated(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	store, err := db.NewDefinitionStore(database)
	if err != nil {
		database.Close()
		return nil, nil, err
	}

	service, err := api.NewEvaluatorService(cfg, store, api.NewMetrics(reg), logger)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to create service: %w", err)
	}
	if cfg.DefinitionSet != "" {
		if _, err := service.LoadDefinitions(ctx, cfg.DefinitionSet); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("failed to load definition set %q: %w", cfg.DefinitionSet, err)
		}
	}
	return service, database.Close, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	service, closeDB, err := newService(ctx, cfg, reg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	grpcServer, err := server.NewGRPCServer(cfg, service, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errChan := make(chan error, 2)
	var metricsServer *server.MetricsServer
	if cfg.MetricsAddr != "" {
		metricsServer = server.NewMetricsServer(cfg.MetricsAddr, reg, logger)
		go func() { errChan <- metricsServer.Start(ctx) }()
	}

	logger.Infow("starting opbuilder", "version", Version, "addr", cfg.Addr(), "definition_set", cfg.DefinitionSet)
	go func() { errChan <- grpcServer.Start(ctx) }()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Infow("shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warnw("metrics server shutdown failed", "error", err)
		}
	}
	return grpcServer.Shutdown(shutdownCtx)
}
