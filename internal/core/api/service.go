// Package api implements the Evaluator gRPC service: it builds one helper
// term per request and evaluates it against a batch of events.
package api

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/solatis/opbuilder/internal/core/config"
	"github.com/solatis/opbuilder/internal/defs"
	"github.com/solatis/opbuilder/internal/rules"
)

// DefinitionSource loads named definition sets. *db.DefinitionStore satisfies it.
type DefinitionSource interface {
	Load(ctx context.Context, name string) (*defs.Map, error)
}

// EvaluatorService implements EvaluatorServer.
// The engine is swapped atomically on reload; in-flight requests keep the
// engine they started with.
type EvaluatorService struct {
	engine  atomic.Pointer[rules.Engine]
	source  DefinitionSource
	cfg     *config.EngineConfig
	metrics *Metrics
	logger  *zap.SugaredLogger
}

// NewEvaluatorService creates the service with an empty definitions set.
// source may be nil, in which case ReloadDefinitions is unavailable.
func NewEvaluatorService(cfg *config.EngineConfig, source DefinitionSource, metrics *Metrics, logger *zap.SugaredLogger) (*EvaluatorService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if metrics == nil {
		return nil, fmt.Errorf("metrics cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	s := &EvaluatorService{source: source, cfg: cfg, metrics: metrics, logger: logger}
	if err := s.install(defs.Empty(), ""); err != nil {
		return nil, err
	}
	return s, nil
}

// Engine returns the engine currently serving requests.
func (s *EvaluatorService) Engine() *rules.Engine {
	return s.engine.Load()
}

// LoadDefinitions replaces the serving engine with one bound to the named set.
func (s *EvaluatorService) LoadDefinitions(ctx context.Context, name string) (int, error) {
	if s.source == nil {
		return 0, fmt.Errorf("no definition storage configured")
	}
	m, err := s.source.Load(ctx, name)
	if err != nil {
		return 0, err
	}
	if err := s.install(m, name); err != nil {
		return 0, err
	}
	return m.Len(), nil
}

func (s *EvaluatorService) install(d *defs.Map, name string) error {
	engine, err := rules.NewEngine(d,
		rules.WithCacheSize(s.cfg.CacheSize),
		rules.WithLogger(s.logger.With("definition_set", name)),
	)
	if err != nil {
		return err
	}
	s.engine.Store(engine)
	s.logger.Infow("definitions installed", "definition_set", name, "definitions", d.Len())
	return nil
}
