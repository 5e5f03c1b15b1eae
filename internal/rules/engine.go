// internal/rules/engine.go
package rules

import (
	"fmt"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/solatis/opbuilder/internal/defs"
	"github.com/solatis/opbuilder/internal/types"
)

// DefaultCacheSize is the number of compiled terms an Engine keeps.
const DefaultCacheSize = 4096

// Engine builds terms against a fixed definitions set and caches them.
// Terms are immutable, so a cached term is shared by every caller that
// builds the same call. Safe for concurrent use.
type Engine struct {
	defs   defs.Definitions
	cache  *lru.Cache[string, *Term]
	logger *zap.SugaredLogger
}

type engineOptions struct {
	cacheSize int
	logger    *zap.SugaredLogger
}

// Option configures an Engine.
type Option func(*engineOptions)

// WithCacheSize sets the term cache capacity.
func WithCacheSize(n int) Option {
	return func(o *engineOptions) { o.cacheSize = n }
}

// WithLogger sets the logger used for build diagnostics.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// NewEngine creates an Engine. A nil d means no definitions.
func NewEngine(d defs.Definitions, opts ...Option) (*Engine, error) {
	o := engineOptions{cacheSize: DefaultCacheSize, logger: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(&o)
	}
	if d == nil {
		d = defs.Empty()
	}

	cache, err := lru.New[string, *Term](o.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create term cache: %w", err)
	}

	return &Engine{defs: d, cache: cache, logger: o.logger}, nil
}

// Build compiles target, helper and args, reusing a cached term when possible.
func (e *Engine) Build(target, helper string, args []string) (*Term, error) {
	return e.BuildCall(types.HelperCall{Target: target, Helper: helper, Args: args})
}

// BuildCall compiles call, reusing a cached term when possible.
// Failed builds are not cached.
func (e *Engine) BuildCall(call types.HelperCall) (*Term, error) {
	key := cacheKey(call)
	if t, ok := e.cache.Get(key); ok {
		return t, nil
	}

	t, err := BuildCall(call, e.defs)
	if err != nil {
		e.logger.Debugw("helper build failed",
			"helper", call.Helper,
			"target", call.Target,
			"args", call.Args,
			"error", err)
		return nil, err
	}

	if evicted := e.cache.Add(key, t); evicted {
		e.logger.Debugw("term cache full, evicted oldest entry", "size", e.cache.Len())
	}
	return t, nil
}

// Definitions returns the definitions set terms are bound against.
func (e *Engine) Definitions() defs.Definitions { return e.defs }

// CachedTerms returns the number of cached terms.
func (e *Engine) CachedTerms() int { return e.cache.Len() }

// cacheKey length-prefixes every field so distinct calls never collide.
func cacheKey(call types.HelperCall) string {
	var sb strings.Builder
	for _, part := range append([]string{call.Helper, call.Target}, call.Args...) {
		sb.WriteString(strconv.Itoa(len(part)))
		sb.WriteByte(':')
		sb.WriteString(part)
	}
	return sb.String()
}
