// Package search provides the retrieval orchestrator: semantic search first, keyword
// matching when semantic search is unavailable or finds nothing.
package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/medbot/internal/index"
	"github.com/hyperjump/medbot/internal/keyword"
	"github.com/hyperjump/medbot/internal/models"
	"github.com/hyperjump/medbot/internal/storage"
)

// VectorIndex is the part of the index lifecycle the engine drives.
type VectorIndex interface {
	// Available reports whether the index can ever be built; false means keyword-only.
	Available() bool
	Ready() bool
	EnsureBuilt(ctx context.Context, source func(context.Context) ([]*models.Provider, error)) error
	Query(ctx context.Context, text string, k int) []models.Hit
}

// KeywordMatcher is the fallback matcher.
type KeywordMatcher interface {
	Match(ctx context.Context, query string, limit int) []*models.Provider
}

var (
	_ VectorIndex    = (*index.Index)(nil)
	_ KeywordMatcher = (*keyword.Matcher)(nil)
)

// Options tune the engine.
type Options struct {
	// BuildCooldown is the minimum time between failed on-demand build attempts.
	BuildCooldown time.Duration
}

// Engine runs retrieval for a query.
type Engine struct {
	storage storage.ProviderReader
	index   VectorIndex
	matcher KeywordMatcher
	opts    Options
	logger  *zap.Logger

	mu          sync.Mutex
	lastFailure time.Time
	now         func() time.Time
}

// NewEngine creates a retrieval engine. index may be nil to run keyword-only.
func NewEngine(store storage.ProviderReader, idx VectorIndex, matcher KeywordMatcher, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		storage: store,
		index:   idx,
		matcher: matcher,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// Retrieve returns up to topK providers for query. It never fails; an empty Retrieval with
// StrategyNone means neither semantic search nor keyword matching found anything.
func (e *Engine) Retrieve(ctx context.Context, query string, topK int) *models.Retrieval {
	if topK <= 0 {
		return &models.Retrieval{Strategy: models.StrategyNone}
	}

	e.ensureIndex(ctx)

	if e.index != nil && e.index.Ready() {
		if r := e.semantic(ctx, query, topK); !r.Empty() {
			return r
		}
	}

	if providers := e.matcher.Match(ctx, query, topK); len(providers) > 0 {
		e.logger.Debug("Keyword fallback used", zap.String("query", query), zap.Int("results", len(providers)))
		return &models.Retrieval{Providers: providers, Strategy: models.StrategyKeyword}
	}
	return &models.Retrieval{Strategy: models.StrategyNone}
}

// Keyword runs only the keyword matcher. It backs the emergency retry after a pipeline failure.
func (e *Engine) Keyword(ctx context.Context, query string, limit int) *models.Retrieval {
	providers := e.matcher.Match(ctx, query, limit)
	if len(providers) == 0 {
		return &models.Retrieval{Strategy: models.StrategyNone}
	}
	return &models.Retrieval{Providers: providers, Strategy: models.StrategyKeyword}
}

// ensureIndex makes one best-effort attempt to load or build a missing index. It does not wait
// for a build already running and does not retry within the cool-down after a failure.
func (e *Engine) ensureIndex(ctx context.Context) {
	if e.index == nil || e.index.Ready() || !e.index.Available() {
		return
	}
	e.mu.Lock()
	cooling := !e.lastFailure.IsZero() && e.now().Sub(e.lastFailure) < e.opts.BuildCooldown
	e.mu.Unlock()
	if cooling {
		return
	}

	err := e.index.EnsureBuilt(ctx, e.storage.ListProviders)
	switch {
	case err == nil:
		e.mu.Lock()
		e.lastFailure = time.Time{}
		e.mu.Unlock()
	case errors.Is(err, index.ErrBuildInProgress):
		e.logger.Debug("Index build in progress, using keyword fallback")
	default:
		e.mu.Lock()
		e.lastFailure = e.now()
		e.mu.Unlock()
		e.logger.Warn("On-demand index build failed", zap.Error(err))
	}
}

func (e *Engine) semantic(ctx context.Context, query string, topK int) *models.Retrieval {
	hits := e.index.Query(ctx, query, topK)
	if len(hits) == 0 {
		return nil
	}
	ids := make([]int64, len(hits))
	scoreByID := make(map[int64]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
		scoreByID[h.ID] = h.Score
	}
	providers, err := e.storage.GetProvidersByIDs(ctx, ids)
	if err != nil {
		e.logger.Warn("Failed to resolve semantic hits", zap.Error(err))
		return nil
	}
	if len(providers) < len(hits) {
		e.logger.Debug("Dropped hits for providers no longer in store", zap.Int("dropped", len(hits)-len(providers)))
	}
	if len(providers) == 0 {
		return nil
	}
	scores := make([]float64, len(providers))
	for i, p := range providers {
		scores[i] = scoreByID[p.ID]
	}
	return &models.Retrieval{Providers: providers, Scores: scores, Strategy: models.StrategySemantic}
}
