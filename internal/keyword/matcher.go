// Package keyword implements the rule-based provider matcher used when semantic search
// returns nothing or is unavailable.
package keyword

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/medbot/internal/models"
	"github.com/hyperjump/medbot/internal/storage"
)

// Source is the part of the provider store the matcher reads.
type Source interface {
	MatchSpecialties(ctx context.Context, specialties []string, limit int) ([]*models.Provider, error)
	MatchAnyField(ctx context.Context, term string, limit int) ([]*models.Provider, error)
}

var _ Source = storage.ProviderReader(nil)

// Matcher finds providers by lay-term specialty mapping or by plain substring match.
// Results are in store order and carry no relevance score.
type Matcher struct {
	source Source
	logger *zap.Logger
}

// NewMatcher returns a matcher over source.
func NewMatcher(source Source, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{source: source, logger: logger}
}

// Match returns up to limit providers for query. When the query contains any lay term, providers
// whose specialty contains one of the mapped specialties are returned; otherwise providers whose
// name, specialty, keywords or location contain the trimmed query. Store errors are logged and
// produce an empty result.
func (m *Matcher) Match(ctx context.Context, query string, limit int) []*models.Provider {
	if limit <= 0 {
		return nil
	}
	if specialties := Specialties(query); len(specialties) > 0 {
		providers, err := m.source.MatchSpecialties(ctx, specialties, limit)
		if err != nil {
			m.logger.Warn("Keyword specialty match failed", zap.Strings("specialties", specialties), zap.Error(err))
			return nil
		}
		return truncate(providers, limit)
	}

	term := strings.ToLower(strings.TrimSpace(query))
	if term == "" {
		return nil
	}
	providers, err := m.source.MatchAnyField(ctx, term, limit)
	if err != nil {
		m.logger.Warn("Keyword field match failed", zap.String("term", term), zap.Error(err))
		return nil
	}
	return truncate(providers, limit)
}

func truncate(providers []*models.Provider, limit int) []*models.Provider {
	if len(providers) > limit {
		return providers[:limit]
	}
	return providers
}
