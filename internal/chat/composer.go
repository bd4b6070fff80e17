// Package chat turns retrieved providers into the reply shown to the user.
package chat

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/medbot/internal/llm"
	"github.com/hyperjump/medbot/internal/models"
)

// Phraser produces model-written reply text.
type Phraser interface {
	Phrase(ctx context.Context, system, user string) llm.Result
}

// ComposerOptions tune a Composer.
type ComposerOptions struct {
	// GeneralQuestions also sends non-search messages to the phrasing service.
	GeneralQuestions bool
}

// Composer builds chat responses. It prefers phrasing service text and falls back to fixed
// templates whenever the service is unavailable.
type Composer struct {
	phraser Phraser
	opts    ComposerOptions
	logger  *zap.Logger
}

// NewComposer returns a composer. phraser may be nil for template-only replies.
func NewComposer(phraser Phraser, opts ComposerOptions, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{phraser: phraser, opts: opts, logger: logger}
}

// Compose builds the reply for message given the retrieved providers. Provider cards are only
// included when the message is a provider search and something was found.
func (c *Composer) Compose(ctx context.Context, message string, providers []*models.Provider) *models.ChatResponse {
	search := IsProviderSearch(message, len(providers))

	switch {
	case search && len(providers) > 0:
		text, ok := c.phrase(ctx, SearchPrompt(message, len(providers)))
		if !ok {
			text = FoundReply(message, providers)
		}
		return &models.ChatResponse{Response: text, Doctors: Summaries(providers)}

	case search:
		return &models.ChatResponse{Response: NoResultsReply(message), Doctors: []models.ProviderSummary{}}

	default:
		text, ok := "", false
		if c.opts.GeneralQuestions {
			text, ok = c.phrase(ctx, GeneralPrompt(message, providers))
		}
		if !ok {
			text = GreetingReply(providers)
		}
		return &models.ChatResponse{Response: text, Doctors: []models.ProviderSummary{}}
	}
}

func (c *Composer) phrase(ctx context.Context, prompt string) (string, bool) {
	if c.phraser == nil {
		return "", false
	}
	r := c.phraser.Phrase(ctx, SystemPrompt, prompt)
	if !r.OK() {
		if r.Reason != llm.ReasonNotConfigured {
			c.logger.Info("Using template reply", zap.String("reason", string(r.Reason)), zap.Error(r.Err))
		}
		return "", false
	}
	return r.Text, true
}

// Summaries maps providers to display cards.
func Summaries(providers []*models.Provider) []models.ProviderSummary {
	out := make([]models.ProviderSummary, len(providers))
	for i, p := range providers {
		out[i] = p.Summary()
	}
	return out
}
