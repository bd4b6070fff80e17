// Package llm wraps the generative phrasing service: an OpenAI-compatible chat completion
// endpoint (Groq by default) used to word replies.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/medbot/internal/config"
)

var (
	// ErrNotConfigured means phrasing is disabled or no API key is set.
	ErrNotConfigured = errors.New("phrasing service not configured")
	// ErrRateLimited means the local request budget is exhausted.
	ErrRateLimited = errors.New("phrasing service rate limited")
	// ErrTimeout means the service did not answer within the configured timeout.
	ErrTimeout = errors.New("phrasing service timed out")
	// ErrEmpty means the service answered with no usable text.
	ErrEmpty = errors.New("phrasing service returned no text")
)

// Reason classifies the outcome of a phrasing request.
type Reason string

const (
	ReasonOK            Reason = "ok"
	ReasonNotConfigured Reason = "not_configured"
	ReasonRateLimited   Reason = "rate_limited"
	ReasonTimeout       Reason = "timeout"
	ReasonFailed        Reason = "failed"
	ReasonEmpty         Reason = "empty"
)

// Result is the outcome of a phrasing request. Text is set only when Reason is ReasonOK.
type Result struct {
	Text   string
	Reason Reason
	Err    error
}

// OK reports whether Text can be used.
func (r Result) OK() bool {
	return r.Reason == ReasonOK
}

func failed(reason Reason, err error) Result {
	return Result{Reason: reason, Err: err}
}

// Options tune a Phraser.
type Options struct {
	Temperature   float64
	MaxTokens     int
	Timeout       time.Duration
	RatePerMinute int
}

// Phraser asks a chat model for short replies. A Phraser without a model always reports
// ReasonNotConfigured, so callers need no special casing.
type Phraser struct {
	model   llms.Model
	limiter *rate.Limiter
	opts    Options
	logger  *zap.Logger
}

// New builds a Phraser from cfg. When phrasing is disabled or the API key env var is empty,
// the returned Phraser is inert.
func New(cfg config.PhrasingConfig, logger *zap.Logger) (*Phraser, error) {
	opts := Options{
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
		Timeout:       cfg.Timeout,
		RatePerMinute: cfg.RatePerMinute,
	}
	key := cfg.APIKey()
	if !cfg.EnabledOrDefault() || key == "" {
		return NewWithModel(nil, opts, logger), nil
	}
	clientOpts := []openai.Option{
		openai.WithToken(key),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create phrasing client: %w", err)
	}
	return NewWithModel(client, opts, logger), nil
}

// NewWithModel builds a Phraser around an existing model. model may be nil.
func NewWithModel(model llms.Model, opts Options, logger *zap.Logger) *Phraser {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Phraser{model: model, opts: opts, logger: logger}
	if opts.RatePerMinute > 0 {
		p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), opts.RatePerMinute)
	}
	return p
}

// Configured reports whether requests will be sent at all.
func (p *Phraser) Configured() bool {
	return p != nil && p.model != nil
}

// Phrase sends a system and user message and returns the trimmed reply.
func (p *Phraser) Phrase(ctx context.Context, system, user string) Result {
	if !p.Configured() {
		return failed(ReasonNotConfigured, ErrNotConfigured)
	}
	if p.limiter != nil && !p.limiter.Allow() {
		return failed(ReasonRateLimited, ErrRateLimited)
	}
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(system)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(user)},
		},
	}
	callOpts := []llms.CallOption{llms.WithTemperature(p.opts.Temperature)}
	if p.opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(p.opts.MaxTokens))
	}

	start := time.Now()
	resp, err := p.model.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			p.logger.Warn("Phrasing request timed out", zap.Duration("timeout", p.opts.Timeout))
			return failed(ReasonTimeout, fmt.Errorf("%w: %v", ErrTimeout, err))
		}
		p.logger.Warn("Phrasing request failed", zap.Error(err))
		return failed(ReasonFailed, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return failed(ReasonEmpty, ErrEmpty)
	}
	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return failed(ReasonEmpty, ErrEmpty)
	}
	p.logger.Debug("Phrasing request completed", zap.Duration("duration", time.Since(start)))
	return Result{Text: text, Reason: ReasonOK}
}
