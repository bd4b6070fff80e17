package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/medbot/internal/models"
)

const emergencyLimit = 3

// Retriever is the retrieval pipeline used by the service.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) *models.Retrieval
	Keyword(ctx context.Context, query string, limit int) *models.Retrieval
}

// Service answers chat messages: validate, retrieve, compose. It always returns a
// well-formed response.
type Service struct {
	retriever Retriever
	composer  *Composer
	topK      int
	logger    *zap.Logger
}

// NewService creates a chat service that retrieves up to topK providers per message.
func NewService(retriever Retriever, composer *Composer, topK int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if topK <= 0 {
		topK = 5
	}
	return &Service{retriever: retriever, composer: composer, topK: topK, logger: logger}
}

// Reply answers message. Blank messages are rejected without retrieval. If the main pipeline
// fails unexpectedly, a keyword-only retry runs before giving up with a fixed apology.
func (s *Service) Reply(ctx context.Context, message string) *models.ChatResponse {
	message = strings.TrimSpace(message)
	if message == "" {
		return &models.ChatResponse{Response: InvalidMessageReply, Doctors: []models.ProviderSummary{}}
	}

	start := time.Now()
	resp, err := s.answer(ctx, message)
	if err == nil {
		s.logger.Debug("Chat reply",
			zap.String("message", message),
			zap.Int("doctors", len(resp.Doctors)),
			zap.Duration("duration", time.Since(start)))
		return resp
	}

	s.logger.Error("Chat pipeline failed, trying keyword-only retry", zap.String("message", message), zap.Error(err))
	resp, err = s.emergency(ctx, message)
	if err == nil {
		return resp
	}
	s.logger.Error("Keyword-only retry failed", zap.Error(err))
	return &models.ChatResponse{Response: UnavailableReply, Doctors: []models.ProviderSummary{}}
}

func (s *Service) answer(ctx context.Context, message string) (resp *models.ChatResponse, err error) {
	defer recoverInto(&err)
	r := s.retriever.Retrieve(ctx, message, s.topK)
	var providers []*models.Provider
	if r != nil {
		providers = r.Providers
	}
	return s.composer.Compose(ctx, message, providers), nil
}

func (s *Service) emergency(ctx context.Context, message string) (resp *models.ChatResponse, err error) {
	defer recoverInto(&err)
	r := s.retriever.Keyword(ctx, message, emergencyLimit)
	if r.Empty() {
		return &models.ChatResponse{Response: UnavailableReply, Doctors: []models.ProviderSummary{}}, nil
	}
	return &models.ChatResponse{Response: EmergencyReply, Doctors: Summaries(r.Providers)}, nil
}

func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("panic: %v", r)
	}
}
