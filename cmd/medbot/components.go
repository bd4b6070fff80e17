package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/medbot/internal/chat"
	"github.com/hyperjump/medbot/internal/config"
	"github.com/hyperjump/medbot/internal/embedding"
	"github.com/hyperjump/medbot/internal/index"
	"github.com/hyperjump/medbot/internal/keyword"
	"github.com/hyperjump/medbot/internal/llm"
	"github.com/hyperjump/medbot/internal/search"
	"github.com/hyperjump/medbot/internal/storage"
	"github.com/hyperjump/medbot/internal/vector"
)

// Components holds initialized services.
type Components struct {
	Storage  *storage.SQLiteStorage
	Embedder embedding.Embedder
	Index    *index.Index
	Engine   *search.Engine
	Chat     *chat.Service
}

// EncoderModel names the active encoder, or "" when none is available.
func (c *Components) EncoderModel() string {
	if c.Embedder == nil {
		return ""
	}
	return c.Embedder.Model()
}

// Close waits for pending index writes and releases every resource.
func (c *Components) Close() {
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// initializeComponents wires the pipeline. Only the provider database is required: an
// unavailable encoder, snapshot file or phrasing service degrades the pipeline instead of
// failing. progress may be nil.
func initializeComponents(cfg *config.Config, logger *zap.Logger, progress func(done, total int)) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{Storage: store}

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		logger.Warn("Encoder unavailable, semantic search disabled",
			zap.String("provider", cfg.Embedding.Provider), zap.Error(err))
	} else {
		c.Embedder = embedder
	}

	var snaps *index.SnapshotStore
	if cfg.Index.PersistOrDefault() {
		snaps, err = index.OpenSnapshotStore(cfg.Storage.IndexPath)
		if err != nil {
			logger.Warn("Index snapshot unavailable, persistence disabled",
				zap.String("path", cfg.Storage.IndexPath), zap.Error(err))
			snaps = nil
		}
	}

	c.Index = index.New(c.Embedder, snaps, index.Options{
		Backend: vector.Options{
			Type:       cfg.Vector.Backend,
			Dimensions: cfg.Embedding.Dimensions,
			QdrantAddr: cfg.Vector.QdrantAddr,
			Collection: cfg.Vector.QdrantCollection,
		},
		Workers:      cfg.Index.Workers,
		BuildTimeout: cfg.Index.BuildTimeout,
		QueryTimeout: cfg.Index.QueryTimeout,
		OnProgress:   progress,
	}, logger)

	matcher := keyword.NewMatcher(store, logger)
	c.Engine = search.NewEngine(store, c.Index, matcher, search.Options{BuildCooldown: cfg.Index.RebuildCooldown}, logger)

	phraser, err := llm.New(cfg.Phrasing, logger)
	if err != nil {
		logger.Warn("Phrasing service unavailable, using templates", zap.Error(err))
		phraser = llm.NewWithModel(nil, llm.Options{}, logger)
	}
	composer := chat.NewComposer(phraser, chat.ComposerOptions{GeneralQuestions: cfg.Phrasing.GeneralQuestions}, logger)
	c.Chat = chat.NewService(c.Engine, composer, cfg.Index.TopK, logger)
	return c, nil
}
