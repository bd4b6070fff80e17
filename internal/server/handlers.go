package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/medbot/internal/index"
	"github.com/hyperjump/medbot/internal/models"
	"github.com/hyperjump/medbot/internal/storage"
	"github.com/hyperjump/medbot/pkg/utils"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "Med-Bot API is running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("chat request", zap.String("message", utils.Truncate(req.Message, 120)))
	s.respondJSON(w, http.StatusOK, s.chat.Reply(r.Context(), req.Message))
}

func (s *Server) handleListDoctors(w http.ResponseWriter, r *http.Request) {
	providers, err := s.store.ListProviders(r.Context())
	if err != nil {
		s.logger.Error("list providers failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to list doctors")
		return
	}
	s.respondJSON(w, http.StatusOK, nonNil(providers))
}

func (s *Server) handleSearchDoctors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ProviderFilter{
		Keyword:   q.Get("keyword"),
		Specialty: q.Get("speciality"),
	}
	s.logger.Debug("doctor search request",
		zap.String("keyword", filter.Keyword),
		zap.String("speciality", filter.Specialty))
	providers, err := s.store.SearchProviders(r.Context(), filter)
	if err != nil {
		s.logger.Error("search providers failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to search doctors")
		return
	}
	s.respondJSON(w, http.StatusOK, nonNil(providers))
}

func (s *Server) handleGetDoctor(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid doctor id")
		return
	}
	provider, err := s.store.GetProvider(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "doctor not found")
		return
	}
	if err != nil {
		s.logger.Error("get provider failed", zap.Int64("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to get doctor")
		return
	}
	s.respondJSON(w, http.StatusOK, provider)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.CountProviders(r.Context())
	if err != nil {
		s.logger.Error("status: count providers failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"providers": count,
		"index":     s.index.Info(),
		"encoder":   s.encoderModel,
	}

	paths := storage.DatabaseFiles(s.config.Storage.DatabasePath)
	if s.config.Index.PersistOrDefault() && s.config.Storage.IndexPath != "" {
		paths = append(paths, s.config.Storage.IndexPath)
	}
	if diskBytes, err := storage.DiskUsageBytes(paths...); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("index rebuild requested")
	err := s.index.Rebuild(r.Context(), s.store.ListProviders)
	switch {
	case err == nil:
		s.respondJSON(w, http.StatusOK, s.index.Info())
	case errors.Is(err, index.ErrBuildInProgress):
		s.respondError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("index rebuild failed", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	}
}

func nonNil(providers []*models.Provider) []*models.Provider {
	if providers == nil {
		return []*models.Provider{}
	}
	return providers
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
