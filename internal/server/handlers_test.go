package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/hyperjump/medbot/internal/config"
	"github.com/hyperjump/medbot/internal/embedding"
	"github.com/hyperjump/medbot/internal/index"
	"github.com/hyperjump/medbot/internal/models"
	"github.com/hyperjump/medbot/internal/storage"
)

type stubChat struct {
	got string
}

func (s *stubChat) Reply(_ context.Context, message string) *models.ChatResponse {
	s.got = message
	return &models.ChatResponse{
		Response: "reply to " + message,
		Doctors:  []models.ProviderSummary{{Name: "Dr. A", Specialty: "Cardiology", Location: "Lahore", Fee: models.FeePlaceholder}},
	}
}

func intPtr(v int) *int { return &v }

func newTestServer(t *testing.T) (*Server, *stubChat, *index.Index) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "providers.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	err = store.UpsertProviders(context.Background(), []*models.Provider{
		{Name: "Dr. A", Specialty: "Cardiology", Location: "Lahore", Keywords: "heart, chest pain"},
		{Name: "Dr. B", Specialty: "Dermatology", Location: "Karachi", Fee: intPtr(2000), Keywords: "skin, acne"},
	})
	if err != nil {
		t.Fatal(err)
	}

	idx := index.New(embedding.NewHashEmbedder(64), nil, index.Options{}, nil)
	t.Cleanup(func() { _ = idx.Close() })

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = store.Path()
	persist := false
	cfg.Index.Persist = &persist

	chat := &stubChat{}
	return NewServer(chat, store, idx, cfg, "hash-bow-64", nil), chat, idx
}

func do(t *testing.T, h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHandleRootAndHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	w := do(t, h, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("root status: got %d", w.Code)
	}
	var root map[string]string
	if err := json.NewDecoder(w.Body).Decode(&root); err != nil {
		t.Fatal(err)
	}
	if root["message"] != "Med-Bot API is running" {
		t.Errorf("root message: got %q", root["message"])
	}

	w = do(t, h, http.MethodGet, "/health", nil)
	var health map[string]string
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health["status"] != "healthy" {
		t.Errorf("health: got %q", health["status"])
	}
}

func TestHandleChat(t *testing.T) {
	srv, chat, _ := newTestServer(t)
	w := do(t, srv.Handler(), http.MethodPost, "/api/chat", []byte(`{"message":"heart doctor in Lahore"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if chat.got != "heart doctor in Lahore" {
		t.Errorf("message passed to service: got %q", chat.got)
	}
	var out struct {
		Response string                   `json:"response"`
		Doctors  []map[string]interface{} `json:"doctors"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Response != "reply to heart doctor in Lahore" {
		t.Errorf("response: got %q", out.Response)
	}
	if len(out.Doctors) != 1 || out.Doctors[0]["fee"] != models.FeePlaceholder {
		t.Errorf("doctors: got %v", out.Doctors)
	}
}

func TestHandleChat_InvalidBody(t *testing.T) {
	srv, _, _ := newTestServer(t)
	w := do(t, srv.Handler(), http.MethodPost, "/api/chat", []byte(`{not json`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleListDoctors(t *testing.T) {
	srv, _, _ := newTestServer(t)
	w := do(t, srv.Handler(), http.MethodGet, "/doctors", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out []models.Provider
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 doctors, got %d", len(out))
	}
	if out[0].Keywords == "" {
		t.Error("full records should include keywords")
	}
}

func TestHandleSearchDoctors(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	cases := []struct {
		query string
		want  int
	}{
		{"", 2},
		{"?keyword=acne", 1},
		{"?speciality=cardio", 1},
		{"?keyword=heart&speciality=derma", 0},
	}
	for _, c := range cases {
		w := do(t, h, http.MethodGet, "/doctors/search"+c.query, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status %d", c.query, w.Code)
		}
		var out []models.Provider
		if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
			t.Fatal(err)
		}
		if out == nil || len(out) != c.want {
			t.Errorf("%s: got %d results, want %d", c.query, len(out), c.want)
		}
	}
}

func TestHandleStatusAndRebuild(t *testing.T) {
	srv, _, idx := newTestServer(t)
	h := srv.Handler()

	var status struct {
		Providers int64      `json:"providers"`
		Index     index.Info `json:"index"`
		Encoder   string     `json:"encoder"`
		Disk      int64      `json:"disk_usage_bytes"`
	}
	w := do(t, h, http.MethodGet, "/api/v1/status", nil)
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Providers != 2 || status.Index.State != "absent" || status.Encoder != "hash-bow-64" {
		t.Errorf("status before rebuild: %+v", status)
	}
	if status.Disk <= 0 {
		t.Errorf("disk usage should count the database file, got %d", status.Disk)
	}

	w = do(t, h, http.MethodPost, "/api/v1/index/rebuild", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("rebuild status: got %d (%s)", w.Code, w.Body.String())
	}
	if !idx.Ready() || idx.Info().Size != 2 {
		t.Errorf("index after rebuild: %+v", idx.Info())
	}
}

func TestHandleRebuild_Unavailable(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.index = index.New(nil, nil, index.Options{}, nil)
	w := do(t, srv.Handler(), http.MethodPost, "/api/v1/index/rebuild", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.config.Server.CORSOrigin = "https://app.example.com"
	w := do(t, srv.Handler(), http.MethodOptions, "/api/chat", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status: got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("allow origin: got %q", got)
	}
}

func TestHandleGetDoctor(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	w := do(t, h, http.MethodGet, "/doctors/2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var p models.Provider
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.Name != "Dr. B" || p.Fee == nil || *p.Fee != 2000 {
		t.Errorf("unexpected doctor: %+v", p)
	}

	if w := do(t, h, http.MethodGet, "/doctors/99", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown id: got %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/doctors/abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id: got %d", w.Code)
	}
}
