package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/piliapp/pili/internal/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORSPreflight(t *testing.T) {
	cfg := &config.CORSConfig{}
	if err := cfg.Finalize(); err != nil {
		t.Fatal(err)
	}
	cfg.Enabled = true
	cfg.Origins = []string{"http://localhost:5173"}

	handler := CORS(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow origin = %q", got)
	}
}

func TestCORSDisabledPassthrough(t *testing.T) {
	cfg := &config.CORSConfig{}
	if err := cfg.Finalize(); err != nil {
		t.Fatal(err)
	}
	cfg.Enabled = false

	handler := CORS(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://anywhere.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("allow origin = %q, want empty when disabled", got)
	}
}

func TestLoggerAssignsRequestID(t *testing.T) {
	handler := Logger(slog.New(slog.DiscardHandler))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("missing generated request id")
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "req-123" {
		t.Errorf("request id = %q, want caller-provided value", got)
	}
}

func TestTrimSlash(t *testing.T) {
	handler := TrimSlash()(okHandler())

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantTarget string
	}{
		{"trailing slash", http.MethodGet, "/api/chat/", http.StatusMovedPermanently, "/api/chat"},
		{"no slash", http.MethodGet, "/api/chat", http.StatusOK, ""},
		{"root preserved", http.MethodGet, "/", http.StatusOK, ""},
		{"query preserved", http.MethodGet, "/api/chat/?x=1", http.StatusMovedPermanently, "/api/chat?x=1"},
		{"post keeps method", http.MethodPost, "/api/chat/", http.StatusPermanentRedirect, "/api/chat"},
		{"delete keeps method", http.MethodDelete, "/api/memory/u1/", http.StatusPermanentRedirect, "/api/memory/u1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantTarget != "" && rec.Header().Get("Location") != tt.wantTarget {
				t.Errorf("Location = %q, want %q", rec.Header().Get("Location"), tt.wantTarget)
			}
		})
	}
}
