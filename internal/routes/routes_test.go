package routes

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBuildDispatch(t *testing.T) {
	sys := New(slog.New(slog.DiscardHandler))

	sys.RegisterRoute(Route{
		Method:  "GET",
		Pattern: "/health",
		Handler: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	})
	sys.RegisterGroup(Group{
		Prefix: "/api",
		Routes: []Route{
			{
				Method:  "POST",
				Pattern: "/chat",
				Handler: func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusCreated)
				},
			},
			{
				Method:  "GET",
				Pattern: "/memory/{user_id}/stats",
				Handler: func(w http.ResponseWriter, r *http.Request) {
					w.Write([]byte(r.PathValue("user_id")))
				},
			},
		},
	})

	handler := sys.Build()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"root route", "GET", "/health", http.StatusOK, ""},
		{"group route", "POST", "/api/chat", http.StatusCreated, ""},
		{"path value", "GET", "/api/memory/u42/stats", http.StatusOK, "u42"},
		{"wrong method", "GET", "/api/chat", http.StatusMethodNotAllowed, ""},
		{"unknown path", "GET", "/api/unknown", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}
