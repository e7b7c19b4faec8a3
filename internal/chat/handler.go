package chat

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/piliapp/pili/internal/agents"
	"github.com/piliapp/pili/internal/routes"
	"github.com/piliapp/pili/pkg/handlers"
)

// streamBuffer bounds the SSE event channel per turn.
const streamBuffer = 32

// Handler exposes the chat and memory HTTP operations.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates a chat handler over the specified service.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
	}
}

// Routes returns the handler's route group.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/api",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/chat", Handler: h.Chat},
			{Method: "GET", Pattern: "/memory/stats", Handler: h.GlobalStats},
			{Method: "GET", Pattern: "/memory/{user_id}/stats", Handler: h.UserStats},
			{Method: "GET", Pattern: "/memory/{user_id}/history", Handler: h.History},
			{Method: "POST", Pattern: "/memory/{user_id}/search", Handler: h.Search},
			{Method: "DELETE", Pattern: "/memory/{user_id}", Handler: h.Clear},
		},
	}
}

// Chat handles POST /api/chat. With "stream": true the turn is relayed as
// server-sent events; otherwise the full result is returned as JSON.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	if err := req.Validate(); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	if req.Stream {
		stream := agents.NewAssembler(streamBuffer)
		h.svc.ProcessStream(r.Context(), &req, stream)
		h.writeSSEStream(w, r, stream.Events())
		return
	}

	result, err := h.svc.Process(r.Context(), &req)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, Response{
		Response:  result.Response,
		Agent:     result.FinalAgent,
		Steps:     result.Steps,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Trace:     result.Trace,
	})
}

// GlobalStats handles GET /api/memory/stats.
func (h *Handler) GlobalStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Memory().GlobalStats(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, stats)
}

// UserStats handles GET /api/memory/{user_id}/stats.
func (h *Handler) UserStats(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	stats, err := h.svc.Memory().UserStats(r.Context(), userID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]any{
		"user_id":  userID,
		"sessions": stats,
	})
}

// History handles GET /api/memory/{user_id}/history. An optional limit
// query parameter returns only the most recent messages.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	sessionID := r.URL.Query().Get("session_id")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: invalid limit %q", ErrInvalidRequest, raw))
			return
		}
		limit = parsed
	}

	messages, err := h.svc.Memory().History(r.Context(), userID, sessionID, limit)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]any{
		"user_id":  userID,
		"messages": messages,
	})
}

// Search handles POST /api/memory/{user_id}/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	if err := req.Validate(); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	results, err := h.svc.Memory().Search(r.Context(), userID, req.Query, req.MaxResults)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"query":   req.Query,
		"results": results,
	})
}

// Clear handles DELETE /api/memory/{user_id}. An optional session_id query
// parameter limits the clear to one session.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	sessionID := r.URL.Query().Get("session_id")

	if err := h.svc.ClearUser(r.Context(), userID, sessionID); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"cleared": true,
	})
}

func (h *Handler) writeSSEStream(w http.ResponseWriter, r *http.Request, stream <-chan agents.Event) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	for event := range stream {
		select {
		case <-r.Context().Done():
			// Keep draining so the producer is never left blocked on a
			// full channel.
			for range stream {
			}
			return
		default:
		}

		data, err := json.Marshal(event)
		if err != nil {
			h.logger.Error("failed to marshal event", "error", err)
			continue
		}

		fmt.Fprintf(w, "data: %s\n\n", data)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}

	fmt.Fprintf(w, "data: [DONE]\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
