package chat

import (
	"fmt"

	"github.com/piliapp/pili/internal/agents"
	"github.com/piliapp/pili/internal/memory"
)

// Request is the body of a chat turn.
type Request struct {
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Stream    bool   `json:"stream"`
}

// Validate checks required fields and applies the default session.
func (r *Request) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: user_id required", ErrInvalidRequest)
	}
	if r.Message == "" {
		return fmt.Errorf("%w: message required", ErrInvalidRequest)
	}
	if r.SessionID == "" {
		r.SessionID = memory.DefaultSession
	}
	return nil
}

// Response is the synchronous chat reply.
type Response struct {
	Response  string              `json:"response"`
	Agent     string              `json:"agent"`
	Steps     int                 `json:"steps"`
	UserID    string              `json:"user_id"`
	SessionID string              `json:"session_id"`
	Trace     []agents.TraceEntry `json:"logs,omitempty"`
}

// SearchRequest is the body of a memory search.
type SearchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// Validate checks the search query.
func (r *SearchRequest) Validate() error {
	if r.Query == "" {
		return fmt.Errorf("%w: query required", ErrInvalidRequest)
	}
	return nil
}
