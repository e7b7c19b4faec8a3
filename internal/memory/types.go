// Package memory stores per-user conversation history and renders it as
// context for subsequent turns.
package memory

import (
	"errors"
	"time"
)

// ErrNotFound indicates the requested conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// ErrBackend indicates a conversation store failure. Writes that hit it are
// logged and dropped so the turn still completes.
var ErrBackend = errors.New("memory backend failure")

// DefaultSession is used when a request does not name a session.
const DefaultSession = "default"

// StoredMessage is one persisted conversation entry.
type StoredMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the full history of one (user, session) pair.
type Conversation struct {
	UserID       string          `json:"user_id"`
	SessionID    string          `json:"session_id"`
	Messages     []StoredMessage `json:"messages"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	LastAccessed time.Time       `json:"last_accessed"`
}

// Stats summarizes one conversation.
type Stats struct {
	UserID       string    `json:"user_id"`
	SessionID    string    `json:"session_id"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
}

// GlobalStats aggregates across all conversations.
type GlobalStats struct {
	ConversationCount int    `json:"conversation_count"`
	MessageCount      int    `json:"message_count"`
	ApproxSize        string `json:"approx_size"`
}

// SearchResult is one ranked match from a history search.
type SearchResult struct {
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score"`
}
