package memory

import (
	"context"
	"time"
)

// Store persists conversations. Implementations must be safe for concurrent
// use; the service serializes writes per user on top of this.
type Store interface {
	// Load returns the conversation for the pair, or ErrNotFound.
	Load(ctx context.Context, userID, sessionID string) (*Conversation, error)

	// Save inserts or replaces a conversation.
	Save(ctx context.Context, conv *Conversation) error

	// Delete removes one session, or every session for the user when
	// sessionID is empty.
	Delete(ctx context.Context, userID, sessionID string) error

	// Sessions returns all conversations belonging to the user.
	Sessions(ctx context.Context, userID string) ([]*Conversation, error)

	// Global returns conversation count, message count, and total content
	// bytes across all users.
	Global(ctx context.Context) (conversations, messages int, bytes int64, err error)

	// PurgeOlderThan removes conversations whose last access precedes the
	// cutoff and reports how many were removed.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// Close releases backing resources.
	Close() error
}
