package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/robfig/cron/v3"

	"github.com/piliapp/pili/internal/config"
	"github.com/piliapp/pili/pkg/lifecycle"
)

// System is the conversation memory surface used by the chat service and
// the memory HTTP handlers.
type System interface {
	AppendExchange(ctx context.Context, userID, sessionID, userMessage, response string)
	Context(ctx context.Context, userID, sessionID string) string
	History(ctx context.Context, userID, sessionID string, limit int) ([]StoredMessage, error)
	Clear(ctx context.Context, userID, sessionID string) error
	Stats(ctx context.Context, userID, sessionID string) (*Stats, error)
	UserStats(ctx context.Context, userID string) ([]Stats, error)
	GlobalStats(ctx context.Context) (*GlobalStats, error)
	Search(ctx context.Context, userID, query string, maxResults int) ([]SearchResult, error)
	Start(lc *lifecycle.Coordinator) error
}

type service struct {
	store  Store
	cfg    *config.MemoryConfig
	logger *slog.Logger
	cron   *cron.Cron
	locks  keyedLocks
}

// NewService creates a memory system over the specified store.
func NewService(store Store, cfg *config.MemoryConfig, logger *slog.Logger) System {
	return &service{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// keyedLocks serializes read-modify-write cycles per (user, session) while
// unrelated keys proceed independently. Entries are refcounted and removed
// when the last holder releases, so the map never grows unbounded.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedLocks) acquire(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[string]*keyedLock{}
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func lockKey(userID, sessionID string) string {
	return userID + "\x00" + sessionID
}

// AppendExchange atomically appends the user message and the assistant
// response, truncating each and trimming to the message cap. Store failures
// are logged and swallowed so a turn never fails on persistence.
func (s *service) AppendExchange(ctx context.Context, userID, sessionID, userMessage, response string) {
	if sessionID == "" {
		sessionID = DefaultSession
	}

	release := s.locks.acquire(lockKey(userID, sessionID))
	defer release()

	now := time.Now().UTC()

	conv, err := s.store.Load(ctx, userID, sessionID)
	if err == ErrNotFound {
		conv = &Conversation{
			UserID:    userID,
			SessionID: sessionID,
			CreatedAt: now,
		}
		err = nil
	}
	if err != nil {
		s.logger.Error("memory load failed, dropping exchange", "user_id", userID, "session_id", sessionID, "error", err)
		return
	}

	conv.Messages = append(conv.Messages,
		StoredMessage{Role: "user", Content: s.truncate(userMessage), Timestamp: now},
		StoredMessage{Role: "assistant", Content: s.truncate(response), Timestamp: now},
	)

	if excess := len(conv.Messages) - s.cfg.MaxMessages; excess > 0 {
		conv.Messages = conv.Messages[excess:]
	}

	conv.UpdatedAt = now
	conv.LastAccessed = now

	if err := s.store.Save(ctx, conv); err != nil {
		s.logger.Error("memory save failed, dropping exchange", "user_id", userID, "session_id", sessionID, "error", err)
	}
}

// Context renders the last N messages as a block prepended to the next
// turn's user message. Empty history yields an empty string.
func (s *service) Context(ctx context.Context, userID, sessionID string) string {
	if sessionID == "" {
		sessionID = DefaultSession
	}

	conv, err := s.store.Load(ctx, userID, sessionID)
	if err == ErrNotFound {
		return ""
	}
	if err != nil {
		s.logger.Error("memory load failed, continuing without context", "user_id", userID, "session_id", sessionID, "error", err)
		return ""
	}

	messages := conv.Messages
	if len(messages) > s.cfg.ContextMessages {
		messages = messages[len(messages)-s.cfg.ContextMessages:]
	}
	if len(messages) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Previous Conversation:\n")
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderRole(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	b.WriteString("\n\n")

	go s.touch(userID, sessionID)

	return b.String()
}

// History returns the stored messages for a session, the most recent limit
// messages when limit is positive.
func (s *service) History(ctx context.Context, userID, sessionID string, limit int) ([]StoredMessage, error) {
	if sessionID == "" {
		sessionID = DefaultSession
	}

	conv, err := s.store.Load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	messages := conv.Messages
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

// Clear removes one session, or all of the user's sessions when sessionID
// is empty.
func (s *service) Clear(ctx context.Context, userID, sessionID string) error {
	release := s.locks.acquire(lockKey(userID, sessionID))
	defer release()

	return s.store.Delete(ctx, userID, sessionID)
}

// Stats summarizes one conversation.
func (s *service) Stats(ctx context.Context, userID, sessionID string) (*Stats, error) {
	if sessionID == "" {
		sessionID = DefaultSession
	}

	conv, err := s.store.Load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	return &Stats{
		UserID:       userID,
		SessionID:    sessionID,
		MessageCount: len(conv.Messages),
		CreatedAt:    conv.CreatedAt,
		LastAccessed: conv.LastAccessed,
	}, nil
}

// UserStats summarizes every session belonging to the user.
func (s *service) UserStats(ctx context.Context, userID string) ([]Stats, error) {
	sessions, err := s.store.Sessions(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := make([]Stats, 0, len(sessions))
	for _, conv := range sessions {
		stats = append(stats, Stats{
			UserID:       userID,
			SessionID:    conv.SessionID,
			MessageCount: len(conv.Messages),
			CreatedAt:    conv.CreatedAt,
			LastAccessed: conv.LastAccessed,
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].SessionID < stats[j].SessionID
	})

	return stats, nil
}

// GlobalStats aggregates across all users.
func (s *service) GlobalStats(ctx context.Context) (*GlobalStats, error) {
	conversations, messages, bytes, err := s.store.Global(ctx)
	if err != nil {
		return nil, err
	}

	return &GlobalStats{
		ConversationCount: conversations,
		MessageCount:      messages,
		ApproxSize:        units.HumanSize(float64(bytes)),
	}, nil
}

// Search matches query terms against stored content across the user's
// sessions, ranked by the fraction of terms each message matches.
func (s *service) Search(ctx context.Context, userID, query string, maxResults int) ([]SearchResult, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}
	if maxResults < 1 {
		maxResults = 10
	}

	sessions, err := s.store.Sessions(ctx, userID)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	for _, conv := range sessions {
		for _, m := range conv.Messages {
			content := strings.ToLower(m.Content)
			matched := 0
			for _, term := range terms {
				if strings.Contains(content, term) {
					matched++
				}
			}
			if matched == 0 {
				continue
			}
			results = append(results, SearchResult{
				SessionID: conv.SessionID,
				Role:      m.Role,
				Content:   m.Content,
				Timestamp: m.Timestamp,
				Score:     float64(matched) / float64(len(terms)),
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Timestamp.After(results[j].Timestamp)
	})

	if len(results) > maxResults {
		results = results[:maxResults]
	}

	return results, nil
}

// Start schedules the age-based cleanup sweep and wires store shutdown.
func (s *service) Start(lc *lifecycle.Coordinator) error {
	maxAge := s.cfg.MaxAgeDuration()

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.cfg.CleanupSchedule, func() {
		s.sweep(lc.Context(), maxAge)
	}); err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}
	s.cron.Start()

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		<-s.cron.Stop().Done()
		if err := s.store.Close(); err != nil {
			s.logger.Error("memory store close failed", "error", err)
		}
	})

	return nil
}

func (s *service) sweep(ctx context.Context, maxAge time.Duration) {
	cutoff := time.Now().UTC().Add(-maxAge)
	removed, err := s.store.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("memory cleanup sweep failed", "error", err)
		return
	}
	if removed > 0 {
		s.logger.Info("memory cleanup sweep", "removed", removed, "cutoff", cutoff)
	}
}

// touch refreshes last-accessed after a context read. Failures are ignored,
// recency tracking is best-effort.
func (s *service) touch(userID, sessionID string) {
	release := s.locks.acquire(lockKey(userID, sessionID))
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conv, err := s.store.Load(ctx, userID, sessionID)
	if err != nil {
		return
	}

	conv.LastAccessed = time.Now().UTC()
	_ = s.store.Save(ctx, conv)
}

func (s *service) truncate(content string) string {
	limit := s.cfg.MaxMessageChars
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "... [truncated]"
}

func renderRole(role string) string {
	switch role {
	case "user":
		return "User"
	case "assistant":
		return "Assistant"
	case "system":
		return "System"
	default:
		return role
	}
}
