// Package chat wires the session cache, conversation memory, and agent
// runtime into the chat and memory HTTP operations.
package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/piliapp/pili/internal/agents"
	"github.com/piliapp/pili/internal/memory"
	"github.com/piliapp/pili/internal/sessions"
)

// Service executes chat turns for the HTTP handlers.
type Service struct {
	cache  *sessions.Cache
	memory memory.System
	logger *slog.Logger
}

// NewService creates a chat service over the session cache and memory system.
func NewService(cache *sessions.Cache, mem memory.System, logger *slog.Logger) *Service {
	return &Service{
		cache:  cache,
		memory: mem,
		logger: logger,
	}
}

// Process executes one synchronous turn: builds or fetches the user's
// runtime, prepends conversation context, runs the state machine, and
// appends the exchange to memory.
func (s *Service) Process(ctx context.Context, req *Request) (*agents.TurnResult, error) {
	result, err := s.execute(ctx, req, agents.DiscardSink{})
	if err != nil {
		return nil, err
	}

	s.memory.AppendExchange(ctx, req.UserID, req.SessionID, req.Message, result.Response)
	return result, nil
}

// ProcessStream executes one turn, relaying progress through the assembler.
// The event channel closes after the terminal event; the memory append
// happens exactly once, after the turn finishes, with the full response.
func (s *Service) ProcessStream(ctx context.Context, req *Request, stream *agents.Assembler) {
	go func() {
		defer stream.Close()

		result, err := s.execute(ctx, req, stream)
		if err != nil {
			s.logger.Error("streamed turn failed", "user_id", req.UserID, "error", err)
			stream.Emit(agents.Event{Type: agents.EventFailed, Error: err.Error()})
			return
		}

		s.memory.AppendExchange(ctx, req.UserID, req.SessionID, req.Message, result.Response)
	}()
}

func (s *Service) execute(ctx context.Context, req *Request, sink agents.Sink) (*agents.TurnResult, error) {
	inst, err := s.cache.GetOrCreate(req.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionBuild, err)
	}

	input := s.memory.Context(ctx, req.UserID, req.SessionID) + req.Message

	result, err := inst.Runtime.ExecuteTurn(ctx, req.UserID, input, sink)
	if err != nil {
		return nil, err
	}

	s.logger.Info("turn completed",
		"user_id", req.UserID,
		"session_id", req.SessionID,
		"agent", result.FinalAgent,
		"steps", result.Steps,
	)

	return result, nil
}

// ClearUser drops the user's conversation memory and, when all sessions are
// cleared, the cached runtime instance.
func (s *Service) ClearUser(ctx context.Context, userID, sessionID string) error {
	if err := s.memory.Clear(ctx, userID, sessionID); err != nil {
		return err
	}

	if sessionID == "" {
		s.cache.Clear(userID)
	}

	return nil
}

// Memory exposes the memory system for the read-only handlers.
func (s *Service) Memory() memory.System {
	return s.memory
}
