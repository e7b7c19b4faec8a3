package memory

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore persists conversations in a conversations table with the
// message list stored as JSONB.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies the embedded schema migrations.
func (s *PostgresStore) Migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	driver, err := migratepgx.WithInstance(s.db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "pgx", driver)
	if err != nil {
		return fmt.Errorf("migration setup: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

func (s *PostgresStore) Load(ctx context.Context, userID, sessionID string) (*Conversation, error) {
	conv := &Conversation{
		UserID:    userID,
		SessionID: sessionID,
	}

	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT messages, created_at, updated_at, last_accessed
		 FROM conversations
		 WHERE user_id = $1 AND session_id = $2`,
		userID, sessionID,
	).Scan(&raw, &conv.CreatedAt, &conv.UpdatedAt, &conv.LastAccessed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load conversation: %v", ErrBackend, err)
	}

	if err := json.Unmarshal(raw, &conv.Messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}

	return conv, nil
}

func (s *PostgresStore) Save(ctx context.Context, conv *Conversation) error {
	raw, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversations (user_id, session_id, messages, created_at, updated_at, last_accessed)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, session_id) DO UPDATE
		 SET messages = EXCLUDED.messages,
		     updated_at = EXCLUDED.updated_at,
		     last_accessed = EXCLUDED.last_accessed`,
		conv.UserID, conv.SessionID, raw, conv.CreatedAt, conv.UpdatedAt, conv.LastAccessed,
	)
	if err != nil {
		return fmt.Errorf("%w: save conversation: %v", ErrBackend, err)
	}

	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID, sessionID string) error {
	var err error
	if sessionID != "" {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM conversations WHERE user_id = $1 AND session_id = $2`,
			userID, sessionID,
		)
	} else {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM conversations WHERE user_id = $1`,
			userID,
		)
	}
	if err != nil {
		return fmt.Errorf("%w: delete conversation: %v", ErrBackend, err)
	}
	return nil
}

func (s *PostgresStore) Sessions(ctx context.Context, userID string) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, messages, created_at, updated_at, last_accessed
		 FROM conversations
		 WHERE user_id = $1
		 ORDER BY session_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list sessions: %v", ErrBackend, err)
	}
	defer rows.Close()

	var sessions []*Conversation
	for rows.Next() {
		conv := &Conversation{UserID: userID}
		var raw []byte
		if err := rows.Scan(&conv.SessionID, &raw, &conv.CreatedAt, &conv.UpdatedAt, &conv.LastAccessed); err != nil {
			return nil, fmt.Errorf("%w: scan session: %v", ErrBackend, err)
		}
		if err := json.Unmarshal(raw, &conv.Messages); err != nil {
			return nil, fmt.Errorf("decode messages: %w", err)
		}
		sessions = append(sessions, conv)
	}

	return sessions, rows.Err()
}

func (s *PostgresStore) Global(ctx context.Context) (int, int, int64, error) {
	var conversations, messages int
	var bytes int64

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(jsonb_array_length(messages)), 0),
		        COALESCE(SUM(pg_column_size(messages)), 0)
		 FROM conversations`,
	).Scan(&conversations, &messages, &bytes)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: global stats: %v", ErrBackend, err)
	}

	return conversations, messages, bytes, nil
}

func (s *PostgresStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE last_accessed < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: purge conversations: %v", ErrBackend, err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: purge count: %v", ErrBackend, err)
	}

	return int(removed), nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
