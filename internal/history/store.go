package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"medreel/internal/models"
)

// DBTX is satisfied by *sql.DB and *sql.Tx so store calls compose into a
// transaction owned by the caller.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the durable append-only log of conversation turns. Rows are
// never mutated or hard-deleted; a thread reset flips active to false in
// bulk.
type Store struct {
	db DBTX
}

// NewStore builds a store over the given database handle.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// WithTx returns a store whose calls run inside the given transaction.
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{db: tx}
}

// Append inserts one turn and returns the stored row.
func (s *Store) Append(ctx context.Context, sessionID string, userID int64, role models.Role, content string) (*models.Message, error) {
	if sessionID == "" {
		return nil, errors.New("session_id is required")
	}
	if userID <= 0 {
		return nil, errors.New("user_id is required")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_history (session_id, user_id, role, content, active, created_at) VALUES (?, ?, ?, ?, 1, ?)`,
		sessionID, userID, role, content, now,
	)
	if err != nil {
		return nil, fmt.Errorf("append turn: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("turn id: %w", err)
	}
	return &models.Message{
		ID:        id,
		SessionID: sessionID,
		UserID:    userID,
		Role:      role,
		Content:   content,
		Active:    true,
		CreatedAt: now,
	}, nil
}

// ListActive returns every non-deleted turn of the thread in creation
// order. An unknown session id yields an empty slice, not an error.
func (s *Store) ListActive(ctx context.Context, sessionID string) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, user_id, role, content, active, created_at
		 FROM chat_history WHERE session_id = ? AND active = 1 ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m := new(models.Message)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.UserID, &m.Role, &m.Content, &m.Active, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// SoftDeleteThread marks every turn of the thread inactive, regardless of
// current state. Idempotent; safe on threads with no turns.
func (s *Store) SoftDeleteThread(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("session_id is required")
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE chat_history SET active = 0 WHERE session_id = ?`, sessionID,
	); err != nil {
		return fmt.Errorf("reset thread: %w", err)
	}
	return nil
}
