package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"medreel/internal/history"
	"medreel/internal/models"
)

// Completer is the model-invocation capability the engine consumes.
type Completer interface {
	Complete(ctx context.Context, prior []*schema.Message, input string) (string, error)
}

// Service orchestrates one conversation turn per Send call. A session is
// ACTIVE until a reply matches the finalization marker; the engine does
// not block further sends after that — callers are expected to Reset
// before starting a new script.
type Service struct {
	db      *sql.DB
	history *history.Adapter
	model   Completer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService wires the engine to its collaborators.
func NewService(db *sql.DB, adapter *history.Adapter, model Completer) *Service {
	return &Service{
		db:      db,
		history: adapter,
		model:   model,
		locks:   make(map[string]*sync.Mutex),
	}
}

// SendResult is the caller-facing outcome of a completed turn.
type SendResult struct {
	Message   string `json:"message"`
	Finalized bool   `json:"finalized"`
}

// ChatMessage is the client-facing turn shape. Any stored role other
// than user surfaces as assistant.
type ChatMessage struct {
	ID      int64       `json:"id"`
	Content string      `json:"content"`
	Role    models.Role `json:"role"`
}

// Send runs one turn: load history, invoke the model, then persist the
// user turn, the assistant turn, and (when the reply is finalized) a
// PENDING script row in a single transaction. A model failure persists
// nothing.
func (s *Service) Send(ctx context.Context, sessionID string, userID int64, input string) (*SendResult, error) {
	if sessionID == "" {
		return nil, errors.New("session_id is required")
	}
	if userID <= 0 {
		return nil, errors.New("user_id is required")
	}
	if input == "" {
		return nil, errors.New("input cannot be empty")
	}

	// Serialize turns per session; concurrent sends would otherwise read
	// the same history prefix and interleave their appends.
	unlock := s.lockSession(sessionID)
	defer unlock()

	prior, err := s.history.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	output, err := s.model.Complete(ctx, prior, input)
	if err != nil {
		return nil, fmt.Errorf("model invocation: %w", err)
	}
	finalized := IsFinalized(output)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin turn tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	saver := s.history.WithTx(tx)
	if _, err = saver.Save(ctx, sessionID, userID, models.RoleUser, input); err != nil {
		return nil, err
	}
	if _, err = saver.Save(ctx, sessionID, userID, models.RoleAssistant, output); err != nil {
		return nil, err
	}
	if finalized {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO video_scripts (id, user_id, content, status, created_at) VALUES (?, ?, ?, ?, ?)`,
			uuid.NewString(), userID, output, models.ScriptPending, time.Now().UTC(),
		); err != nil {
			err = fmt.Errorf("create script: %w", err)
			return nil, err
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit turn: %w", err)
	}

	return &SendResult{Message: output, Finalized: finalized}, nil
}

// FetchMessages returns the active thread in creation order, roles
// collapsed to the two-valued client tag.
func (s *Service) FetchMessages(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	if sessionID == "" {
		return nil, errors.New("session_id is required")
	}
	rows, err := s.history.Messages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	messages := make([]ChatMessage, 0, len(rows))
	for _, m := range rows {
		role := models.RoleAssistant
		if m.Role == models.RoleUser {
			role = models.RoleUser
		}
		messages = append(messages, ChatMessage{ID: m.ID, Content: m.Content, Role: role})
	}
	return messages, nil
}

// Reset soft-deletes the session's history so the next Send starts a
// fresh conversation under the same session id. Idempotent.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("session_id is required")
	}
	return s.history.Reset(ctx, sessionID)
}

func (s *Service) lockSession(sessionID string) func() {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}
