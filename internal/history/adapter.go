package history

import (
	"context"
	"database/sql"

	"github.com/cloudwego/eino/schema"

	"medreel/internal/models"
)

// Adapter translates between the store's row shape and the ordered
// role-tagged turns the conversation engine feeds the model.
type Adapter struct {
	store *Store
}

// NewAdapter wraps a store.
func NewAdapter(store *Store) *Adapter {
	return &Adapter{store: store}
}

// WithTx returns an adapter whose writes run inside the transaction.
func (a *Adapter) WithTx(tx *sql.Tx) *Adapter {
	return &Adapter{store: a.store.WithTx(tx)}
}

// Load re-queries the active thread on every call and maps it into model
// turns, oldest first. No caching between calls.
func (a *Adapter) Load(ctx context.Context, sessionID string) ([]*schema.Message, error) {
	messages, err := a.store.ListActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	turns := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		turns = append(turns, &schema.Message{
			Role:    toSchemaRole(msg.Role),
			Content: msg.Content,
		})
	}
	return turns, nil
}

// Messages exposes the raw active rows, id order, for caller-facing reads.
func (a *Adapter) Messages(ctx context.Context, sessionID string) ([]*models.Message, error) {
	return a.store.ListActive(ctx, sessionID)
}

// Save appends one turn. Called once for the user input and once for the
// model reply within a turn cycle.
func (a *Adapter) Save(ctx context.Context, sessionID string, userID int64, role models.Role, content string) (*models.Message, error) {
	return a.store.Append(ctx, sessionID, userID, role, content)
}

// Reset soft-deletes the thread; the next Load for the same session id
// returns an empty history.
func (a *Adapter) Reset(ctx context.Context, sessionID string) error {
	return a.store.SoftDeleteThread(ctx, sessionID)
}

func toSchemaRole(role models.Role) schema.RoleType {
	switch role {
	case models.RoleUser:
		return schema.User
	case models.RoleSystem:
		return schema.System
	default:
		return schema.Assistant
	}
}
