package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"medreel/internal/models"
)

// ErrAlreadyReviewed is returned when an approve/reject targets a script
// that has left PENDING. Status moves exactly once and never reverts.
var ErrAlreadyReviewed = errors.New("script already reviewed")

// Service handles the admin side of the script lifecycle.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// ListFilter narrows the admin script listing. String fields are
// case-insensitive fragment matches, mirroring the dashboard search
// boxes.
type ListFilter struct {
	UserID    string
	Email     string
	ScriptID  string
	Status    models.ScriptStatus
	PageIndex int
	PageSize  int
}

// ScriptRow is a listed script together with its author's email.
type ScriptRow struct {
	models.VideoScript
	UserEmail string `json:"user_email"`
}

// ListResult carries one page plus global per-status counts for the
// dashboard header.
type ListResult struct {
	Scripts       []ScriptRow `json:"scripts"`
	PendingCount  int         `json:"pending_count"`
	ApprovedCount int         `json:"approved_count"`
	RejectedCount int         `json:"rejected_count"`
}

// ListScripts returns the filtered page, newest first, and the counts.
func (s *Service) ListScripts(ctx context.Context, f ListFilter) (*ListResult, error) {
	if f.PageIndex < 0 {
		f.PageIndex = 0
	}
	if f.PageSize <= 0 {
		f.PageSize = 10
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}

	var conds []string
	var args []any
	if v := strings.TrimSpace(f.UserID); v != "" {
		conds = append(conds, "vs.user_id LIKE ?")
		args = append(args, "%"+v+"%")
	}
	if v := strings.TrimSpace(f.Email); v != "" {
		conds = append(conds, "u.email LIKE ?")
		args = append(args, "%"+v+"%")
	}
	if v := strings.TrimSpace(f.ScriptID); v != "" {
		conds = append(conds, "vs.id LIKE ?")
		args = append(args, "%"+v+"%")
	}
	if f.Status != "" {
		conds = append(conds, "vs.status = ?")
		args = append(args, f.Status)
	}

	query := `SELECT vs.id, vs.user_id, vs.content, vs.status,
		COALESCE(vs.reason, ''), COALESCE(vs.video_url, ''), vs.created_at, u.email
		FROM video_scripts vs JOIN users u ON u.id = vs.user_id`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY vs.created_at DESC, vs.id DESC LIMIT ? OFFSET ?"
	args = append(args, f.PageSize, f.PageIndex*f.PageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	defer rows.Close()

	result := &ListResult{Scripts: make([]ScriptRow, 0)}
	for rows.Next() {
		var r ScriptRow
		if err := rows.Scan(&r.ID, &r.UserID, &r.Content, &r.Status, &r.Reason, &r.VideoURL, &r.CreatedAt, &r.UserEmail); err != nil {
			return nil, fmt.Errorf("scan script: %w", err)
		}
		result.Scripts = append(result.Scripts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	counts, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM video_scripts GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count scripts: %w", err)
	}
	defer counts.Close()
	for counts.Next() {
		var status models.ScriptStatus
		var n int
		if err := counts.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		switch status {
		case models.ScriptPending:
			result.PendingCount = n
		case models.ScriptApproved:
			result.ApprovedCount = n
		case models.ScriptRejected:
			result.RejectedCount = n
		}
	}
	return result, counts.Err()
}

// ApproveScript moves a PENDING script to APPROVED and records where the
// rendered video lives.
func (s *Service) ApproveScript(ctx context.Context, scriptID, videoURL string) error {
	scriptID = strings.TrimSpace(scriptID)
	videoURL = strings.TrimSpace(videoURL)
	if scriptID == "" {
		return errors.New("script id is required")
	}
	if videoURL == "" {
		return errors.New("video url is required")
	}
	return s.transition(ctx, scriptID,
		`UPDATE video_scripts SET status = ?, video_url = ? WHERE id = ? AND status = ?`,
		models.ScriptApproved, videoURL, scriptID, models.ScriptPending)
}

// RejectScript moves a PENDING script to REJECTED with a reason.
func (s *Service) RejectScript(ctx context.Context, scriptID, reason string) error {
	scriptID = strings.TrimSpace(scriptID)
	reason = strings.TrimSpace(reason)
	if scriptID == "" {
		return errors.New("script id is required")
	}
	if reason == "" {
		return errors.New("rejection reason is required")
	}
	return s.transition(ctx, scriptID,
		`UPDATE video_scripts SET status = ?, reason = ? WHERE id = ? AND status = ?`,
		models.ScriptRejected, reason, scriptID, models.ScriptPending)
}

func (s *Service) transition(ctx context.Context, scriptID, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update script: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("script rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM video_scripts WHERE id = ?)`, scriptID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("verify script: %w", err)
		}
		if !exists {
			return sql.ErrNoRows
		}
		return ErrAlreadyReviewed
	}
	return nil
}

// GetScript loads one script by id.
func (s *Service) GetScript(ctx context.Context, scriptID string) (*models.VideoScript, error) {
	var vs models.VideoScript
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, content, status, COALESCE(reason, ''), COALESCE(video_url, ''), created_at
		 FROM video_scripts WHERE id = ?`, scriptID,
	).Scan(&vs.ID, &vs.UserID, &vs.Content, &vs.Status, &vs.Reason, &vs.VideoURL, &vs.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get script: %w", err)
	}
	return &vs, nil
}
