package approval

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/document"
	"github.com/meridian-crm/meridian-crm/internal/platform/db"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

// StepTemplate is one configured stage of the approval flow for a document
// kind, together with the users who must approve it.
type StepTemplate struct {
	StepOrder   int     `json:"stepOrder"`
	Name        string  `json:"name"`
	ApproverIDs []int64 `json:"approverIds"`
}

// Repository provides PostgreSQL backed persistence for approval flows.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	GetByDocument(ctx context.Context, documentID int64) (*Request, error)
	GetByAction(ctx context.Context, actionID int64) (*Request, error)
	CreateRequest(ctx context.Context, req Request) (*Request, error)
	UpdateRequest(ctx context.Context, req Request) error
	ListTemplates(ctx context.Context, kind document.Kind) ([]StepTemplate, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a repository over the connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *repository) getRequest(ctx context.Context, where string, arg interface{}) (*Request, error) {
	var req Request
	err := r.db.QueryRow(ctx, `SELECT id, document_id, status, started_by, started_at, completed_at
FROM approval_requests WHERE `+where, arg).Scan(
		&req.ID, &req.DocumentID, &req.Status, &req.StartedBy, &req.StartedAt, &req.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	stepRows, err := r.db.Query(ctx, `SELECT id, request_id, step_order, name
FROM approval_steps WHERE request_id = $1 ORDER BY step_order`, req.ID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer stepRows.Close()

	stepIndex := map[int64]int{}
	for stepRows.Next() {
		var step Step
		if err := stepRows.Scan(&step.ID, &step.RequestID, &step.StepOrder, &step.Name); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		stepIndex[step.ID] = len(req.Steps)
		req.Steps = append(req.Steps, step)
	}
	if err := stepRows.Err(); err != nil {
		return nil, err
	}

	actionRows, err := r.db.Query(ctx, `SELECT a.id, a.step_id, a.user_id, a.status, a.acted_at, a.reject_reason
FROM approval_actions a
JOIN approval_steps s ON s.id = a.step_id
WHERE s.request_id = $1 ORDER BY a.id`, req.ID)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer actionRows.Close()

	for actionRows.Next() {
		var a Action
		if err := actionRows.Scan(&a.ID, &a.StepID, &a.UserID, &a.Status, &a.ActedAt, &a.RejectReason); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		if i, ok := stepIndex[a.StepID]; ok {
			req.Steps[i].Actions = append(req.Steps[i].Actions, a)
		}
	}
	if err := actionRows.Err(); err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repository) GetByDocument(ctx context.Context, documentID int64) (*Request, error) {
	// A rejected flow may be superseded by a restart, so the newest request wins.
	return r.getRequest(ctx, "id = (SELECT MAX(id) FROM approval_requests WHERE document_id = $1)", documentID)
}

func (r *repository) GetByAction(ctx context.Context, actionID int64) (*Request, error) {
	return r.getRequest(ctx,
		"id = (SELECT s.request_id FROM approval_actions a JOIN approval_steps s ON s.id = a.step_id WHERE a.id = $1)",
		actionID)
}

func (r *repository) CreateRequest(ctx context.Context, req Request) (*Request, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO approval_requests (document_id, status, started_by, started_at)
VALUES ($1, $2, $3, $4) RETURNING id`,
		req.DocumentID, req.Status, req.StartedBy, req.StartedAt,
	).Scan(&req.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert request: %w", err)
	}

	for i := range req.Steps {
		step := &req.Steps[i]
		step.RequestID = req.ID
		err := r.db.QueryRow(ctx, `INSERT INTO approval_steps (request_id, step_order, name)
VALUES ($1, $2, $3) RETURNING id`,
			step.RequestID, step.StepOrder, step.Name,
		).Scan(&step.ID)
		if err != nil {
			return nil, fmt.Errorf("insert step: %w", err)
		}
		for j := range step.Actions {
			action := &step.Actions[j]
			action.StepID = step.ID
			err := r.db.QueryRow(ctx, `INSERT INTO approval_actions (step_id, user_id, status)
VALUES ($1, $2, $3) RETURNING id`,
				action.StepID, action.UserID, action.Status,
			).Scan(&action.ID)
			if err != nil {
				return nil, fmt.Errorf("insert action: %w", err)
			}
		}
	}
	return &req, nil
}

func (r *repository) UpdateRequest(ctx context.Context, req Request) error {
	tag, err := r.db.Exec(ctx, `UPDATE approval_requests
SET status = $2, completed_at = $3 WHERE id = $1`,
		req.ID, req.Status, req.CompletedAt)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	for _, step := range req.Steps {
		for _, a := range step.Actions {
			if _, err := r.db.Exec(ctx, `UPDATE approval_actions
SET status = $2, acted_at = $3, reject_reason = $4 WHERE id = $1`,
				a.ID, a.Status, a.ActedAt, a.RejectReason); err != nil {
				return fmt.Errorf("update action: %w", err)
			}
		}
	}
	return nil
}

func (r *repository) ListTemplates(ctx context.Context, kind document.Kind) ([]StepTemplate, error) {
	rows, err := r.db.Query(ctx, `SELECT t.step_order, t.name, ARRAY_AGG(u.user_id ORDER BY u.user_id)
FROM approval_step_templates t
JOIN approval_step_template_approvers u ON u.kind = t.kind AND u.step_order = t.step_order
WHERE t.kind = $1
GROUP BY t.step_order, t.name
ORDER BY t.step_order`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var templates []StepTemplate
	for rows.Next() {
		var t StepTemplate
		if err := rows.Scan(&t.StepOrder, &t.Name, &t.ApproverIDs); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}
