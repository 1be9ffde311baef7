package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-crm/meridian-crm/internal/document"
)

// ErrNotApprover indicates the acting user does not own the action.
var ErrNotApprover = errors.New("user is not the approver for this action")

// ErrNoTemplates indicates no approval flow is configured for the kind.
var ErrNoTemplates = errors.New("no approval steps configured for document kind")

// DocumentStore is the slice of the document layer the approval service
// needs: reading headers and syncing the numeric status back.
type DocumentStore interface {
	GetHeader(ctx context.Context, id int64) (*document.HeaderRow, error)
	UpdateStatus(ctx context.Context, documentID int64, status int) error
}

// Service drives approval flows over their persisted state.
type Service struct {
	repo      Repository
	documents DocumentStore
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the approval service.
func NewService(repo Repository, documents DocumentStore, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		documents: documents,
		logger:    logger,
		now:       time.Now,
	}
}

// Get returns the approval request of a document with derived step statuses.
func (s *Service) Get(ctx context.Context, documentID int64) (*Request, error) {
	return s.repo.GetByDocument(ctx, documentID)
}

// StartFlow creates and starts the approval flow of a document from the
// step templates configured for its kind. A document with a live flow
// cannot be started again; a rejected flow may be superseded by a new one.
func (s *Service) StartFlow(ctx context.Context, documentID, startedBy int64) (*Request, error) {
	header, err := s.documents.GetHeader(ctx, documentID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByDocument(ctx, documentID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.Status != StatusRejected {
		return nil, ErrAlreadyStarted
	}

	templates, err := s.repo.ListTemplates(ctx, header.Kind)
	if err != nil {
		return nil, fmt.Errorf("load step templates: %w", err)
	}
	if len(templates) == 0 {
		return nil, ErrNoTemplates
	}

	req := Request{DocumentID: documentID, Status: StatusNotStarted}
	for _, t := range templates {
		step := Step{StepOrder: t.StepOrder, Name: t.Name}
		for _, userID := range t.ApproverIDs {
			step.Actions = append(step.Actions, Action{UserID: userID, Status: ActionPending})
		}
		req.Steps = append(req.Steps, step)
	}

	req, err = Start(req, startedBy, s.now())
	if err != nil {
		return nil, err
	}

	var created *Request
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		created, err = repo.CreateRequest(ctx, req)
		if err != nil {
			return err
		}
		return s.documents.UpdateStatus(ctx, documentID, int(created.Status))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("approval flow started",
		slog.Int64("document_id", documentID),
		slog.Int64("started_by", startedBy),
		slog.Int("steps", len(created.Steps)))
	return created, nil
}

func (s *Service) act(ctx context.Context, actionID, userID int64, apply func(Request) (Request, error)) (*Request, error) {
	req, err := s.repo.GetByAction(ctx, actionID)
	if err != nil {
		return nil, err
	}

	owned := false
	for _, step := range req.Steps {
		for _, a := range step.Actions {
			if a.ID == actionID && a.UserID == userID {
				owned = true
			}
		}
	}
	if !owned {
		return nil, ErrNotApprover
	}

	updated, err := apply(*req)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.UpdateRequest(ctx, updated); err != nil {
			return err
		}
		return s.documents.UpdateStatus(ctx, updated.DocumentID, int(updated.Status))
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Approve records the user's approval on the action. When every action of
// every step is approved the request, and the document, become approved.
func (s *Service) Approve(ctx context.Context, actionID, userID int64) (*Request, error) {
	at := s.now()
	req, err := s.act(ctx, actionID, userID, func(r Request) (Request, error) {
		return ApplyApprove(r, actionID, at)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("approval action approved",
		slog.Int64("action_id", actionID),
		slog.Int64("user_id", userID),
		slog.Int("status", int(req.Status)))
	return req, nil
}

// Reject records the user's rejection with its optional reason. A single
// rejection is terminal for the whole flow.
func (s *Service) Reject(ctx context.Context, actionID, userID int64, reason *string) (*Request, error) {
	at := s.now()
	req, err := s.act(ctx, actionID, userID, func(r Request) (Request, error) {
		return ApplyReject(r, actionID, reason, at)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("approval action rejected",
		slog.Int64("action_id", actionID),
		slog.Int64("user_id", userID))
	return req, nil
}

// PendingActionID reports whether the user currently has a pending action
// on the document's flow.
func (s *Service) PendingActionID(ctx context.Context, documentID, userID int64) (int64, bool, error) {
	req, err := s.repo.GetByDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	id, ok := CanApprove(*req, userID)
	return id, ok, nil
}
