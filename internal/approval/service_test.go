package approval

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian-crm/internal/document"
)

type mockRepository struct {
	requests  map[int64]*Request
	templates map[document.Kind][]StepTemplate
	nextID    int64

	createErr error
	updateErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		requests:  make(map[int64]*Request),
		templates: make(map[document.Kind][]StepTemplate),
		nextID:    1,
	}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *mockRepository) GetByDocument(ctx context.Context, documentID int64) (*Request, error) {
	var latest *Request
	for _, req := range m.requests {
		if req.DocumentID == documentID && (latest == nil || req.ID > latest.ID) {
			latest = req
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *mockRepository) GetByAction(ctx context.Context, actionID int64) (*Request, error) {
	for _, req := range m.requests {
		for _, step := range req.Steps {
			for _, a := range step.Actions {
				if a.ID == actionID {
					cp := *req
					return &cp, nil
				}
			}
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepository) CreateRequest(ctx context.Context, req Request) (*Request, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	req.ID = m.nextID
	m.nextID++
	for i := range req.Steps {
		req.Steps[i].ID = m.nextID
		req.Steps[i].RequestID = req.ID
		m.nextID++
		for j := range req.Steps[i].Actions {
			req.Steps[i].Actions[j].ID = m.nextID
			req.Steps[i].Actions[j].StepID = req.Steps[i].ID
			m.nextID++
		}
	}
	stored := req
	m.requests[req.ID] = &stored
	return &req, nil
}

func (m *mockRepository) UpdateRequest(ctx context.Context, req Request) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.requests[req.ID]; !ok {
		return ErrNotFound
	}
	stored := req
	m.requests[req.ID] = &stored
	return nil
}

func (m *mockRepository) ListTemplates(ctx context.Context, kind document.Kind) ([]StepTemplate, error) {
	return m.templates[kind], nil
}

type mockDocuments struct {
	headers  map[int64]*document.HeaderRow
	statuses map[int64]int
}

func newMockDocuments() *mockDocuments {
	return &mockDocuments{
		headers:  make(map[int64]*document.HeaderRow),
		statuses: make(map[int64]int),
	}
}

func (m *mockDocuments) GetHeader(ctx context.Context, id int64) (*document.HeaderRow, error) {
	h, ok := m.headers[id]
	if !ok {
		return nil, document.ErrNotFound
	}
	return h, nil
}

func (m *mockDocuments) UpdateStatus(ctx context.Context, documentID int64, status int) error {
	m.statuses[documentID] = status
	return nil
}

func newTestService(t *testing.T) (*Service, *mockRepository, *mockDocuments) {
	t.Helper()
	repo := newMockRepository()
	docs := newMockDocuments()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, docs, logger), repo, docs
}

func seedFlow(repo *mockRepository, docs *mockDocuments) {
	docs.headers[42] = &document.HeaderRow{ID: 42, Kind: document.KindQuotation}
	repo.templates[document.KindQuotation] = []StepTemplate{
		{StepOrder: 1, Name: "Sales Manager", ApproverIDs: []int64{7}},
		{StepOrder: 2, Name: "Finance", ApproverIDs: []int64{9}},
	}
}

func TestStartFlow(t *testing.T) {
	svc, repo, docs := newTestService(t)
	seedFlow(repo, docs)

	req, err := svc.StartFlow(context.Background(), 42, 5)
	require.NoError(t, err)

	assert.Equal(t, StatusWaiting, req.Status)
	assert.Equal(t, int64(5), req.StartedBy)
	require.Len(t, req.Steps, 2)
	require.Len(t, req.Steps[0].Actions, 1)
	assert.Equal(t, ActionPending, req.Steps[0].Actions[0].Status)
	assert.Equal(t, int(StatusWaiting), docs.statuses[42])
}

func TestStartFlowAlreadyStarted(t *testing.T) {
	svc, repo, docs := newTestService(t)
	seedFlow(repo, docs)

	_, err := svc.StartFlow(context.Background(), 42, 5)
	require.NoError(t, err)

	_, err = svc.StartFlow(context.Background(), 42, 5)
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestStartFlowNoTemplates(t *testing.T) {
	svc, _, docs := newTestService(t)
	docs.headers[42] = &document.HeaderRow{ID: 42, Kind: document.KindOrder}

	_, err := svc.StartFlow(context.Background(), 42, 5)
	assert.ErrorIs(t, err, ErrNoTemplates)
}

func TestStartFlowUnknownDocument(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.StartFlow(context.Background(), 404, 5)
	assert.ErrorIs(t, err, document.ErrNotFound)
}

func TestApproveThroughBothSteps(t *testing.T) {
	svc, repo, docs := newTestService(t)
	seedFlow(repo, docs)

	started, err := svc.StartFlow(context.Background(), 42, 5)
	require.NoError(t, err)

	first := started.Steps[0].Actions[0]
	updated, err := svc.Approve(context.Background(), first.ID, first.UserID)
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, updated.Status)
	assert.Equal(t, int(StatusWaiting), docs.statuses[42])

	second := updated.Steps[1].Actions[0]
	updated, err = svc.Approve(context.Background(), second.ID, second.UserID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, updated.Status)
	require.NotNil(t, updated.CompletedAt)
	assert.Equal(t, int(StatusApproved), docs.statuses[42])
}

func TestApproveWrongUser(t *testing.T) {
	svc, repo, docs := newTestService(t)
	seedFlow(repo, docs)

	started, err := svc.StartFlow(context.Background(), 42, 5)
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), started.Steps[0].Actions[0].ID, 999)
	assert.ErrorIs(t, err, ErrNotApprover)
}

func TestApproveFutureStepBlocked(t *testing.T) {
	svc, repo, docs := newTestService(t)
	seedFlow(repo, docs)

	started, err := svc.StartFlow(context.Background(), 42, 5)
	require.NoError(t, err)

	second := started.Steps[1].Actions[0]
	_, err = svc.Approve(context.Background(), second.ID, second.UserID)
	assert.ErrorIs(t, err, ErrStepNotActive)
}

func TestReject(t *testing.T) {
	svc, repo, docs := newTestService(t)
	seedFlow(repo, docs)

	started, err := svc.StartFlow(context.Background(), 42, 5)
	require.NoError(t, err)

	reason := "margin below floor"
	first := started.Steps[0].Actions[0]
	updated, err := svc.Reject(context.Background(), first.ID, first.UserID, &reason)
	require.NoError(t, err)

	assert.Equal(t, StatusRejected, updated.Status)
	require.NotNil(t, updated.Steps[0].Actions[0].RejectReason)
	assert.Equal(t, reason, *updated.Steps[0].Actions[0].RejectReason)
	assert.Equal(t, int(StatusRejected), docs.statuses[42])
}

func TestRestartAfterRejection(t *testing.T) {
	svc, repo, docs := newTestService(t)
	seedFlow(repo, docs)

	started, err := svc.StartFlow(context.Background(), 42, 5)
	require.NoError(t, err)
	first := started.Steps[0].Actions[0]
	_, err = svc.Reject(context.Background(), first.ID, first.UserID, nil)
	require.NoError(t, err)

	_, err = svc.StartFlow(context.Background(), 42, 5)
	require.NoError(t, err)
	assert.Equal(t, int(StatusWaiting), docs.statuses[42])
}

func TestPendingActionID(t *testing.T) {
	svc, repo, docs := newTestService(t)
	seedFlow(repo, docs)

	id, ok, err := svc.PendingActionID(context.Background(), 42, 7)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, id)

	started, err := svc.StartFlow(context.Background(), 42, 5)
	require.NoError(t, err)

	id, ok, err = svc.PendingActionID(context.Background(), 42, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, started.Steps[0].Actions[0].ID, id)

	_, ok, err = svc.PendingActionID(context.Background(), 42, 9)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStartFlowTimestamp(t *testing.T) {
	svc, repo, docs := newTestService(t)
	seedFlow(repo, docs)
	fixed := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	req, err := svc.StartFlow(context.Background(), 42, 5)
	require.NoError(t, err)
	assert.Equal(t, fixed, req.StartedAt)
}
