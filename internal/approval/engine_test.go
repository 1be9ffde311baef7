package approval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoStepRequest() Request {
	return Request{
		ID:         1,
		DocumentID: 42,
		Status:     StatusWaiting,
		Steps: []Step{
			{ID: 10, RequestID: 1, StepOrder: 1, Name: "Sales Manager", Actions: []Action{
				{ID: 100, StepID: 10, UserID: 7, Status: ActionPending},
				{ID: 101, StepID: 10, UserID: 8, Status: ActionPending},
			}},
			{ID: 11, RequestID: 1, StepOrder: 2, Name: "Finance", Actions: []Action{
				{ID: 102, StepID: 11, UserID: 9, Status: ActionPending},
			}},
		},
	}
}

func TestDeriveStepStatus(t *testing.T) {
	step := twoStepRequest().Steps[0]
	assert.Equal(t, StepNotStarted, DeriveStepStatus(step))

	step.Actions[0].Status = ActionApproved
	assert.Equal(t, StepInProgress, DeriveStepStatus(step))

	step.Actions[1].Status = ActionApproved
	assert.Equal(t, StepCompleted, DeriveStepStatus(step))

	step.Actions[1].Status = ActionRejected
	assert.Equal(t, StepRejected, DeriveStepStatus(step))

	assert.Equal(t, StepCompleted, DeriveStepStatus(Step{}))
}

func TestActiveStepFollowsOrder(t *testing.T) {
	req := twoStepRequest()

	step, ok := ActiveStep(req)
	require.True(t, ok)
	assert.Equal(t, int64(10), step.ID)

	req.Steps[0].Actions[0].Status = ActionApproved
	req.Steps[0].Actions[1].Status = ActionApproved
	step, ok = ActiveStep(req)
	require.True(t, ok)
	assert.Equal(t, int64(11), step.ID)
}

func TestApplyApproveAdvancesFlow(t *testing.T) {
	req := twoStepRequest()
	now := time.Now()

	req, err := ApplyApprove(req, 100, now)
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, req.Status)

	req, err = ApplyApprove(req, 101, now)
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, req.Status)

	req, err = ApplyApprove(req, 102, now)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, req.Status)
	require.NotNil(t, req.CompletedAt)
	assert.Equal(t, now, *req.CompletedAt)
}

func TestApplyApproveOutOfOrderRejected(t *testing.T) {
	req := twoStepRequest()

	// Action 102 sits in step 2, which is not active yet.
	_, err := ApplyApprove(req, 102, time.Now())
	assert.ErrorIs(t, err, ErrStepNotActive)
}

func TestApplyRejectIsTerminal(t *testing.T) {
	req := twoStepRequest()
	reason := "price too low"

	req, err := ApplyReject(req, 100, &reason, time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, req.Status)
	require.NotNil(t, req.CompletedAt)
	require.NotNil(t, req.Steps[0].Actions[0].RejectReason)
	assert.Equal(t, reason, *req.Steps[0].Actions[0].RejectReason)

	// No further actions after rejection.
	_, err = ApplyApprove(req, 101, time.Now())
	assert.ErrorIs(t, err, ErrFlowTerminal)
}

func TestApplyApproveTwiceRejected(t *testing.T) {
	req := twoStepRequest()
	now := time.Now()

	req, err := ApplyApprove(req, 100, now)
	require.NoError(t, err)

	_, err = ApplyApprove(req, 100, now)
	assert.ErrorIs(t, err, ErrActionNotPending)
}

func TestApplyApproveUnknownAction(t *testing.T) {
	_, err := ApplyApprove(twoStepRequest(), 999, time.Now())
	assert.ErrorIs(t, err, ErrActionNotFound)
}

func TestCanApprove(t *testing.T) {
	req := twoStepRequest()

	id, ok := CanApprove(req, 7)
	assert.True(t, ok)
	assert.Equal(t, int64(100), id)

	// User 9 waits for step 2.
	_, ok = CanApprove(req, 9)
	assert.False(t, ok)

	req.Steps[0].Actions[0].Status = ActionApproved
	req.Steps[0].Actions[1].Status = ActionApproved
	id, ok = CanApprove(req, 9)
	assert.True(t, ok)
	assert.Equal(t, int64(102), id)
}

func TestDeriveStatusRejectionAnywhere(t *testing.T) {
	req := twoStepRequest()
	req.Steps[1].Actions[0].Status = ActionRejected

	assert.Equal(t, StatusRejected, DeriveStatus(req))
}

func TestStart(t *testing.T) {
	req := Request{DocumentID: 42, Status: StatusNotStarted}
	now := time.Now()

	req, err := Start(req, 7, now)
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, req.Status)
	assert.Equal(t, int64(7), req.StartedBy)
	assert.Equal(t, now, req.StartedAt)

	_, err = Start(req, 7, now)
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}
