package approval

import (
	"errors"
	"sort"
	"time"
)

var (
	// ErrActionNotFound indicates the action id does not belong to the request.
	ErrActionNotFound = errors.New("approval action not found")
	// ErrActionNotPending indicates the action was already acted on.
	ErrActionNotPending = errors.New("approval action already acted on")
	// ErrStepNotActive indicates the action's step is not the active one.
	ErrStepNotActive = errors.New("approval step not active")
	// ErrFlowTerminal indicates the request already reached a terminal status.
	ErrFlowTerminal = errors.New("approval flow already completed")
	// ErrAlreadyStarted indicates a start on a flow past NotStarted.
	ErrAlreadyStarted = errors.New("approval flow already started")
)

// DeriveStepStatus computes a step's status from its actions: rejected if any
// action rejected, completed when every action approved, in progress once any
// action was taken, otherwise not started.
func DeriveStepStatus(step Step) StepStatus {
	if len(step.Actions) == 0 {
		return StepCompleted
	}
	acted := false
	approved := 0
	for _, a := range step.Actions {
		switch a.Status {
		case ActionRejected:
			return StepRejected
		case ActionApproved:
			acted = true
			approved++
		}
	}
	if approved == len(step.Actions) {
		return StepCompleted
	}
	if acted {
		return StepInProgress
	}
	return StepNotStarted
}

// sortedSteps returns the steps ordered strictly by step order.
func sortedSteps(req Request) []Step {
	steps := make([]Step, len(req.Steps))
	copy(steps, req.Steps)
	sort.Slice(steps, func(i, j int) bool { return steps[i].StepOrder < steps[j].StepOrder })
	return steps
}

// ActiveStep returns the step currently open for actions: the lowest-ordered
// step that is not completed, provided no step has rejected. A step only
// activates once every lower-ordered step is completed.
func ActiveStep(req Request) (Step, bool) {
	for _, step := range sortedSteps(req) {
		switch DeriveStepStatus(step) {
		case StepRejected:
			return Step{}, false
		case StepCompleted:
			continue
		default:
			return step, true
		}
	}
	return Step{}, false
}

// DeriveStatus computes the overall request status from its steps. A single
// rejection anywhere is terminal.
func DeriveStatus(req Request) Status {
	if len(req.Steps) == 0 {
		return req.Status
	}
	allCompleted := true
	for _, step := range req.Steps {
		switch DeriveStepStatus(step) {
		case StepRejected:
			return StatusRejected
		case StepCompleted:
		default:
			allCompleted = false
		}
	}
	if allCompleted {
		return StatusApproved
	}
	return StatusWaiting
}

// CanApprove reports whether the user holds a pending action in the active
// step, returning that action's id.
func CanApprove(req Request, userID int64) (int64, bool) {
	if req.Status.IsTerminal() {
		return 0, false
	}
	step, ok := ActiveStep(req)
	if !ok {
		return 0, false
	}
	for _, a := range step.Actions {
		if a.UserID == userID && a.Status == ActionPending {
			return a.ID, true
		}
	}
	return 0, false
}

// applyAction locates a pending action in the active step and rewrites it,
// returning a new request with statuses re-derived.
func applyAction(req Request, actionID int64, at time.Time, fn func(Action) Action) (Request, error) {
	if req.Status.IsTerminal() {
		return req, ErrFlowTerminal
	}
	active, ok := ActiveStep(req)
	if !ok {
		return req, ErrStepNotActive
	}

	located := false
	steps := make([]Step, len(req.Steps))
	for i, step := range req.Steps {
		actions := make([]Action, len(step.Actions))
		copy(actions, step.Actions)
		for j, a := range actions {
			if a.ID != actionID {
				continue
			}
			if step.ID != active.ID {
				return req, ErrStepNotActive
			}
			if a.Status != ActionPending {
				return req, ErrActionNotPending
			}
			updated := fn(a)
			updated.ActedAt = &at
			actions[j] = updated
			located = true
		}
		step.Actions = actions
		steps[i] = step
	}
	if !located {
		return req, ErrActionNotFound
	}

	req.Steps = steps
	req.Status = DeriveStatus(req)
	if req.Status.IsTerminal() {
		req.CompletedAt = &at
	}
	return req, nil
}

// ApplyApprove marks the action approved and re-derives step and request
// statuses.
func ApplyApprove(req Request, actionID int64, at time.Time) (Request, error) {
	return applyAction(req, actionID, at, func(a Action) Action {
		a.Status = ActionApproved
		return a
	})
}

// ApplyReject marks the action rejected, recording the optional reason
// verbatim. One rejection makes the whole request rejected and terminal.
func ApplyReject(req Request, actionID int64, reason *string, at time.Time) (Request, error) {
	return applyAction(req, actionID, at, func(a Action) Action {
		a.Status = ActionRejected
		a.RejectReason = reason
		return a
	})
}

// Start transitions a not-yet-started flow to waiting.
func Start(req Request, startedBy int64, at time.Time) (Request, error) {
	if req.Status != StatusNotStarted {
		return req, ErrAlreadyStarted
	}
	req.Status = StatusWaiting
	req.StartedBy = startedBy
	req.StartedAt = at
	return req, nil
}
