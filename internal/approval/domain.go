package approval

import "time"

// Status is the overall approval-request status. The numeric values are
// persisted server-side and must not change.
type Status int

const (
	StatusNotStarted Status = 0
	StatusWaiting    Status = 1
	StatusApproved   Status = 2
	StatusRejected   Status = 3
)

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// StepStatus is the derived status of a single approval step.
type StepStatus string

const (
	StepNotStarted StepStatus = "NOT_STARTED"
	StepInProgress StepStatus = "IN_PROGRESS"
	StepCompleted  StepStatus = "COMPLETED"
	StepRejected   StepStatus = "REJECTED"
)

// ActionStatus is the state of one approver's action within a step.
type ActionStatus string

const (
	ActionPending  ActionStatus = "PENDING"
	ActionApproved ActionStatus = "APPROVED"
	ActionRejected ActionStatus = "REJECTED"
)

// Action is one approver's slot in a step.
type Action struct {
	ID           int64        `json:"id"`
	StepID       int64        `json:"stepId"`
	UserID       int64        `json:"userId"`
	Status       ActionStatus `json:"status"`
	ActedAt      *time.Time   `json:"actedAt,omitempty"`
	RejectReason *string      `json:"rejectReason,omitempty"`
}

// Step is one ordered stage of the approval flow.
type Step struct {
	ID        int64    `json:"id"`
	RequestID int64    `json:"requestId"`
	StepOrder int      `json:"stepOrder"`
	Name      string   `json:"name"`
	Actions   []Action `json:"actions"`
}

// Request is the approval flow of one document. Its structure is immutable
// once started; only step and action statuses change.
type Request struct {
	ID          int64      `json:"id"`
	DocumentID  int64      `json:"documentId"`
	Status      Status     `json:"status"`
	Steps       []Step     `json:"steps"`
	StartedBy   int64      `json:"startedBy"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
