// internal/domain/operation.go
package domain

import (
	"fmt"
	"time"
)

// OperationKind identifies one of the real-time operations the dispatcher knows about.
type OperationKind string

const (
	KindSendSurvey OperationKind = "SEND_SURVEY"
	KindBroadcast  OperationKind = "BROADCAST"
	KindNudge      OperationKind = "NUDGE"
	KindEscalate   OperationKind = "ESCALATE"
	KindReassign   OperationKind = "REASSIGN"
)

// Kinds returns every recognized operation kind. The registry uses this to verify
// at startup that each kind has exactly one primary handler.
func Kinds() []OperationKind {
	return []OperationKind{KindSendSurvey, KindBroadcast, KindNudge, KindEscalate, KindReassign}
}

// Valid reports whether k is one of the recognized operation kinds.
func (k OperationKind) Valid() bool {
	switch k {
	case KindSendSurvey, KindBroadcast, KindNudge, KindEscalate, KindReassign:
		return true
	}
	return false
}

// OperationRequest is an inbound real-time operation: a kind, an untyped payload
// whose shape depends on the kind, and a request ID used for duplicate suppression.
type OperationRequest struct {
	Kind      OperationKind  `json:"operation"`
	Payload   map[string]any `json:"payload"`
	RequestID string         `json:"request_id"`
}

// Validate checks the request envelope. Payload contents are the codec's concern.
func (r *OperationRequest) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownOperationKind, string(r.Kind))
	}
	if r.RequestID == "" {
		return fmt.Errorf("request ID cannot be empty")
	}
	return nil
}

// OutcomeStatus is the terminal status of a dispatched request.
type OutcomeStatus string

const (
	StatusAccepted  OutcomeStatus = "accepted"
	StatusDuplicate OutcomeStatus = "duplicate"
	StatusRejected  OutcomeStatus = "rejected"
	StatusFailed    OutcomeStatus = "failed"
)

// DispatchOutcome is what every caller gets back, whatever happened to the request.
type DispatchOutcome struct {
	RequestID string        `json:"request_id"`
	Kind      OperationKind `json:"operation"`
	Status    OutcomeStatus `json:"status"`
	Detail    string        `json:"detail,omitempty"`
}

// OutcomeRecord is the persisted form of a DispatchOutcome, kept for history lookups.
type OutcomeRecord struct {
	RequestID   string        `json:"request_id"`
	Kind        OperationKind `json:"operation"`
	Status      OutcomeStatus `json:"status"`
	Detail      string        `json:"detail,omitempty"`
	CompletedAt time.Time     `json:"completed_at"`
}

// Validate checks if the outcome record is valid.
func (r *OutcomeRecord) Validate() error {
	if r.RequestID == "" {
		return fmt.Errorf("outcome record request ID cannot be empty")
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("outcome record has unknown operation kind: %s", r.Kind)
	}
	if r.Status == "" {
		return fmt.Errorf("outcome record status cannot be empty")
	}
	if r.CompletedAt.IsZero() {
		return fmt.Errorf("outcome record completion time cannot be zero")
	}
	return nil
}
