package http

import (
	"rtm-dispatcher/internal/domain"

	"github.com/google/uuid"
)

// SubmitOperationRequest is the Data Transfer Object for submitting an RTM
// operation. Payload shape is the codec's concern; the validator only checks the
// envelope.
type SubmitOperationRequest struct {
	Operation string         `json:"operation" validate:"required,oneof=SEND_SURVEY BROADCAST NUDGE ESCALATE REASSIGN"`
	Payload   map[string]any `json:"payload" validate:"required"`
	RequestID string         `json:"request_id" validate:"omitempty,min=1,max=128"`
}

// ToDomainRequest converts the DTO to a domain.OperationRequest. A missing
// request ID is generated server-side, which makes the call non-idempotent by
// choice of the caller.
func (r *SubmitOperationRequest) ToDomainRequest() *domain.OperationRequest {
	requestID := r.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	return &domain.OperationRequest{
		Kind:      domain.OperationKind(r.Operation),
		Payload:   r.Payload,
		RequestID: requestID,
	}
}
