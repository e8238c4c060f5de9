// internal/dispatcher/dispatcher.go
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rtm-dispatcher/internal/domain"
	"rtm-dispatcher/internal/metrics"
	"rtm-dispatcher/internal/registry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Service is the orchestration core: it validates the operation kind, takes the
// request through idempotency admission, decodes the payload, resolves the
// handler and executes it under a bounded timeout. Every request ends in exactly
// one of the four terminal statuses.
type Service struct {
	guard          domain.IdempotencyGuard
	registry       *registry.Registry
	decode         func(domain.OperationKind, map[string]any) (domain.Command, error)
	outcomes       domain.OutcomeRepository
	handlerTimeout time.Duration
	logger         *slog.Logger
	tracer         trace.Tracer
}

// New creates the dispatcher service. outcomes may be nil when history recording
// is disabled.
func New(
	guard domain.IdempotencyGuard,
	reg *registry.Registry,
	decode func(domain.OperationKind, map[string]any) (domain.Command, error),
	outcomes domain.OutcomeRepository,
	handlerTimeout time.Duration,
	logger *slog.Logger,
) *Service {
	return &Service{
		guard:          guard,
		registry:       reg,
		decode:         decode,
		outcomes:       outcomes,
		handlerTimeout: handlerTimeout,
		logger:         logger.With("component", "dispatcher"),
		tracer:         otel.Tracer("rtm-dispatcher-core"),
	}
}

// Dispatch routes one operation request to its handler and reports the outcome.
// State machine: Received -> (Rejected | Duplicate | Dispatching -> (Accepted | Failed)).
func (s *Service) Dispatch(ctx context.Context, req *domain.OperationRequest) *domain.DispatchOutcome {
	ctx, span := s.tracer.Start(ctx, "dispatcher.Dispatch")
	defer span.End()

	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	span.SetAttributes(
		attribute.String("rtm.operation", string(req.Kind)),
		attribute.String("rtm.request_id", req.RequestID),
	)

	// 1. Unknown kinds never reach the guard: no admission record, no handler.
	if !req.Kind.Valid() {
		return s.finish(ctx, span, req, domain.StatusRejected,
			fmt.Sprintf("unknown operation kind %q", string(req.Kind)))
	}

	// Cancellation before admission leaves no trace of the request.
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "canceled before admission")
		return s.finish(ctx, span, req, domain.StatusFailed,
			fmt.Sprintf("canceled before admission: %v", err))
	}

	// 2. Admission is the at-most-once gate. A duplicate is never re-validated
	// or re-decoded; its original admission is authoritative.
	admitted, err := s.guard.Admit(ctx, req.RequestID, req.Kind)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "idempotency admission failed")
		return s.finish(ctx, span, req, domain.StatusFailed,
			fmt.Sprintf("idempotency admission failed: %v", err))
	}
	if !admitted {
		return s.finish(ctx, span, req, domain.StatusDuplicate,
			"request already admitted within the idempotency window")
	}

	// 3. Decode. The admission above stands even when decoding fails, so a
	// malformed retry with the same ID reports Duplicate rather than letting a
	// mutated payload replay under a spent request ID.
	cmd, err := s.decode(req.Kind, req.Payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "payload decode failed")
		return s.finish(ctx, span, req, domain.StatusRejected, err.Error())
	}

	// 4. Resolve the handler. The registry is verified at startup, so a miss
	// here is a programming error, not a caller mistake.
	handler, err := s.registry.Resolve(req.Kind)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler resolution failed")
		return s.finish(ctx, span, req, domain.StatusFailed, err.Error())
	}

	// 5. Execute. The handler context survives caller cancellation: an admitted
	// request runs to completion and its side effects are never unwound. The
	// timeout is the only bound, and no dispatcher lock is held across the call.
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.handlerTimeout)
	defer cancel()

	start := time.Now()
	result, err := handler.Execute(hctx, cmd)
	metrics.HandlerDuration.WithLabelValues(string(req.Kind)).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler execution failed")
		if errors.Is(err, context.DeadlineExceeded) {
			// Ambiguous by contract: the side effect may or may not have
			// happened. Callers must not read this as proof of failure.
			return s.finish(ctx, span, req, domain.StatusFailed,
				fmt.Sprintf("handler timed out after %s; side effect state unknown", s.handlerTimeout))
		}
		return s.finish(ctx, span, req, domain.StatusFailed, err.Error())
	}

	return s.finish(ctx, span, req, domain.StatusAccepted, result.Detail)
}

// finish builds the outcome, bumps metrics and, except for duplicates (whose
// original outcome is already on file), records it for history lookups.
func (s *Service) finish(ctx context.Context, span trace.Span, req *domain.OperationRequest, status domain.OutcomeStatus, detail string) *domain.DispatchOutcome {
	outcome := &domain.DispatchOutcome{
		RequestID: req.RequestID,
		Kind:      req.Kind,
		Status:    status,
		Detail:    detail,
	}
	span.SetAttributes(attribute.String("rtm.status", string(status)))
	metrics.DispatchOutcomesTotal.WithLabelValues(string(req.Kind), string(status)).Inc()

	s.logger.Info("dispatch finished",
		"request_id", req.RequestID, "operation", string(req.Kind),
		"status", string(status), "detail", detail)

	if s.outcomes != nil && status != domain.StatusDuplicate && req.Kind.Valid() {
		record := &domain.OutcomeRecord{
			RequestID:   req.RequestID,
			Kind:        req.Kind,
			Status:      status,
			Detail:      detail,
			CompletedAt: time.Now(),
		}
		// Recording must not be lost to a caller that has already hung up.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.outcomes.Save(saveCtx, record); err != nil {
			s.logger.Error("failed to record dispatch outcome",
				"request_id", req.RequestID, "error", err)
		}
	}
	return outcome
}
