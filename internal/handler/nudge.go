// internal/handler/nudge.go
package handler

import (
	"context"
	"fmt"
	"log/slog"

	"rtm-dispatcher/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Nudge sends a single-target reminder synchronously. Simplest handler.
type Nudge struct {
	notifier domain.Notifier
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewNudge creates the NUDGE handler.
func NewNudge(notifier domain.Notifier, logger *slog.Logger) *Nudge {
	return &Nudge{
		notifier: notifier,
		logger:   logger.With("component", "handler-nudge"),
		tracer:   otel.Tracer("rtm-dispatcher-handler"),
	}
}

func (h *Nudge) Kind() domain.OperationKind { return domain.KindNudge }

func (h *Nudge) Execute(ctx context.Context, cmd domain.Command) (domain.HandlerResult, error) {
	c, ok := cmd.(domain.NudgeCommand)
	if !ok {
		return domain.HandlerResult{}, fmt.Errorf("nudge handler received %T", cmd)
	}

	ctx, span := h.tracer.Start(ctx, "handler.Nudge",
		trace.WithAttributes(attribute.String("target.id", c.TargetID)))
	defer span.End()

	if err := h.notifier.Notify(ctx, c.TargetID, c.ReminderText); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reminder delivery failed")
		return domain.HandlerResult{}, fmt.Errorf("nudge %s: %w", c.TargetID, err)
	}

	return domain.HandlerResult{Detail: fmt.Sprintf("reminder sent to %s", c.TargetID)}, nil
}
