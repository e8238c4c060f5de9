// internal/handler/reassign.go
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"rtm-dispatcher/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Reassign transfers ownership of a resource between two identities. The transfer
// is a compare-and-swap against the ownership store: the fromOwner the request
// was formed against must still hold the resource at commit time, otherwise the
// request fails with a conflict detail and is never silently applied.
type Reassign struct {
	ownership domain.OwnershipRepository
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewReassign creates the REASSIGN handler.
func NewReassign(ownership domain.OwnershipRepository, logger *slog.Logger) *Reassign {
	return &Reassign{
		ownership: ownership,
		logger:    logger.With("component", "handler-reassign"),
		tracer:    otel.Tracer("rtm-dispatcher-handler"),
	}
}

func (h *Reassign) Kind() domain.OperationKind { return domain.KindReassign }

func (h *Reassign) Execute(ctx context.Context, cmd domain.Command) (domain.HandlerResult, error) {
	c, ok := cmd.(domain.ReassignCommand)
	if !ok {
		return domain.HandlerResult{}, fmt.Errorf("reassign handler received %T", cmd)
	}

	ctx, span := h.tracer.Start(ctx, "handler.Reassign", trace.WithAttributes(
		attribute.String("resource.id", c.ResourceID),
		attribute.String("owner.from", c.FromOwner),
		attribute.String("owner.to", c.ToOwner),
	))
	defer span.End()

	err := h.ownership.Transfer(ctx, c.ResourceID, c.FromOwner, c.ToOwner)
	switch {
	case errors.Is(err, domain.ErrOwnershipConflict):
		span.SetStatus(codes.Error, "ownership conflict")
		return domain.HandlerResult{}, fmt.Errorf(
			"resource %s: %w (expected owner %s)", c.ResourceID, err, c.FromOwner)
	case errors.Is(err, domain.ErrResourceNotFound):
		span.SetStatus(codes.Error, "resource not found")
		return domain.HandlerResult{}, fmt.Errorf("resource %s: %w", c.ResourceID, err)
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "ownership transfer failed")
		return domain.HandlerResult{}, fmt.Errorf("reassign resource %s: %w", c.ResourceID, err)
	}

	h.logger.Info("resource reassigned",
		"resource_id", c.ResourceID, "from", c.FromOwner, "to", c.ToOwner)
	return domain.HandlerResult{
		Detail: fmt.Sprintf("resource %s reassigned from %s to %s", c.ResourceID, c.FromOwner, c.ToOwner),
	}, nil
}
