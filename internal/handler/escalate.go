// internal/handler/escalate.go
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rtm-dispatcher/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Escalate raises the severity of an existing case. Domain-state violations (case
// missing, already terminal, severity not an increase) are irrecoverable for the
// request and surface as failures; the dispatcher never retries them.
type Escalate struct {
	cases  domain.CaseRepository
	logger *slog.Logger
	tracer trace.Tracer
}

// NewEscalate creates the ESCALATE handler.
func NewEscalate(cases domain.CaseRepository, logger *slog.Logger) *Escalate {
	return &Escalate{
		cases:  cases,
		logger: logger.With("component", "handler-escalate"),
		tracer: otel.Tracer("rtm-dispatcher-handler"),
	}
}

func (h *Escalate) Kind() domain.OperationKind { return domain.KindEscalate }

func (h *Escalate) Execute(ctx context.Context, cmd domain.Command) (domain.HandlerResult, error) {
	c, ok := cmd.(domain.EscalateCommand)
	if !ok {
		return domain.HandlerResult{}, fmt.Errorf("escalate handler received %T", cmd)
	}

	ctx, span := h.tracer.Start(ctx, "handler.Escalate", trace.WithAttributes(
		attribute.String("case.id", c.CaseID),
		attribute.String("case.severity", string(c.Severity)),
	))
	defer span.End()

	current, err := h.cases.Get(ctx, c.CaseID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "case lookup failed")
		return domain.HandlerResult{}, fmt.Errorf("case %s: %w", c.CaseID, err)
	}

	if current.Severity.Terminal() {
		span.SetStatus(codes.Error, "case already terminal")
		return domain.HandlerResult{}, fmt.Errorf("case %s: %w", c.CaseID, domain.ErrCaseTerminal)
	}
	if !c.Severity.Above(current.Severity) {
		span.SetStatus(codes.Error, "severity would not increase")
		return domain.HandlerResult{}, fmt.Errorf("case %s is already at severity %s; %s is not an escalation",
			c.CaseID, current.Severity, c.Severity)
	}

	previous := current.Severity
	current.Severity = c.Severity
	current.UpdatedAt = time.Now()
	if err := h.cases.Save(ctx, current); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "case save failed")
		return domain.HandlerResult{}, fmt.Errorf("escalate case %s: %w", c.CaseID, err)
	}

	h.logger.Info("case escalated", "case_id", c.CaseID, "from", string(previous), "to", string(c.Severity))
	return domain.HandlerResult{
		Detail: fmt.Sprintf("case %s escalated from %s to %s", c.CaseID, previous, c.Severity),
	}, nil
}
