// internal/handler/sendsurvey.go
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"rtm-dispatcher/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SendSurvey delivers one survey to each recipient. The fan-out is best effort:
// a recipient that cannot be reached is reported in the result detail but does
// not fail the command. Only a missing survey fails the whole request.
type SendSurvey struct {
	surveys  domain.SurveyDirectory
	delivery domain.SurveyDelivery
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewSendSurvey creates the SEND_SURVEY handler.
func NewSendSurvey(surveys domain.SurveyDirectory, delivery domain.SurveyDelivery, logger *slog.Logger) *SendSurvey {
	return &SendSurvey{
		surveys:  surveys,
		delivery: delivery,
		logger:   logger.With("component", "handler-send-survey"),
		tracer:   otel.Tracer("rtm-dispatcher-handler"),
	}
}

func (h *SendSurvey) Kind() domain.OperationKind { return domain.KindSendSurvey }

func (h *SendSurvey) Execute(ctx context.Context, cmd domain.Command) (domain.HandlerResult, error) {
	c, ok := cmd.(domain.SendSurveyCommand)
	if !ok {
		return domain.HandlerResult{}, fmt.Errorf("send-survey handler received %T", cmd)
	}

	ctx, span := h.tracer.Start(ctx, "handler.SendSurvey", trace.WithAttributes(
		attribute.String("survey.id", c.SurveyID),
		attribute.Int("recipient.count", len(c.RecipientIDs)),
	))
	defer span.End()

	survey, err := h.surveys.Get(ctx, c.SurveyID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "survey lookup failed")
		return domain.HandlerResult{}, fmt.Errorf("survey %s: %w", c.SurveyID, err)
	}

	var failed []string
	for _, recipientID := range c.RecipientIDs {
		if err := h.delivery.Deliver(ctx, survey.ID, recipientID); err != nil {
			h.logger.Warn("survey delivery failed for recipient",
				"survey_id", survey.ID, "recipient_id", recipientID, "error", err)
			failed = append(failed, recipientID)
		}
	}

	delivered := len(c.RecipientIDs) - len(failed)
	span.SetAttributes(attribute.Int("recipient.failed", len(failed)))
	if len(failed) > 0 {
		return domain.HandlerResult{
			Detail: fmt.Sprintf("survey %s delivered to %d/%d recipients; failed: %s",
				survey.ID, delivered, len(c.RecipientIDs), strings.Join(failed, ", ")),
		}, nil
	}
	return domain.HandlerResult{
		Detail: fmt.Sprintf("survey %s delivered to %d recipients", survey.ID, delivered),
	}, nil
}
