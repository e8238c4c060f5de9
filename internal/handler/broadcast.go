// internal/handler/broadcast.go
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

const broadcastFeedTitle = "Broadcast"

// Broadcast publishes a message as a feed entry and enqueues one notification per
// member the audience filter resolves to. Enqueueing is fire-and-forget from the
// dispatcher's point of view; only resolution, feed creation and enqueue failures
// fail the command.
type Broadcast struct {
	audience domain.AudienceDirectory
	feeds    domain.FeedCreator
	queue    domain.DeliveryQueue
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewBroadcast creates the BROADCAST handler.
func NewBroadcast(audience domain.AudienceDirectory, feeds domain.FeedCreator, queue domain.DeliveryQueue, logger *slog.Logger) *Broadcast {
	return &Broadcast{
		audience: audience,
		feeds:    feeds,
		queue:    queue,
		logger:   logger.With("component", "handler-broadcast"),
		tracer:   otel.Tracer("rtm-dispatcher-handler"),
	}
}

func (h *Broadcast) Kind() domain.OperationKind { return domain.KindBroadcast }

func (h *Broadcast) Execute(ctx context.Context, cmd domain.Command) (domain.HandlerResult, error) {
	c, ok := cmd.(domain.BroadcastCommand)
	if !ok {
		return domain.HandlerResult{}, fmt.Errorf("broadcast handler received %T", cmd)
	}

	ctx, span := h.tracer.Start(ctx, "handler.Broadcast",
		trace.WithAttributes(attribute.String("audience.filter", c.AudienceFilter)))
	defer span.End()

	recipients, err := h.audience.Resolve(ctx, c.AudienceFilter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "audience resolution failed")
		return domain.HandlerResult{}, fmt.Errorf("resolve audience %q: %w", c.AudienceFilter, err)
	}
	if len(recipients) == 0 {
		return domain.HandlerResult{}, fmt.Errorf("audience %q resolved to no recipients", c.AudienceFilter)
	}
	span.SetAttributes(attribute.Int("recipient.count", len(recipients)))

	feed := domain.FeedCreateRequest{Title: broadcastFeedTitle, Message: c.Message}
	if err := feed.Validate(); err != nil {
		return domain.HandlerResult{}, err
	}
	if err := h.feeds.CreateFeed(ctx, feed); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "feed creation failed")
		return domain.HandlerResult{}, fmt.Errorf("create broadcast feed: %w", err)
	}

	for i, recipientID := range recipients {
		n := domain.Notification{RecipientID: recipientID, Message: c.Message}
		if err := h.queue.Enqueue(ctx, n); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "enqueue failed")
			return domain.HandlerResult{}, fmt.Errorf("enqueued %d/%d broadcast messages: %w",
				i, len(recipients), err)
		}
	}

	return domain.HandlerResult{
		Detail: fmt.Sprintf("broadcast enqueued for %d recipients", len(recipients)),
	}, nil
}
