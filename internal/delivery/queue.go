// internal/delivery/queue.go
package delivery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"rtm-dispatcher/internal/domain"
	"rtm-dispatcher/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Queue is the bounded in-process notification queue behind Broadcast. Enqueue
// never blocks the dispatcher: a full buffer fails fast with ErrQueueFull and
// the handler reports that as its own failure.
type Queue struct {
	notifier    domain.Notifier
	buf         chan domain.Notification
	workers     int
	sendTimeout time.Duration
	logger      *slog.Logger
	tracer      trace.Tracer
	wg          sync.WaitGroup
}

// NewQueue creates a queue with the given buffer capacity and worker count.
func NewQueue(notifier domain.Notifier, capacity, workers int, sendTimeout time.Duration, logger *slog.Logger) *Queue {
	return &Queue{
		notifier:    notifier,
		buf:         make(chan domain.Notification, capacity),
		workers:     workers,
		sendTimeout: sendTimeout,
		logger:      logger.With("component", "delivery-queue"),
		tracer:      otel.Tracer("rtm-dispatcher-delivery"),
	}
}

// Start launches the delivery workers and blocks until ctx is canceled.
func (q *Queue) Start(ctx context.Context) error {
	q.logger.Info("delivery queue started", "workers", q.workers, "capacity", cap(q.buf))
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	<-ctx.Done()
	q.wg.Wait()
	q.logger.Info("delivery queue stopped")
	return ctx.Err()
}

// Enqueue hands one notification to the workers without blocking.
func (q *Queue) Enqueue(_ context.Context, n domain.Notification) error {
	select {
	case q.buf <- n:
		metrics.DeliveryQueueDepth.Set(float64(len(q.buf)))
		return nil
	default:
		return domain.ErrQueueFull
	}
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-q.buf:
			metrics.DeliveryQueueDepth.Set(float64(len(q.buf)))
			q.deliver(n)
		}
	}
}

func (q *Queue) deliver(n domain.Notification) {
	ctx, span := q.tracer.Start(context.Background(), "delivery.Notify",
		trace.WithAttributes(attribute.String("recipient.id", n.RecipientID)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, q.sendTimeout)
	defer cancel()

	if err := q.notifier.Notify(ctx, n.RecipientID, n.Message); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
		q.logger.Error("failed to deliver notification", "recipient_id", n.RecipientID, "error", err)
		return
	}
	metrics.DeliveriesTotal.WithLabelValues("success").Inc()
}
