// internal/idempotency/sweeper.go
package idempotency

import (
	"context"
	"errors"
	"log/slog"

	"rtm-dispatcher/internal/domain"
	"rtm-dispatcher/internal/metrics"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SweepLockName is the distributed lock guarding the periodic maintenance tick.
const SweepLockName = "rtm-sweep"

// SweepJob is one named purge run on the sweep schedule. Run reports how many
// records it evicted.
type SweepJob struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

// GuardJob wraps a sweepable guard as a SweepJob.
func GuardJob(guard domain.IdempotencySweeper) SweepJob {
	return SweepJob{
		Name: "idempotency-records",
		Run: func(ctx context.Context) (int, error) {
			evicted, err := guard.Sweep(ctx)
			if err == nil && evicted > 0 {
				metrics.IdempotencyEvictionsTotal.Add(float64(evicted))
			}
			return evicted, err
		},
	}
}

// Sweeper runs purge jobs on a cron schedule. When a locker is provided (shared
// store deployments), only the node holding the sweep lock runs the tick;
// everyone else skips it.
type Sweeper struct {
	cron   *cron.Cron
	jobs   []SweepJob
	locker domain.Locker
	logger *slog.Logger
	tracer trace.Tracer
}

// NewSweeper schedules the jobs at spec (a cron expression with seconds, e.g.
// "0 * * * * *" for once a minute). locker may be nil when no store is shared.
func NewSweeper(spec string, locker domain.Locker, logger *slog.Logger, jobs ...SweepJob) (*Sweeper, error) {
	c := cron.New(cron.WithSeconds())
	s := &Sweeper{
		cron:   c,
		jobs:   jobs,
		locker: locker,
		logger: logger.With("component", "sweeper"),
		tracer: otel.Tracer("rtm-dispatcher-sweeper"),
	}
	if _, err := c.AddFunc(spec, s.run); err != nil {
		return nil, err
	}
	return s, nil
}

// Start runs the sweep schedule until ctx is canceled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info("sweeper started", "jobs", len(s.jobs))
	s.cron.Start()
	<-ctx.Done()
	s.logger.Info("sweeper stopping...")
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("sweeper stopped")
	return ctx.Err()
}

func (s *Sweeper) run() {
	ctx, span := s.tracer.Start(context.Background(), "sweeper.Tick")
	defer span.End()

	if s.locker != nil {
		lock, err := s.locker.Lock(ctx, SweepLockName)
		if errors.Is(err, domain.ErrLockNotAcquired) {
			s.logger.Debug("sweep lock held elsewhere, skipping tick")
			return
		}
		if err != nil {
			s.logger.Error("failed to acquire sweep lock", "error", err)
			span.RecordError(err)
			return
		}
		defer func() {
			if err := lock.Unlock(ctx); err != nil {
				s.logger.Warn("failed to release sweep lock", "error", err)
			}
		}()
	}

	for _, job := range s.jobs {
		evicted, err := job.Run(ctx)
		if err != nil {
			s.logger.Error("sweep job failed", "job", job.Name, "error", err)
			span.RecordError(err)
			continue
		}
		span.SetAttributes(attribute.Int("sweep."+job.Name, evicted))
		if evicted > 0 {
			s.logger.Info("sweep job purged records", "job", job.Name, "evicted", evicted)
		}
	}
}
