package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rtm-dispatcher/internal/codec"
	"rtm-dispatcher/internal/domain"
	"rtm-dispatcher/internal/idempotency"
	"rtm-dispatcher/internal/registry"
)

type fakeHandler struct {
	kind    domain.OperationKind
	execute func(ctx context.Context, cmd domain.Command) (domain.HandlerResult, error)
	calls   atomic.Int32
}

func (h *fakeHandler) Kind() domain.OperationKind { return h.kind }

func (h *fakeHandler) Execute(ctx context.Context, cmd domain.Command) (domain.HandlerResult, error) {
	h.calls.Add(1)
	if h.execute != nil {
		return h.execute(ctx, cmd)
	}
	return domain.HandlerResult{Detail: "ok"}, nil
}

type fakeOutcomeRepo struct {
	mu      sync.Mutex
	records []*domain.OutcomeRecord
}

func (r *fakeOutcomeRepo) Save(_ context.Context, record *domain.OutcomeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func (r *fakeOutcomeRepo) Get(context.Context, string) (*domain.OutcomeRecord, error) {
	return nil, domain.ErrOutcomeNotFound
}

func (r *fakeOutcomeRepo) ListByKind(context.Context, domain.OperationKind, int, int) ([]*domain.OutcomeRecord, error) {
	return nil, nil
}

func (r *fakeOutcomeRepo) PruneOlderThan(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (r *fakeOutcomeRepo) saved() []*domain.OutcomeRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.OutcomeRecord(nil), r.records...)
}

type testEnv struct {
	service  *Service
	guard    *idempotency.MemoryGuard
	handlers map[domain.OperationKind]*fakeHandler
	outcomes *fakeOutcomeRepo
}

func newTestEnv(t *testing.T, timeout time.Duration) *testEnv {
	t.Helper()
	logger := slog.Default()

	handlers := make(map[domain.OperationKind]*fakeHandler)
	registered := make([]domain.Handler, 0, len(domain.Kinds()))
	for _, kind := range domain.Kinds() {
		h := &fakeHandler{kind: kind}
		handlers[kind] = h
		registered = append(registered, h)
	}

	reg, err := registry.New(registered...)
	if err != nil {
		t.Fatalf("registry.New returned error: %v", err)
	}

	guard := idempotency.NewMemory(time.Minute, 1000, logger)
	outcomes := &fakeOutcomeRepo{}
	return &testEnv{
		service:  New(guard, reg, codec.Decode, outcomes, timeout, logger),
		guard:    guard,
		handlers: handlers,
		outcomes: outcomes,
	}
}

func nudgeRequest(requestID string) *domain.OperationRequest {
	return &domain.OperationRequest{
		Kind:      domain.KindNudge,
		Payload:   map[string]any{"targetId": "u1", "reminderText": "please respond"},
		RequestID: requestID,
	}
}

func TestDispatchUnknownKind(t *testing.T) {
	env := newTestEnv(t, time.Second)

	outcome := env.service.Dispatch(context.Background(), &domain.OperationRequest{
		Kind:      "TELEPORT",
		Payload:   map[string]any{},
		RequestID: "r1",
	})

	if outcome.Status != domain.StatusRejected {
		t.Fatalf("Status = %s, want rejected", outcome.Status)
	}
	if !strings.Contains(outcome.Detail, "unknown operation kind") {
		t.Errorf("Detail = %q, want mention of unknown operation kind", outcome.Detail)
	}
	for kind, h := range env.handlers {
		if h.calls.Load() != 0 {
			t.Errorf("handler %s invoked for unknown kind", kind)
		}
	}
	if env.guard.Len() != 0 {
		t.Errorf("guard holds %d records, want 0 for unknown kind", env.guard.Len())
	}
}

func TestDispatchConcurrentDuplicates(t *testing.T) {
	env := newTestEnv(t, time.Second)

	const n = 32
	outcomes := make([]*domain.DispatchOutcome, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			outcomes[i] = env.service.Dispatch(context.Background(), nudgeRequest("r1"))
		}(i)
	}
	close(start)
	wg.Wait()

	accepted, duplicate := 0, 0
	for _, o := range outcomes {
		switch o.Status {
		case domain.StatusAccepted:
			accepted++
		case domain.StatusDuplicate:
			duplicate++
		default:
			t.Errorf("unexpected status %s", o.Status)
		}
	}
	if accepted != 1 || duplicate != n-1 {
		t.Fatalf("accepted=%d duplicate=%d, want 1 and %d", accepted, duplicate, n-1)
	}
	if calls := env.handlers[domain.KindNudge].calls.Load(); calls != 1 {
		t.Errorf("nudge handler invoked %d times, want exactly 1", calls)
	}
}

func TestDispatchDecodeFailureConsumesAdmission(t *testing.T) {
	env := newTestEnv(t, time.Second)

	// Missing surveyId: rejected, the decode error names the field.
	outcome := env.service.Dispatch(context.Background(), &domain.OperationRequest{
		Kind:      domain.KindSendSurvey,
		Payload:   map[string]any{"recipientIds": []any{"u1"}},
		RequestID: "r1",
	})
	if outcome.Status != domain.StatusRejected {
		t.Fatalf("Status = %s, want rejected", outcome.Status)
	}
	if !strings.Contains(outcome.Detail, "surveyId") {
		t.Errorf("Detail = %q, want mention of surveyId", outcome.Detail)
	}
	if calls := env.handlers[domain.KindSendSurvey].calls.Load(); calls != 0 {
		t.Errorf("handler invoked %d times on decode failure, want 0", calls)
	}

	// The admission stands: a corrected retry under the same ID is a duplicate,
	// so a mutated payload cannot replay a spent request ID.
	retry := env.service.Dispatch(context.Background(), &domain.OperationRequest{
		Kind:      domain.KindSendSurvey,
		Payload:   map[string]any{"surveyId": "s1", "recipientIds": []any{"u1"}},
		RequestID: "r1",
	})
	if retry.Status != domain.StatusDuplicate {
		t.Fatalf("retry Status = %s, want duplicate", retry.Status)
	}
}

func TestDispatchHandlerFailure(t *testing.T) {
	env := newTestEnv(t, time.Second)
	env.handlers[domain.KindEscalate].execute = func(context.Context, domain.Command) (domain.HandlerResult, error) {
		return domain.HandlerResult{}, domain.ErrCaseTerminal
	}

	outcome := env.service.Dispatch(context.Background(), &domain.OperationRequest{
		Kind:      domain.KindEscalate,
		Payload:   map[string]any{"caseId": "c1", "severity": "high"},
		RequestID: "r1",
	})
	if outcome.Status != domain.StatusFailed {
		t.Fatalf("Status = %s, want failed", outcome.Status)
	}
	if !strings.Contains(outcome.Detail, "terminal severity") {
		t.Errorf("Detail = %q, want the handler's domain error", outcome.Detail)
	}
}

func TestDispatchHandlerTimeout(t *testing.T) {
	env := newTestEnv(t, 50*time.Millisecond)
	env.handlers[domain.KindNudge].execute = func(ctx context.Context, _ domain.Command) (domain.HandlerResult, error) {
		<-ctx.Done()
		return domain.HandlerResult{}, ctx.Err()
	}

	outcome := env.service.Dispatch(context.Background(), nudgeRequest("r1"))
	if outcome.Status != domain.StatusFailed {
		t.Fatalf("Status = %s, want failed", outcome.Status)
	}
	if !strings.Contains(outcome.Detail, "timed out") {
		t.Errorf("Detail = %q, want timeout detail", outcome.Detail)
	}
	if !strings.Contains(outcome.Detail, "unknown") {
		t.Errorf("Detail = %q, want the ambiguity called out", outcome.Detail)
	}
}

func TestDispatchBlankBroadcastMessage(t *testing.T) {
	env := newTestEnv(t, time.Second)

	outcome := env.service.Dispatch(context.Background(), &domain.OperationRequest{
		Kind:      domain.KindBroadcast,
		Payload:   map[string]any{"message": "", "audienceFilter": "team-a"},
		RequestID: "r1",
	})
	if outcome.Status != domain.StatusRejected {
		t.Fatalf("Status = %s, want rejected", outcome.Status)
	}
	if !strings.Contains(outcome.Detail, "message") {
		t.Errorf("Detail = %q, want mention of the blank message field", outcome.Detail)
	}
}

func TestDispatchSurvivesCallerCancellation(t *testing.T) {
	env := newTestEnv(t, time.Second)

	executed := make(chan struct{})
	env.handlers[domain.KindNudge].execute = func(ctx context.Context, _ domain.Command) (domain.HandlerResult, error) {
		defer close(executed)
		// The handler context must not inherit the caller's cancellation.
		select {
		case <-ctx.Done():
			return domain.HandlerResult{}, ctx.Err()
		default:
			return domain.HandlerResult{Detail: "ok"}, nil
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *domain.DispatchOutcome, 1)
	go func() {
		done <- env.service.Dispatch(ctx, nudgeRequest("r1"))
	}()
	cancel()

	outcome := <-done
	<-executed
	// Either order is possible: cancellation observed before admission (failed,
	// nothing ran) or after (the handler ran to completion). Both are legal; an
	// admitted request is never aborted mid-handler.
	if outcome.Status == domain.StatusAccepted {
		if calls := env.handlers[domain.KindNudge].calls.Load(); calls != 1 {
			t.Errorf("handler invoked %d times, want 1", calls)
		}
	}
}

func TestDispatchCanceledBeforeAdmission(t *testing.T) {
	env := newTestEnv(t, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := env.service.Dispatch(ctx, nudgeRequest("r1"))
	if outcome.Status != domain.StatusFailed {
		t.Fatalf("Status = %s, want failed", outcome.Status)
	}
	if env.guard.Len() != 0 {
		t.Errorf("guard holds %d records, want 0 when canceled before admission", env.guard.Len())
	}
}

func TestDispatchRecordsOutcomes(t *testing.T) {
	env := newTestEnv(t, time.Second)

	env.service.Dispatch(context.Background(), nudgeRequest("r1"))
	env.service.Dispatch(context.Background(), nudgeRequest("r1")) // duplicate

	records := env.outcomes.saved()
	if len(records) != 1 {
		t.Fatalf("recorded %d outcomes, want 1 (duplicates are not re-recorded)", len(records))
	}
	if records[0].RequestID != "r1" || records[0].Status != domain.StatusAccepted {
		t.Errorf("recorded outcome = %+v, want accepted r1", records[0])
	}
	if records[0].CompletedAt.IsZero() {
		t.Error("recorded outcome has zero completion time")
	}
}

func TestDispatchGeneratesRequestID(t *testing.T) {
	env := newTestEnv(t, time.Second)

	outcome := env.service.Dispatch(context.Background(), nudgeRequest(""))
	if outcome.Status != domain.StatusAccepted {
		t.Fatalf("Status = %s, want accepted", outcome.Status)
	}
	if outcome.RequestID == "" {
		t.Fatal("outcome carries no request ID, want a generated one")
	}
}

func TestDispatchTimeoutErrorFromHandlerWrapped(t *testing.T) {
	env := newTestEnv(t, 50*time.Millisecond)
	env.handlers[domain.KindNudge].execute = func(ctx context.Context, _ domain.Command) (domain.HandlerResult, error) {
		<-ctx.Done()
		// Handlers that wrap the context error still report as timeouts.
		return domain.HandlerResult{}, errors.New("gateway call aborted: " + ctx.Err().Error())
	}

	outcome := env.service.Dispatch(context.Background(), nudgeRequest("r1"))
	if outcome.Status != domain.StatusFailed {
		t.Fatalf("Status = %s, want failed", outcome.Status)
	}
}
