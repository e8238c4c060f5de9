package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rtm-dispatcher/internal/domain"
)

type stubDispatcher struct {
	last    *domain.OperationRequest
	outcome *domain.DispatchOutcome
}

func (d *stubDispatcher) Dispatch(_ context.Context, req *domain.OperationRequest) *domain.DispatchOutcome {
	d.last = req
	if d.outcome != nil {
		return d.outcome
	}
	return &domain.DispatchOutcome{
		RequestID: req.RequestID,
		Kind:      req.Kind,
		Status:    domain.StatusAccepted,
		Detail:    "ok",
	}
}

type stubOutcomes struct {
	records map[string]*domain.OutcomeRecord
	listed  []*domain.OutcomeRecord
}

func (r *stubOutcomes) Save(context.Context, *domain.OutcomeRecord) error { return nil }

func (r *stubOutcomes) Get(_ context.Context, requestID string) (*domain.OutcomeRecord, error) {
	record, ok := r.records[requestID]
	if !ok {
		return nil, domain.ErrOutcomeNotFound
	}
	return record, nil
}

func (r *stubOutcomes) ListByKind(context.Context, domain.OperationKind, int, int) ([]*domain.OutcomeRecord, error) {
	return r.listed, nil
}

func (r *stubOutcomes) PruneOlderThan(context.Context, time.Time) (int, error) { return 0, nil }

func newTestMux(dispatcher *stubDispatcher, outcomes *stubOutcomes) *http.ServeMux {
	mux := http.NewServeMux()
	NewOperationHandler(dispatcher, outcomes, slog.Default()).RegisterRoutes(mux)
	return mux
}

func TestSubmitOperation(t *testing.T) {
	dispatcher := &stubDispatcher{}
	mux := newTestMux(dispatcher, &stubOutcomes{})

	body := `{"operation":"NUDGE","payload":{"targetId":"u1","reminderText":"hi"},"request_id":"r1"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/operations", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var outcome domain.DispatchOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("response is not a dispatch outcome: %v", err)
	}
	if outcome.Status != domain.StatusAccepted || outcome.RequestID != "r1" {
		t.Errorf("outcome = %+v, want accepted r1", outcome)
	}
	if dispatcher.last == nil || dispatcher.last.Kind != domain.KindNudge {
		t.Errorf("dispatched request = %+v, want NUDGE", dispatcher.last)
	}
}

func TestSubmitOperationUnknownKindEnvelope(t *testing.T) {
	mux := newTestMux(&stubDispatcher{}, &stubOutcomes{})

	body := `{"operation":"TELEPORT","payload":{}}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/operations", strings.NewReader(body)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Operation") {
		t.Errorf("body = %q, want the failing field named", rec.Body.String())
	}
}

func TestSubmitOperationMissingPayload(t *testing.T) {
	mux := newTestMux(&stubDispatcher{}, &stubOutcomes{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/operations", strings.NewReader(`{"operation":"NUDGE"}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSubmitOperationGeneratesRequestID(t *testing.T) {
	dispatcher := &stubDispatcher{}
	mux := newTestMux(dispatcher, &stubOutcomes{})

	body := `{"operation":"NUDGE","payload":{"targetId":"u1","reminderText":"hi"}}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/operations", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if dispatcher.last.RequestID == "" {
		t.Error("request reached the dispatcher without a request ID")
	}
}

func TestGetOutcome(t *testing.T) {
	outcomes := &stubOutcomes{records: map[string]*domain.OutcomeRecord{
		"r1": {RequestID: "r1", Kind: domain.KindNudge, Status: domain.StatusAccepted, CompletedAt: time.Now()},
	}}
	mux := newTestMux(&stubDispatcher{}, outcomes)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/operations/r1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/operations/ghost", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status for unknown ID = %d, want 404", rec.Code)
	}
}

func TestListOutcomesRequiresValidKind(t *testing.T) {
	outcomes := &stubOutcomes{listed: []*domain.OutcomeRecord{
		{RequestID: "r1", Kind: domain.KindBroadcast, Status: domain.StatusAccepted},
	}}
	mux := newTestMux(&stubDispatcher{}, outcomes)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/operations?kind=BROADCAST", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var listed []*domain.OutcomeRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil || len(listed) != 1 {
		t.Fatalf("listed = %v (err %v), want one record", listed, err)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/operations?kind=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status for bad kind = %d, want 400", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux := newTestMux(&stubDispatcher{}, &stubOutcomes{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/operations", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
