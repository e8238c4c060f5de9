package registry

import (
	"context"
	"errors"
	"testing"

	"rtm-dispatcher/internal/domain"
)

type stubHandler struct {
	kind domain.OperationKind
}

func (h stubHandler) Kind() domain.OperationKind { return h.kind }

func (h stubHandler) Execute(context.Context, domain.Command) (domain.HandlerResult, error) {
	return domain.HandlerResult{}, nil
}

func allHandlers() []domain.Handler {
	hs := make([]domain.Handler, 0, len(domain.Kinds()))
	for _, kind := range domain.Kinds() {
		hs = append(hs, stubHandler{kind: kind})
	}
	return hs
}

func TestNewResolvesEveryKind(t *testing.T) {
	reg, err := New(allHandlers()...)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	for _, kind := range domain.Kinds() {
		h, err := reg.Resolve(kind)
		if err != nil {
			t.Fatalf("Resolve(%s) returned error: %v", kind, err)
		}
		if h.Kind() != kind {
			t.Errorf("Resolve(%s) returned handler for %s", kind, h.Kind())
		}
	}
}

func TestNewFailsOnMissingKind(t *testing.T) {
	hs := allHandlers()
	_, err := New(hs[:len(hs)-1]...)
	if !errors.Is(err, domain.ErrUnregisteredKind) {
		t.Fatalf("New error = %v, want ErrUnregisteredKind", err)
	}
}

func TestNewFailsOnDuplicateKind(t *testing.T) {
	hs := append(allHandlers(), stubHandler{kind: domain.KindNudge})
	if _, err := New(hs...); err == nil {
		t.Fatal("New succeeded with duplicate handler, want error")
	}
}

func TestNewFailsOnUnrecognizedKind(t *testing.T) {
	hs := append(allHandlers(), stubHandler{kind: "TELEPORT"})
	if _, err := New(hs...); err == nil {
		t.Fatal("New succeeded with unrecognized kind, want error")
	}
}
