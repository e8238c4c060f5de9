// internal/registry/registry.go
package registry

import (
	"fmt"

	"rtm-dispatcher/internal/domain"
)

// Registry maps each operation kind to its primary handler. The mapping is built
// once at process start and never mutated afterwards; New fails if any recognized
// kind is missing a handler or has more than one, so a bad wiring aborts
// initialization instead of surfacing at request time.
type Registry struct {
	handlers map[domain.OperationKind]domain.Handler
}

// New builds a registry from the given handlers and verifies the one-handler-per-
// kind invariant against every recognized operation kind.
func New(handlers ...domain.Handler) (*Registry, error) {
	m := make(map[domain.OperationKind]domain.Handler, len(handlers))
	for _, h := range handlers {
		kind := h.Kind()
		if !kind.Valid() {
			return nil, fmt.Errorf("handler registered for unrecognized kind %q", string(kind))
		}
		if _, dup := m[kind]; dup {
			return nil, fmt.Errorf("duplicate handler for operation kind %s", kind)
		}
		m[kind] = h
	}

	for _, kind := range domain.Kinds() {
		if _, ok := m[kind]; !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnregisteredKind, kind)
		}
	}

	return &Registry{handlers: m}, nil
}

// Resolve returns the primary handler for kind.
func (r *Registry) Resolve(kind domain.OperationKind) (domain.Handler, error) {
	h, ok := r.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnregisteredKind, kind)
	}
	return h, nil
}
