// internal/domain/dispatcher.go
package domain

import "context"

// Dispatcher defines the interface for routing operation requests to handlers.
// Every request produces exactly one DispatchOutcome; errors are folded into the
// outcome's status and detail rather than returned separately.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *OperationRequest) *DispatchOutcome
}

// HandlerResult carries a handler's human-readable report of what it did.
type HandlerResult struct {
	Detail string
}

// Handler executes the side effect for one operation kind. Execute receives a
// command already decoded and checked by the payload codec; any error it returns
// is a domain precondition failure or downstream fault, never a shape problem.
type Handler interface {
	Kind() OperationKind
	Execute(ctx context.Context, cmd Command) (HandlerResult, error)
}
