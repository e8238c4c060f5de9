// internal/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownOperationKind is returned when a request names an operation kind the
// dispatcher does not recognize.
var ErrUnknownOperationKind = errors.New("unknown operation kind")

// ErrUnregisteredKind is returned by the registry when a recognized kind has no
// primary handler. It is a startup-time invariant violation and must never be
// visible at request time.
var ErrUnregisteredKind = errors.New("no handler registered for operation kind")

// ErrSurveyNotFound is returned when the surveys module has no survey for an ID.
var ErrSurveyNotFound = errors.New("survey not found")

// ErrCaseNotFound is returned when an escalation targets a case that does not exist.
var ErrCaseNotFound = errors.New("case not found")

// ErrCaseTerminal is returned when a case is already at terminal severity.
var ErrCaseTerminal = errors.New("case already at terminal severity")

// ErrResourceNotFound is returned when a reassignment targets an unknown resource.
var ErrResourceNotFound = errors.New("resource not found")

// ErrOwnershipConflict is returned when the resource's current owner does not match
// the fromOwner the request was formed against.
var ErrOwnershipConflict = errors.New("ownership changed since request was formed")

// ErrQueueFull is returned when the delivery queue cannot accept another message
// without blocking.
var ErrQueueFull = errors.New("delivery queue full")

// ErrOutcomeNotFound is a sentinel error returned when no outcome has been
// recorded for a request ID.
var ErrOutcomeNotFound = errors.New("outcome not found")

// DecodeError reports a payload that could not be decoded into a command. Field
// names the offending payload key.
type DecodeError struct {
	Kind   OperationKind
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode %s payload: field %q %s", e.Kind, e.Field, e.Reason)
}

// AsDecodeError unwraps err into a *DecodeError if there is one in its chain.
func AsDecodeError(err error) (*DecodeError, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
