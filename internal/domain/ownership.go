// internal/domain/ownership.go
package domain

import "context"

// OwnershipRepository tracks which identity currently holds each resource.
//
// Transfer is the one compare-and-swap in the core: it must atomically verify that
// fromOwner still holds the resource and, only then, hand it to toOwner. A stale
// fromOwner returns ErrOwnershipConflict; an unknown resource returns
// ErrResourceNotFound. A read-then-write pair is not an acceptable implementation.
type OwnershipRepository interface {
	Owner(ctx context.Context, resourceID string) (string, error)
	Transfer(ctx context.Context, resourceID, fromOwner, toOwner string) error
}
