// internal/domain/outcome_repository.go
package domain

import (
	"context"
	"time"
)

// OutcomeRepository defines the interface for persisting and retrieving dispatch
// outcome records.
type OutcomeRepository interface {
	// Save persists a single outcome record.
	Save(ctx context.Context, record *OutcomeRecord) error
	// Get retrieves the outcome for a request ID, or ErrOutcomeNotFound.
	Get(ctx context.Context, requestID string) (*OutcomeRecord, error)
	// ListByKind retrieves historical outcomes for one operation kind, newest
	// first, with pagination.
	ListByKind(ctx context.Context, kind OperationKind, page, pageSize int) ([]*OutcomeRecord, error)
	// PruneOlderThan deletes records completed before cutoff and reports how
	// many went. The sweeper calls this on its schedule.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
