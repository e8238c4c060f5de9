// internal/infra/etcd/outcome_repository.go
package etcd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"rtm-dispatcher/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	OutcomeHistoryDir = "/rtm/history/"
)

type etcdOutcomeRepository struct {
	client *clientv3.Client
	logger *slog.Logger
	tracer trace.Tracer
}

// NewEtcdOutcomeRepository creates a repository for dispatch outcome records
// backed by etcd. Keys are structured as /rtm/history/{kind}/{requestID} so a
// kind's history is one prefix scan.
func NewEtcdOutcomeRepository(client *clientv3.Client, logger *slog.Logger) domain.OutcomeRepository {
	return &etcdOutcomeRepository{
		client: client,
		logger: logger,
		tracer: otel.Tracer("rtm-dispatcher-etcd-outcome-repo"),
	}
}

// Save persists a single outcome record to etcd.
func (r *etcdOutcomeRepository) Save(ctx context.Context, record *domain.OutcomeRecord) error {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.SaveOutcome")
	defer span.End()

	if err := record.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid outcome record")
		return err
	}

	recordJSON, err := json.Marshal(record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal outcome record")
		return fmt.Errorf("failed to marshal outcome record %s to JSON: %w", record.RequestID, err)
	}

	key := path.Join(OutcomeHistoryDir, string(record.Kind), record.RequestID)
	span.SetAttributes(
		attribute.String("rtm.request_id", record.RequestID),
		attribute.String("rtm.operation", string(record.Kind)),
		attribute.String("etcd.key", key),
	)

	if _, err := r.client.Put(ctx, key, string(recordJSON)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to put outcome record to etcd")
		return fmt.Errorf("failed to save outcome record %s to etcd: %w", record.RequestID, err)
	}
	return nil
}

// Get retrieves the recorded outcome for a request ID. The kind is not part of
// the lookup, so each kind's subtree is probed with a point get; with five kinds
// that stays cheap.
func (r *etcdOutcomeRepository) Get(ctx context.Context, requestID string) (*domain.OutcomeRecord, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.GetOutcome")
	defer span.End()
	span.SetAttributes(attribute.String("rtm.request_id", requestID))

	for _, kind := range domain.Kinds() {
		key := path.Join(OutcomeHistoryDir, string(kind), requestID)
		resp, err := r.client.Get(ctx, key)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to get outcome record from etcd")
			return nil, fmt.Errorf("failed to get outcome record %s from etcd: %w", requestID, err)
		}
		if len(resp.Kvs) == 0 {
			continue
		}
		var record domain.OutcomeRecord
		if err := json.Unmarshal(resp.Kvs[0].Value, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal outcome record %s from JSON: %w", requestID, err)
		}
		return &record, nil
	}
	return nil, domain.ErrOutcomeNotFound
}

// ListByKind retrieves historical outcome records for one operation kind, with
// pagination. Records are returned newest first.
func (r *etcdOutcomeRepository) ListByKind(ctx context.Context, kind domain.OperationKind, page, pageSize int) ([]*domain.OutcomeRecord, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.ListOutcomes")
	defer span.End()
	span.SetAttributes(
		attribute.String("rtm.operation", string(kind)),
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	)

	if !kind.Valid() {
		return nil, errors.New("cannot list outcomes for unknown operation kind")
	}

	prefix := path.Join(OutcomeHistoryDir, string(kind)) + "/"
	resp, err := r.client.Get(ctx, prefix,
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByCreateRevision, clientv3.SortDescend), // Newest first
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list outcome records from etcd")
		return nil, fmt.Errorf("failed to list %s outcomes from etcd: %w", kind, err)
	}

	records := make([]*domain.OutcomeRecord, 0, pageSize)
	// Manual pagination; etcd's Limit is key-count based, not index-based. Good
	// enough until history volume calls for cursor pagination.
	startIdx := (page - 1) * pageSize
	endIdx := startIdx + pageSize

	for i, kv := range resp.Kvs {
		if i < startIdx {
			continue
		}
		if i >= endIdx {
			break
		}
		var record domain.OutcomeRecord
		if err := json.Unmarshal(kv.Value, &record); err != nil {
			r.logger.Warn("failed to unmarshal outcome record from etcd", "key", string(kv.Key), "error", err)
			continue
		}
		records = append(records, &record)
	}
	span.SetAttributes(attribute.Int("records_returned", len(records)))
	return records, nil
}

// PruneOlderThan deletes outcome records completed before cutoff. History is the
// only unbounded state this service writes, so the sweeper trims it on schedule.
func (r *etcdOutcomeRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.PruneOutcomes")
	defer span.End()

	resp, err := r.client.Get(ctx, OutcomeHistoryDir, clientv3.WithPrefix())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to scan outcome history")
		return 0, fmt.Errorf("failed to scan outcome history from etcd: %w", err)
	}

	pruned := 0
	for _, kv := range resp.Kvs {
		var record domain.OutcomeRecord
		if err := json.Unmarshal(kv.Value, &record); err != nil {
			r.logger.Warn("failed to unmarshal outcome record during prune", "key", string(kv.Key), "error", err)
			continue
		}
		if record.CompletedAt.Before(cutoff) {
			if _, err := r.client.Delete(ctx, string(kv.Key)); err != nil {
				r.logger.Warn("failed to delete expired outcome record", "key", string(kv.Key), "error", err)
				continue
			}
			pruned++
		}
	}
	span.SetAttributes(attribute.Int("records_pruned", pruned))
	return pruned, nil
}
