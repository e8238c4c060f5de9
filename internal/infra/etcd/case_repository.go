// internal/infra/etcd/case_repository.go
package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"

	"rtm-dispatcher/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	CaseDir = "/rtm/cases/"
)

type etcdCaseRepository struct {
	client *clientv3.Client
	logger *slog.Logger
	tracer trace.Tracer
}

// NewEtcdCaseRepository creates a repository for escalatable cases backed by etcd.
func NewEtcdCaseRepository(client *clientv3.Client, logger *slog.Logger) domain.CaseRepository {
	return &etcdCaseRepository{
		client: client,
		logger: logger,
		tracer: otel.Tracer("rtm-dispatcher-etcd-case-repo"),
	}
}

// Get retrieves a case from etcd.
func (r *etcdCaseRepository) Get(ctx context.Context, id string) (*domain.Case, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.GetCase")
	defer span.End()
	span.SetAttributes(attribute.String("case.id", id))

	key := path.Join(CaseDir, id)
	resp, err := r.client.Get(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get case from etcd")
		return nil, fmt.Errorf("failed to get case %s from etcd: %w", id, err)
	}

	if len(resp.Kvs) == 0 {
		return nil, domain.ErrCaseNotFound
	}

	var c domain.Case
	if err := json.Unmarshal(resp.Kvs[0].Value, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal case %s from JSON: %w", id, err)
	}
	return &c, nil
}

// Save persists the case to etcd.
func (r *etcdCaseRepository) Save(ctx context.Context, c *domain.Case) error {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.SaveCase")
	defer span.End()

	if err := c.Validate(); err != nil {
		return err
	}

	caseJSON, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal case to JSON: %w", err)
	}

	key := path.Join(CaseDir, c.ID)
	span.SetAttributes(
		attribute.String("case.id", c.ID),
		attribute.String("etcd.key", key),
	)

	_, err = r.client.Put(ctx, key, string(caseJSON))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to put case to etcd")
		return fmt.Errorf("failed to save case %s to etcd: %w", c.ID, err)
	}
	return nil
}
