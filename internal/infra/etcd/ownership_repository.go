// internal/infra/etcd/ownership_repository.go
package etcd

import (
	"context"
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
	OwnershipDir = "/rtm/ownership/"
)

type OwnershipRepository struct {
	client *clientv3.Client
	logger *slog.Logger
	tracer trace.Tracer
}

// NewEtcdOwnershipRepository creates an ownership store backed by etcd. One key
// per resource, value is the current owner's identity.
func NewEtcdOwnershipRepository(client *clientv3.Client, logger *slog.Logger) *OwnershipRepository {
	return &OwnershipRepository{
		client: client,
		logger: logger,
		tracer: otel.Tracer("rtm-dispatcher-etcd-ownership-repo"),
	}
}

// Owner returns the identity currently holding the resource.
func (r *OwnershipRepository) Owner(ctx context.Context, resourceID string) (string, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.Owner")
	defer span.End()
	span.SetAttributes(attribute.String("resource.id", resourceID))

	key := path.Join(OwnershipDir, resourceID)
	resp, err := r.client.Get(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get owner from etcd")
		return "", fmt.Errorf("failed to get owner of %s from etcd: %w", resourceID, err)
	}
	if len(resp.Kvs) == 0 {
		return "", domain.ErrResourceNotFound
	}
	return string(resp.Kvs[0].Value), nil
}

// Transfer hands the resource from fromOwner to toOwner in a single etcd
// transaction: the put commits only if the stored owner still equals fromOwner.
// This is the compare-and-swap the reassign precondition requires; a read
// followed by a put would let two stale requests both succeed.
func (r *OwnershipRepository) Transfer(ctx context.Context, resourceID, fromOwner, toOwner string) error {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.TransferOwnership")
	defer span.End()
	span.SetAttributes(
		attribute.String("resource.id", resourceID),
		attribute.String("owner.from", fromOwner),
		attribute.String("owner.to", toOwner),
	)

	key := path.Join(OwnershipDir, resourceID)
	resp, err := r.client.Txn(ctx).
		If(clientv3.Compare(clientv3.Value(key), "=", fromOwner)).
		Then(clientv3.OpPut(key, toOwner)).
		Else(clientv3.OpGet(key)).
		Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ownership transfer transaction failed")
		return fmt.Errorf("failed to transfer ownership of %s: %w", resourceID, err)
	}

	if !resp.Succeeded {
		// The Else branch tells a missing resource apart from a stale owner.
		getResp := resp.Responses[0].GetResponseRange()
		if getResp == nil || len(getResp.Kvs) == 0 {
			return domain.ErrResourceNotFound
		}
		span.SetStatus(codes.Error, "stale owner")
		r.logger.Warn("ownership transfer conflict",
			"resource_id", resourceID, "expected_owner", fromOwner,
			"actual_owner", string(getResp.Kvs[0].Value))
		return domain.ErrOwnershipConflict
	}
	return nil
}

// Assign sets the owner of a resource unconditionally. Not part of the
// reassignment path; used to seed ownership state.
func (r *OwnershipRepository) Assign(ctx context.Context, resourceID, owner string) error {
	key := path.Join(OwnershipDir, resourceID)
	if _, err := r.client.Put(ctx, key, owner); err != nil {
		return fmt.Errorf("failed to assign owner of %s: %w", resourceID, err)
	}
	return nil
}
