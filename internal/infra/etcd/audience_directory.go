// internal/infra/etcd/audience_directory.go
package etcd

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const (
	// AudiencePrefix is the etcd prefix where audience memberships live, one key
	// per member: /rtm/audience/{filter}/{memberID}.
	AudiencePrefix = "/rtm/audience/"
)

// AudienceDirectory resolves audience filters against a locally cached snapshot
// of the membership keys in etcd. The cache follows etcd through a watch, so
// Resolve never blocks on the network.
type AudienceDirectory struct {
	client  *clientv3.Client
	logger  *slog.Logger
	members map[string]map[string]struct{} // filter -> set of member IDs
	mu      sync.RWMutex
}

// NewAudienceDirectory creates a directory caching audience membership.
func NewAudienceDirectory(client *clientv3.Client, logger *slog.Logger) *AudienceDirectory {
	return &AudienceDirectory{
		client:  client,
		logger:  logger.With("component", "audience-directory"),
		members: make(map[string]map[string]struct{}),
	}
}

// WatchMembers loads the current membership and then follows etcd for changes.
// This is a blocking call and should be run in a goroutine.
func (d *AudienceDirectory) WatchMembers(ctx context.Context) {
	d.logger.Info("starting to watch audience membership")

	if err := d.loadInitialMembers(ctx); err != nil {
		d.logger.Error("failed to perform initial audience load", "error", err)
	}

	watchChan := d.client.Watch(ctx, AudiencePrefix, clientv3.WithPrefix())

	for watchResp := range watchChan {
		for _, event := range watchResp.Events {
			filter, memberID, ok := splitAudienceKey(string(event.Kv.Key))
			if !ok {
				d.logger.Warn("malformed audience key", "key", string(event.Kv.Key))
				continue
			}

			d.mu.Lock()
			switch event.Type {
			case clientv3.EventTypePut:
				if _, ok := d.members[filter]; !ok {
					d.members[filter] = make(map[string]struct{})
				}
				if _, ok := d.members[filter][memberID]; !ok {
					d.logger.Info("audience member added", "filter", filter, "member_id", memberID)
				}
				d.members[filter][memberID] = struct{}{}
			case clientv3.EventTypeDelete:
				d.logger.Info("audience member removed", "filter", filter, "member_id", memberID)
				delete(d.members[filter], memberID)
				if len(d.members[filter]) == 0 {
					delete(d.members, filter)
				}
			}
			d.mu.Unlock()
		}
	}
	d.logger.Info("stopped watching audience membership")
}

func (d *AudienceDirectory) loadInitialMembers(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := d.client.Get(ctx, AudiencePrefix, clientv3.WithPrefix())
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, kv := range resp.Kvs {
		filter, memberID, ok := splitAudienceKey(string(kv.Key))
		if !ok {
			continue
		}
		if _, ok := d.members[filter]; !ok {
			d.members[filter] = make(map[string]struct{})
		}
		d.members[filter][memberID] = struct{}{}
	}
	d.logger.Info("loaded audience membership", "filters", len(d.members))
	return nil
}

// Resolve returns a snapshot of the member IDs currently matching the filter.
func (d *AudienceDirectory) Resolve(_ context.Context, filter string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	set := d.members[filter]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// AddMember registers a member under a filter. The running watch picks the
// change up on every node; the local cache is not updated directly.
func (d *AudienceDirectory) AddMember(ctx context.Context, filter, memberID string) error {
	_, err := d.client.Put(ctx, AudiencePrefix+filter+"/"+memberID, "1")
	return err
}

// RemoveMember drops a member from a filter.
func (d *AudienceDirectory) RemoveMember(ctx context.Context, filter, memberID string) error {
	_, err := d.client.Delete(ctx, AudiencePrefix+filter+"/"+memberID)
	return err
}

// splitAudienceKey parses /rtm/audience/{filter}/{memberID}.
func splitAudienceKey(key string) (filter, memberID string, ok bool) {
	rest := strings.TrimPrefix(key, AudiencePrefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
