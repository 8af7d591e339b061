package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/legit-games/dataset-iam/permission"
	"github.com/legit-games/dataset-iam/security"
	valkey "github.com/valkey-io/valkey-go"
)

// ValkeyGrantsCache stores dataset grant snapshots in Valkey (Redis-compatible)
// so every process sees invalidations.
type ValkeyGrantsCache struct {
	client valkey.Client
	prefix string
}

var _ security.GrantsCache = (*ValkeyGrantsCache)(nil)

// NewValkeyGrantsCache connects to addr, e.g. "127.0.0.1:6379"; prefix
// namespaces keys.
func NewValkeyGrantsCache(addr string, prefix string) (*ValkeyGrantsCache, error) {
	cli, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "datasec:"
	}
	return &ValkeyGrantsCache{client: cli, prefix: prefix}, nil
}

func (c *ValkeyGrantsCache) key(datasetID string) string { return c.prefix + "grants:" + datasetID }

func (c *ValkeyGrantsCache) Get(ctx context.Context, datasetID string) (permission.Grants, bool, error) {
	raw, err := c.client.Do(ctx, c.client.B().Get().Key(c.key(datasetID)).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	g := permission.Grants{}
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		return nil, false, err
	}
	return g.Clone(), true, nil
}

func (c *ValkeyGrantsCache) Set(ctx context.Context, datasetID string, g permission.Grants, ttl time.Duration) error {
	b, err := json.Marshal(g.Clone())
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return c.client.Do(ctx, c.client.B().Set().Key(c.key(datasetID)).Value(string(b)).Ex(ttl).Build()).Error()
}

func (c *ValkeyGrantsCache) Invalidate(ctx context.Context, datasetID string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(c.key(datasetID)).Build()).Error()
}

func (c *ValkeyGrantsCache) Close() { c.client.Close() }
