package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/haukened/tempmail-gate/internal/gate/repos/options"
)

const opTimeout = 5 * time.Second

// Backend implements options.Backend with one redis hash per namespace:
// "<prefix>:<namespace>" -> {key: json}.
type Backend struct {
	client *goredis.Client
	prefix string
}

// New wraps an existing client. prefix keeps several installations apart on
// a shared redis; it defaults to "tempmail-gate".
func New(client *goredis.Client, prefix string) *Backend {
	if prefix == "" {
		prefix = "tempmail-gate"
	}
	return &Backend{client: client, prefix: prefix}
}

// Ping verifies connectivity.
func (b *Backend) Ping(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return b.client.Ping(opCtx).Err()
}

func (b *Backend) Site(id string) options.Store {
	return b.store(options.SiteNamespace(id))
}

func (b *Backend) Network() options.Store {
	return b.store(options.NetworkNamespace)
}

func (b *Backend) Close() error { return b.client.Close() }

func (b *Backend) store(ns string) *store {
	return &store{client: b.client, ns: ns, hash: b.prefix + ":" + ns}
}

type store struct {
	client *goredis.Client
	ns     string
	hash   string
}

func (s *store) Namespace() string { return s.ns }

func (s *store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	v, err := s.client.HGet(opCtx, s.hash, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

func (s *store) Set(ctx context.Context, key string, value []byte) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return s.client.HSet(opCtx, s.hash, key, value).Err()
}

var _ options.Backend = (*Backend)(nil)
