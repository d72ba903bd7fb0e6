package bolt

import (
	"context"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/tempmail-gate/internal/gate/repos/options"
)

// Backend implements options.Backend on a single bbolt file. Each namespace
// is one bucket, created lazily on first write.
type Backend struct {
	db *bbolt.DB
}

// openFn is swapped in tests to exercise open failures.
var openFn = bbolt.Open

// New opens (or creates) a Bolt database at path.
func New(path string) (*Backend, error) {
	db, err := openFn(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open option store %s: %w", path, err)
	}
	return &Backend{db: db}, nil
}

func (b *Backend) Site(id string) options.Store {
	return &store{db: b.db, bucket: []byte(options.SiteNamespace(id))}
}

func (b *Backend) Network() options.Store {
	return &store{db: b.db, bucket: []byte(options.NetworkNamespace)}
}

func (b *Backend) Close() error { return b.db.Close() }

// Namespaces lists every bucket currently present, in key order.
func (b *Backend) Namespaces() ([]string, error) {
	var out []string
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			out = append(out, string(name))
			return nil
		})
	})
	return out, err
}

type store struct {
	db     *bbolt.DB
	bucket []byte
}

func (s *store) Namespace() string { return string(s.bucket) }

func (s *store) Get(_ context.Context, key string) ([]byte, bool, error) {
	var (
		out   []byte
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		v := b.Get([]byte(key))
		if v == nil {
			return nil
		}
		// bbolt values are only valid for the life of the transaction.
		out = make([]byte, len(v))
		copy(out, v)
		found = true
		return nil
	})
	return out, found, err
}

func (s *store) Set(_ context.Context, key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), value)
	})
}

var _ options.Backend = (*Backend)(nil)
