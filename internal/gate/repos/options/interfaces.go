// Package options is the persisted key/value layer every site entity lives in.
// Values are stored as raw JSON documents so any record written by an import
// is kept verbatim; typed access happens in GetValue/SetValue.
package options

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDecode is returned when a stored value cannot be decoded into the
// requested type. The caller's default is returned alongside it.
var ErrDecode = errors.New("stored option has unexpected type")

// Store is one key/value namespace (a single site, or the network-shared
// namespace). Get reports ok=false for missing keys.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Namespace() string
}

// Backend owns the physical storage and hands out namespaces.
type Backend interface {
	// Site returns the namespace private to one site.
	Site(id string) Store
	// Network returns the namespace shared by every site of an installation.
	Network() Store
	Close() error
}

// SiteNamespace and NetworkNamespace are the canonical namespace names used
// by every backend.
func SiteNamespace(id string) string { return "site:" + id }

const NetworkNamespace = "network"

// GetValue decodes key into T, returning def when the key is absent.
// A value that does not decode into T yields def and an ErrDecode error.
func GetValue[T any](ctx context.Context, s Store, key string, def T) (T, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return def, fmt.Errorf("get %s/%s: %w", s.Namespace(), key, err)
	}
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return def, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return def, fmt.Errorf("%w: %s/%s: %v", ErrDecode, s.Namespace(), key, err)
	}
	return v, nil
}

// SetValue encodes v as JSON and writes it under key.
func SetValue[T any](ctx context.Context, s Store, key string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", s.Namespace(), key, err)
	}
	if err := s.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("set %s/%s: %w", s.Namespace(), key, err)
	}
	return nil
}
