// Package attemptlog keeps the bounded history of blocked submissions for a site.
package attemptlog

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haukened/tempmail-gate/internal/gate/common/clock"
	logpkg "github.com/haukened/tempmail-gate/internal/gate/common/log"
	"github.com/haukened/tempmail-gate/internal/gate/domain"
	"github.com/haukened/tempmail-gate/internal/gate/repos/options"
)

// Options configures a Log.
type Options struct {
	Store  options.Store // per-site namespace
	Clock  clock.Clock
	Logger logpkg.Logger
	// Max overrides domain.MaxLogEntries; used by tests.
	Max int
}

// Log is the attempt log of one site, stored oldest to newest under a
// single option key.
type Log struct {
	store  options.Store
	clock  clock.Clock
	logger logpkg.Logger
	max    int
	newID  func() string

	mu sync.Mutex
}

// New builds a Log.
func New(opts Options) *Log {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNoopLogger()
	}
	if opts.Max <= 0 {
		opts.Max = domain.MaxLogEntries
	}
	return &Log{
		store:  opts.Store,
		clock:  opts.Clock,
		logger: opts.Logger,
		max:    opts.Max,
		newID:  uuid.NewString,
	}
}

// Record appends an entry stamped with the current time. The cap is enforced
// in the same write: when the log overflows, the oldest entries are dropped.
func (l *Log) Record(ctx context.Context, email, source, ip string) (domain.LogEntry, error) {
	entry := domain.LogEntry{
		ID:        l.newID(),
		Timestamp: l.clock.Now().UTC(),
		IP:        ip,
		Email:     strings.TrimSpace(email),
		Source:    strings.TrimSpace(source),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	entries, err := l.load(ctx)
	if err != nil {
		return domain.LogEntry{}, err
	}
	entries = append(entries, entry)
	if over := len(entries) - l.max; over > 0 {
		entries = entries[over:]
	}
	if err := options.SetValue(ctx, l.store, domain.KeyBlockedLog, entries); err != nil {
		return domain.LogEntry{}, err
	}
	return entry, nil
}

// ListRecent returns up to limit entries, newest first. limit <= 0 returns all.
func (l *Log) ListRecent(ctx context.Context, limit int) ([]domain.LogEntry, error) {
	entries, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	out := make([]domain.LogEntry, 0, limit)
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

// Len returns the number of stored entries.
func (l *Log) Len(ctx context.Context) (int, error) {
	entries, err := l.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// PruneOlderThan removes entries timestamped before now - days. days <= 0
// disables retention and leaves the log untouched.
func (l *Log) PruneOlderThan(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := l.clock.Now().Add(-time.Duration(days) * 24 * time.Hour)

	l.mu.Lock()
	defer l.mu.Unlock()
	entries, err := l.load(ctx)
	if err != nil {
		return 0, err
	}
	kept := make([]domain.LogEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Timestamp.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	removed := len(entries) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := options.SetValue(ctx, l.store, domain.KeyBlockedLog, kept); err != nil {
		return 0, err
	}
	l.logger.Info(map[string]any{"namespace": l.store.Namespace(), "removed": removed, "days": days}, "attempt log pruned")
	return removed, nil
}

func (l *Log) load(ctx context.Context) ([]domain.LogEntry, error) {
	entries, err := options.GetValue(ctx, l.store, domain.KeyBlockedLog, []domain.LogEntry{})
	if errors.Is(err, options.ErrDecode) {
		l.logger.Warn(map[string]any{"namespace": l.store.Namespace(), "error": err}, "attempt log unreadable, starting fresh")
		return []domain.LogEntry{}, nil
	}
	return entries, err
}

// ClientIP resolves the best-effort caller address: the Client-IP header,
// then the first X-Forwarded-For hop, then the connection address, then "".
// Client headers are trusted; this is not a security boundary.
func ClientIP(h http.Header, remoteAddr string) string {
	if v := strings.TrimSpace(h.Get("Client-Ip")); v != "" {
		return v
	}
	if v := h.Get("X-Forwarded-For"); v != "" {
		first, _, _ := strings.Cut(v, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if remoteAddr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
