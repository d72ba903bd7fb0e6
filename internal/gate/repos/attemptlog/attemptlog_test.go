package attemptlog

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/tempmail-gate/internal/gate/common/clock"
	"github.com/haukened/tempmail-gate/internal/gate/domain"
	"github.com/haukened/tempmail-gate/internal/gate/repos/options"
)

func newTestLog(t *testing.T, max int) (*Log, options.Store, *clock.MockClock) {
	t.Helper()
	store := options.NewMemory().Site("test")
	clk := &clock.MockClock{CurrentTime: time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)}
	l := New(Options{Store: store, Clock: clk, Max: max})
	return l, store, clk
}

func TestRecord_AppendsAndListsNewestFirst(t *testing.T) {
	ctx := context.Background()
	l, _, clk := newTestLog(t, 0)

	e1, err := l.Record(ctx, " a@mailinator.com ", "Registration", "10.0.0.1")
	require.NoError(t, err)
	clk.Advance(time.Minute)
	_, err = l.Record(ctx, "b@yopmail.com", "WooCommerce", "")
	require.NoError(t, err)

	assert.NotEmpty(t, e1.ID)
	assert.Equal(t, "a@mailinator.com", e1.Email)
	assert.Equal(t, "10.0.0.1", e1.IP)

	got, err := l.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b@yopmail.com", got[0].Email)
	assert.Equal(t, "a@mailinator.com", got[1].Email)

	got, err = l.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b@yopmail.com", got[0].Email)
}

func TestRecord_EnforcesCap(t *testing.T) {
	ctx := context.Background()
	l, store, clk := newTestLog(t, 0)

	total := domain.MaxLogEntries + 25
	for i := 0; i < total; i++ {
		_, err := l.Record(ctx, fmt.Sprintf("u%d@mailinator.com", i), "Registration", "")
		require.NoError(t, err)
		clk.Advance(time.Second)
	}

	n, err := l.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxLogEntries, n)

	stored, err := options.GetValue(ctx, store, domain.KeyBlockedLog, []domain.LogEntry{})
	require.NoError(t, err)
	assert.Equal(t, "u25@mailinator.com", stored[0].Email, "oldest survivors start after the evicted ones")
	assert.Equal(t, fmt.Sprintf("u%d@mailinator.com", total-1), stored[len(stored)-1].Email)

	recent, err := l.ListRecent(ctx, 0)
	require.NoError(t, err)
	for i := 1; i < len(recent); i++ {
		assert.True(t, recent[i-1].Timestamp.After(recent[i].Timestamp), "newest first at %d", i)
	}
}

func TestPruneOlderThan(t *testing.T) {
	ctx := context.Background()
	l, _, clk := newTestLog(t, 0)
	now := clk.Now()

	clk.CurrentTime = now.Add(-31 * 24 * time.Hour)
	_, err := l.Record(ctx, "old@mailinator.com", "Registration", "")
	require.NoError(t, err)
	clk.CurrentTime = now.Add(-29 * 24 * time.Hour)
	_, err = l.Record(ctx, "recent@mailinator.com", "Registration", "")
	require.NoError(t, err)
	clk.CurrentTime = now

	removed, err := l.PruneOlderThan(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	got, err := l.ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "recent@mailinator.com", got[0].Email)
}

func TestPruneOlderThan_DisabledRetention(t *testing.T) {
	ctx := context.Background()
	l, _, clk := newTestLog(t, 0)
	clk.CurrentTime = clk.Now().Add(-400 * 24 * time.Hour)
	_, err := l.Record(ctx, "ancient@mailinator.com", "Registration", "")
	require.NoError(t, err)
	clk.Advance(400 * 24 * time.Hour)

	for _, days := range []int{0, -5} {
		removed, err := l.PruneOlderThan(ctx, days)
		require.NoError(t, err)
		assert.Zero(t, removed)
	}
	n, _ := l.Len(ctx)
	assert.Equal(t, 1, n)
}

func TestLoad_CorruptLogStartsFresh(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newTestLog(t, 0)
	require.NoError(t, store.Set(ctx, domain.KeyBlockedLog, []byte(`"garbage"`)))

	n, err := l.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = l.Record(ctx, "a@b.example", "Registration", "")
	require.NoError(t, err)
	n, _ = l.Len(ctx)
	assert.Equal(t, 1, n)
}

func TestClientIP_Precedence(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"client ip wins", map[string]string{"Client-IP": "1.1.1.1", "X-Forwarded-For": "2.2.2.2"}, "3.3.3.3:1234", "1.1.1.1"},
		{"forwarded next", map[string]string{"X-Forwarded-For": "2.2.2.2"}, "3.3.3.3:1234", "2.2.2.2"},
		{"first forwarded hop", map[string]string{"X-Forwarded-For": "2.2.2.2, 10.0.0.1"}, "3.3.3.3:1234", "2.2.2.2"},
		{"remote addr host", nil, "3.3.3.3:1234", "3.3.3.3"},
		{"remote addr without port", nil, "3.3.3.3", "3.3.3.3"},
		{"blank headers skipped", map[string]string{"Client-IP": "  "}, "[::1]:80", "::1"},
		{"nothing", nil, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(h, tt.remoteAddr))
		})
	}
}
