package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/singleflight"

	"github.com/haukened/tempmail-gate/internal/gate/common/clock"
	"github.com/haukened/tempmail-gate/internal/gate/domain"
	"github.com/haukened/tempmail-gate/internal/gate/gateways/feed"
	"github.com/haukened/tempmail-gate/internal/gate/gateways/scheduler"
	"github.com/haukened/tempmail-gate/internal/gate/repos/attemptlog"
	"github.com/haukened/tempmail-gate/internal/gate/repos/blocklist"
	"github.com/haukened/tempmail-gate/internal/gate/repos/options"
	"github.com/haukened/tempmail-gate/internal/gate/services/settings"
)

type fakeFeed struct {
	resp  feed.Response
	err   error
	calls atomic.Int32
	gate  chan struct{}

	// set when a fetch observed a canceled context after the gate opened
	canceled atomic.Bool
}

func (f *fakeFeed) Get(ctx context.Context, _ string) (feed.Response, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if ctx.Err() != nil {
		f.canceled.Store(true)
	}
	return f.resp, f.err
}

type fakeScheduler struct {
	mu    sync.Mutex
	tasks map[string]scheduler.Task
	every map[string]time.Duration
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{tasks: map[string]scheduler.Task{}, every: map[string]time.Duration{}}
}

func (f *fakeScheduler) Register(name string, every time.Duration, task scheduler.Task) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[name]; ok {
		return false, nil
	}
	f.tasks[name] = task
	f.every[name] = every
	return true, nil
}

func (f *fakeScheduler) IsRegistered(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tasks[name]
	return ok
}

func (f *fakeScheduler) Clear(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tasks, name)
	delete(f.every, name)
	return nil
}

func (f *fakeScheduler) RunNow(name string) error {
	f.mu.Lock()
	task, ok := f.tasks[name]
	f.mu.Unlock()
	if !ok {
		return errors.New("not registered")
	}
	return task(context.Background())
}

type fixture struct {
	svc      *Service
	feed     *fakeFeed
	resolver *blocklist.Resolver
	settings *settings.Service
	log      *attemptlog.Log
	clock    *clock.MockClock
	sched    *fakeScheduler
}

func newFixture(t *testing.T, seed ...string) *fixture {
	t.Helper()
	store := options.NewMemory().Site("shop")
	clk := &clock.MockClock{CurrentTime: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	res := blocklist.NewResolver(blocklist.Options{
		Seed:  blocklist.NewSeed(seed),
		Lists: store,
		Clock: clk,
	})
	set := settings.New(store, store, nil)
	l := attemptlog.New(attemptlog.Options{Store: store, Clock: clk})
	f := &fakeFeed{}
	sched := newFakeScheduler()
	svc, err := New(Options{
		Site:      domain.Site{ID: "shop"},
		Feed:      f,
		Remote:    res,
		Settings:  set,
		Log:       l,
		Scheduler: sched,
	})
	require.NoError(t, err)
	return &fixture{svc: svc, feed: f, resolver: res, settings: set, log: l, clock: clk, sched: sched}
}

func TestFetchRemoteList_ReplacesRemote(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.feed.resp = feed.Response{Status: 200, Body: []byte("foo.com\n\nbar.com\n  \n")}

	res, err := fx.svc.FetchRemoteList(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)

	remote, err := fx.resolver.Remote(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"foo.com", "bar.com"}, remote)

	updated, err := fx.resolver.LastRemoteUpdate(ctx)
	require.NoError(t, err)
	assert.True(t, updated.Equal(fx.clock.CurrentTime))
}

func TestFetchRemoteList_FullReplace(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.feed.resp = feed.Response{Status: 200, Body: []byte("old.com\n")}
	_, err := fx.svc.FetchRemoteList(ctx)
	require.NoError(t, err)

	fx.feed.resp = feed.Response{Status: 200, Body: []byte("new.com\n")}
	_, err = fx.svc.FetchRemoteList(ctx)
	require.NoError(t, err)

	remote, err := fx.resolver.Remote(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"new.com"}, remote)
}

func TestFetchRemoteList_FailuresKeepStaleData(t *testing.T) {
	cases := []struct {
		name  string
		resp  feed.Response
		err   error
		empty bool
	}{
		{name: "transport", err: errors.New("connection refused")},
		{name: "status", resp: feed.Response{Status: 503, Body: []byte("x.com")}},
		{name: "empty body", resp: feed.Response{Status: 200}, empty: true},
		{name: "blank body", resp: feed.Response{Status: 200, Body: []byte(" \n\n")}, empty: true},
		{name: "comments only", resp: feed.Response{Status: 200, Body: []byte("# nothing\n")}, empty: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			fx := newFixture(t, "mailinator.com")
			require.NoError(t, fx.resolver.ReplaceRemote(ctx, []string{"stale.com"}))

			fx.feed.resp, fx.feed.err = tc.resp, tc.err
			_, err := fx.svc.FetchRemoteList(ctx)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrFetchFailed)
			if tc.empty {
				assert.ErrorIs(t, err, domain.ErrEmptyFeed)
			}

			remote, err := fx.resolver.Remote(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"stale.com"}, remote)

			combined, err := fx.resolver.Combined(ctx)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"mailinator.com", "stale.com"}, combined)
		})
	}
}

func TestFetchRemoteList_SeedSurvivesFirstFailure(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, "mailinator.com")
	fx.feed.err = errors.New("timeout")

	_, err := fx.svc.FetchRemoteList(ctx)
	require.ErrorIs(t, err, domain.ErrFetchFailed)

	combined, err := fx.resolver.Combined(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"mailinator.com"}, combined)

	d, err := fx.resolver.Decide(ctx, "mailinator.com")
	require.NoError(t, err)
	assert.True(t, d.Blocked)
}

func TestFetchRemoteList_AutoUpdateDisabled(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	require.NoError(t, fx.settings.Update(ctx, domain.KeyEnableAutoUpdate, []byte("false")))

	res, err := fx.svc.FetchRemoteList(ctx)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, fx.feed.calls.Load())
}

func TestFetchRemoteList_ConcurrentCallsShareOneFetch(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.feed.resp = feed.Response{Status: 200, Body: []byte("a.com\n")}
	fx.feed.gate = make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.svc.FetchRemoteList(ctx)
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool { return fx.feed.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(fx.feed.gate)
	wg.Wait()
	assert.Equal(t, int32(1), fx.feed.calls.Load())
}

func TestFetchRemoteList_CanceledCallerDoesNotFailJoinedFetch(t *testing.T) {
	fx := newFixture(t)
	fx.feed.resp = feed.Response{Status: 200, Body: []byte("a.com\n")}
	fx.feed.gate = make(chan struct{})

	manual, cancel := context.WithCancel(context.Background())
	manualErr := make(chan error, 1)
	go func() {
		_, err := fx.svc.FetchRemoteList(manual)
		manualErr <- err
	}()
	require.Eventually(t, func() bool { return fx.feed.calls.Load() == 1 }, time.Second, time.Millisecond)

	scheduled := make(chan Result, 1)
	go func() {
		res, err := fx.svc.FetchRemoteList(context.Background())
		assert.NoError(t, err)
		scheduled <- res
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	err := <-manualErr
	assert.ErrorIs(t, err, domain.ErrFetchFailed)
	assert.ErrorIs(t, err, context.Canceled)

	close(fx.feed.gate)
	select {
	case res := <-scheduled:
		assert.Equal(t, 1, res.Count)
	case <-time.After(2 * time.Second):
		t.Fatal("joined refresh did not finish")
	}
	assert.False(t, fx.feed.canceled.Load())
	assert.Equal(t, int32(1), fx.feed.calls.Load())

	remote, err := fx.resolver.Remote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.com"}, remote)
}

func TestCleanup_UsesRetentionSetting(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	_, err := fx.log.Record(ctx, "old@mailinator.com", "Registration", "")
	require.NoError(t, err)
	fx.clock.Advance(10 * 24 * time.Hour)
	_, err = fx.log.Record(ctx, "new@mailinator.com", "Registration", "")
	require.NoError(t, err)

	require.NoError(t, fx.settings.Update(ctx, domain.KeyLogRetentionDays, []byte("7")))
	removed, err := fx.svc.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	require.NoError(t, fx.settings.Update(ctx, domain.KeyLogRetentionDays, []byte("0")))
	fx.clock.Advance(100 * 24 * time.Hour)
	removed, err = fx.svc.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed, "retention 0 disables pruning")
}

func TestScheduleAndUnschedule(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.svc.Schedule())
	require.NoError(t, fx.svc.Schedule(), "second registration is a no-op")

	assert.True(t, fx.svc.Scheduled())
	assert.Equal(t, RefreshInterval, fx.sched.every["refresh:shop"])
	assert.Equal(t, CleanupInterval, fx.sched.every["log-cleanup:shop"])

	fx.feed.resp = feed.Response{Status: 200, Body: []byte("a.com\n")}
	require.NoError(t, fx.sched.RunNow("refresh:shop"))
	assert.Equal(t, int32(1), fx.feed.calls.Load())

	require.NoError(t, fx.svc.Unschedule())
	assert.False(t, fx.svc.Scheduled())
	assert.False(t, fx.sched.IsRegistered("log-cleanup:shop"))
}

func TestNew_SharedGroupAcrossSites(t *testing.T) {
	g := &singleflight.Group{}
	store := options.NewMemory().Network()
	res := blocklist.NewResolver(blocklist.Options{Lists: store})
	set := settings.New(store, store, nil)
	for _, id := range []string{"a", "b"} {
		svc, err := New(Options{Site: domain.Site{ID: id}, Feed: &fakeFeed{}, Remote: res, Settings: set, Group: g, GroupKey: store.Namespace()})
		require.NoError(t, err)
		assert.Same(t, g, svc.group)
		assert.Equal(t, store.Namespace(), svc.groupKey)
	}
	_, err := New(Options{})
	assert.Error(t, err)
}
