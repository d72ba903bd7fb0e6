// Package refresh fetches the remote blocklist and keeps each site's periodic
// maintenance jobs registered.
package refresh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	logpkg "github.com/haukened/tempmail-gate/internal/gate/common/log"
	"github.com/haukened/tempmail-gate/internal/gate/domain"
	"github.com/haukened/tempmail-gate/internal/gate/gateways/feed"
	"github.com/haukened/tempmail-gate/internal/gate/gateways/scheduler"
	"github.com/haukened/tempmail-gate/internal/gate/repos/blocklist/parsers"
)

const (
	// RefreshInterval is the cadence of the remote list refresh.
	RefreshInterval = 7 * 24 * time.Hour
	// CleanupInterval is the cadence of the attempt log retention pass.
	CleanupInterval = 24 * time.Hour
)

// RemoteStore replaces the stored remote list.
type RemoteStore interface {
	ReplaceRemote(ctx context.Context, names []string) error
}

// SettingsReader exposes the toggles the refresh consults.
type SettingsReader interface {
	Bool(ctx context.Context, key string) (bool, error)
	Int(ctx context.Context, key string) (int, error)
}

// Pruner removes aged attempt log entries.
type Pruner interface {
	PruneOlderThan(ctx context.Context, days int) (int, error)
}

// Result describes one fetch.
type Result struct {
	// Skipped is true when auto-update is disabled and nothing was fetched.
	Skipped bool `json:"skipped"`
	// Count is the number of domains stored.
	Count int `json:"count"`
}

// Options configures a Service for one site.
type Options struct {
	Site      domain.Site
	Feed      feed.Getter
	URL       string // defaults to feed.DefaultURL
	Remote    RemoteStore
	Settings  SettingsReader
	Log       Pruner
	Scheduler scheduler.Periodic
	Logger    logpkg.Logger
	// Group collapses concurrent fetches that write the same list namespace.
	// Sites sharing a namespace should share a Group.
	Group    *singleflight.Group
	GroupKey string
}

// Service runs the refresh and cleanup jobs of one site.
type Service struct {
	site     domain.Site
	feed     feed.Getter
	url      string
	remote   RemoteStore
	settings SettingsReader
	log      Pruner
	sched    scheduler.Periodic
	logger   logpkg.Logger
	group    *singleflight.Group
	groupKey string
}

// New builds a Service.
func New(opts Options) (*Service, error) {
	if opts.Feed == nil || opts.Remote == nil || opts.Settings == nil {
		return nil, errors.New("refresh: feed, remote and settings are required")
	}
	if opts.URL == "" {
		opts.URL = feed.DefaultURL
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNoopLogger()
	}
	if opts.Group == nil {
		opts.Group = &singleflight.Group{}
	}
	if opts.GroupKey == "" {
		opts.GroupKey = opts.Site.ID
	}
	return &Service{
		site:     opts.Site,
		feed:     opts.Feed,
		url:      opts.URL,
		remote:   opts.Remote,
		settings: opts.Settings,
		log:      opts.Log,
		sched:    opts.Scheduler,
		logger:   logpkg.WithFields(opts.Logger, map[string]any{"site": opts.Site.ID}),
		group:    opts.Group,
		groupKey: opts.GroupKey,
	}, nil
}

// FetchRemoteList downloads the feed and replaces the stored remote list.
// With auto-update disabled it is a successful no-op. On any failure the
// stored list is left untouched and an error wrapping domain.ErrFetchFailed
// is returned. The download runs detached from ctx so callers that joined it
// are unaffected when ctx ends; ctx only bounds how long this caller waits.
func (s *Service) FetchRemoteList(ctx context.Context) (Result, error) {
	enabled, err := s.settings.Bool(ctx, domain.KeyEnableAutoUpdate)
	if err != nil {
		s.logger.Error(map[string]any{"error": err}, "auto-update toggle lookup failed, using default")
	}
	if !enabled {
		s.logger.Debug(nil, "auto-update disabled, skipping fetch")
		return Result{Skipped: true}, nil
	}

	ch := s.group.DoChan(s.groupKey, func() (any, error) {
		return s.fetch(context.WithoutCancel(ctx))
	})
	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		err := fmt.Errorf("%w: %w", domain.ErrFetchFailed, ctx.Err())
		s.logger.Warn(map[string]any{"url": s.url, "error": err}, "stopped waiting for remote list refresh")
		return Result{}, err
	}
	if r.Err != nil {
		s.logger.Warn(map[string]any{"url": s.url, "error": r.Err}, "remote list refresh failed")
		return Result{}, r.Err
	}
	res := r.Val.(Result)
	if r.Shared {
		s.logger.Debug(map[string]any{"count": res.Count}, "joined in-flight refresh")
	}
	return res, nil
}

func (s *Service) fetch(ctx context.Context) (Result, error) {
	resp, err := s.feed.Get(ctx, s.url)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", domain.ErrFetchFailed, err)
	}
	if resp.Status != http.StatusOK {
		return Result{}, fmt.Errorf("%w: status %d", domain.ErrFetchFailed, resp.Status)
	}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return Result{}, fmt.Errorf("%w: %w", domain.ErrFetchFailed, domain.ErrEmptyFeed)
	}
	names, err := parsers.ParsePlainList(bytes.NewReader(resp.Body), s.url, s.logger)
	if err != nil {
		return Result{}, fmt.Errorf("%w: parse: %w", domain.ErrFetchFailed, err)
	}
	if len(names) == 0 {
		return Result{}, fmt.Errorf("%w: %w", domain.ErrFetchFailed, domain.ErrEmptyFeed)
	}
	if err := s.remote.ReplaceRemote(ctx, names); err != nil {
		return Result{}, fmt.Errorf("%w: store: %w", domain.ErrFetchFailed, err)
	}
	return Result{Count: len(names)}, nil
}

// Cleanup prunes attempt log entries older than the configured retention.
func (s *Service) Cleanup(ctx context.Context) (int, error) {
	if s.log == nil {
		return 0, nil
	}
	days, err := s.settings.Int(ctx, domain.KeyLogRetentionDays)
	if err != nil {
		s.logger.Error(map[string]any{"error": err}, "retention lookup failed, using default")
	}
	return s.log.PruneOlderThan(ctx, days)
}

// RefreshJobName is the scheduler key of a site's remote refresh.
func RefreshJobName(siteID string) string { return "refresh:" + siteID }

// CleanupJobName is the scheduler key of a site's log cleanup.
func CleanupJobName(siteID string) string { return "log-cleanup:" + siteID }

// Schedule registers the site's refresh and cleanup jobs. Registering an
// already scheduled job is a no-op.
func (s *Service) Schedule() error {
	if s.sched == nil {
		return errors.New("refresh: no scheduler configured")
	}
	added, err := s.sched.Register(RefreshJobName(s.site.ID), RefreshInterval, func(ctx context.Context) error {
		_, err := s.FetchRemoteList(ctx)
		return err
	})
	if err != nil {
		return err
	}
	if added {
		s.logger.Info(map[string]any{"every": RefreshInterval.String()}, "refresh scheduled")
	}
	if _, err := s.sched.Register(CleanupJobName(s.site.ID), CleanupInterval, func(ctx context.Context) error {
		_, err := s.Cleanup(ctx)
		return err
	}); err != nil {
		return err
	}
	return nil
}

// Unschedule removes both jobs of the site.
func (s *Service) Unschedule() error {
	if s.sched == nil {
		return nil
	}
	return errors.Join(
		s.sched.Clear(RefreshJobName(s.site.ID)),
		s.sched.Clear(CleanupJobName(s.site.ID)),
	)
}

// Scheduled reports whether the site's refresh job is registered.
func (s *Service) Scheduled() bool {
	return s.sched != nil && s.sched.IsRegistered(RefreshJobName(s.site.ID))
}
