// Package site composes the per-tenant services of every configured site.
package site

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/singleflight"

	"github.com/haukened/tempmail-gate/internal/gate/common/clock"
	logpkg "github.com/haukened/tempmail-gate/internal/gate/common/log"
	"github.com/haukened/tempmail-gate/internal/gate/domain"
	"github.com/haukened/tempmail-gate/internal/gate/gateways/feed"
	"github.com/haukened/tempmail-gate/internal/gate/gateways/notify"
	"github.com/haukened/tempmail-gate/internal/gate/gateways/scheduler"
	"github.com/haukened/tempmail-gate/internal/gate/repos/attemptlog"
	"github.com/haukened/tempmail-gate/internal/gate/repos/blocklist"
	"github.com/haukened/tempmail-gate/internal/gate/repos/options"
	"github.com/haukened/tempmail-gate/internal/gate/services/gatekeeper"
	"github.com/haukened/tempmail-gate/internal/gate/services/integrations"
	"github.com/haukened/tempmail-gate/internal/gate/services/refresh"
	"github.com/haukened/tempmail-gate/internal/gate/services/settings"
)

// Tenant bundles the services of one site.
type Tenant struct {
	Site         domain.Site
	Lists        *blocklist.Resolver
	Settings     *settings.Service
	Engine       *gatekeeper.Engine
	Log          *attemptlog.Log
	Integrations *integrations.Dispatcher
	Refresh      *refresh.Service
}

// Stats is the dashboard summary of a site.
type Stats struct {
	blocklist.Stats
	LogEntries int `json:"log_entries"`
}

// Stats reports list sizes, log size, and the last remote refresh.
func (t *Tenant) Stats(ctx context.Context) (Stats, error) {
	ls, err := t.Lists.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	n, err := t.Log.Len(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Stats: ls, LogEntries: n}, nil
}

// Deps are the process-wide collaborators shared by every tenant.
type Deps struct {
	Backend   options.Backend
	Scope     options.Scope
	Seed      *blocklist.Seed
	Bloom     blocklist.BloomFactory
	Feed      feed.Getter
	FeedURL   string
	Notifier  notify.Notifier
	Scheduler scheduler.Periodic
	Registry  *integrations.Registry
	Clock     clock.Clock
	Logger    logpkg.Logger
}

// Registry holds the tenants of an installation.
type Registry struct {
	tenants map[string]*Tenant
	ids     []string
}

// Build creates a tenant for each site. Sites whose lists share a namespace
// share one resolver and one refresh flight group.
func Build(sites []domain.Site, deps Deps) (*Registry, error) {
	if deps.Backend == nil {
		return nil, errors.New("site: backend is required")
	}
	if len(sites) == 0 {
		return nil, errors.New("site: no sites configured")
	}
	if deps.Scope == nil {
		deps.Scope = options.SiteScope{}
	}
	if deps.Feed == nil {
		deps.Feed = feed.NewClient(nil, 0)
	}
	if deps.Clock == nil {
		deps.Clock = clock.RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = logpkg.NewNoopLogger()
	}
	if deps.Registry == nil {
		r, err := integrations.NewRegistry(integrations.Builtin()...)
		if err != nil {
			return nil, err
		}
		deps.Registry = r
	}

	resolvers := make(map[string]*blocklist.Resolver)
	group := &singleflight.Group{}
	reg := &Registry{tenants: make(map[string]*Tenant, len(sites))}

	for _, s := range sites {
		if _, dup := reg.tenants[s.ID]; dup {
			return nil, fmt.Errorf("site: duplicate id %q", s.ID)
		}
		logger := logpkg.WithFields(deps.Logger, map[string]any{"site": s.ID})
		siteStore := deps.Backend.Site(s.ID)
		listStore := deps.Scope.Lists(deps.Backend, s.ID)

		res, ok := resolvers[listStore.Namespace()]
		if !ok {
			res = blocklist.NewResolver(blocklist.Options{
				Seed:   deps.Seed,
				Lists:  listStore,
				Clock:  deps.Clock,
				Logger: deps.Logger,
				Bloom:  deps.Bloom,
			})
			resolvers[listStore.Namespace()] = res
		}

		set := settings.New(siteStore, listStore, logger)
		eng := gatekeeper.New(gatekeeper.Options{Lists: res, Messages: set, Logger: logger})
		l := attemptlog.New(attemptlog.Options{Store: siteStore, Clock: deps.Clock, Logger: logger})

		disp, err := integrations.NewDispatcher(integrations.Options{
			Site:      s,
			Registry:  deps.Registry,
			Validator: eng,
			Settings:  set,
			Log:       l,
			Notifier:  deps.Notifier,
			Logger:    deps.Logger,
		})
		if err != nil {
			return nil, err
		}
		ref, err := refresh.New(refresh.Options{
			Site:      s,
			Feed:      deps.Feed,
			URL:       deps.FeedURL,
			Remote:    res,
			Settings:  set,
			Log:       l,
			Scheduler: deps.Scheduler,
			Logger:    deps.Logger,
			Group:     group,
			GroupKey:  listStore.Namespace(),
		})
		if err != nil {
			return nil, err
		}

		reg.tenants[s.ID] = &Tenant{
			Site:         s,
			Lists:        res,
			Settings:     set,
			Engine:       eng,
			Log:          l,
			Integrations: disp,
			Refresh:      ref,
		}
		reg.ids = append(reg.ids, s.ID)
	}
	sort.Strings(reg.ids)
	return reg, nil
}

// Get returns the tenant with id.
func (r *Registry) Get(id string) (*Tenant, error) {
	t, ok := r.tenants[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSite, id)
	}
	return t, nil
}

// IDs lists site IDs in sorted order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// Sites lists the configured sites in ID order.
func (r *Registry) Sites() []domain.Site {
	out := make([]domain.Site, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.tenants[id].Site)
	}
	return out
}

// ScheduleAll registers every site's periodic jobs.
func (r *Registry) ScheduleAll() error {
	for _, id := range r.ids {
		if err := r.tenants[id].Refresh.Schedule(); err != nil {
			return fmt.Errorf("schedule %s: %w", id, err)
		}
	}
	return nil
}

// UnscheduleAll clears every site's periodic jobs.
func (r *Registry) UnscheduleAll() error {
	var errs []error
	for _, id := range r.ids {
		if err := r.tenants[id].Refresh.Unschedule(); err != nil {
			errs = append(errs, fmt.Errorf("unschedule %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
