// Package integrations routes host form submissions through the gatekeeper
// and reports rejections the way each host expects.
package integrations

import (
	"context"
	"fmt"
	"strings"

	logpkg "github.com/haukened/tempmail-gate/internal/gate/common/log"
	"github.com/haukened/tempmail-gate/internal/gate/domain"
	"github.com/haukened/tempmail-gate/internal/gate/gateways/notify"
	"github.com/haukened/tempmail-gate/internal/gate/services/gatekeeper"
)

// Validator checks one email address.
type Validator interface {
	Validate(ctx context.Context, email string) (string, error)
}

// SettingsReader exposes the typed settings the dispatcher consults.
type SettingsReader interface {
	Bool(ctx context.Context, key string) (bool, error)
	Strings(ctx context.Context, key string) ([]string, error)
}

// Recorder appends to the attempt log.
type Recorder interface {
	Record(ctx context.Context, email, source, ip string) (domain.LogEntry, error)
}

// Options configures a Dispatcher for one site.
type Options struct {
	Site      domain.Site
	Registry  *Registry
	Validator Validator
	Settings  SettingsReader
	Log       Recorder
	Notifier  notify.Notifier
	Logger    logpkg.Logger
}

// Dispatcher runs submissions of one site through its integrations.
type Dispatcher struct {
	site      domain.Site
	registry  *Registry
	validator Validator
	settings  SettingsReader
	log       Recorder
	notifier  notify.Notifier
	logger    logpkg.Logger
}

// NewDispatcher builds a Dispatcher. A nil Registry uses the builtin adapters.
func NewDispatcher(opts Options) (*Dispatcher, error) {
	if opts.Validator == nil || opts.Settings == nil || opts.Log == nil {
		return nil, fmt.Errorf("integrations: validator, settings and log are required")
	}
	if opts.Registry == nil {
		r, err := NewRegistry(Builtin()...)
		if err != nil {
			return nil, err
		}
		opts.Registry = r
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNoopLogger()
	}
	return &Dispatcher{
		site:      opts.Site,
		registry:  opts.Registry,
		validator: opts.Validator,
		settings:  opts.Settings,
		log:       opts.Log,
		notifier:  opts.Notifier,
		logger:    logpkg.WithFields(opts.Logger, map[string]any{"site": opts.Site.ID}),
	}, nil
}

// Integrations lists the registered integration names.
func (d *Dispatcher) Integrations() []string { return d.registry.Names() }

// Handle evaluates sub for the named integration. A disabled integration or a
// bypassing actor yields an allowed, skipped outcome. Every rejected field is
// logged and, when enabled, notified before the adapter reports it.
func (d *Dispatcher) Handle(ctx context.Context, integration string, sub domain.Submission) (domain.Outcome, error) {
	a, ok := d.registry.Get(integration)
	if !ok {
		return domain.Outcome{}, fmt.Errorf("%w: %q", domain.ErrUnknownIntegration, integration)
	}
	out := domain.Outcome{Integration: a.Name(), Allowed: true}

	enabled, err := d.settings.Bool(ctx, a.ToggleKey())
	if err != nil {
		d.logger.Error(map[string]any{"integration": a.Name(), "error": err}, "toggle lookup failed, using default")
	}
	if !enabled {
		out.Skipped = "disabled"
		return out, nil
	}

	bypass, err := d.settings.Strings(ctx, domain.KeyRoleBypass)
	if err != nil {
		d.logger.Error(map[string]any{"integration": a.Name(), "error": err}, "bypass roles lookup failed")
	}
	if gatekeeper.ActorBypassesBlock(sub.Roles, bypass) {
		out.Skipped = "bypass"
		return out, nil
	}

	for _, f := range a.ExtractEmails(sub) {
		email := strings.TrimSpace(f.Value)
		if email == "" {
			continue
		}
		_, verr := d.validator.Validate(ctx, email)
		rej, rejected := domain.AsRejection(verr)
		if !rejected {
			continue
		}
		d.record(ctx, a, sub, email, rej)
		out.Allowed = false
		a.ReportRejection(&out, f, rej)
		if out.Halted {
			break
		}
	}
	return out, nil
}

// record writes the attempt log entry and sends the alert. Failures are
// logged only; they never change the outcome.
func (d *Dispatcher) record(ctx context.Context, a Adapter, sub domain.Submission, email string, rej *domain.RejectionError) {
	entry, err := d.log.Record(ctx, email, a.Label(), sub.ClientIP)
	if err != nil {
		d.logger.Error(map[string]any{"integration": a.Name(), "error": err}, "attempt log write failed")
		return
	}
	d.logger.Info(map[string]any{
		"integration": a.Name(),
		"domain":      rej.Domain,
		"ip":          sub.ClientIP,
	}, "blocked disposable email")

	if d.notifier == nil {
		return
	}
	on, err := d.settings.Bool(ctx, domain.KeyNotifyAdmin)
	if err != nil {
		d.logger.Error(map[string]any{"error": err}, "notify toggle lookup failed")
	}
	if !on {
		return
	}
	ev := domain.BlockedEvent{Site: d.site, Entry: entry, Domain: rej.Domain}
	if err := d.notifier.Notify(ctx, ev); err != nil {
		d.logger.Warn(map[string]any{"integration": a.Name(), "error": err}, "admin notification failed")
	}
}
