// Package gatekeeper decides whether a submitted email address is allowed.
package gatekeeper

import (
	"context"
	"strings"

	logpkg "github.com/haukened/tempmail-gate/internal/gate/common/log"
	"github.com/haukened/tempmail-gate/internal/gate/common/utils"
	"github.com/haukened/tempmail-gate/internal/gate/domain"
)

// Options configures an Engine for one site.
type Options struct {
	Lists    DomainDecider
	Messages MessageSource
	Logger   logpkg.Logger
}

// Engine is the per-site decision engine.
type Engine struct {
	lists    DomainDecider
	messages MessageSource
	logger   logpkg.Logger
}

// New builds an Engine.
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNoopLogger()
	}
	return &Engine{lists: opts.Lists, messages: opts.Messages, logger: opts.Logger}
}

// Check evaluates the domain of email. An address without '@' has an empty
// domain and is allowed. Store failures are logged and resolve to allow.
func (e *Engine) Check(ctx context.Context, email string) domain.BlockDecision {
	name := utils.EmailDomain(email)
	if name == "" {
		return domain.AllowDecision(name)
	}
	d, err := e.lists.Decide(ctx, name)
	if err != nil {
		e.logger.Error(map[string]any{"domain": name, "error": err}, "blocklist lookup failed, allowing")
		return domain.AllowDecision(name)
	}
	return d
}

// IsBlocked reports whether email must be rejected.
func (e *Engine) IsBlocked(ctx context.Context, email string) bool {
	return e.Check(ctx, email).Blocked
}

// Validate returns email unchanged when allowed, or a *domain.RejectionError
// carrying the site's rejection message.
func (e *Engine) Validate(ctx context.Context, email string) (string, error) {
	d := e.Check(ctx, email)
	if !d.Blocked {
		return email, nil
	}
	return email, &domain.RejectionError{
		Email:   email,
		Domain:  d.Domain,
		Message: e.message(ctx),
	}
}

func (e *Engine) message(ctx context.Context) string {
	if e.messages == nil {
		return domain.DefaultErrorMessage
	}
	msg, err := e.messages.String(ctx, domain.KeyErrorMessage)
	if err != nil {
		e.logger.Error(map[string]any{"error": err}, "rejection message unavailable, using default")
		return domain.DefaultErrorMessage
	}
	if strings.TrimSpace(msg) == "" {
		return domain.DefaultErrorMessage
	}
	return msg
}

// ActorBypassesBlock reports whether any of the actor's roles is in the
// configured bypass set.
func ActorBypassesBlock(actorRoles, bypassRoles []string) bool {
	if len(actorRoles) == 0 || len(bypassRoles) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(bypassRoles))
	for _, r := range bypassRoles {
		set[r] = struct{}{}
	}
	for _, r := range actorRoles {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}
