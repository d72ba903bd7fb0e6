package gatekeeper

import (
	"context"

	"github.com/haukened/tempmail-gate/internal/gate/domain"
)

// DomainDecider answers whether one canonical domain is blocked.
type DomainDecider interface {
	Decide(ctx context.Context, name string) (domain.BlockDecision, error)
}

// MessageSource supplies the configured rejection message.
type MessageSource interface {
	String(ctx context.Context, key string) (string, error)
}
