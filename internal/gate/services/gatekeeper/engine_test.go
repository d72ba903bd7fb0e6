package gatekeeper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/tempmail-gate/internal/gate/domain"
	"github.com/haukened/tempmail-gate/internal/gate/repos/blocklist"
	"github.com/haukened/tempmail-gate/internal/gate/repos/options"
)

type staticMessages struct {
	msg string
	err error
}

func (s staticMessages) String(context.Context, string) (string, error) { return s.msg, s.err }

type failingDecider struct{}

func (failingDecider) Decide(context.Context, string) (domain.BlockDecision, error) {
	return domain.BlockDecision{}, errors.New("store down")
}

func newEngine(t *testing.T, seed ...string) (*Engine, *blocklist.Resolver) {
	t.Helper()
	r := blocklist.NewResolver(blocklist.Options{
		Seed:  blocklist.NewSeed(seed),
		Lists: options.NewMemory().Site("t"),
	})
	return New(Options{Lists: r, Messages: staticMessages{msg: "Use a real inbox."}}), r
}

func TestIsBlocked(t *testing.T) {
	ctx := context.Background()
	e, r := newEngine(t, "mailinator.com")

	assert.True(t, e.IsBlocked(ctx, "a@mailinator.com"))
	assert.True(t, e.IsBlocked(ctx, "x@Example.COM") == e.IsBlocked(ctx, "x@example.com"))
	assert.True(t, e.IsBlocked(ctx, "A@MAILINATOR.COM"))
	assert.False(t, e.IsBlocked(ctx, "a@gmail.com"))
	assert.False(t, e.IsBlocked(ctx, "no-at-sign"), "malformed addresses are allowed")
	assert.False(t, e.IsBlocked(ctx, ""))
	assert.True(t, e.IsBlocked(ctx, "weird@name@mailinator.com"), "domain is after the last @")
	assert.False(t, e.IsBlocked(ctx, "a@mailinator.com."), "domains are only trimmed and lowercased")

	require.NoError(t, r.AddToBlocklist(ctx, "tempmail.io"))
	assert.True(t, e.IsBlocked(ctx, "a@tempmail.io"))
	require.NoError(t, r.AddToWhitelist(ctx, "tempmail.io"))
	assert.False(t, e.IsBlocked(ctx, "a@tempmail.io"), "whitelist wins")
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t, "mailinator.com")

	email, err := e.Validate(ctx, "ok@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, "ok@gmail.com", email)

	_, err = e.Validate(ctx, "bad@mailinator.com")
	rej, ok := domain.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, "Use a real inbox.", rej.Message)
	assert.Equal(t, "mailinator.com", rej.Domain)
	assert.Equal(t, "bad@mailinator.com", rej.Email)
}

func TestValidate_MessageFallback(t *testing.T) {
	ctx := context.Background()
	r := blocklist.NewResolver(blocklist.Options{Seed: blocklist.NewSeed([]string{"mailinator.com"}), Lists: options.NewMemory().Site("t")})

	for _, msgs := range []MessageSource{nil, staticMessages{msg: "  "}, staticMessages{err: errors.New("down")}} {
		e := New(Options{Lists: r, Messages: msgs})
		_, err := e.Validate(ctx, "a@mailinator.com")
		rej, ok := domain.AsRejection(err)
		require.True(t, ok)
		assert.Equal(t, domain.DefaultErrorMessage, rej.Message)
	}
}

func TestCheck_FailOpen(t *testing.T) {
	e := New(Options{Lists: failingDecider{}})
	d := e.Check(context.Background(), "a@mailinator.com")
	assert.False(t, d.Blocked)
	assert.Equal(t, "mailinator.com", d.Domain)

	_, err := e.Validate(context.Background(), "a@mailinator.com")
	assert.NoError(t, err)
}

func TestActorBypassesBlock(t *testing.T) {
	tests := []struct {
		name   string
		actor  []string
		bypass []string
		want   bool
	}{
		{"intersect", []string{"subscriber", "editor"}, []string{"administrator", "editor"}, true},
		{"disjoint", []string{"subscriber"}, []string{"administrator"}, false},
		{"no actor roles", nil, []string{"administrator"}, false},
		{"no bypass roles", []string{"administrator"}, nil, false},
		{"case sensitive", []string{"Administrator"}, []string{"administrator"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ActorBypassesBlock(tt.actor, tt.bypass))
		})
	}
}
