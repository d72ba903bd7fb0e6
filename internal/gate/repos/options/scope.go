package options

import (
	"fmt"
	"strings"
)

// Scope decides which namespace holds a site's domain lists. It is selected
// once at startup; settings and the attempt log are always per site.
type Scope interface {
	Name() string
	Lists(b Backend, siteID string) Store
}

// SiteScope gives every site an independent copy of its lists.
type SiteScope struct{}

func (SiteScope) Name() string { return "site" }

func (SiteScope) Lists(b Backend, siteID string) Store { return b.Site(siteID) }

// NetworkScope shares one copy of the lists across all sites.
type NetworkScope struct{}

func (NetworkScope) Name() string { return "network" }

func (NetworkScope) Lists(b Backend, _ string) Store { return b.Network() }

// ParseScope maps a configuration value onto a Scope.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "site":
		return SiteScope{}, nil
	case "network":
		return NetworkScope{}, nil
	default:
		return nil, fmt.Errorf("unsupported storage scope: %q", s)
	}
}

var (
	_ Scope = SiteScope{}
	_ Scope = NetworkScope{}
)
