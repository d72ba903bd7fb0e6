package domain

import (
	"fmt"
	"strings"
)

// BlockSource identifies which list produced a block.
type BlockSource uint8

const (
	// SourceNone means no list matched.
	SourceNone BlockSource = iota
	// SourceSeed is the bundled seed list.
	SourceSeed
	// SourceRemote is the periodically refreshed feed.
	SourceRemote
	// SourceAdmin is the admin-curated blocklist.
	SourceAdmin
)

// String returns a stable string representation of the source.
func (s BlockSource) String() string {
	switch s {
	case SourceNone:
		return "none"
	case SourceSeed:
		return "seed"
	case SourceRemote:
		return "remote"
	case SourceAdmin:
		return "admin"
	default:
		return fmt.Sprintf("BlockSource(%d)", s)
	}
}

// ParseBlockSource converts a string into a BlockSource (case-insensitive).
func ParseBlockSource(s string) (BlockSource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return SourceNone, nil
	case "seed":
		return SourceSeed, nil
	case "remote":
		return SourceRemote, nil
	case "admin":
		return SourceAdmin, nil
	default:
		return 0, fmt.Errorf("unsupported BlockSource: %q", s)
	}
}

// BlockDecision is the outcome of evaluating one domain. Pure value type.
type BlockDecision struct {
	Domain      string      // canonical domain that was evaluated
	Blocked     bool        // true if the domain must be rejected
	Whitelisted bool        // true if the whitelist overrode the lists
	Source      BlockSource // first list that contained the domain
}

// IsBlocked is a convenience accessor.
func (d BlockDecision) IsBlocked() bool { return d.Blocked }

// AllowDecision returns a not-blocked decision for name.
func AllowDecision(name string) BlockDecision { return BlockDecision{Domain: name} }
