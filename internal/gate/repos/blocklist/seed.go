package blocklist

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	logpkg "github.com/haukened/tempmail-gate/internal/gate/common/log"
	"github.com/haukened/tempmail-gate/internal/gate/common/utils"
	"github.com/haukened/tempmail-gate/internal/gate/repos/blocklist/parsers"
)

//go:embed seed/blocklist.txt
var defaultSeed []byte

// Seed is the immutable bundled list, held in memory.
type Seed struct {
	names []string
	exact map[string]struct{}
}

// NewSeed builds a Seed from names.
func NewSeed(names []string) *Seed {
	names = utils.CanonicalDomains(names)
	s := &Seed{
		names: names,
		exact: make(map[string]struct{}, len(names)),
	}
	for _, n := range names {
		s.exact[n] = struct{}{}
	}
	return s
}

// LoadSeed reads a list from path, or the bundled default when path is empty.
// Files ending in .hosts are read in hosts format.
func LoadSeed(path string, logger logpkg.Logger) (*Seed, error) {
	data := defaultSeed
	source := "embedded"
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read seed list: %w", err)
		}
		data = b
		source = path
	}
	names, err := parsers.ParseList(bytes.NewReader(data), source, logger)
	if err != nil {
		return nil, fmt.Errorf("parse seed list %s: %w", source, err)
	}
	logger.Info(map[string]any{"source": source, "count": len(names)}, "seed list loaded")
	return NewSeed(names), nil
}

// Contains reports whether the canonical name is in the seed list.
func (s *Seed) Contains(name string) bool {
	if s == nil || name == "" {
		return false
	}
	_, ok := s.exact[name]
	return ok
}

// Domains returns a copy of the seed list in file order.
func (s *Seed) Domains() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of seed domains.
func (s *Seed) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}
