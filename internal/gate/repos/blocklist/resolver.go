package blocklist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haukened/tempmail-gate/internal/gate/common/clock"
	logpkg "github.com/haukened/tempmail-gate/internal/gate/common/log"
	"github.com/haukened/tempmail-gate/internal/gate/common/utils"
	"github.com/haukened/tempmail-gate/internal/gate/domain"
	"github.com/haukened/tempmail-gate/internal/gate/repos/options"
)

// Stats summarizes list sizes for the admin view.
type Stats struct {
	Seed          int       `json:"seed"`
	Remote        int       `json:"remote"`
	Admin         int       `json:"admin"`
	Combined      int       `json:"combined"`
	Whitelist     int       `json:"whitelist"`
	RemoteUpdated time.Time `json:"remote_updated"`
}

// Options configures a Resolver.
type Options struct {
	Seed   *Seed
	Lists  options.Store // namespace holding the admin, whitelist and remote lists
	Clock  clock.Clock
	Logger logpkg.Logger
	// Bloom builds the remote list prefilter. Nil reads the remote list on
	// every lookup.
	Bloom  BloomFactory
}

// remoteFPRate keeps prefilter false positives rare; each one costs a read of
// the full remote list.
const remoteFPRate = 0.001

// remoteIndex is a Bloom filter over one stored remote list, identified by
// the refresh stamp it was built from.
type remoteIndex struct {
	stamp  time.Time
	filter BloomFilter
}

// Resolver answers membership questions for one site. Every call reads the
// persisted lists again; caching is left to the option store. With a Bloom
// factory, lookups of names absent from the remote list skip reading it.
type Resolver struct {
	seed   *Seed
	lists  options.Store
	clock  clock.Clock
	logger logpkg.Logger
	bloom  BloomFactory
	remote atomic.Pointer[remoteIndex]

	// serializes read-modify-write of a list within this process
	mu sync.Mutex
}

// NewResolver builds a Resolver. Seed may be nil.
func NewResolver(opts Options) *Resolver {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNoopLogger()
	}
	return &Resolver{
		seed:   opts.Seed,
		lists:  opts.Lists,
		clock:  opts.Clock,
		logger: opts.Logger,
		bloom:  opts.Bloom,
	}
}

// Combined returns seed ∪ remote ∪ admin, lowercased and de-duplicated.
func (r *Resolver) Combined(ctx context.Context) ([]string, error) {
	remote, err := r.readList(ctx, domain.KeyRemoteBlocklist)
	if err != nil {
		return nil, err
	}
	admin, err := r.readList(ctx, domain.KeyAdminBlocklist)
	if err != nil {
		return nil, err
	}
	all := make([]string, 0, r.seed.Len()+len(remote)+len(admin))
	all = append(all, r.seed.Domains()...)
	all = append(all, remote...)
	all = append(all, admin...)
	return utils.CanonicalDomains(all), nil
}

// Whitelist returns the allow list.
func (r *Resolver) Whitelist(ctx context.Context) ([]string, error) {
	return r.readList(ctx, domain.KeyWhitelist)
}

// AdminBlocklist returns only the admin-curated additions.
func (r *Resolver) AdminBlocklist(ctx context.Context) ([]string, error) {
	return r.readList(ctx, domain.KeyAdminBlocklist)
}

// Remote returns the last successfully fetched feed.
func (r *Resolver) Remote(ctx context.Context) ([]string, error) {
	return r.readList(ctx, domain.KeyRemoteBlocklist)
}

// Decide evaluates one domain. The whitelist wins over every block source.
// Source reports the first list holding the domain, in seed, remote, admin order.
func (r *Resolver) Decide(ctx context.Context, name string) (domain.BlockDecision, error) {
	name = utils.CanonicalDomain(name)
	if name == "" {
		return domain.AllowDecision(name), nil
	}

	allow, err := r.readList(ctx, domain.KeyWhitelist)
	if err != nil {
		return domain.AllowDecision(name), err
	}
	if contains(allow, name) {
		return domain.BlockDecision{Domain: name, Whitelisted: true}, nil
	}

	if r.seed.Contains(name) {
		return domain.BlockDecision{Domain: name, Blocked: true, Source: domain.SourceSeed}, nil
	}
	for _, src := range []struct {
		key    string
		source domain.BlockSource
	}{
		{domain.KeyRemoteBlocklist, domain.SourceRemote},
		{domain.KeyAdminBlocklist, domain.SourceAdmin},
	} {
		if src.key == domain.KeyRemoteBlocklist {
			maybe, err := r.remoteMightContain(ctx, name)
			if err != nil {
				return domain.AllowDecision(name), err
			}
			if !maybe {
				continue
			}
		}
		list, err := r.readList(ctx, src.key)
		if err != nil {
			return domain.AllowDecision(name), err
		}
		if contains(list, name) {
			return domain.BlockDecision{Domain: name, Blocked: true, Source: src.source}, nil
		}
	}
	return domain.AllowDecision(name), nil
}

// AddToBlocklist adds name to the admin blocklist.
func (r *Resolver) AddToBlocklist(ctx context.Context, name string) error {
	return r.add(ctx, domain.KeyAdminBlocklist, name)
}

// RemoveFromBlocklist removes name from the admin blocklist. Seed and remote
// entries are not affected.
func (r *Resolver) RemoveFromBlocklist(ctx context.Context, name string) error {
	return r.remove(ctx, domain.KeyAdminBlocklist, name)
}

// AddToWhitelist adds name to the allow list.
func (r *Resolver) AddToWhitelist(ctx context.Context, name string) error {
	return r.add(ctx, domain.KeyWhitelist, name)
}

// RemoveFromWhitelist removes name from the allow list.
func (r *Resolver) RemoveFromWhitelist(ctx context.Context, name string) error {
	return r.remove(ctx, domain.KeyWhitelist, name)
}

// ReplaceRemote stores names as the new remote list in one write and stamps
// the refresh time.
func (r *Resolver) ReplaceRemote(ctx context.Context, names []string) error {
	names = utils.CanonicalDomains(names)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := options.SetValue(ctx, r.lists, domain.KeyRemoteBlocklist, names); err != nil {
		return err
	}
	r.remote.Store(nil)
	if err := options.SetValue(ctx, r.lists, domain.KeyRemoteUpdated, r.clock.Now().UTC()); err != nil {
		return err
	}
	r.logger.Info(map[string]any{"namespace": r.lists.Namespace(), "count": len(names)}, "remote list replaced")
	return nil
}

// LastRemoteUpdate returns when the remote list was last replaced, or the
// zero time if it never was.
func (r *Resolver) LastRemoteUpdate(ctx context.Context) (time.Time, error) {
	t, err := options.GetValue(ctx, r.lists, domain.KeyRemoteUpdated, time.Time{})
	if errors.Is(err, options.ErrDecode) {
		return time.Time{}, nil
	}
	return t, err
}

// remoteMightContain consults the prefilter of the stored remote list,
// rebuilding it whenever the refresh stamp has moved. A false result is
// definite.
func (r *Resolver) remoteMightContain(ctx context.Context, name string) (bool, error) {
	if r.bloom == nil {
		return true, nil
	}
	stamp, err := r.LastRemoteUpdate(ctx)
	if err != nil {
		return true, err
	}
	if idx := r.remote.Load(); idx != nil && idx.stamp.Equal(stamp) {
		return idx.filter.MightContain([]byte(name)), nil
	}
	list, err := r.readList(ctx, domain.KeyRemoteBlocklist)
	if err != nil {
		return true, err
	}
	idx := &remoteIndex{stamp: stamp, filter: r.bloom.New(uint64(len(list)), remoteFPRate)}
	for _, d := range list {
		idx.filter.Add([]byte(d))
	}
	r.remote.Store(idx)
	r.logger.Debug(map[string]any{"namespace": r.lists.Namespace(), "count": len(list)}, "remote prefilter rebuilt")
	return idx.filter.MightContain([]byte(name)), nil
}

// Stats reports the size of every list.
func (r *Resolver) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	remote, err := r.Remote(ctx)
	if err != nil {
		return st, err
	}
	admin, err := r.AdminBlocklist(ctx)
	if err != nil {
		return st, err
	}
	allow, err := r.Whitelist(ctx)
	if err != nil {
		return st, err
	}
	combined, err := r.Combined(ctx)
	if err != nil {
		return st, err
	}
	updated, err := r.LastRemoteUpdate(ctx)
	if err != nil {
		return st, err
	}
	st = Stats{
		Seed:          r.seed.Len(),
		Remote:        len(remote),
		Admin:         len(admin),
		Combined:      len(combined),
		Whitelist:     len(allow),
		RemoteUpdated: updated,
	}
	return st, nil
}

func (r *Resolver) add(ctx context.Context, key, name string) error {
	name = utils.CanonicalDomain(name)
	if name == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	list, err := r.readList(ctx, key)
	if err != nil {
		return err
	}
	if contains(list, name) {
		return nil
	}
	if err := options.SetValue(ctx, r.lists, key, append(list, name)); err != nil {
		return err
	}
	r.logger.Debug(map[string]any{"list": key, "domain": name}, "domain added")
	return nil
}

func (r *Resolver) remove(ctx context.Context, key, name string) error {
	name = utils.CanonicalDomain(name)
	if name == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	list, err := r.readList(ctx, key)
	if err != nil {
		return err
	}
	out := make([]string, 0, len(list))
	for _, d := range list {
		if d != name {
			out = append(out, d)
		}
	}
	if len(out) == len(list) {
		return nil
	}
	if err := options.SetValue(ctx, r.lists, key, out); err != nil {
		return err
	}
	r.logger.Debug(map[string]any{"list": key, "domain": name}, "domain removed")
	return nil
}

// readList returns the canonical contents of a list key. Imports store
// values verbatim, so every shape utils.DecodeList accepts is read; anything
// else reads as empty.
func (r *Resolver) readList(ctx context.Context, key string) ([]string, error) {
	raw, ok, err := r.lists.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", r.lists.Namespace(), key, err)
	}
	if !ok {
		return []string{}, nil
	}
	list, ok := utils.DecodeList(raw)
	if !ok {
		r.logger.Warn(map[string]any{"list": key, "namespace": r.lists.Namespace()}, "stored list has unexpected type, treating as empty")
		return []string{}, nil
	}
	return utils.CanonicalDomains(list), nil
}

func contains(list []string, name string) bool {
	for _, d := range list {
		if d == name {
			return true
		}
	}
	return false
}
