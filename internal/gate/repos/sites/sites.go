// Package sites loads the site directory: one file per tenant in YAML, JSON,
// or TOML, each carrying id, name, and admin_email.
package sites

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"

	"github.com/haukened/tempmail-gate/internal/gate/domain"
)

var siteIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// Load returns the configured sites. An empty dir yields the single default
// site; adminEmail becomes its notification address.
func Load(dir, adminEmail string) ([]domain.Site, error) {
	if dir == "" {
		return []domain.Site{{ID: domain.DefaultSiteID, AdminEmail: adminEmail}}, nil
	}
	sites, err := LoadDirectory(dir)
	if err != nil {
		return nil, err
	}
	if len(sites) == 0 {
		return nil, fmt.Errorf("site directory %s contains no site files", dir)
	}
	return sites, nil
}

// LoadDirectory walks dir and loads every supported site file, sorted by ID.
// Duplicate IDs are an error.
func LoadDirectory(dir string) ([]domain.Site, error) {
	var sites []domain.Site
	seen := make(map[string]string)

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		site, ok, err := loadSiteFile(path)
		if err != nil {
			return fmt.Errorf("error parsing site file %s: %w", path, err)
		}
		if !ok {
			return nil
		}
		if prev, dup := seen[site.ID]; dup {
			return fmt.Errorf("site %q defined in both %s and %s", site.ID, prev, path)
		}
		seen[site.ID] = path
		sites = append(sites, site)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].ID < sites[j].ID })
	return sites, nil
}

// loadSiteFile parses one file. ok is false for unsupported extensions.
// The ID defaults to the file name without extension.
func loadSiteFile(path string) (domain.Site, bool, error) {
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	case ".toml":
		parser = toml.Parser()
	default:
		return domain.Site{}, false, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return domain.Site{}, false, fmt.Errorf("failed to load site file %s: %w", path, err)
	}

	id := strings.ToLower(strings.TrimSpace(k.String("id")))
	if id == "" {
		id = strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	}
	if !siteIDPattern.MatchString(id) {
		return domain.Site{}, false, fmt.Errorf("invalid site id %q", id)
	}
	return domain.Site{
		ID:         id,
		Name:       strings.TrimSpace(k.String("name")),
		AdminEmail: strings.TrimSpace(k.String("admin_email")),
	}, true, nil
}
