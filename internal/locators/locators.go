// internal/locators/locators.go
package locators

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/pvmonitor/harvest-cli/internal/harvest"
)

// category holds the two lookup tables a device category exposes in the
// quick-analysis panel.
type category struct {
	Elements   map[string]string `yaml:"elements"`
	Parameters map[string]string `yaml:"parameters"`
}

type catalogFile struct {
	Categories map[string]category `yaml:"categories"`
}

// Catalog is a pure, immutable lookup from (category, kind, name) to a
// locator, loaded from a YAML file so the core carries no embedded selector
// data. It implements harvest.LocatorResolver.
type Catalog struct {
	categories map[string]category
}

var _ harvest.LocatorResolver = (*Catalog)(nil)

// Load reads and parses a catalog file.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading locator catalog: %w", err)
	}
	catalog, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("locator catalog %s: %w", path, err)
	}
	return catalog, nil
}

// Parse builds a catalog from YAML bytes.
func Parse(raw []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if len(file.Categories) == 0 {
		return nil, fmt.Errorf("catalog defines no categories")
	}
	return &Catalog{categories: file.Categories}, nil
}

// Resolve looks up the locator for a named element or parameter. The second
// return is false when the category, kind or name is unknown; callers treat
// that as a soft, per-item miss.
func (c *Catalog) Resolve(cat string, kind harvest.LocatorKind, name string) (harvest.Locator, bool) {
	entry, ok := c.categories[cat]
	if !ok {
		return "", false
	}
	var table map[string]string
	switch kind {
	case harvest.KindElements:
		table = entry.Elements
	case harvest.KindParameters:
		table = entry.Parameters
	default:
		return "", false
	}
	loc, ok := table[name]
	if !ok || loc == "" {
		return "", false
	}
	return harvest.Locator(loc), true
}

// Categories lists the known category keys, sorted for stable output.
func (c *Catalog) Categories() []string {
	keys := make([]string, 0, len(c.categories))
	for k := range c.categories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
