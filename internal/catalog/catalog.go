package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/ticket-routing/internal/domain"
)

//go:embed default_priorities.yaml
var defaultTable []byte

// Catalog maps a ticket's (category, subcategory) to its initial priority.
// It is immutable once loaded.
type Catalog struct {
	entries map[string]map[string]domain.TicketPriority
}

type document struct {
	Categories map[string]map[string]string `yaml:"categories"`
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultTable)
}

// Load reads a catalog from path, or returns Default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read priority table: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML priority table. Names are matched case-insensitively.
func Parse(raw []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode priority table: %w", err)
	}
	if len(doc.Categories) == 0 {
		return nil, fmt.Errorf("priority table has no categories")
	}

	entries := make(map[string]map[string]domain.TicketPriority, len(doc.Categories))
	for category, subs := range doc.Categories {
		key := normalize(category)
		if _, dup := entries[key]; dup {
			return nil, fmt.Errorf("category %q listed twice", category)
		}
		bucket := make(map[string]domain.TicketPriority, len(subs))
		for sub, priority := range subs {
			p := domain.TicketPriority(strings.ToLower(strings.TrimSpace(priority)))
			if !p.Valid() {
				return nil, fmt.Errorf("category %q subcategory %q: unknown priority %q", category, sub, priority)
			}
			bucket[normalize(sub)] = p
		}
		entries[key] = bucket
	}
	return &Catalog{entries: entries}, nil
}

// Lookup returns the priority for the pair; false means the pair is unknown.
func (c *Catalog) Lookup(category, subcategory string) (domain.TicketPriority, bool) {
	subs, ok := c.entries[normalize(category)]
	if !ok {
		return "", false
	}
	p, ok := subs[normalize(subcategory)]
	return p, ok
}

// Categories lists known category names in sorted order.
func (c *Catalog) Categories() []string {
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
