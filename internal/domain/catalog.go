package domain

import (
	"strings"

	"github.com/kapu/pizzabot-go/internal/util"
)

// CatalogEntry is a single orderable item. Entries are immutable and unique
// by name, compared case-insensitively.
type CatalogEntry struct {
	Name string `json:"name"`
}

// Catalog is the fixed list of orderable item names, loaded once at startup.
// Declared order is preserved because the matcher resolves score ties in
// favor of the entry scanned first.
type Catalog struct {
	entries []CatalogEntry
	byName  map[string]string
}

// NewCatalog builds a catalog from item names. Duplicate names (ignoring
// case) keep their first occurrence.
func NewCatalog(names []string) *Catalog {
	c := &Catalog{
		entries: make([]CatalogEntry, 0, len(names)),
		byName:  make(map[string]string, len(names)),
	}
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		key := util.Normalize(trimmed)
		if _, exists := c.byName[key]; exists {
			continue
		}
		c.byName[key] = trimmed
		c.entries = append(c.entries, CatalogEntry{Name: trimmed})
	}
	return c
}

// Entries returns catalog entries in declared order.
func (c *Catalog) Entries() []CatalogEntry {
	return c.entries
}

// Names returns catalog item names in declared order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.Name
	}
	return names
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// FindExact resolves input to a catalog name by exact case-insensitive
// equality. Users replying to an explicit menu must always succeed this way,
// even when semantic similarity would not.
func (c *Catalog) FindExact(input string) (string, bool) {
	name, ok := c.byName[util.Normalize(input)]
	return name, ok
}

// Words returns the distinct lowercase words that appear in catalog names.
// The intent parser uses them as a last-resort lexicon when the product noun
// is absent from a sentence.
func (c *Catalog) Words() []string {
	seen := make(map[string]bool)
	var words []string
	for _, e := range c.entries {
		for _, w := range strings.Fields(util.Normalize(e.Name)) {
			if !seen[w] {
				seen[w] = true
				words = append(words, w)
			}
		}
	}
	return words
}

// DefaultMenu is the compiled-in catalog used when the menu table is
// unavailable at startup.
func DefaultMenu() []string {
	return []string{
		"Pepperoni",
		"Margherita",
		"Vegetarian",
		"Hawaiian",
		"Meat Lovers",
		"BBQ Chicken",
		"Supreme",
		"Four Cheese",
	}
}
