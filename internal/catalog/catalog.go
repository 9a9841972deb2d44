// Package catalog holds the declared goal counts per learning item and level.
// The view declares how many goals each item has; the sync core sizes its
// sequences and computes percentages from these counts, never from the tree.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/studysync/internal/store"
)

// Item declares the goals of one identifier.
type Item struct {
	Identifier string         `yaml:"identifier"`
	Levels     map[string]int `yaml:"levels"`
	// TotalGoals overrides the sum of level counts when set.
	TotalGoals int `yaml:"total_goals"`
}

type file struct {
	Items []Item `yaml:"items"`
}

// Catalog is an immutable lookup of declared goal counts. It is safe for
// concurrent use.
type Catalog struct {
	levels map[string]map[store.Level]int
	totals map[string]int
	order  []string
}

// Empty returns a catalog declaring nothing.
func Empty() *Catalog {
	return &Catalog{
		levels: map[string]map[store.Level]int{},
		totals: map[string]int{},
	}
}

// Load reads a YAML catalog from path.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML catalog document.
func Parse(raw []byte) (*Catalog, error) {
	var doc file
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(doc.Items)
}

// New builds a Catalog from items, rejecting duplicates, unknown levels and
// negative counts.
func New(items []Item) (*Catalog, error) {
	c := Empty()
	for i, item := range items {
		id := strings.TrimSpace(item.Identifier)
		if id == "" {
			return nil, fmt.Errorf("catalog item %d: identifier is required", i)
		}
		if _, dup := c.levels[id]; dup {
			return nil, fmt.Errorf("catalog item %q: duplicate identifier", id)
		}
		levels := make(map[store.Level]int, len(item.Levels))
		sum := 0
		for name, count := range item.Levels {
			level, err := store.ParseLevel(name)
			if err != nil {
				return nil, fmt.Errorf("catalog item %q: %w", id, err)
			}
			if count < 0 {
				return nil, fmt.Errorf("catalog item %q: level %s has negative goal count", id, level)
			}
			levels[level] += count
			sum += count
		}
		total := item.TotalGoals
		if total < 0 {
			return nil, fmt.Errorf("catalog item %q: total_goals must be >= 0", id)
		}
		if total == 0 {
			total = sum
		}
		c.levels[id] = levels
		c.totals[id] = total
		c.order = append(c.order, id)
	}
	return c, nil
}

// GoalCount returns the declared goal count for (identifier, level), or 0.
func (c *Catalog) GoalCount(identifier string, level store.Level) int {
	if c == nil {
		return 0
	}
	return c.levels[identifier][level]
}

// TotalGoals returns the declared total goal count for identifier, or 0.
func (c *Catalog) TotalGoals(identifier string) int {
	if c == nil {
		return 0
	}
	return c.totals[identifier]
}

// Identifiers lists declared identifiers in file order.
func (c *Catalog) Identifiers() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.order...)
}

// Sorted lists declared identifiers alphabetically.
func (c *Catalog) Sorted() []string {
	ids := c.Identifiers()
	sort.Strings(ids)
	return ids
}
