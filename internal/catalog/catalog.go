package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"pouch-go/internal/pouch"
)

//go:embed data/catalog.json
var catalogJSON []byte

// categoryOrder is the fixed download priority: familiar categories first,
// then progressively less familiar habitats.
var categoryOrder = []string{
	"Farm",
	"Domestic",
	"Forest",
	"Jungle",
	"Nocturnal",
	"Arctic",
	"Shallow Water",
	"Coral Reef",
	"Deep Sea",
	"Ultra Deep Sea",
}

// StaticIndex is a ContentIndex backed by the embedded catalog file.
type StaticIndex struct {
	order []string
	items map[string][]*pouch.Item
}

// catalogItem is the JSON shape of one catalog entry.
type catalogItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Fact     string `json:"fact"`
}

// NewStaticIndex parses the embedded catalog into an index.
func NewStaticIndex() (*StaticIndex, error) {
	return parseIndex(catalogJSON)
}

func parseIndex(data []byte) (*StaticIndex, error) {
	var raw []catalogItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	idx := &StaticIndex{items: make(map[string][]*pouch.Item)}
	seen := make(map[string]bool)
	for _, it := range raw {
		if it.Name == "" {
			return nil, fmt.Errorf("catalog item without a name")
		}
		if it.Category == "" {
			return nil, fmt.Errorf("catalog item %q without a category", it.Name)
		}

		id := it.ID
		if id == "" {
			id = Slugify(it.Name)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate catalog id: %s", id)
		}
		seen[id] = true

		idx.items[it.Category] = append(idx.items[it.Category], &pouch.Item{
			ID:       id,
			Name:     it.Name,
			Category: it.Category,
			Fact:     it.Fact,
		})
	}

	// Categories appear in priority order; anything the priority list does
	// not know goes last, in file order.
	remaining := make(map[string]bool, len(idx.items))
	for cat := range idx.items {
		remaining[cat] = true
	}
	for _, cat := range categoryOrder {
		if remaining[cat] {
			idx.order = append(idx.order, cat)
			delete(remaining, cat)
		}
	}
	for _, it := range raw {
		if remaining[it.Category] {
			idx.order = append(idx.order, it.Category)
			delete(remaining, it.Category)
		}
	}

	return idx, nil
}

// Categories returns category names in download priority order.
func (x *StaticIndex) Categories() []string {
	out := make([]string, len(x.order))
	copy(out, x.order)
	return out
}

// Items returns the items belonging to category, empty when unknown.
func (x *StaticIndex) Items(category string) []*pouch.Item {
	return x.items[category]
}

// Slugify converts a display name to the id form used in asset paths:
// lowercase, spaces and hyphens become underscores, parentheses are dropped.
func Slugify(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "(", "")
	s = strings.ReplaceAll(s, ")", "")
	return s
}

// Compile-time check that StaticIndex implements pouch.ContentIndex
var _ pouch.ContentIndex = (*StaticIndex)(nil)
