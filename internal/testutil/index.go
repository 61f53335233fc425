package testutil

import (
	"pouch-go/internal/catalog"
	"pouch-go/internal/pouch"
)

// FakeIndex is a ContentIndex built in tests: categories in the order they
// were added, item IDs derived from names with the catalog slugify rule.
type FakeIndex struct {
	order []string
	items map[string][]*pouch.Item
}

func NewFakeIndex() *FakeIndex {
	return &FakeIndex{items: make(map[string][]*pouch.Item)}
}

// AddCategory registers a category holding one item per name. Call order
// defines the priority order.
func (x *FakeIndex) AddCategory(name string, itemNames ...string) *FakeIndex {
	x.order = append(x.order, name)
	for _, n := range itemNames {
		x.items[name] = append(x.items[name], &pouch.Item{
			ID:       catalog.Slugify(n),
			Name:     n,
			Category: name,
		})
	}
	return x
}

func (x *FakeIndex) Categories() []string {
	out := make([]string, len(x.order))
	copy(out, x.order)
	return out
}

func (x *FakeIndex) Items(category string) []*pouch.Item {
	return x.items[category]
}
