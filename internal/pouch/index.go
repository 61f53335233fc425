package pouch

// Item is one content entry, a single card in the UI.
type Item struct {
	ID       string
	Name     string
	Category string
	Fact     string
}

// ContentIndex exposes the static content catalog: which categories exist,
// in fixed download-priority order, and which items belong to each. The
// index never changes within one content version.
type ContentIndex interface {
	// Categories returns every category name in priority order.
	Categories() []string

	// Items returns the items belonging to category, empty when unknown.
	Items(category string) []*Item
}
