package pouch

// Asset roles shared by the manifest and the convention fallback.
const (
	RoleToyImage  = "toy_image"
	RoleRealImage = "real_image"
	RoleNameAudio = "name_audio"
	RoleFactAudio = "fact_audio"
)

// fetchItem is one planned download: the item and role a URL belongs to.
type fetchItem struct {
	ContentID string
	Role      string
	URL       string
}

// conventionPaths derives the four standard asset paths for a content item.
// This is the published directory layout; it holds for every item the
// generator has processed, so it doubles as the manifest-less fallback.
func conventionPaths(id string) []fetchItem {
	return []fetchItem{
		{ContentID: id, Role: RoleToyImage, URL: "images/toy_mode/" + id + ".webp"},
		{ContentID: id, Role: RoleRealImage, URL: "images/real_mode/" + id + ".webp"},
		{ContentID: id, Role: RoleNameAudio, URL: "audio/names/" + id + "_name.mp3"},
		{ContentID: id, Role: RoleFactAudio, URL: "audio/facts/" + id + "_fact.mp3"},
	}
}

// planFetches resolves the download list for items: manifest paths when an
// entry exists, convention paths otherwise. A nil manifest sends every item
// down the convention route.
func planFetches(m *Manifest, items []*Item) []fetchItem {
	plan := make([]fetchItem, 0, 4*len(items))
	for _, item := range items {
		if m != nil {
			if paths, ok := m.Assets[item.ID]; ok && len(paths) > 0 {
				for role, p := range paths {
					plan = append(plan, fetchItem{ContentID: item.ID, Role: role, URL: p})
				}
				continue
			}
		}
		plan = append(plan, conventionPaths(item.ID)...)
	}
	return plan
}
