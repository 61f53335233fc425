package pouch

import "time"

// Meta keys owned by the sync subsystem.
const (
	// MetaContentVersion is the last manifest version this store synced against.
	MetaContentVersion = "content_version"
	// MetaInitialSyncComplete is "true" once every priority category has a record.
	MetaInitialSyncComplete = "initial_sync_complete"
)

// CategoryRecord marks one category's asset bundle as fetched into the cache.
// Its presence is the offline-availability signal: callers treat the category
// as unlocked once a record exists. Completion is best-effort; AssetCount is
// the number of assets attempted, FetchedCount the number actually cached.
type CategoryRecord struct {
	Name         string
	AssetCount   int
	FetchedCount int
	CompletedAt  time.Time
}

// AssetRecord tracks a single cached asset by content item and role.
type AssetRecord struct {
	ContentID string
	Category  string
	Role      string
	URL       string
	Size      int64
	FetchedAt time.Time
}

// SyncRun is one recorded invocation of a store-mutating operation.
// Fetched and Failed are filled in when the run finishes.
type SyncRun struct {
	ID         string
	Operation  string
	Parameters string
	Status     string
	Fetched    int
	Failed     int
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Store persists category completion records, per-asset bookkeeping and the
// sync run history across restarts. Lookups return nil (not an error) when a
// record is missing. Implementations must be safe for concurrent use.
type Store interface {
	PutCategory(rec *CategoryRecord) error
	GetCategory(name string) (*CategoryRecord, error)
	ListCategories() ([]*CategoryRecord, error)
	ClearCategories() error

	PutAsset(rec *AssetRecord) error
	GetAsset(contentID, role string) (*AssetRecord, error)
	// ListAssets returns the records for one category, or every record when
	// category is empty.
	ListAssets(category string) ([]*AssetRecord, error)
	ClearAssets() error

	// GetMeta returns "" when the key is unset.
	GetMeta(key string) (string, error)
	SetMeta(key, value string) error
	DeleteMeta(key string) error

	CreateSyncRun(operation, parameters string) (*SyncRun, error)
	// SetSyncRunParameters fills in the parameters of a run created before
	// they were known.
	SetSyncRunParameters(id, parameters string) error
	FinishSyncRun(id, status string, fetched, failed int) error
	// ListSyncRuns returns up to limit runs, newest first.
	ListSyncRuns(limit int) ([]*SyncRun, error)

	// CheckMigrations verifies the backing schema is at the expected version.
	CheckMigrations() error
	Close() error
}
