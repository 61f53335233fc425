package pouch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Download tuning defaults.
const (
	DefaultNamespace = "pouch-assets-v1"
	DefaultWorkers   = 6

	defaultEmitEvery = 150 * time.Millisecond
	defaultPause     = 250 * time.Millisecond
)

// SyncOptions tunes the download orchestrator. Zero values select defaults.
type SyncOptions struct {
	Namespace string        // cache namespace assets are stored under
	Workers   int           // concurrent fetches within one category
	EmitEvery time.Duration // minimum interval between progress reports
	Pause     time.Duration // pause between categories in DownloadAll
}

func (o SyncOptions) withDefaults() SyncOptions {
	if o.Namespace == "" {
		o.Namespace = DefaultNamespace
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.EmitEvery <= 0 {
		o.EmitEvery = defaultEmitEvery
	}
	if o.Pause <= 0 {
		o.Pause = defaultPause
	}
	return o
}

// SyncService materializes category asset bundles into the cache and answers
// offline-availability queries. One instance owns the in-memory downloaded
// set and the manifest memo; construct it once at startup and share it with
// every caller.
type SyncService struct {
	store    Store
	cache    AssetCache
	origin   Origin
	index    ContentIndex
	manifest *ManifestLoader
	opts     SyncOptions
	logger   Logger
	clock    Clock

	group singleflight.Group

	// Session totals, reported into the sync run history on shutdown.
	fetchedTotal atomic.Int64
	failedTotal  atomic.Int64

	mu         sync.RWMutex
	downloaded map[string]bool
	current    string
	currentPct float64
	notify     ProgressFunc
}

// NewSyncService wires a SyncService from its dependencies. Call LoadState
// before serving availability queries.
func NewSyncService(store Store, cache AssetCache, origin Origin, index ContentIndex, manifest *ManifestLoader, opts SyncOptions, logger Logger, clock Clock) *SyncService {
	return &SyncService{
		store:      store,
		cache:      cache,
		origin:     origin,
		index:      index,
		manifest:   manifest,
		opts:       opts.withDefaults(),
		logger:     logger,
		clock:      clock,
		downloaded: make(map[string]bool),
	}
}

// SetProgressFunc registers fn to receive per-category progress reports.
func (s *SyncService) SetProgressFunc(fn ProgressFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = fn
}

// LoadState seeds the in-memory downloaded set from the store. Run once at
// startup, after the version guard has settled the stored state.
func (s *SyncService) LoadState() error {
	recs, err := s.store.ListCategories()
	if err != nil {
		return fmt.Errorf("loading category records: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloaded = make(map[string]bool, len(recs))
	for _, rec := range recs {
		s.downloaded[rec.Name] = true
	}
	return nil
}

// IsCategoryDownloaded reports offline availability from the in-memory set.
// It never touches the store.
func (s *SyncService) IsCategoryDownloaded(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.downloaded[name]
}

// Progress returns overall completion across the priority list in [0, 100].
func (s *SyncService) Progress() float64 {
	cats := s.index.Categories()
	if len(cats) == 0 {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range cats {
		if s.downloaded[c] {
			n++
		}
	}
	return 100 * float64(n) / float64(len(cats))
}

// Totals returns how many assets this session has successfully ensured in
// the cache and how many fetch attempts failed.
func (s *SyncService) Totals() (fetched, failed int) {
	return int(s.fetchedTotal.Load()), int(s.failedTotal.Load())
}

// Current returns the category being downloaded right now and its own
// percent-complete. Both are zero when no download is running.
func (s *SyncService) Current() (string, float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.currentPct
}

// InitialSyncComplete reports whether a full priority-list sync has finished
// since the last purge.
func (s *SyncService) InitialSyncComplete() (bool, error) {
	v, err := s.store.GetMeta(MetaInitialSyncComplete)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

// DownloadCategory fetches every asset in the named category into the cache
// and records completion. Calling it for an already-downloaded category is a
// no-op, and simultaneous calls for the same category collapse into a single
// fetch pass. Individual asset failures are logged and skipped, never fatal.
func (s *SyncService) DownloadCategory(ctx context.Context, name string) error {
	_, err, _ := s.group.Do(name, func() (any, error) {
		return nil, s.downloadCategory(ctx, name)
	})
	return err
}

func (s *SyncService) downloadCategory(ctx context.Context, name string) error {
	// The store, not the in-memory set, is the idempotency authority: a
	// record written by an earlier process (or a racing caller) must
	// short-circuit even before LoadState has seen it.
	rec, err := s.store.GetCategory(name)
	if err != nil {
		return fmt.Errorf("checking category record: %w", err)
	}
	if rec != nil {
		s.mu.Lock()
		s.downloaded[name] = true
		s.mu.Unlock()
		s.logger.Debug("category already downloaded", "category", name)
		return nil
	}

	items := s.index.Items(name)
	if len(items) == 0 {
		return fmt.Errorf("unknown category: %s", name)
	}

	manifest, err := s.manifest.Load(ctx)
	if err != nil {
		s.logger.Warn("manifest unavailable, using convention paths", "category", name, "error", err)
		manifest = nil
	}
	plan := planFetches(manifest, items)

	s.logger.Info("downloading category", "category", name, "items", len(items), "assets", len(plan))

	s.setCurrent(name, 0)
	defer s.setCurrent("", 0)

	s.mu.RLock()
	notify := s.notify
	s.mu.RUnlock()

	tracker := newProgressTracker(name, len(plan), s.clock, s.opts.EmitEvery, func(p CategoryProgress) {
		s.setCurrent(name, p.Percent())
		if notify != nil {
			notify(p)
		}
	})

	fetched := s.fetchAll(ctx, plan, name, tracker)

	if err := s.store.PutCategory(&CategoryRecord{
		Name:         name,
		AssetCount:   len(plan),
		FetchedCount: fetched,
		CompletedAt:  s.clock.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("recording category completion: %w", err)
	}

	s.mu.Lock()
	s.downloaded[name] = true
	s.mu.Unlock()

	s.logger.Info("category downloaded", "category", name, "fetched", fetched, "assets", len(plan))
	return nil
}

// DownloadAll fetches every category in priority order, strictly
// sequentially, with a short pause between categories to avoid burst
// contention. Once every category has a completion record the initial-sync
// flag is set.
func (s *SyncService) DownloadAll(ctx context.Context) error {
	cats := s.index.Categories()
	for i, name := range cats {
		if s.IsCategoryDownloaded(name) {
			continue
		}
		if err := s.DownloadCategory(ctx, name); err != nil {
			return err
		}
		if i < len(cats)-1 {
			select {
			case <-time.After(s.opts.Pause):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if s.Progress() >= 100 {
		if err := s.store.SetMeta(MetaInitialSyncComplete, "true"); err != nil {
			return fmt.Errorf("recording initial sync completion: %w", err)
		}
		s.logger.Info("initial sync complete", "categories", len(cats))
	}
	return nil
}

func (s *SyncService) setCurrent(name string, pct float64) {
	s.mu.Lock()
	s.current = name
	s.currentPct = pct
	s.mu.Unlock()
}

// fetchAll drains the plan with a fixed pool of workers sharing an atomic
// index. Completion order across workers is unordered, but every entry is
// attempted exactly once. Returns the number of assets present in the cache
// afterwards.
func (s *SyncService) fetchAll(ctx context.Context, plan []fetchItem, category string, tracker *progressTracker) int {
	workers := s.opts.Workers
	if workers > len(plan) {
		workers = len(plan)
	}

	var next atomic.Int64
	next.Store(-1)
	var cached atomic.Int64

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1))
				if i >= len(plan) {
					return
				}
				if s.fetchOne(ctx, plan[i], category) {
					cached.Add(1)
				}
				tracker.step()
			}
		}()
	}
	wg.Wait()

	return int(cached.Load())
}

// fetchOne ensures one asset is cached, reporting whether it is present
// afterwards. Already-cached entries skip the network; fetch and write
// failures are logged and absorbed.
func (s *SyncService) fetchOne(ctx context.Context, f fetchItem, category string) bool {
	ns := s.opts.Namespace

	have, err := s.cache.Has(ns, f.URL)
	if err != nil {
		s.logger.Warn("cache check failed", "url", f.URL, "error", err)
	}
	if have {
		return true
	}

	body, err := s.origin.Fetch(ctx, f.URL)
	if err != nil {
		s.logger.Warn("asset fetch failed", "url", f.URL, "error", err)
		s.failedTotal.Add(1)
		return false
	}
	defer body.Close()

	size, err := s.cache.Put(ns, f.URL, body)
	if err != nil {
		s.logger.Warn("asset cache write failed", "url", f.URL, "error", err)
		s.failedTotal.Add(1)
		return false
	}
	s.fetchedTotal.Add(1)

	if err := s.store.PutAsset(&AssetRecord{
		ContentID: f.ContentID,
		Category:  category,
		Role:      f.Role,
		URL:       f.URL,
		Size:      size,
		FetchedAt: s.clock.Now().UTC(),
	}); err != nil {
		s.logger.Warn("asset record write failed", "url", f.URL, "error", err)
	}
	return true
}
