package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"pouch-go/internal/blobcache"
	"pouch-go/internal/catalog"
	"pouch-go/internal/config"
	"pouch-go/internal/database"
	"pouch-go/internal/media"
	"pouch-go/internal/origin"
	"pouch-go/internal/pouch"
)

// PouchApp is the application layer between the CLI (or local API) and the
// sync engine. It constructs all dependencies from config, exposes
// high-level operations, and manages the store lifecycle on Close.
type PouchApp struct {
	cfg     *config.Config
	store   pouch.Store
	cache   pouch.AssetCache
	origin  pouch.Origin
	index   pouch.ContentIndex
	loader  *pouch.ManifestLoader
	guard   *pouch.VersionGuard
	service *pouch.SyncService
	op      *SyncOperation
	logger  pouch.Logger
	logFile *os.File
}

// NewPouchApp creates a fully wired PouchApp from the given config.
// operation identifies the CLI command being run (e.g. "DownloadCategory", "SyncAll").
// The caller must call Close when done.
func NewPouchApp(ctx context.Context, cfg *config.Config, operation string) (*PouchApp, error) {
	runID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	index, err := catalog.NewStaticIndex()
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("loading content index: %w", err)
	}

	org, err := origin.NewOriginFromConfig(ctx, cfg.Origin)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating origin: %w", err)
	}

	store, err := database.NewStoreFromConfig(cfg.Store)
	if err != nil {
		// A kiosk with a broken data directory still works for the
		// session: degrade to an ephemeral store rather than failing.
		log.Warn("store unavailable, degrading to in-memory store", "error", err)
		store, err = database.NewSQLiteStore(":memory:", nil, nil)
		if err != nil {
			logFile.Close()
			return nil, fmt.Errorf("creating fallback store: %w", err)
		}
	}

	if err := store.CheckMigrations(); err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("store schema out of date: %w", err)
	}

	cache, err := blobcache.NewCacheFromConfig(cfg.Cache)
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating asset cache: %w", err)
	}

	loader := pouch.NewManifestLoader(org, cfg.Sync.ManifestPath, log)
	guard := pouch.NewVersionGuard(store, cache, loader, cfg.Cache.Namespace, log)

	svc := pouch.NewSyncService(store, cache, org, index, loader, pouch.SyncOptions{
		Namespace: cfg.Cache.Namespace,
		Workers:   cfg.Sync.Workers,
	}, log, pouch.RealClock{})

	return &PouchApp{
		cfg:     cfg,
		store:   store,
		cache:   cache,
		origin:  org,
		index:   index,
		loader:  loader,
		guard:   guard,
		service: svc,
		op:      NewSyncOperation(operation, ""),
		logger:  log,
		logFile: logFile,
	}, nil
}

// persistOperation saves the sync operation to the store, giving it a run ID.
// This should only be called for store-mutating commands. A run persisted
// early (the startup Check has no category) picks up its parameters from the
// first call that carries them.
func (a *PouchApp) persistOperation(parameters string) error {
	if a.op.Persisted() {
		if parameters != "" && a.op.Parameters == "" {
			a.op.Parameters = parameters
			if err := a.store.SetSyncRunParameters(a.op.ID, parameters); err != nil {
				return fmt.Errorf("updating sync operation: %w", err)
			}
		}
		return nil
	}
	a.op.Parameters = parameters
	run, err := a.store.CreateSyncRun(a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting sync operation: %w", err)
	}
	a.op.ID = run.ID
	return nil
}

// fail marks the operation as errored and returns err unchanged.
func (a *PouchApp) fail(err error) error {
	if err != nil {
		a.op.Status = "error"
	}
	return err
}

// Check runs the startup version guard and seeds the in-memory downloaded
// set. Call it before any download or availability query.
func (a *PouchApp) Check(ctx context.Context) error {
	if err := a.persistOperation(""); err != nil {
		return err
	}
	if err := a.guard.Run(ctx); err != nil {
		return a.fail(fmt.Errorf("version check: %w", err))
	}
	if err := a.service.LoadState(); err != nil {
		return a.fail(fmt.Errorf("loading sync state: %w", err))
	}
	return nil
}

// DownloadCategory fetches one category's assets. Safe to call repeatedly;
// an already-downloaded category is a no-op.
func (a *PouchApp) DownloadCategory(ctx context.Context, name string) error {
	if err := a.persistOperation(name); err != nil {
		return err
	}
	return a.fail(a.service.DownloadCategory(ctx, name))
}

// SyncAll downloads every category in priority order.
func (a *PouchApp) SyncAll(ctx context.Context) error {
	if err := a.persistOperation(""); err != nil {
		return err
	}
	return a.fail(a.service.DownloadAll(ctx))
}

// Repair refetches assets that completed categories are missing from the
// cache. An empty category repairs everything. Returns the number of assets
// refetched.
func (a *PouchApp) Repair(ctx context.Context, category string) (int, error) {
	if err := a.persistOperation(category); err != nil {
		return 0, err
	}
	n, err := a.service.Repair(ctx, category)
	return n, a.fail(err)
}

// Verify inspects recorded assets, all or one category's. With deep set,
// image payloads are header-decoded instead of just type-sniffed.
func (a *PouchApp) Verify(ctx context.Context, category string, deep bool) (*pouch.VerifyReport, error) {
	return a.service.Verify(ctx, category, media.Check(deep))
}

// Purge deletes every record and cached payload, including the version
// marker, forcing a full resync on the next check.
func (a *PouchApp) Purge() error {
	if err := a.persistOperation(""); err != nil {
		return err
	}
	if err := a.fail(a.guard.Purge("")); err != nil {
		return err
	}
	return a.fail(a.service.LoadState())
}

// StatusReport summarizes the engine's offline state for display.
type StatusReport struct {
	Version             string
	InitialSyncComplete bool
	Progress            float64
	Categories          []CategoryStatus
}

// CategoryStatus is one category's availability line.
type CategoryStatus struct {
	Name       string
	Downloaded bool
	Record     *pouch.CategoryRecord
}

// Status reports per-category availability and overall progress. The
// in-memory set is refreshed from the store first, so Status works without a
// prior Check.
func (a *PouchApp) Status() (*StatusReport, error) {
	if err := a.service.LoadState(); err != nil {
		return nil, fmt.Errorf("loading sync state: %w", err)
	}

	version, err := a.store.GetMeta(pouch.MetaContentVersion)
	if err != nil {
		return nil, fmt.Errorf("reading content version: %w", err)
	}

	complete, err := a.service.InitialSyncComplete()
	if err != nil {
		return nil, fmt.Errorf("reading initial sync flag: %w", err)
	}

	recs, err := a.store.ListCategories()
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	byName := make(map[string]*pouch.CategoryRecord, len(recs))
	for _, rec := range recs {
		byName[rec.Name] = rec
	}

	report := &StatusReport{
		Version:             version,
		InitialSyncComplete: complete,
		Progress:            a.service.Progress(),
	}
	for _, name := range a.index.Categories() {
		rec := byName[name]
		report.Categories = append(report.Categories, CategoryStatus{
			Name:       name,
			Downloaded: rec != nil,
			Record:     rec,
		})
	}
	return report, nil
}

// History returns the most recent sync runs.
func (a *PouchApp) History(limit int) ([]*pouch.SyncRun, error) {
	return a.store.ListSyncRuns(limit)
}

// Service exposes the sync engine to the local API server.
func (a *PouchApp) Service() *pouch.SyncService {
	return a.service
}

// Cache exposes the asset cache to the local API server's byte-serving
// endpoint.
func (a *PouchApp) Cache() pouch.AssetCache {
	return a.cache
}

// Config returns the configuration the app was built from.
func (a *PouchApp) Config() *config.Config {
	return a.cfg
}

// Logger returns the app's structured logger for components layered on top.
func (a *PouchApp) Logger() pouch.Logger {
	return a.logger
}

// SetProgressFunc registers fn for per-category progress reports.
func (a *PouchApp) SetProgressFunc(fn pouch.ProgressFunc) {
	a.service.SetProgressFunc(fn)
}

// Close finalizes the operation record and closes all resources.
func (a *PouchApp) Close() error {
	var firstErr error

	if a.op.Persisted() {
		fetched, failed := a.service.Totals()
		if err := a.store.FinishSyncRun(a.op.ID, a.op.Status, fetched, failed); err != nil {
			firstErr = fmt.Errorf("finishing sync run: %w", err)
		}
	}

	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
