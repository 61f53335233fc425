package pouch

import (
	"context"
	"fmt"
)

// VersionGuard compares the published manifest version against the locally
// stored marker and purges all offline state on mismatch. It runs once at
// startup, ahead of any download request.
type VersionGuard struct {
	store    Store
	cache    AssetCache
	manifest *ManifestLoader
	match    string // cache namespaces containing this are purged
	logger   Logger
}

func NewVersionGuard(store Store, cache AssetCache, manifest *ManifestLoader, match string, logger Logger) *VersionGuard {
	return &VersionGuard{store: store, cache: cache, manifest: manifest, match: match, logger: logger}
}

// Run performs the startup version check. A manifest fetch failure is not an
// error: the guard fails open and leaves stored state untouched rather than
// destroying offline data over a transient network fault.
func (g *VersionGuard) Run(ctx context.Context) error {
	m, err := g.manifest.Load(ctx)
	if err != nil {
		g.logger.Warn("version check skipped, manifest unavailable", "error", err)
		return nil
	}

	stored, err := g.store.GetMeta(MetaContentVersion)
	if err != nil {
		return fmt.Errorf("reading stored content version: %w", err)
	}

	switch {
	case stored == "":
		// First run: adopt the published version.
		if err := g.store.SetMeta(MetaContentVersion, m.Version); err != nil {
			return fmt.Errorf("writing content version: %w", err)
		}
		g.logger.Info("content version recorded", "version", m.Version)
		return nil
	case stored == m.Version:
		g.logger.Debug("content version unchanged", "version", stored)
		return nil
	default:
		g.logger.Info("content version changed, purging offline state",
			"stored", stored, "published", m.Version)
		return g.Purge(m.Version)
	}
}

// Purge deletes every category record, asset record and cached payload, then
// records version as current and clears the initial-sync flag so callers
// reinitiate downloads. An empty version removes the marker instead.
func (g *VersionGuard) Purge(version string) error {
	if err := g.store.ClearCategories(); err != nil {
		return fmt.Errorf("clearing category records: %w", err)
	}
	if err := g.store.ClearAssets(); err != nil {
		return fmt.Errorf("clearing asset records: %w", err)
	}
	if err := g.cache.DeleteNamespace(g.match); err != nil {
		// Records are already gone, so every category re-downloads and
		// overwrites whatever payloads survived. Log and move on.
		g.logger.Warn("purging cache namespaces", "match", g.match, "error", err)
	}

	if version == "" {
		if err := g.store.DeleteMeta(MetaContentVersion); err != nil {
			return fmt.Errorf("clearing content version: %w", err)
		}
	} else if err := g.store.SetMeta(MetaContentVersion, version); err != nil {
		return fmt.Errorf("writing content version: %w", err)
	}

	if err := g.store.SetMeta(MetaInitialSyncComplete, "false"); err != nil {
		return fmt.Errorf("resetting initial sync flag: %w", err)
	}

	g.logger.Info("offline state purged", "version", version)
	return nil
}
