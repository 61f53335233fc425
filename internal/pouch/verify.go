package pouch

import (
	"context"
	"fmt"
	"io"
)

// CheckFunc inspects a cached payload for a role, returning an error when
// the bytes are not a plausible asset of that kind.
type CheckFunc func(role string, r io.Reader) error

// VerifyReport summarizes a verification pass over a category's planned
// assets.
type VerifyReport struct {
	Checked int
	Missing []*AssetRecord
	Corrupt []*AssetRecord
}

// OK reports whether every planned asset was present and passed inspection.
func (r *VerifyReport) OK() bool {
	return len(r.Missing) == 0 && len(r.Corrupt) == 0
}

// scopedCategories resolves which completion records a category argument
// addresses: every downloaded category when empty, exactly one otherwise.
func (s *SyncService) scopedCategories(category string) ([]*CategoryRecord, error) {
	if category == "" {
		recs, err := s.store.ListCategories()
		if err != nil {
			return nil, fmt.Errorf("listing category records: %w", err)
		}
		return recs, nil
	}
	rec, err := s.store.GetCategory(category)
	if err != nil {
		return nil, fmt.Errorf("reading category record: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("category not downloaded: %s", category)
	}
	return []*CategoryRecord{rec}, nil
}

// Verify re-resolves the URL set each downloaded category promises, the same
// way a download plans it, and confirms every planned payload is in the
// cache. Planning from the index rather than from asset records means assets
// a best-effort download never obtained are reported missing too. With a
// non-nil check, present payloads are additionally opened and inspected.
func (s *SyncService) Verify(ctx context.Context, category string, check CheckFunc) (*VerifyReport, error) {
	recs, err := s.scopedCategories(category)
	if err != nil {
		return nil, err
	}

	assets, err := s.store.ListAssets(category)
	if err != nil {
		return nil, fmt.Errorf("listing asset records: %w", err)
	}
	byURL := make(map[string]*AssetRecord, len(assets))
	for _, a := range assets {
		byURL[a.URL] = a
	}

	manifest, err := s.manifest.Load(ctx)
	if err != nil {
		manifest = nil
	}

	report := &VerifyReport{}
	ns := s.opts.Namespace
	for _, rec := range recs {
		items := s.index.Items(rec.Name)
		if len(items) == 0 {
			continue
		}

		for _, f := range planFetches(manifest, items) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			report.Checked++

			asset := byURL[f.URL]
			if asset == nil {
				// Planned but never fetched: the download absorbed the
				// failure, so no record exists.
				asset = &AssetRecord{ContentID: f.ContentID, Category: rec.Name, Role: f.Role, URL: f.URL}
			}

			have, err := s.cache.Has(ns, f.URL)
			if err != nil {
				return nil, fmt.Errorf("checking cache for %s: %w", f.URL, err)
			}
			if !have {
				report.Missing = append(report.Missing, asset)
				continue
			}
			if check == nil {
				continue
			}

			body, err := s.cache.Open(ns, f.URL)
			if err != nil {
				report.Missing = append(report.Missing, asset)
				continue
			}
			cerr := check(asset.Role, body)
			body.Close()
			if cerr != nil {
				s.logger.Warn("asset failed inspection", "url", f.URL, "role", asset.Role, "error", cerr)
				report.Corrupt = append(report.Corrupt, asset)
			}
		}
	}

	s.logger.Info("verify complete", "checked", report.Checked,
		"missing", len(report.Missing), "corrupt", len(report.Corrupt))
	return report, nil
}

// Repair re-fetches assets that a completed category should have but the
// cache is missing, then refreshes the category records. An empty category
// repairs every completed category. It is the recovery path for best-effort
// downloads that finished with failures: completion records short-circuit
// DownloadCategory, so missing assets are never retried there.
func (s *SyncService) Repair(ctx context.Context, category string) (int, error) {
	recs, err := s.scopedCategories(category)
	if err != nil {
		return 0, err
	}

	manifest, err := s.manifest.Load(ctx)
	if err != nil {
		manifest = nil
	}

	repaired := 0
	for _, rec := range recs {
		items := s.index.Items(rec.Name)
		if len(items) == 0 {
			continue
		}
		plan := planFetches(manifest, items)

		fetched := 0
		for _, f := range plan {
			have, err := s.cache.Has(s.opts.Namespace, f.URL)
			if err != nil {
				return repaired, fmt.Errorf("checking cache for %s: %w", f.URL, err)
			}
			if have {
				fetched++
				continue
			}
			if s.fetchOne(ctx, f, rec.Name) {
				fetched++
				repaired++
			}
		}

		if fetched != rec.FetchedCount || len(plan) != rec.AssetCount {
			rec.AssetCount = len(plan)
			rec.FetchedCount = fetched
			if err := s.store.PutCategory(rec); err != nil {
				return repaired, fmt.Errorf("updating category record: %w", err)
			}
		}
	}

	if repaired > 0 {
		s.logger.Info("repair complete", "refetched", repaired)
	}
	return repaired, nil
}
