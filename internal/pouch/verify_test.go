package pouch_test

import (
	"context"
	"fmt"
	"io"
	"testing"

	"pouch-go/internal/pouch"
)

func TestSyncService_Verify(t *testing.T) {
	t.Run("clean cache passes", func(t *testing.T) {
		f := newFixture(t)
		if err := f.svc.DownloadCategory(context.Background(), "Farm"); err != nil {
			t.Fatal(err)
		}

		report, err := f.svc.Verify(context.Background(), "", nil)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if report.Checked != 8 {
			t.Errorf("Checked = %d, want 8", report.Checked)
		}
		if !report.OK() {
			t.Errorf("OK() = false: missing=%d corrupt=%d", len(report.Missing), len(report.Corrupt))
		}
	})

	t.Run("deleted payload reported missing", func(t *testing.T) {
		f := newFixture(t)
		if err := f.svc.DownloadCategory(context.Background(), "Farm"); err != nil {
			t.Fatal(err)
		}
		if err := f.cache.Delete(pouch.DefaultNamespace, "audio/names/cow_name.mp3"); err != nil {
			t.Fatal(err)
		}

		report, err := f.svc.Verify(context.Background(), "", nil)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if len(report.Missing) != 1 {
			t.Fatalf("got %d missing, want 1", len(report.Missing))
		}
		if report.Missing[0].URL != "audio/names/cow_name.mp3" {
			t.Errorf("missing URL = %q", report.Missing[0].URL)
		}
		if report.OK() {
			t.Error("OK() = true with a missing payload")
		}
	})

	t.Run("check failures reported corrupt", func(t *testing.T) {
		f := newFixture(t)
		if err := f.svc.DownloadCategory(context.Background(), "Arctic"); err != nil {
			t.Fatal(err)
		}

		check := func(role string, r io.Reader) error {
			if role == pouch.RoleFactAudio {
				return fmt.Errorf("bad frame sync")
			}
			return nil
		}

		report, err := f.svc.Verify(context.Background(), "", check)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if len(report.Corrupt) != 1 {
			t.Fatalf("got %d corrupt, want 1", len(report.Corrupt))
		}
		if report.Corrupt[0].Role != pouch.RoleFactAudio {
			t.Errorf("corrupt role = %q", report.Corrupt[0].Role)
		}
	})

	t.Run("scoped to one category", func(t *testing.T) {
		f := newFixture(t)
		if err := f.svc.DownloadCategory(context.Background(), "Farm"); err != nil {
			t.Fatal(err)
		}
		if err := f.svc.DownloadCategory(context.Background(), "Arctic"); err != nil {
			t.Fatal(err)
		}

		report, err := f.svc.Verify(context.Background(), "Arctic", nil)
		if err != nil {
			t.Fatalf("Verify(Arctic) error = %v", err)
		}
		if report.Checked != 4 {
			t.Errorf("Checked = %d, want Arctic's 4", report.Checked)
		}
	})

	t.Run("unfetched assets reported missing", func(t *testing.T) {
		f := newFixture(t)

		// A fetch failure leaves no asset record behind; verify must plan
		// from the index, not from the records, to notice the gap.
		failed := "audio/facts/pig_fact.mp3"
		f.origin.Fail(failed)
		if err := f.svc.DownloadCategory(context.Background(), "Farm"); err != nil {
			t.Fatal(err)
		}

		report, err := f.svc.Verify(context.Background(), "Farm", nil)
		if err != nil {
			t.Fatalf("Verify(Farm) error = %v", err)
		}
		if report.Checked != 8 {
			t.Errorf("Checked = %d, want 8", report.Checked)
		}
		if len(report.Missing) != 1 {
			t.Fatalf("got %d missing, want 1", len(report.Missing))
		}
		got := report.Missing[0]
		if got.URL != failed {
			t.Errorf("missing URL = %q, want %q", got.URL, failed)
		}
		if got.ContentID != "pig" || got.Role != pouch.RoleFactAudio {
			t.Errorf("missing asset = %s/%s, want pig/%s", got.ContentID, got.Role, pouch.RoleFactAudio)
		}
		if report.OK() {
			t.Error("OK() = true for a category downloaded at 7/8")
		}
	})

	t.Run("undownloaded category is an error", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.svc.Verify(context.Background(), "Mountains", nil); err == nil {
			t.Error("Verify(Mountains) succeeded for an undownloaded category")
		}
	})
}

func TestSyncService_Repair(t *testing.T) {
	t.Run("refetches only what the cache is missing", func(t *testing.T) {
		f := newFixture(t)

		failed := "images/real_mode/cow.webp"
		f.origin.Fail(failed)
		if err := f.svc.DownloadCategory(context.Background(), "Farm"); err != nil {
			t.Fatal(err)
		}

		rec, _ := f.store.GetCategory("Farm")
		if rec.FetchedCount != 7 {
			t.Fatalf("FetchedCount = %d after partial download, want 7", rec.FetchedCount)
		}

		// A plain retry is short-circuited by the record; repair is the
		// recovery path.
		f.origin.Unfail(failed)
		repaired, err := f.svc.Repair(context.Background(), "")
		if err != nil {
			t.Fatalf("Repair() error = %v", err)
		}
		if repaired != 1 {
			t.Errorf("Repair() = %d, want 1", repaired)
		}

		// The failed URL was attempted once during download and once during
		// repair; the healthy ones were not refetched.
		if got := f.origin.FetchCount(failed); got != 2 {
			t.Errorf("%s fetched %d times, want 2", failed, got)
		}
		if got := f.origin.FetchCount("images/toy_mode/cow.webp"); got != 1 {
			t.Errorf("healthy URL refetched during repair (%d fetches)", got)
		}

		have, _ := f.cache.Has(pouch.DefaultNamespace, failed)
		if !have {
			t.Error("repaired asset not in cache")
		}
		rec, _ = f.store.GetCategory("Farm")
		if rec.FetchedCount != 8 {
			t.Errorf("FetchedCount = %d after repair, want 8", rec.FetchedCount)
		}
	})

	t.Run("nothing to repair is a no-op", func(t *testing.T) {
		f := newFixture(t)
		if err := f.svc.DownloadCategory(context.Background(), "Farm"); err != nil {
			t.Fatal(err)
		}

		repaired, err := f.svc.Repair(context.Background(), "")
		if err != nil {
			t.Fatalf("Repair() error = %v", err)
		}
		if repaired != 0 {
			t.Errorf("Repair() = %d, want 0", repaired)
		}
		for _, id := range []string{"cow", "pig"} {
			for _, u := range conventionURLs(id) {
				if got := f.origin.FetchCount(u); got != 1 {
					t.Errorf("%s fetched %d times, want 1 (no refetch on a complete cache)", u, got)
				}
			}
		}
	})

	t.Run("scoped to one category", func(t *testing.T) {
		f := newFixture(t)

		farmMiss := "images/toy_mode/cow.webp"
		arcticMiss := "audio/names/polar_bear_name.mp3"
		f.origin.Fail(farmMiss)
		f.origin.Fail(arcticMiss)
		if err := f.svc.DownloadCategory(context.Background(), "Farm"); err != nil {
			t.Fatal(err)
		}
		if err := f.svc.DownloadCategory(context.Background(), "Arctic"); err != nil {
			t.Fatal(err)
		}
		f.origin.Unfail(farmMiss)
		f.origin.Unfail(arcticMiss)

		repaired, err := f.svc.Repair(context.Background(), "Arctic")
		if err != nil {
			t.Fatalf("Repair(Arctic) error = %v", err)
		}
		if repaired != 1 {
			t.Errorf("Repair(Arctic) = %d, want 1", repaired)
		}

		have, _ := f.cache.Has(pouch.DefaultNamespace, arcticMiss)
		if !have {
			t.Error("Arctic asset not repaired")
		}
		have, _ = f.cache.Has(pouch.DefaultNamespace, farmMiss)
		if have {
			t.Error("Farm asset repaired by an Arctic-scoped pass")
		}
	})

	t.Run("unknown category is an error", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.svc.Repair(context.Background(), "Mountains"); err == nil {
			t.Error("Repair(Mountains) succeeded for an undownloaded category")
		}
	})
}
