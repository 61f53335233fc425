package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"pouch-go/internal/config"
)

// newTestApp wires a PouchApp over a filesystem origin rooted at a temp dir
// (holding just a manifest) with ephemeral store and cache.
func newTestApp(t *testing.T, operation string) *PouchApp {
	t.Helper()

	root := t.TempDir()
	manifest := []byte(`{"version": "v1", "assets": {}}`)
	if err := os.WriteFile(filepath.Join(root, "manifest.json"), manifest, 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.NewConfig(t.TempDir())
	cfg.LogDir = filepath.Join(t.TempDir(), "log")
	cfg.Origin = config.OriginConfig{Type: "filesystem", Root: root}
	cfg.Store = config.StoreConfig{Type: "memory"}
	cfg.Cache = config.CacheConfig{Type: "memory", Namespace: "pouch-assets-v1"}

	a, err := NewPouchApp(context.Background(), cfg, operation)
	if err != nil {
		t.Fatalf("NewPouchApp() error = %v", err)
	}
	t.Cleanup(func() {
		a.Close()
	})
	return a
}

func TestPouchApp_CheckRecordsVersion(t *testing.T) {
	a := newTestApp(t, "Check")

	if err := a.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	report, err := a.Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if report.Version != "v1" {
		t.Errorf("Version = %q, want v1", report.Version)
	}
	if report.InitialSyncComplete {
		t.Error("InitialSyncComplete = true before any download")
	}
	if report.Progress != 0 {
		t.Errorf("Progress = %v, want 0", report.Progress)
	}
	if len(report.Categories) == 0 {
		t.Error("no categories in status report")
	}
	for _, c := range report.Categories {
		if c.Downloaded {
			t.Errorf("category %s reported downloaded before any download", c.Name)
		}
	}
}

func TestPouchApp_OperationLifecycle(t *testing.T) {
	a := newTestApp(t, "Check")

	if err := a.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !a.op.Persisted() {
		t.Fatal("mutating operation not persisted")
	}

	runs, err := a.History(10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d sync runs, want 1", len(runs))
	}
	if runs[0].Operation != "Check" {
		t.Errorf("run operation = %q, want Check", runs[0].Operation)
	}
	if runs[0].FinishedAt != nil {
		t.Error("run finished before Close")
	}
}

func TestPouchApp_DownloadAfterCheckKeepsCategory(t *testing.T) {
	a := newTestApp(t, "DownloadCategory")

	// The CLI runs Check before downloading, which persists the run row
	// before the category is known.
	if err := a.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if err := a.DownloadCategory(context.Background(), "Farm"); err != nil {
		t.Fatalf("DownloadCategory() error = %v", err)
	}

	runs, err := a.History(10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d sync runs, want 1", len(runs))
	}
	if runs[0].Parameters != "Farm" {
		t.Errorf("run parameters = %q, want Farm", runs[0].Parameters)
	}
}

func TestPouchApp_StatusDoesNotPersistOperation(t *testing.T) {
	a := newTestApp(t, "Status")

	if _, err := a.Status(); err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if a.op.Persisted() {
		t.Error("read-only operation was persisted")
	}

	runs, err := a.History(10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("got %d sync runs for a read-only command, want 0", len(runs))
	}
}
