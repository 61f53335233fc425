package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"pouch-go/internal/app"
	"pouch-go/internal/config"
	"pouch-go/internal/pouch"
	"pouch-go/internal/server"
)

func newTestServer(t *testing.T) (*server.Server, *app.PouchApp) {
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

	a, err := app.NewPouchApp(context.Background(), cfg, "Serve")
	if err != nil {
		t.Fatalf("NewPouchApp() error = %v", err)
	}
	t.Cleanup(func() {
		a.Close()
	})

	if err := a.Check(context.Background()); err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	return server.New(a, cfg.Server, pouch.NewNopLogger()), a
}

func getJSON(t *testing.T, ts *httptest.Server, path string, out any) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s error = %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decoding %s: %v", path, err)
	}
}

func TestServer_Status(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	var status struct {
		Version             string  `json:"version"`
		InitialSyncComplete bool    `json:"initial_sync_complete"`
		Progress            float64 `json:"progress"`
		CurrentCategory     string  `json:"current_category"`
	}
	getJSON(t, ts, "/api/status", &status)

	if status.Version != "v1" {
		t.Errorf("version = %q, want v1", status.Version)
	}
	if status.InitialSyncComplete {
		t.Error("initial_sync_complete = true before any download")
	}
	if status.Progress != 0 {
		t.Errorf("progress = %v, want 0", status.Progress)
	}
	if status.CurrentCategory != "" {
		t.Errorf("current_category = %q, want empty", status.CurrentCategory)
	}
}

func TestServer_Categories(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	var body struct {
		Categories []struct {
			Name       string `json:"name"`
			Downloaded bool   `json:"downloaded"`
		} `json:"categories"`
	}
	getJSON(t, ts, "/api/categories", &body)

	if len(body.Categories) == 0 {
		t.Fatal("no categories returned")
	}
	if body.Categories[0].Name != "Farm" {
		t.Errorf("first category = %q, want Farm (priority order)", body.Categories[0].Name)
	}
	for _, c := range body.Categories {
		if c.Downloaded {
			t.Errorf("category %s downloaded before any download", c.Name)
		}
	}
}

func TestServer_DownloadTrigger(t *testing.T) {
	s, a := newTestServer(t)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/categories/Farm/download", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("trigger status = %d, want 202", resp.StatusCode)
	}

	// The download runs in the background; origin has no assets so it
	// completes quickly with a best-effort record.
	deadline := time.Now().Add(10 * time.Second)
	for !a.Service().IsCategoryDownloaded("Farm") {
		if time.Now().After(deadline) {
			t.Fatal("Farm never became downloaded")
		}
		time.Sleep(20 * time.Millisecond)
	}

	// Retriggering an already downloaded category reports as such.
	resp, err = http.Post(ts.URL+"/api/categories/Farm/download", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("retrigger status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "downloaded" {
		t.Errorf("retrigger status field = %q, want downloaded", body.Status)
	}
}

func TestServer_AssetServing(t *testing.T) {
	s, a := newTestServer(t)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	payload := "webp bytes"
	if _, err := a.Cache().Put("pouch-assets-v1", "images/toy_mode/cow.webp", strings.NewReader(payload)); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(ts.URL + "/assets/pouch-assets-v1/images/toy_mode/cow.webp")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/webp" {
		t.Errorf("Content-Type = %q, want image/webp", ct)
	}
	got, _ := io.ReadAll(resp.Body)
	if string(got) != payload {
		t.Errorf("body = %q, want %q", got, payload)
	}
}

func TestServer_AssetNotCached(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/assets/pouch-assets-v1/images/toy_mode/unicorn.webp")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestServer_ProgressWebsocket(t *testing.T) {
	s, _ := newTestServer(t)
	go s.Hub().Run()
	defer s.Hub().Stop()

	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/progress/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	defer conn.Close()

	// Give the register message time to land before publishing.
	time.Sleep(50 * time.Millisecond)
	s.Hub().Publish(server.ProgressEvent{Category: "Farm", Done: 4, Total: 8, Percent: 50})

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading progress event: %v", err)
	}

	var ev server.ProgressEvent
	if err := json.Unmarshal(message, &ev); err != nil {
		t.Fatalf("decoding event: %v", err)
	}
	if ev.Category != "Farm" || ev.Done != 4 || ev.Percent != 50 {
		t.Errorf("event = %+v", ev)
	}
}
