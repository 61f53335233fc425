package origin

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewHTTPOrigin(t *testing.T) {
	t.Run("accepts http and https", func(t *testing.T) {
		for _, base := range []string{"http://example.com", "https://example.com/assets"} {
			if _, err := NewHTTPOrigin(base, 0, 0); err != nil {
				t.Errorf("NewHTTPOrigin(%q) error = %v", base, err)
			}
		}
	})

	t.Run("rejects other schemes", func(t *testing.T) {
		for _, base := range []string{"ftp://example.com", "example.com/assets", ""} {
			if _, err := NewHTTPOrigin(base, 0, 0); err == nil {
				t.Errorf("NewHTTPOrigin(%q) expected error, got nil", base)
			}
		}
	})
}

func TestHTTPOrigin_Fetch(t *testing.T) {
	var gotUserAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/images/toy_mode/cow.webp":
			io.WriteString(w, "webp bytes")
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	o, err := NewHTTPOrigin(srv.URL, 5*time.Second, 0)
	if err != nil {
		t.Fatalf("NewHTTPOrigin() error = %v", err)
	}

	t.Run("returns body for existing asset", func(t *testing.T) {
		r, err := o.Fetch(context.Background(), "images/toy_mode/cow.webp")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		defer r.Close()

		data, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("reading body: %v", err)
		}
		if string(data) != "webp bytes" {
			t.Errorf("body = %q, want %q", string(data), "webp bytes")
		}
		if gotUserAgent != userAgent {
			t.Errorf("User-Agent = %q, want %q", gotUserAgent, userAgent)
		}
	})

	t.Run("errors on missing asset", func(t *testing.T) {
		_, err := o.Fetch(context.Background(), "images/toy_mode/unicorn.webp")
		if err == nil {
			t.Fatal("Fetch() expected error for 404, got nil")
		}
		if !strings.Contains(err.Error(), "unexpected status") {
			t.Errorf("error = %v, want error mentioning unexpected status", err)
		}
	})

	t.Run("errors on server failure", func(t *testing.T) {
		_, err := o.Fetch(context.Background(), "broken")
		if err == nil {
			t.Error("Fetch() expected error for 500, got nil")
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := o.Fetch(ctx, "images/toy_mode/cow.webp")
		if err == nil {
			t.Error("Fetch() expected error for cancelled context, got nil")
		}
	})
}

func TestHTTPOrigin_FetchFresh(t *testing.T) {
	var gotBuster string
	var gotCacheControl string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBuster = r.URL.Query().Get("t")
		gotCacheControl = r.Header.Get("Cache-Control")
		io.WriteString(w, `{"version":"a1b2c3d4"}`)
	}))
	defer srv.Close()

	o, err := NewHTTPOrigin(srv.URL, 5*time.Second, 0)
	if err != nil {
		t.Fatalf("NewHTTPOrigin() error = %v", err)
	}

	r, err := o.FetchFresh(context.Background(), "manifest.json")
	if err != nil {
		t.Fatalf("FetchFresh() error = %v", err)
	}
	r.Close()

	if gotBuster == "" {
		t.Error("FetchFresh() did not append a cache-busting query parameter")
	}
	if gotCacheControl != "no-cache" {
		t.Errorf("Cache-Control = %q, want %q", gotCacheControl, "no-cache")
	}

	// Plain Fetch must not bust caches
	r, err = o.Fetch(context.Background(), "manifest.json")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	r.Close()

	if gotBuster != "" {
		t.Errorf("Fetch() appended cache buster %q, want none", gotBuster)
	}
	if gotCacheControl != "" {
		t.Errorf("Fetch() sent Cache-Control %q, want none", gotCacheControl)
	}
}

func TestHTTPOrigin_RateLimiter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	// A generous limit must not block the first burst of requests.
	o, err := NewHTTPOrigin(srv.URL, 5*time.Second, 100)
	if err != nil {
		t.Fatalf("NewHTTPOrigin() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		r, err := o.Fetch(context.Background(), "a")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		r.Close()
	}
}
