package origin

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestNewFileSystemOrigin(t *testing.T) {
	t.Run("accepts existing directory", func(t *testing.T) {
		if _, err := NewFileSystemOrigin(t.TempDir()); err != nil {
			t.Errorf("NewFileSystemOrigin() error = %v", err)
		}
	})

	t.Run("rejects missing directory", func(t *testing.T) {
		if _, err := NewFileSystemOrigin("/nonexistent/path"); err == nil {
			t.Error("NewFileSystemOrigin() expected error for missing root")
		}
	})

	t.Run("rejects file as root", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file.txt")
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}

		if _, err := NewFileSystemOrigin(path); err == nil {
			t.Error("NewFileSystemOrigin() expected error for non-directory root")
		}
	})
}

func TestFileSystemOrigin_Fetch(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "images", "toy_mode")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cow.webp"), []byte("webp bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	o, err := NewFileSystemOrigin(root)
	if err != nil {
		t.Fatalf("NewFileSystemOrigin() error = %v", err)
	}

	t.Run("returns existing file", func(t *testing.T) {
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
	})

	t.Run("errors on missing file", func(t *testing.T) {
		if _, err := o.Fetch(context.Background(), "images/toy_mode/unicorn.webp"); err == nil {
			t.Error("Fetch() expected error for missing file")
		}
	})

	t.Run("cannot escape the root", func(t *testing.T) {
		// Plant a file next to the root; a traversal path must not reach it.
		outside := filepath.Join(filepath.Dir(root), "secret.txt")
		if err := os.WriteFile(outside, []byte("secret"), 0644); err != nil {
			t.Fatal(err)
		}
		defer os.Remove(outside)

		if _, err := o.Fetch(context.Background(), "../secret.txt"); err == nil {
			t.Error("Fetch() expected error for traversal path")
		}
	})
}
