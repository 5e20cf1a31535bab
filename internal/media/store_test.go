package media

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("opus"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestStoreLayout(t *testing.T) {
	root := t.TempDir()
	s, err := NewStore(root)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := s.PathFor("42", "dQw4w9WgXcQ", "webm"), filepath.Join(root, "42", "dQw4w9WgXcQ.webm"); got != want {
		t.Fatalf("PathFor = %q, want %q", got, want)
	}
	dir, err := s.Prepare("42")
	if err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("guild dir not created: %v", err)
	}
}

func TestStoreRemove(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p := s.PathFor("1", "a", "m4a")
	writeFile(t, p)
	if !s.Exists(p) {
		t.Fatal("file should exist")
	}
	if err := s.Remove(p); err != nil {
		t.Fatal(err)
	}
	if s.Exists(p) {
		t.Fatal("file still exists")
	}
	if err := s.Remove(p); err != nil {
		t.Fatalf("removing a missing file: %v", err)
	}
}

func TestStorePurgeWaitsForDownloads(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p := s.PathFor("1", "a", "webm")
	writeFile(t, p)

	end := s.Begin("1")
	if err := s.Purge("1"); err != nil {
		t.Fatal(err)
	}
	if !s.Exists(p) {
		t.Fatal("purge ran during a download")
	}

	end()
	end()
	if err := s.Purge("1"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(s.Dir("1")); !os.IsNotExist(err) {
		t.Fatalf("guild dir survived purge: %v", err)
	}
	if err := s.Purge("1"); err != nil {
		t.Fatalf("second purge: %v", err)
	}
}

func TestStoreSweep(t *testing.T) {
	root := t.TempDir()
	s, err := NewStore(root)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, s.PathFor("1", "a", "webm"))
	writeFile(t, s.PathFor("2", "b", "webm"))
	if err := s.Sweep(); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("%d entries left after sweep", len(entries))
	}
}
