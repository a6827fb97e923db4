package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func TestCreateAndFilePath(t *testing.T) {
	m := newManager(t)

	dir, err := m.Create("job-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "video.mp4"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	path, err := m.FilePath("job-1", "video.mp4")
	if err != nil {
		t.Fatalf("FilePath failed: %v", err)
	}
	if path != filepath.Join(dir, "video.mp4") {
		t.Fatalf("unexpected path %q", path)
	}
}

func TestFilePathRejectsTraversal(t *testing.T) {
	m := newManager(t)
	if _, err := m.Create("job-1"); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"../secret", "a/b", "..", ""} {
		if _, err := m.FilePath("job-1", name); err == nil {
			t.Errorf("expected rejection for filename %q", name)
		}
	}
	for _, id := range []string{"../other", "a/b", ""} {
		if _, err := m.Path(id); err == nil {
			t.Errorf("expected rejection for id %q", id)
		}
	}
}

func TestFilePathMissingFile(t *testing.T) {
	m := newManager(t)
	if _, err := m.Create("job-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.FilePath("job-1", "absent.mp4"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	m := newManager(t)
	dir, err := m.Create("job-1")
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Destroy("job-1"); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatal("workspace directory still exists")
	}
	if err := m.Destroy("job-1"); err != nil {
		t.Fatalf("second Destroy failed: %v", err)
	}
}

func TestSweepRemovesOnlyOldWorkspaces(t *testing.T) {
	m := newManager(t)

	oldDir, err := m.Create("old-job")
	if err != nil {
		t.Fatal(err)
	}
	newDir, err := m.Create("new-job")
	if err != nil {
		t.Fatal(err)
	}

	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldDir, past, past); err != nil {
		t.Fatal(err)
	}

	removed, err := m.Sweep(time.Hour)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 workspace removed, got %d", removed)
	}
	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Fatal("old workspace survived the sweep")
	}
	if _, err := os.Stat(newDir); err != nil {
		t.Fatal("fresh workspace was removed")
	}
}
