package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func TestBundleDir(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "720p"), 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"master.m3u8":         "#EXTM3U\n",
		"720p/playlist.m3u8":  "#EXTM3U\nsegment_000.ts\n",
		"720p/segment_000.ts": "fake segment data",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(src, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	dest := filepath.Join(t.TempDir(), "bundle.zip")
	if err := BundleDir(src, dest); err != nil {
		t.Fatalf("BundleDir failed: %v", err)
	}

	r, err := zip.OpenReader(dest)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer r.Close()

	got := make(map[string]bool)
	for _, f := range r.File {
		got[f.Name] = true
	}
	for name := range files {
		if !got[name] {
			t.Errorf("archive missing entry %q, got %v", name, got)
		}
	}
	if len(got) != len(files) {
		t.Errorf("expected %d entries, got %d", len(files), len(got))
	}
}

func TestBundleDirMissingSource(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "bundle.zip")
	if err := BundleDir(filepath.Join(t.TempDir(), "nope"), dest); err == nil {
		t.Fatal("expected error for missing source directory")
	}
}
