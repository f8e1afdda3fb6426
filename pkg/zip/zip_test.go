package zip

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
)

func TestArchiveAssetsKeepsEveryEntry(t *testing.T) {
	data, err := ArchiveAssets([]Asset{
		{Filename: "hero.png", Data: []byte("one")},
		{Filename: "hero.png", Data: []byte("two")},
		{Filename: "../escape.jpg", Data: []byte("three")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	want := map[string]string{"hero.png": "one", "hero-1.png": "two", "escape.jpg": "three"}
	if len(zr.File) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(zr.File))
	}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		body, _ := io.ReadAll(rc)
		rc.Close()
		if want[f.Name] != string(body) {
			t.Fatalf("entry %s = %q, want %q", f.Name, body, want[f.Name])
		}
	}
}
