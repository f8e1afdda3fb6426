package storage

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"listingshots/internal/domain"
	"listingshots/internal/imagegen"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(Options{BasePath: t.TempDir(), PublicBaseURL: "/static/"})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"generated/hero/a.png", "generated/hero/a.png", false},
		{"/generated//hero/./a.png", "generated/hero/a.png", false},
		{`generated\hero\a.png`, "generated/hero/a.png", false},
		{"../etc/passwd", "", true},
		{"a/../../b", "", true},
		{"  ", "", true},
	}
	for _, tt := range tests {
		got, err := sanitizeKey(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("sanitizeKey(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestSaveAndResolveRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	data := pngBytes(t, 3, 2)
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)

	url, err := store.Save(ctx, dataURL, imagegen.ShotHero)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(url, "/static/generated/hero/") || !strings.HasSuffix(url, ".png") {
		t.Fatalf("unexpected url %q", url)
	}

	img, err := store.ResolveLocal(ctx, url)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !bytes.Equal(img.Data, data) || img.MIMEType != "image/png" || img.Width != 3 || img.Height != 2 {
		t.Fatalf("unexpected resolved image %+v", img)
	}
}

func TestResolveLocalDataURLAndRemote(t *testing.T) {
	data := pngBytes(t, 1, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	defer srv.Close()
	store, err := NewFileStore(Options{BasePath: t.TempDir(), HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	inline, err := store.ResolveLocal(context.Background(), "data:image/png;base64,"+base64.StdEncoding.EncodeToString(data))
	if err != nil || !bytes.Equal(inline.Data, data) {
		t.Fatalf("data url not decoded: %v", err)
	}
	remote, err := store.ResolveLocal(context.Background(), srv.URL+"/p.png")
	if err != nil {
		t.Fatalf("remote resolve: %v", err)
	}
	if !bytes.Equal(remote.Data, data) || remote.URL != srv.URL+"/p.png" || remote.Name != "p.png" {
		t.Fatalf("unexpected remote image %+v", remote)
	}
}

func TestResolveLocalRefusesInternalAddresses(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write(pngBytes(t, 1, 1))
	}))
	defer srv.Close()

	_, err := newTestStore(t).ResolveLocal(context.Background(), srv.URL+"/p.png")
	if !errors.Is(err, ErrBlockedAddress) {
		t.Fatalf("expected blocked address, got %v", err)
	}
	if hits != 0 {
		t.Fatalf("internal server was contacted %d times", hits)
	}
}

func TestIsPublicAddr(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"8.8.8.8", true},
		{"2606:4700::1111", true},
		{"127.0.0.1", false},
		{"::1", false},
		{"10.1.2.3", false},
		{"172.16.0.9", false},
		{"192.168.1.1", false},
		{"169.254.169.254", false},
		{"fe80::1", false},
		{"fd00::1", false},
		{"100.64.0.1", false},
		{"0.0.0.0", false},
		{"::ffff:127.0.0.1", false},
	}
	for _, tt := range tests {
		if got := isPublicAddr(netip.MustParseAddr(tt.addr)); got != tt.want {
			t.Fatalf("isPublicAddr(%s) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestResolveLocalMissingAsset(t *testing.T) {
	_, err := newTestStore(t).ResolveLocal(context.Background(), "/static/generated/nope.png")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key, err := store.Write(ctx, "generated/macro/x.png", []byte("x"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Delete(ctx, store.PublicURL(key)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.BasePath(), "generated", "macro", "x.png")); !os.IsNotExist(err) {
		t.Fatalf("file still present: %v", err)
	}
	if err := store.Delete(ctx, store.PublicURL(key)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if err := store.Delete(ctx, "https://elsewhere.test/a.png"); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected invalid request for foreign url, got %v", err)
	}
}

func TestArchive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	var urls []string
	for _, key := range []string{"generated/hero/a.png", "generated/macro/a.png"} {
		stored, err := store.Write(ctx, key, []byte(key))
		if err != nil {
			t.Fatalf("write: %v", err)
		}
		urls = append(urls, store.PublicURL(stored))
	}

	archiveURL, err := store.Archive(ctx, urls, "etsy-listing-42")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !strings.HasPrefix(archiveURL, "/static/archives/etsy-listing-42/") {
		t.Fatalf("unexpected archive url %q", archiveURL)
	}
	data, err := store.Read(ctx, strings.TrimPrefix(archiveURL, "/static/"))
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(zr.File))
	}

	if _, err := store.Archive(ctx, urls, "../escape"); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected invalid bucket error, got %v", err)
	}
	if _, err := store.Archive(ctx, nil, "b"); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected error for empty archive")
	}
}
