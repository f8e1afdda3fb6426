package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"listingshots/internal/domain"
	"listingshots/internal/imagegen"
	"listingshots/internal/infra"
	"listingshots/pkg/zip"
)

const defaultMaxDownloadBytes = 20 << 20

// Options configures a FileStore. Without an HTTPClient, remote references
// are only downloaded from public addresses.
type Options struct {
	BasePath         string
	PublicBaseURL    string
	HTTPClient       *http.Client
	MaxDownloadBytes int64
	Logger           *infra.Logger
}

// FileStore persists assets onto the local filesystem and serves them under
// a public base URL (for example "/static").
type FileStore struct {
	basePath      string
	publicBaseURL string
	httpClient    *http.Client
	maxDownload   int64
	logger        *infra.Logger
}

// NewFileStore initializes a FileStore rooted at opts.BasePath.
func NewFileStore(opts Options) (*FileStore, error) {
	basePath := strings.TrimSpace(opts.BasePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	publicBaseURL := strings.TrimRight(strings.TrimSpace(opts.PublicBaseURL), "/")
	if publicBaseURL == "" {
		publicBaseURL = "/static"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = newDownloadClient(30 * time.Second)
	}
	maxDownload := opts.MaxDownloadBytes
	if maxDownload <= 0 {
		maxDownload = defaultMaxDownloadBytes
	}
	return &FileStore{
		basePath:      basePath,
		publicBaseURL: publicBaseURL,
		httpClient:    httpClient,
		maxDownload:   maxDownload,
		logger:        infra.LoggerOrDiscard(opts.Logger),
	}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// PublicURL returns the URL under which key is served.
func (s *FileStore) PublicURL(key string) string {
	return s.publicBaseURL + "/" + strings.TrimLeft(key, "/")
}

// Write persists the provided bytes at the given relative key and returns the
// canonicalized storage key. Keys are cleaned to prevent directory traversal.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	if s == nil {
		return "", domain.ErrStorageDisabled
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return cleanKey, nil
}

// Read loads the bytes stored at key.
func (s *FileStore) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.basePath, filepath.FromSlash(cleanKey)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("storage: %s: %w", cleanKey, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read file: %w", err)
	}
	return data, nil
}

// ResolveLocal turns an asset reference into provider-consumable bytes. Data
// URLs are decoded, store URLs and keys are read from disk and remote URLs are
// downloaded.
func (s *FileStore) ResolveLocal(ctx context.Context, ref string) (imagegen.SourceImage, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return imagegen.SourceImage{}, errors.New("storage: empty asset reference")
	case strings.HasPrefix(ref, "data:"):
		data, mimeType, err := decodeDataURL(ref)
		if err != nil {
			return imagegen.SourceImage{}, err
		}
		return sourceImage(data, mimeType, ""), nil
	case isRemote(ref) && !s.owns(ref):
		data, mimeType, err := s.download(ctx, ref)
		if err != nil {
			return imagegen.SourceImage{}, err
		}
		img := sourceImage(data, mimeType, path.Base(ref))
		img.URL = ref
		return img, nil
	default:
		key, ok := s.keyFor(ref)
		if !ok {
			return imagegen.SourceImage{}, fmt.Errorf("storage: %s is not a store reference", ref)
		}
		data, err := s.Read(ctx, key)
		if err != nil {
			return imagegen.SourceImage{}, err
		}
		return sourceImage(data, mime.TypeByExtension(path.Ext(key)), path.Base(key)), nil
	}
}

// Save stores a generated image (data URL or remote URL) under the shot type
// and returns its public URL.
func (s *FileStore) Save(ctx context.Context, imageURL string, shot imagegen.ShotType) (string, error) {
	var (
		data     []byte
		mimeType string
		err      error
	)
	if strings.HasPrefix(imageURL, "data:") {
		data, mimeType, err = decodeDataURL(imageURL)
	} else if isRemote(imageURL) {
		data, mimeType, err = s.download(ctx, imageURL)
	} else {
		return imageURL, nil
	}
	if err != nil {
		return "", err
	}
	folder := string(shot)
	if folder == "" {
		folder = "misc"
	}
	key := fmt.Sprintf("generated/%s/%s%s", folder, uuid.NewString(), extensionForMIME(mimeType))
	stored, err := s.Write(ctx, key, data)
	if err != nil {
		return "", err
	}
	s.logger.Debug().Str("key", stored).Int("bytes", len(data)).Msg("storage: saved generated image")
	return s.PublicURL(stored), nil
}

// Delete removes the asset behind a store URL or key.
func (s *FileStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, ok := s.keyFor(ref)
	if !ok {
		return fmt.Errorf("%w: %s is not a store reference", domain.ErrInvalidRequest, ref)
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	err = os.Remove(filepath.Join(s.basePath, filepath.FromSlash(cleanKey)))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: %s: %w", cleanKey, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("storage: delete file: %w", err)
	}
	return nil
}

// Archive zips the given store assets into archives/<bucket>/ and returns
// the archive URL.
func (s *FileStore) Archive(ctx context.Context, refs []string, bucket string) (string, error) {
	if len(refs) == 0 {
		return "", fmt.Errorf("%w: nothing to archive", domain.ErrInvalidRequest)
	}
	bucketKey, err := sanitizeKey(bucket)
	if err != nil || strings.Contains(bucketKey, "/") {
		return "", fmt.Errorf("%w: invalid bucket %q", domain.ErrInvalidRequest, bucket)
	}
	assets := make([]zip.Asset, 0, len(refs))
	for _, ref := range refs {
		key, ok := s.keyFor(ref)
		if !ok {
			return "", fmt.Errorf("%w: %s is not a store reference", domain.ErrInvalidRequest, ref)
		}
		data, err := s.Read(ctx, key)
		if err != nil {
			return "", err
		}
		assets = append(assets, zip.Asset{Filename: path.Base(key), MIME: mime.TypeByExtension(path.Ext(key)), Data: data})
	}
	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		return "", fmt.Errorf("storage: build archive: %w", err)
	}
	stored, err := s.Write(ctx, fmt.Sprintf("archives/%s/%s.zip", bucketKey, uuid.NewString()), archive)
	if err != nil {
		return "", err
	}
	s.logger.Info().Str("bucket", bucketKey).Int("assets", len(assets)).Str("key", stored).Msg("storage: archived assets")
	return s.PublicURL(stored), nil
}

func (s *FileStore) owns(ref string) bool {
	return isRemote(s.publicBaseURL) && strings.HasPrefix(ref, s.publicBaseURL+"/")
}

// keyFor maps a public URL or bare key onto a storage key.
func (s *FileStore) keyFor(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, s.publicBaseURL+"/") {
		return strings.TrimPrefix(ref, s.publicBaseURL+"/"), true
	}
	if isRemote(ref) || strings.HasPrefix(ref, "data:") || ref == "" {
		return "", false
	}
	return strings.TrimLeft(ref, "/"), true
}

func (s *FileStore) download(ctx context.Context, target string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("storage: build download request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("storage: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, "", fmt.Errorf("storage: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxDownload+1))
	if err != nil {
		return nil, "", fmt.Errorf("storage: read download: %w", err)
	}
	if int64(len(data)) > s.maxDownload {
		return nil, "", fmt.Errorf("storage: download exceeds %d bytes", s.maxDownload)
	}
	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}

func decodeDataURL(raw string) ([]byte, string, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok {
		return nil, "", errors.New("storage: malformed data url")
	}
	mimeType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return nil, "", errors.New("storage: data url must be base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("storage: decode data url: %w", err)
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}

func sourceImage(data []byte, mimeType, name string) imagegen.SourceImage {
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	img := imagegen.SourceImage{Data: data, MIMEType: mimeType, Name: name}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		img.Width, img.Height = cfg.Width, cfg.Height
	}
	return img
}

func isRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

func extensionForMIME(mimeType string) string {
	mimeType, _, _ = strings.Cut(mimeType, ";")
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".bin"
	}
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
