package handlers

import (
	"net/http"
	"strings"

	"listingshots/internal/domain"
)

type deleteAssetRequest struct {
	URL string `json:"url"`
}

type archiveRequest struct {
	URLs   []string `json:"urls"`
	Bucket string   `json:"bucket"`
}

// DeleteAsset removes a stored image by its public URL.
func (a *App) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		a.error(w, statusFor(domain.ErrStorageDisabled), domain.ErrStorageDisabled.Error())
		return
	}
	var req deleteAssetRequest
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		a.error(w, http.StatusBadRequest, "url is required")
		return
	}
	if err := a.store.Delete(r.Context(), req.URL); err != nil {
		a.error(w, statusFor(err), err.Error())
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"deleted": true})
}

// ArchiveAssets bundles stored images into a zip and returns its URL.
func (a *App) ArchiveAssets(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		a.error(w, statusFor(domain.ErrStorageDisabled), domain.ErrStorageDisabled.Error())
		return
	}
	var req archiveRequest
	if !a.decode(w, r, &req) {
		return
	}
	bucket := strings.TrimSpace(req.Bucket)
	if bucket == "" {
		bucket = "listing"
	}
	url, err := a.store.Archive(r.Context(), req.URLs, bucket)
	if err != nil {
		a.log(r.Context()).Warn().Err(err).Int("count", len(req.URLs)).Msg("archive failed")
		a.error(w, statusFor(err), err.Error())
		return
	}
	a.json(w, http.StatusCreated, map[string]string{"url": url})
}
