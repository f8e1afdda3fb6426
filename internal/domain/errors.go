package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrUnknownModel    = errors.New("unknown model")
	ErrProviderFailure = errors.New("provider failure")
	ErrAssetResolution = errors.New("asset resolution failed")
	ErrMissingAPIKey   = errors.New("provider api key is not configured")
	ErrStorageDisabled = errors.New("asset storage is not configured")
)
