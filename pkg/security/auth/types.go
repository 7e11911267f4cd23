package auth

import "errors"

// APIKeyInfo is one configured API key and the subject it authenticates as.
type APIKeyInfo struct {
	Key     string
	Subject string
	Enabled bool
}

// Sentinel errors returned by validation and extraction.
var (
	ErrMissingAPIKey  = errors.New("no API key found")
	ErrInvalidAPIKey  = errors.New("invalid API key")
	ErrAPIKeyDisabled = errors.New("API key disabled")
)
