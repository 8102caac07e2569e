package domain

import "errors"

var (
	// ErrUnsupportedFormat signals that a MIME type or format token is not in
	// the supported set. Always a client error.
	ErrUnsupportedFormat = errors.New("unsupported output format")
	// ErrInvalidAPIKey signals that the provided API key is not known.
	ErrInvalidAPIKey = errors.New("invalid api key")
	// ErrTokenStoreNotReady signals that the token store has not been loaded yet.
	// This can happen during startup when the DB isn't ready.
	ErrTokenStoreNotReady = errors.New("token store not ready")
)
