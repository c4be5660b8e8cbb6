package sync

import "errors"

var (
	ErrNotFound             = errors.New("visit record not found")
	ErrMissingServerVersion = errors.New("missing stashed server version")
)
