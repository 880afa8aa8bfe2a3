package digest

import "errors"

// Sentinel errors for the digest service layer.
var (
	ErrNotFound       = errors.New("record not found")
	ErrMissingProfile = errors.New("user profile not found")
	ErrInvalidToken   = errors.New("unsubscribe token not found")
)
