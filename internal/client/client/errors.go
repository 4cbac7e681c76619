package client

import "errors"

var (
	ErrUnavailable = errors.New("server unavailable")
	// ErrNoKey is returned by calls that need a signed-in identity when the
	// client was built without a key.
	ErrNoKey = errors.New("no identity key loaded")
)
