// Package storage defines the Provider interface for media placement backends.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrInvalidKey is returned for keys that are absolute or escape the provider root.
var ErrInvalidKey = errors.New("storage: invalid key")

// Provider abstracts where placed media lives.
type Provider interface {
	// Promote moves the local file at srcPath to key, replacing any existing
	// object. On success srcPath no longer exists.
	Promote(ctx context.Context, srcPath, key string) error
	// Open returns a reader for the given storage key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// AccessPath returns the public reference for a storage key.
	AccessPath(key string) string
}

// CleanKey validates a slash-separated key and returns it cleaned. Empty,
// absolute and escaping keys, and keys with backslashes, are rejected.
func CleanKey(key string) (string, error) {
	if key == "" || path.IsAbs(key) || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}
