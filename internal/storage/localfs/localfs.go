// Package localfs implements storage.Provider on a local directory tree that
// is published by a static file server under a public base URL.
package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/amodomio/media-uploader/internal/storage"
)

const dirPerm = 0o755

// Provider stores objects as files below Root.
type Provider struct {
	root    string
	baseURL string
}

var _ storage.Provider = (*Provider)(nil)

// New returns a provider rooted at root whose objects are published under baseURL.
func New(root, baseURL string) (*Provider, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("localfs: root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("localfs: resolve root: %w", err)
	}
	return &Provider{
		root:    abs,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Root returns the absolute root directory.
func (p *Provider) Root() string {
	return p.root
}

// EnsureDirs creates the given directories below the root, including missing parents.
func (p *Provider) EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		target, err := p.resolve(dir)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(target, dirPerm); err != nil {
			return fmt.Errorf("localfs: create %s: %w", dir, err)
		}
	}
	return nil
}

// Promote renames srcPath onto key. The parent directory is created when
// absent. srcPath must live on the same filesystem as the root.
func (p *Provider) Promote(ctx context.Context, srcPath, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, err := p.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), dirPerm); err != nil {
		return fmt.Errorf("localfs: create parent of %s: %w", key, err)
	}
	if err := os.Rename(srcPath, dst); err != nil {
		return fmt.Errorf("localfs: rename into %s: %w", key, err)
	}
	return nil
}

// Open opens the file stored at key.
func (p *Provider) Open(_ context.Context, key string) (io.ReadCloser, error) {
	target, err := p.resolve(key)
	if err != nil {
		return nil, err
	}
	return os.Open(target)
}

// AccessPath joins the public base URL and key.
func (p *Provider) AccessPath(key string) string {
	return p.baseURL + "/" + strings.TrimLeft(path.Clean("/"+key), "/")
}

// resolve maps a slash-separated key to a path inside the root.
func (p *Provider) resolve(key string) (string, error) {
	cleaned, err := storage.CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(p.root, filepath.FromSlash(cleaned)), nil
}
