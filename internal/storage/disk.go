package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DiskProvider stores objects as files under a root directory.
type DiskProvider struct {
	root string
}

// NewDiskProvider creates a disk-backed provider rooted at root.
func NewDiskProvider(root string) *DiskProvider {
	return &DiskProvider{root: root}
}

func (p *DiskProvider) resolve(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid storage key: %s", key)
	}
	return filepath.Join(p.root, cleaned), nil
}

// Put writes the reader's bytes to a file under the provider root.
func (p *DiskProvider) Put(ctx context.Context, key string, reader io.Reader) error {
	path, err := p.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Open returns a reader for the stored object.
func (p *DiskProvider) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := p.resolve(key)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}
