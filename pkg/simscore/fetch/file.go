package fetch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/cognicore/simscore/pkg/simscore/internalerr"
)

// FileFetcher reads file:// locators, confined to a root directory.
type FileFetcher struct {
	root string
}

// NewFile creates a fetcher for files under root. An empty root refuses
// every path; pass "/" to allow the whole file system.
func NewFile(root string) *FileFetcher {
	if root != "" {
		root = filepath.Clean(root)
	}
	return &FileFetcher{root: root}
}

// Fetch implements Fetcher.
func (f *FileFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := f.resolve(locator)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", path, internalerr.ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", path, errors.Join(internalerr.ErrTransient, err))
	}
	return data, nil
}

func (f *FileFetcher) resolve(locator string) (string, error) {
	path := locator
	if strings.HasPrefix(locator, "file:") {
		u, err := url.Parse(locator)
		if err != nil {
			return "", fmt.Errorf("locator %q: %w", locator, internalerr.ErrInvalidInput)
		}
		path = u.Path
	}
	if f.root == "" {
		return "", fmt.Errorf("locator %q: file locators are disabled: %w", locator, internalerr.ErrInvalidInput)
	}
	path = filepath.Clean(path)
	if !filepath.IsAbs(path) {
		path = filepath.Join(f.root, path)
	}
	rel, err := filepath.Rel(f.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("locator %q escapes %s: %w", locator, f.root, internalerr.ErrInvalidInput)
	}
	return path, nil
}
