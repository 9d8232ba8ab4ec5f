// Package fetch retrieves submission document bytes by locator.
//
// A locator is a URL-like string: "https://host/path", "s3://bucket/key"
// or "file:///abs/path". Failures that are worth retrying wrap
// internalerr.ErrTransient; missing documents wrap internalerr.ErrNotFound.
// Neither is ever turned into empty content.
package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/cognicore/simscore/pkg/simscore/internalerr"
)

// Fetcher returns the raw bytes behind a document locator.
type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, locator string) ([]byte, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, locator string) ([]byte, error) {
	return f(ctx, locator)
}

// Router dispatches a locator to the fetcher registered for its scheme.
type Router struct {
	schemes map[string]Fetcher
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{schemes: make(map[string]Fetcher)}
}

// Handle registers f for the given URL schemes.
func (r *Router) Handle(f Fetcher, schemes ...string) *Router {
	for _, s := range schemes {
		r.schemes[strings.ToLower(s)] = f
	}
	return r
}

// Fetch implements Fetcher.
func (r *Router) Fetch(ctx context.Context, locator string) ([]byte, error) {
	u, err := url.Parse(locator)
	if err != nil || u.Scheme == "" {
		return nil, fmt.Errorf("locator %q: %w", locator, internalerr.ErrInvalidInput)
	}
	f, ok := r.schemes[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, fmt.Errorf("locator %q: unsupported scheme %q: %w", locator, u.Scheme, internalerr.ErrInvalidInput)
	}
	return f.Fetch(ctx, locator)
}
