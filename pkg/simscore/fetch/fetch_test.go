package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cognicore/simscore/pkg/simscore/internalerr"
)

func fastHTTP() *HTTPFetcher {
	return NewHTTP(HTTPOptions{Attempts: 3, Backoff: time.Millisecond})
}

func TestHTTPFetchOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("essay body"))
	}))
	defer srv.Close()

	data, err := fastHTTP().Fetch(context.Background(), srv.URL+"/doc.txt")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != "essay body" {
		t.Errorf("data = %q", data)
	}
}

func TestHTTPFetchRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("second time lucky"))
	}))
	defer srv.Close()

	data, err := fastHTTP().Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != "second time lucky" {
		t.Errorf("data = %q", data)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestHTTPFetchExhaustedIsTransient(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := fastHTTP().Fetch(context.Background(), srv.URL)
	if !errors.Is(err, internalerr.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestHTTPFetchNotFoundIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := fastHTTP().Fetch(context.Background(), srv.URL)
	if !errors.Is(err, internalerr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if errors.Is(err, internalerr.ErrTransient) {
		t.Error("404 must not be transient")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestHTTPFetchMaxBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	f := NewHTTP(HTTPOptions{MaxBytes: 16, Backoff: time.Millisecond})
	_, err := f.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestHTTPFetchCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewHTTP(HTTPOptions{Attempts: 5, Backoff: time.Second})
	_, err := f.Fetch(ctx, srv.URL)
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestRouterDispatchesByScheme(t *testing.T) {
	var got string
	r := NewRouter().
		Handle(FetcherFunc(func(ctx context.Context, locator string) ([]byte, error) {
			got = "mem:" + locator
			return []byte("x"), nil
		}), "mem")

	if _, err := r.Fetch(context.Background(), "MEM://doc-1"); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got != "mem:MEM://doc-1" {
		t.Errorf("handler saw %q", got)
	}

	for _, bad := range []string{"ftp://host/file", "no-scheme", ""} {
		if _, err := r.Fetch(context.Background(), bad); !errors.Is(err, internalerr.ErrInvalidInput) {
			t.Errorf("Fetch(%q): expected ErrInvalidInput, got %v", bad, err)
		}
	}
}

func TestFileFetcher(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "essay.txt"), []byte("on disk"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f := NewFile(dir)
	ctx := context.Background()

	data, err := f.Fetch(ctx, "file://"+filepath.Join(dir, "essay.txt"))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != "on disk" {
		t.Errorf("data = %q", data)
	}

	if _, err := f.Fetch(ctx, "essay.txt"); err != nil {
		t.Errorf("relative path should resolve under root: %v", err)
	}

	if _, err := f.Fetch(ctx, "file://"+filepath.Join(dir, "missing.txt")); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if _, err := f.Fetch(ctx, "file:///etc/passwd"); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for path outside root, got %v", err)
	}
}

func TestFileFetcherWithoutRootRefusesAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret.env")
	if err := os.WriteFile(path, []byte("password=hunter2"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f := NewFile("")

	for _, locator := range []string{"file://" + path, path, "file:///etc/passwd"} {
		if _, err := f.Fetch(context.Background(), locator); !errors.Is(err, internalerr.ErrInvalidInput) {
			t.Errorf("Fetch(%q): expected ErrInvalidInput, got %v", locator, err)
		}
	}

	if _, err := NewFile("/").Fetch(context.Background(), "file://"+path); err != nil {
		t.Errorf("root / should allow any absolute path: %v", err)
	}
}

func TestSplitObjectLocator(t *testing.T) {
	bucket, key, err := splitObjectLocator("s3://submissions/2024/essay.pdf")
	if err != nil {
		t.Fatalf("split failed: %v", err)
	}
	if bucket != "submissions" || key != "2024/essay.pdf" {
		t.Errorf("got bucket=%q key=%q", bucket, key)
	}

	for _, bad := range []string{"s3://bucket", "s3:///key", "s3://bucket/"} {
		if _, _, err := splitObjectLocator(bad); !errors.Is(err, internalerr.ErrInvalidInput) {
			t.Errorf("split(%q): expected ErrInvalidInput, got %v", bad, err)
		}
	}
}
