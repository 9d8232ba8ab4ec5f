// Package app wires a Checker from configuration for the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cognicore/simscore/internal/events"
	"github.com/cognicore/simscore/pkg/simscore"
	"github.com/cognicore/simscore/pkg/simscore/config"
	"github.com/cognicore/simscore/pkg/simscore/fetch"
	"github.com/cognicore/simscore/pkg/simscore/internalerr"
	"github.com/cognicore/simscore/pkg/simscore/normalize"
	"github.com/cognicore/simscore/pkg/simscore/stoplist"
	"github.com/cognicore/simscore/pkg/simscore/store"
	"github.com/cognicore/simscore/pkg/simscore/store/memstore"
	"github.com/cognicore/simscore/pkg/simscore/store/postgres"
	"github.com/cognicore/simscore/pkg/simscore/store/sqlite"
)

// Build creates a Checker and a cleanup func that releases the store and
// the broker connection.
func Build(ctx context.Context, cfg config.Config, log *slog.Logger) (*simscore.Checker, func(), error) {
	st, err := OpenStore(ctx, cfg.Store, log)
	if err != nil {
		return nil, nil, err
	}

	fetcher, err := NewFetcher(cfg.Fetch, log)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	var (
		pub      simscore.Publisher
		closePub = func() {}
	)
	if cfg.Events.NatsURL != "" {
		p, err := events.NewPublisher(log.With("component", "events"), cfg.Events.NatsURL, cfg.Events.Subject)
		if err != nil {
			st.Close()
			return nil, nil, err
		}
		pub, closePub = p, p.Close
	}

	checker, err := simscore.New(simscore.Options{
		Store:      st,
		Fetcher:    fetcher,
		Normalizer: normalize.New(stoplist.Default(), normalize.Options{Stem: cfg.Normalize.Stem}),
		Match: simscore.MatchOptions{
			Workers:   cfg.Match.Workers,
			Budget:    cfg.Match.Budget,
			CacheSize: cfg.Match.CacheSize,
		},
		Publisher: pub,
		Log:       log,
	})
	if err != nil {
		closePub()
		st.Close()
		return nil, nil, err
	}

	cleanup := func() {
		closePub()
		if err := checker.Close(); err != nil {
			log.Warn("close store", "error", err)
		}
	}
	return checker, cleanup, nil
}

// OpenStore opens the configured store driver.
func OpenStore(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memstore.New(), nil
	case config.DriverSQLite:
		return sqlite.OpenSQLite(ctx, cfg.DSN)
	case config.DriverPostgres:
		return postgres.New(ctx, log.With("component", "postgres"), cfg.DSN)
	default:
		return nil, fmt.Errorf("store driver %q: %w", cfg.Driver, internalerr.ErrInvalidConfig)
	}
}

// NewFetcher routes http(s), file and, when configured, s3 locators.
func NewFetcher(cfg config.FetchConfig, log *slog.Logger) (fetch.Fetcher, error) {
	router := fetch.NewRouter().
		Handle(fetch.NewHTTP(fetch.HTTPOptions{
			Client:   &http.Client{Timeout: cfg.Timeout},
			Attempts: cfg.Attempts,
			Backoff:  cfg.Backoff,
			Log:      log.With("component", "fetch"),
		}), "http", "https").
		Handle(fetch.NewFile(cfg.FileRoot), "file")

	if cfg.Minio.Endpoint != "" {
		obj, err := fetch.NewObject(fetch.MinioOptions{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		router.Handle(obj, "s3")
	}
	return router, nil
}
