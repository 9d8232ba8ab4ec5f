package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cognicore/simscore/internal/app"
	"github.com/cognicore/simscore/internal/httpapi"
	"github.com/cognicore/simscore/internal/logging"
	"github.com/cognicore/simscore/pkg/simscore/config"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("SIMSCORE_CONFIG"), "YAML config file (optional)")
		envPath    = flag.String("env", ".env", "dotenv file loaded before the config (optional)")
	)
	flag.Parse()

	if err := loadEnv(*envPath); err != nil {
		log.Fatal(err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting server", "store", cfg.Store.Driver)
	logger.Debug("debug messages are enabled")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker, cleanup, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("cannot build checker", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	server := newServer(cfg.HTTP, httpapi.NewRouter(httpapi.Options{
		Service:        checker,
		Log:            logger.With("component", "http"),
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
		JWTSecret:      cfg.HTTP.JWTSecret,
	}))
	if cfg.HTTP.JWTSecret == "" {
		logger.Warn("jwt secret not set, api is unauthenticated")
	}

	go func() {
		<-ctx.Done()
		logger.Debug("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("erroneous shutdown", "error", err)
		}
	}()

	logger.Info("running http server", "address", cfg.HTTP.Address)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server closed unexpectedly", "error", err)
	}
}

func newServer(cfg config.HTTPConfig, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Address,
		Handler:           h,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
}

// loadEnv populates the environment from a dotenv file. A missing file is
// not an error.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
