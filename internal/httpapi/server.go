// Package httpapi exposes the similarity engine over HTTP.
package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cognicore/simscore/pkg/simscore"
	"github.com/cognicore/simscore/pkg/simscore/store"
)

// Service is the part of *simscore.Checker the API uses.
type Service interface {
	ScoreSubmission(ctx context.Context, req simscore.SubmitRequest) (simscore.Result, error)
	Rescore(ctx context.Context, submissionID string) (simscore.Result, error)
	Submissions(ctx context.Context, assignmentID string) ([]store.Submission, error)
	Report(ctx context.Context, submissionID string) (simscore.Status, error)
}

// Options configures the router
type Options struct {
	Service        Service
	Log            *slog.Logger
	MaxUploadBytes int64 // default 10 MiB
	// JWTSecret enables HS256 bearer authentication. Without it the
	// student id is read from the "studentId" form field.
	JWTSecret string
}

type server struct {
	svc       Service
	log       *slog.Logger
	maxUpload int64
}

// NewRouter builds the HTTP handler.
func NewRouter(opts Options) http.Handler {
	if opts.Log == nil {
		opts.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	s := &server{svc: opts.Service, log: opts.Log, maxUpload: opts.MaxUploadBytes}

	router := mux.NewRouter()
	router.Use(requestID(opts.Log))
	router.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(authenticate(opts.JWTSecret))
	api.HandleFunc("/assignments/{assignmentID}/submissions", s.submit).Methods(http.MethodPost)
	api.HandleFunc("/assignments/{assignmentID}/submissions", s.list).Methods(http.MethodGet)
	api.HandleFunc("/submissions/{id}", s.get).Methods(http.MethodGet)
	api.HandleFunc("/submissions/{id}/rescore", s.rescore).Methods(http.MethodPost)

	return router
}
