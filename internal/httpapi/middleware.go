package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type ctxKey string

const (
	studentIDKey ctxKey = "student_id"
	requestIDKey ctxKey = "request_id"
)

// requestID tags every request with an id and logs its outcome.
func requestID(log *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			ctx := context.WithValue(r.Context(), requestIDKey, id)
			next.ServeHTTP(rec, r.WithContext(ctx))

			log.Info("request handled",
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Claims carries the authenticated student in the subject.
type Claims struct {
	jwt.RegisteredClaims
}

// authenticate requires an HS256 token whose subject is the student id.
// An empty secret disables it.
func authenticate(jwtSecret string) mux.MiddlewareFunc {
	secret := []byte(jwtSecret)
	return func(next http.Handler) http.Handler {
		if jwtSecret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := readToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			claims := &Claims{}
			t, err := jwt.ParseWithClaims(
				tokenStr,
				claims,
				func(token *jwt.Token) (interface{}, error) {
					if token.Method != jwt.SigningMethodHS256 {
						return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
					}
					return secret, nil
				},
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			)
			if err != nil || !t.Valid || claims.Subject == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), studentIDKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func studentFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(studentIDKey).(string)
	return id, ok && id != ""
}

func readToken(r *http.Request) (string, bool) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	for _, prefix := range []string{"Bearer ", "Token "} {
		if strings.HasPrefix(authHeader, prefix) {
			tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
			return tokenStr, tokenStr != ""
		}
	}
	return "", false
}
