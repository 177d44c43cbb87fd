package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	jwtutil "github.com/sandali-perera/library-server/internal/utils/jwt"
	"github.com/sandali-perera/library-server/internal/utils/response"
)

type contextKey string

const (
	userIDKey    contextKey = "userID"
	requestIDKey contextKey = "requestID"
)

// UserID returns the id of the authenticated user, set by Authenticate.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Authenticate gates a route behind a Bearer access token. A missing,
// malformed, expired or otherwise invalid token is rejected with 403; on
// success the verified user id is attached to the request context so
// handlers can act on the caller's identity.
func Authenticate(tokens *jwtutil.Manager, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.WriteJson(w, http.StatusForbidden, response.GeneralError(fmt.Errorf("access token not found")))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.WriteJson(w, http.StatusForbidden, response.GeneralError(fmt.Errorf("invalid authorization header format")))
			return
		}

		userID, err := tokens.VerifyAccessToken(parts[1])
		if err != nil {
			response.WriteJson(w, http.StatusForbidden, response.GeneralError(fmt.Errorf("invalid or expired access token")))
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next(w, r.WithContext(ctx))
	}
}

// WithRequestID tags every request with a fresh id, echoed in the
// X-Request-Id header and available to handlers via RequestID.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// LogRequests writes one slog line per request after it completes.
func LogRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		slog.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.String("request_id", RequestID(r.Context())),
			slog.Duration("duration", time.Since(start)),
		)
	})
}
