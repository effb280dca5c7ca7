package middleware

import (
	"context"
	"net/http"
	"smartdorm/pkg/logger"
)

type contextKey string

const RequestIDKey contextKey = "request_id"

func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// writeJSONError emits the same body shape as pkg/http.ErrorResponse. The
// middleware package cannot import pkg/http without a cycle through config.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + message + `","code":"` + code + `"}`))
}

func warnRejected(log *logger.Logger, r *http.Request, msg string, args ...any) {
	args = append([]any{
		"request_id", RequestIDFrom(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	}, args...)
	log.Warn(msg, args...)
}
