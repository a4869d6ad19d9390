package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const CallerIDKey contextKey = "caller_id"

// CallerID stamps an optional X-Caller-ID header into the request context
// for audit logging. Unlike the teacher's X-Tenant-ID, it is not enforced:
// this service fronts a single configured PACS rather than brokering many
// tenants' PACS configurations, so a missing header just yields "anonymous"
// instead of a 400.
func CallerID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callerID := r.Header.Get("X-Caller-ID")
		if callerID == "" {
			callerID = "anonymous"
		}
		ctx := context.WithValue(r.Context(), CallerIDKey, callerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetCallerID extracts the caller id from context.
func GetCallerID(ctx context.Context) string {
	if v, ok := ctx.Value(CallerIDKey).(string); ok {
		return v
	}
	return "anonymous"
}
