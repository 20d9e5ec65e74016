package trace

import (
	"encoding/json"
	"net/http"
)

// Middleware continues the caller's trace from request headers, or starts
// one, and echoes the trace id so clients can find the turn in the logs.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := continueFrom(r.Header.Get(TraceIDKey), r.Header.Get(SpanIDKey))
		w.Header().Set(TraceIDKey, tc.TraceID)
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), tc)))
	})
}

// ExtractFromJSON reads the optional trace_id of a WebSocket command. The
// bool reports whether the command carried one.
func ExtractFromJSON(data []byte) (Context, bool) {
	var cmd struct {
		TraceID string `json:"trace_id"`
	}
	if json.Unmarshal(data, &cmd) != nil || cmd.TraceID == "" {
		return New(), false
	}
	return continueFrom(cmd.TraceID, ""), true
}
