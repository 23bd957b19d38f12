package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	requestIDContextKey contextKey = "requestId"
	requestIDHeader                = "X-Request-Id"
	maxRequestIDLength             = 64
)

// RequestID propagates the caller's request id, or assigns one, so POS
// terminals can correlate an issued number with service logs.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := incomingRequestID(r)
			if requestID == "" {
				requestID = newRequestID()
			}
			r.Header.Set(requestIDHeader, requestID)
			w.Header().Set(requestIDHeader, requestID)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDContextKey, requestID)))
		})
	}
}

func RequestIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(requestIDContextKey).(string)
	return value
}

// incomingRequestID accepts X-Request-Id or X-Correlation-Id when it is short
// and made of log-safe characters.
func incomingRequestID(r *http.Request) string {
	for _, key := range []string{requestIDHeader, "X-Correlation-Id"} {
		value := strings.TrimSpace(r.Header.Get(key))
		if value != "" && validRequestID(value) {
			return value
		}
	}
	return ""
}

func validRequestID(value string) bool {
	if len(value) > maxRequestIDLength {
		return false
	}
	for _, c := range value {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}

func newRequestID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "t" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(buf)
}
