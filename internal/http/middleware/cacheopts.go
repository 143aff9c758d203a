package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

type contextKey string

const RequestOptionsKey contextKey = "request_options"

// RequestOptions are the per-request cache controls taken from the query
type RequestOptions struct {
	// Bypass forces a fresh upstream fetch
	Bypass bool
	// Limit truncates the served list; 0 means no limit
	Limit int
}

// CacheOptions reads "cache" and "limit" from the query string into the
// request context. Invalid limits are ignored.
func CacheOptions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := RequestOptions{Bypass: isDisabled(q.Get("cache"))}
		if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
			opts.Limit = n
		}
		ctx := context.WithValue(r.Context(), RequestOptionsKey, opts)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Options returns the request's cache controls, or zero values when
// CacheOptions did not run
func Options(ctx context.Context) RequestOptions {
	opts, _ := ctx.Value(RequestOptionsKey).(RequestOptions)
	return opts
}

// ControlParams are consumed by CacheOptions and never forwarded upstream
var ControlParams = []string{"cache", "limit"}

func isDisabled(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "false", "0", "no", "off":
		return true
	}
	return false
}
