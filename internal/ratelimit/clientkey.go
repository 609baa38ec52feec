package ratelimit

import (
	"net/http"
	"strings"
)

// UnknownClient is the key used when a request carries no forwarded-for
// address. All such requests share one bucket.
const UnknownClient = "unknown"

// ClientKey returns the left-most X-Forwarded-For address, or UnknownClient.
func ClientKey(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return UnknownClient
	}
	first, _, _ := strings.Cut(xff, ",")
	if first = strings.TrimSpace(first); first != "" {
		return first
	}
	return UnknownClient
}
