package ratelimit

import (
	"net/http/httptest"
	"testing"
)

func TestClientKey(t *testing.T) {
	tests := []struct {
		name string
		xff  string
		want string
	}{
		{"missing header", "", UnknownClient},
		{"single address", "203.0.113.7", "203.0.113.7"},
		{"left-most wins", "203.0.113.7, 10.0.0.1, 10.0.0.2", "203.0.113.7"},
		{"whitespace trimmed", "  198.51.100.4 ,10.0.0.1", "198.51.100.4"},
		{"empty first entry", " ,10.0.0.1", UnknownClient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := ClientKey(r); got != tt.want {
				t.Errorf("ClientKey() = %q, want %q", got, tt.want)
			}
		})
	}
}
