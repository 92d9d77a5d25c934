package log

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		remoteAddr string
		want       string
	}{
		{name: "first forwarded entry wins", forwarded: "203.0.113.7, 10.0.0.1", remoteAddr: "10.0.0.2:5000", want: "203.0.113.7"},
		{name: "single forwarded entry", forwarded: " 198.51.100.4 ", remoteAddr: "10.0.0.2:5000", want: "198.51.100.4"},
		{name: "blank forwarded entry falls back", forwarded: " , 10.0.0.1", remoteAddr: "192.0.2.1:443", want: "192.0.2.1"},
		{name: "remote addr host", remoteAddr: "192.0.2.9:1234", want: "192.0.2.9"},
		{name: "remote addr without port", remoteAddr: "192.0.2.10", want: "192.0.2.10"},
		{name: "nothing available", remoteAddr: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}
