package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIPExtractor(t *testing.T) {
	tests := []struct {
		name      string
		hops      int
		remote    string
		forwarded []string
		want      string
	}{
		{name: "no trust uses peer", hops: 0, remote: "10.0.0.9:4000", forwarded: []string{"1.1.1.1"}, want: "10.0.0.9"},
		{name: "one hop takes last forwarded", hops: 1, remote: "10.0.0.9:4000", forwarded: []string{"1.1.1.1, 2.2.2.2"}, want: "2.2.2.2"},
		{name: "two hops", hops: 2, remote: "10.0.0.9:4000", forwarded: []string{"1.1.1.1, 2.2.2.2"}, want: "1.1.1.1"},
		{name: "hops beyond chain clamp to leftmost", hops: 5, remote: "10.0.0.9:4000", forwarded: []string{"1.1.1.1, 2.2.2.2"}, want: "1.1.1.1"},
		{name: "trusted without header falls back to peer", hops: 1, remote: "10.0.0.9:4000", want: "10.0.0.9"},
		{name: "multiple header lines", hops: 2, remote: "10.0.0.9:4000", forwarded: []string{"1.1.1.1", "2.2.2.2"}, want: "1.1.1.1"},
		{name: "negative hops treated as zero", hops: -1, remote: "10.0.0.9:4000", forwarded: []string{"1.1.1.1"}, want: "10.0.0.9"},
		{name: "remote without port", hops: 0, remote: "10.0.0.9", want: "10.0.0.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for _, v := range tt.forwarded {
				req.Header.Add("X-Forwarded-For", v)
			}
			assert.Equal(t, tt.want, ClientIPExtractor(tt.hops)(req))
		})
	}
}
