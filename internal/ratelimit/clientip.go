package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ClientIPExtractor resolves the client address behind hops trusted reverse
// proxies. The candidate list is the socket peer followed by X-Forwarded-For
// read right to left; the address hops positions in is the client, clamped to
// the leftmost entry. With hops=1 and one proxy this is the last XFF entry.
func ClientIPExtractor(hops int) echo.IPExtractor {
	if hops < 0 {
		hops = 0
	}
	return func(r *http.Request) string {
		addrs := []string{peerIP(r.RemoteAddr)}
		if hops > 0 {
			forwarded := forwardedFor(r.Header.Values(echo.HeaderXForwardedFor))
			for i := len(forwarded) - 1; i >= 0; i-- {
				addrs = append(addrs, forwarded[i])
			}
		}
		idx := hops
		if idx > len(addrs)-1 {
			idx = len(addrs) - 1
		}
		return addrs[idx]
	}
}

func peerIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func forwardedFor(values []string) []string {
	var out []string
	for _, value := range values {
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}
