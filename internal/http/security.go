// ABOUTME: HTTP client and server constructors with timeouts for registry calls and the panel server
// ABOUTME: Client stamps a User-Agent on every request; server bounds header/read/write time

package http

import (
	"net/http"
	"time"
)

// UserAgent identifies npm-explorer to the registry and source hosts.
const UserAgent = "npm-explorer/1.0"

// userAgentTransport sets the User-Agent header when the caller has not.
type userAgentTransport struct {
	base http.RoundTripper
	ua   string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.ua)
	}
	return t.base.RoundTrip(req)
}

// SecureHTTPClient creates an HTTP client with bounded timeouts.
func SecureHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &userAgentTransport{
			base: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 15 * time.Second,
				IdleConnTimeout:       30 * time.Second,
				MaxIdleConns:          10,
				MaxIdleConnsPerHost:   4,
			},
			ua: UserAgent,
		},
	}
}

// SecureHTTPServer creates an HTTP server with bounded timeouts.
// WriteTimeout is left at zero: websocket connections are long-lived.
func SecureHTTPServer(handler http.Handler, addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}
}
