// ABOUTME: Tests for the HTTP client/server constructors
// ABOUTME: Verifies User-Agent stamping and server timeout settings

package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSecureHTTPClient_SetsUserAgent(t *testing.T) {
	t.Parallel()

	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	client := SecureHTTPClient(5 * time.Second)
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()

	if got != UserAgent {
		t.Errorf("User-Agent = %q; want %q", got, UserAgent)
	}
}

func TestSecureHTTPClient_KeepsCallerUserAgent(t *testing.T) {
	t.Parallel()

	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("User-Agent", "custom/2")
	resp, err := SecureHTTPClient(5 * time.Second).Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if got != "custom/2" {
		t.Errorf("User-Agent = %q; want %q", got, "custom/2")
	}
}

func TestSecureHTTPServer(t *testing.T) {
	t.Parallel()

	s := SecureHTTPServer(http.NotFoundHandler(), "127.0.0.1:0")
	if s.ReadHeaderTimeout != 10*time.Second {
		t.Errorf("ReadHeaderTimeout = %v; want 10s", s.ReadHeaderTimeout)
	}
	if s.WriteTimeout != 0 {
		t.Errorf("WriteTimeout = %v; want 0 for websocket connections", s.WriteTimeout)
	}
	if s.Addr != "127.0.0.1:0" {
		t.Errorf("Addr = %q", s.Addr)
	}
}
