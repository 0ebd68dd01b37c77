// ABOUTME: Tests for the upgrade command against an httptest release API
// ABOUTME: Covers the up-to-date case, a verified swap and a checksum mismatch

package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// releaseServer publishes tag with a binary body and the given checksum.
func releaseServer(t *testing.T, tag, body, checksum string) *httptest.Server {
	t.Helper()
	name := assetName(runtime.GOOS, runtime.GOARCH)
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/latest", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(githubRelease{
			TagName: tag,
			Assets: []githubAsset{
				{Name: name, BrowserDownloadURL: srv.URL + "/bin"},
				{Name: name + ".sha256", BrowserDownloadURL: srv.URL + "/sum"},
			},
		})
	})
	mux.HandleFunc("/bin", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, body)
	})
	mux.HandleFunc("/sum", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, "%s  %s\n", checksum, name)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func sha256Hex(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func writeTarget(t *testing.T) string {
	t.Helper()
	target := filepath.Join(t.TempDir(), "npm-explorer")
	if err := os.WriteFile(target, []byte("old binary"), 0o755); err != nil {
		t.Fatal(err)
	}
	return target
}

func TestUpgrade_ReplacesBinary(t *testing.T) {
	t.Parallel()

	srv := releaseServer(t, "v1.4.0", "new binary", sha256Hex("new binary"))
	target := writeTarget(t)

	out, err := execute(t, context.Background(), "upgrade", "--releases-url", srv.URL+"/latest", "--target", target)
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if !strings.Contains(out, "updating dev -> 1.4.0") || !strings.Contains(out, "updated to 1.4.0") {
		t.Errorf("output = %q", out)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new binary" {
		t.Errorf("target = %q; want the new binary", data)
	}
	if _, err := os.Stat(target + ".old"); !os.IsNotExist(err) {
		t.Errorf("backup left behind: %v", err)
	}
	entries, _ := os.ReadDir(filepath.Dir(target))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries; want only the binary", len(entries))
	}
}

func TestUpgrade_ChecksumMismatch(t *testing.T) {
	t.Parallel()

	srv := releaseServer(t, "v1.4.0", "tampered", sha256Hex("new binary"))
	target := writeTarget(t)

	_, err := execute(t, context.Background(), "upgrade", "--releases-url", srv.URL+"/latest", "--target", target)
	if err == nil || !strings.Contains(err.Error(), "hash mismatch") {
		t.Fatalf("err = %v; want a hash mismatch", err)
	}
	data, _ := os.ReadFile(target)
	if string(data) != "old binary" {
		t.Errorf("target = %q; want it untouched", data)
	}
}

func TestUpgrade_AlreadyLatest(t *testing.T) {
	t.Parallel()

	srv := releaseServer(t, "vdev", "", "")
	target := writeTarget(t)

	out, err := execute(t, context.Background(), "upgrade", "--releases-url", srv.URL+"/latest", "--target", target)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "already at latest version dev") {
		t.Errorf("output = %q", out)
	}
}

func TestAssetName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		goos, goarch, want string
	}{
		{"linux", "amd64", "npm-explorer_linux_amd64"},
		{"darwin", "arm64", "npm-explorer_darwin_arm64"},
		{"windows", "amd64", "npm-explorer_windows_amd64.exe"},
	}
	for _, tt := range tests {
		if got := assetName(tt.goos, tt.goarch); got != tt.want {
			t.Errorf("assetName(%s, %s) = %q; want %q", tt.goos, tt.goarch, got, tt.want)
		}
	}
}
