// ABOUTME: upgrade and version subcommands; upgrade downloads the latest GitHub release
// ABOUTME: Verifies the SHA256 checksum and swaps the binary in place with renames

package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	xhttp "github.com/mariosdrth/npm-explorer/internal/http"
)

const (
	githubOwner = "mariosdrth"
	githubRepo  = "npm-explorer"
	releasesURL = "https://api.github.com/repos/" + githubOwner + "/" + githubRepo + "/releases/latest"

	upgradeTimeout = 5 * time.Minute
)

type githubRelease struct {
	TagName string        `json:"tag_name"`
	Assets  []githubAsset `json:"assets"`
}

type githubAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "npm-explorer %s (%s) built %s\n", version, commit, date)
			return err
		},
	}
}

// upgrader replaces target with the latest release published at url.
type upgrader struct {
	client  *http.Client
	url     string
	target  string
	current string
	out     io.Writer
}

func newUpgradeCmd() *cobra.Command {
	u := &upgrader{url: releasesURL, current: version}
	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Replace this binary with the latest release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u.client = xhttp.SecureHTTPClient(upgradeTimeout)
			u.out = cmd.OutOrStdout()
			if u.target == "" {
				exe, err := os.Executable()
				if err != nil {
					return fmt.Errorf("locating current executable: %w", err)
				}
				u.target = exe
			}
			return u.run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&u.url, "releases-url", releasesURL, "Latest-release API endpoint")
	cmd.Flags().StringVar(&u.target, "target", "", "Binary to replace (default: this executable)")
	_ = cmd.Flags().MarkHidden("releases-url")
	return cmd
}

func (u *upgrader) run(ctx context.Context) error {
	fmt.Fprintln(u.out, "checking for updates...")

	release, err := u.fetchLatestRelease(ctx)
	if err != nil {
		return fmt.Errorf("fetching latest release: %w", err)
	}

	latest := strings.TrimPrefix(release.TagName, "v")
	if latest == strings.TrimPrefix(u.current, "v") {
		fmt.Fprintf(u.out, "already at latest version %s\n", u.current)
		return nil
	}
	fmt.Fprintf(u.out, "updating %s -> %s\n", u.current, latest)

	binaryName := assetName(runtime.GOOS, runtime.GOARCH)
	binaryURL, err := findAssetURL(release, binaryName)
	if err != nil {
		return fmt.Errorf("finding binary asset: %w", err)
	}
	checksumURL, err := findAssetURL(release, binaryName+".sha256")
	if err != nil {
		return fmt.Errorf("finding checksum asset: %w", err)
	}

	expected, err := u.fetchChecksum(ctx, checksumURL)
	if err != nil {
		return fmt.Errorf("fetching checksum: %w", err)
	}
	tmpPath, err := u.download(ctx, binaryURL)
	if err != nil {
		return fmt.Errorf("downloading binary: %w", err)
	}
	// Already renamed on success.
	defer os.Remove(tmpPath)

	if err := verifyChecksum(tmpPath, expected); err != nil {
		return fmt.Errorf("checksum verification: %w", err)
	}
	if err := replaceBinary(tmpPath, u.target); err != nil {
		return fmt.Errorf("replacing binary: %w", err)
	}
	fmt.Fprintf(u.out, "updated to %s\n", latest)
	return nil
}

func (u *upgrader) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		return nil, fmt.Errorf("%s returned status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

func (u *upgrader) fetchLatestRelease(ctx context.Context) (*githubRelease, error) {
	resp, err := u.get(ctx, u.url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decoding release: %w", err)
	}
	return &release, nil
}

// assetName is the release binary name for a platform.
func assetName(goos, goarch string) string {
	ext := ""
	if goos == "windows" {
		ext = ".exe"
	}
	return fmt.Sprintf("npm-explorer_%s_%s%s", goos, goarch, ext)
}

func findAssetURL(release *githubRelease, name string) (string, error) {
	for _, asset := range release.Assets {
		if asset.Name == name {
			return asset.BrowserDownloadURL, nil
		}
	}
	return "", fmt.Errorf("asset %q not found in release %s", name, release.TagName)
}

// fetchChecksum reads "<hex>" or "<hex>  <filename>".
func (u *upgrader) fetchChecksum(ctx context.Context, url string) (string, error) {
	resp, err := u.get(ctx, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading checksum body: %w", err)
	}
	parts := strings.Fields(string(data))
	if len(parts) == 0 {
		return "", fmt.Errorf("empty checksum file")
	}
	return parts[0], nil
}

func (u *upgrader) download(ctx context.Context, url string) (string, error) {
	resp, err := u.get(ctx, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(u.target), ".npm-explorer-upgrade-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing binary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	return tmp.Name(), nil
}

func verifyChecksum(path, expectedHex string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hashing file: %w", err)
	}
	actual := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(actual, expectedHex) {
		return fmt.Errorf("hash mismatch: expected %s, got %s", expectedHex, actual)
	}
	return nil
}

// replaceBinary moves target to target.old, tmpPath to target, then
// removes the backup. The backup is restored if the second rename fails.
func replaceBinary(tmpPath, target string) error {
	target, err := filepath.EvalSymlinks(target)
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o755); err != nil {
		return fmt.Errorf("setting executable permissions: %w", err)
	}

	oldPath := target + ".old"
	if err := os.Rename(target, oldPath); err != nil {
		return fmt.Errorf("backing up current binary: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Rename(oldPath, target)
		return fmt.Errorf("installing new binary: %w", err)
	}
	_ = os.Remove(oldPath)
	return nil
}
