// ABOUTME: npm registry HTTP client: search, package detail, download ranges and readme fallback
// ABOUTME: Non-2xx responses become *StatusError; every call goes to the network, nothing is cached

package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mariosdrth/npm-explorer/internal/config"
	xhttp "github.com/mariosdrth/npm-explorer/internal/http"
	"github.com/mariosdrth/npm-explorer/internal/log"
)

// maxBody bounds every response read; package documents with long version
// histories run to tens of megabytes.
const maxBody = 64 << 20

// StatusError is a non-2xx response.
type StatusError struct {
	Code   int
	Status string // reason phrase, e.g. "Not Found"
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.URL, e.Code, e.Status)
}

// Client talks to the registry, the downloads API and source hosts.
type Client struct {
	baseURL      string
	downloadsURL string
	githubAPI    string
	gitlabAPI    string

	http    *http.Client
	metrics *Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMetrics records request metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a client from the registry settings.
func New(s config.RegistrySettings, opts ...Option) *Client {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:      strings.TrimRight(s.URL, "/"),
		downloadsURL: strings.TrimRight(s.DownloadsURL, "/"),
		githubAPI:    strings.TrimRight(s.GitHubAPI, "/"),
		gitlabAPI:    strings.TrimRight(s.GitLabAPI, "/"),
		http:         xhttp.SecureHTTPClient(timeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search queries the registry. from is the result offset.
func (c *Client) Search(ctx context.Context, text string, from, size int, sort SortType) (*SearchResponse, error) {
	w := sort.Weights()
	q := url.Values{}
	q.Set("text", text)
	q.Set("size", strconv.Itoa(size))
	q.Set("from", strconv.Itoa(from))
	q.Set("quality", formatWeight(w.Quality))
	q.Set("popularity", formatWeight(w.Popularity))
	q.Set("maintenance", formatWeight(w.Maintenance))

	var out SearchResponse
	if err := c.getJSON(ctx, "search", c.baseURL+"/-/v1/search?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Package fetches the full registry document for name.
func (c *Client) Package(ctx context.Context, name string) (*PackageDetail, error) {
	var out PackageDetail
	if err := c.getJSON(ctx, "package", c.baseURL+"/"+escapeName(name), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Downloads fetches last year's daily downloads, oldest first.
func (c *Client) Downloads(ctx context.Context, name string) ([]DailyDownloads, error) {
	var out DownloadsRange
	if err := c.getJSON(ctx, "downloads", c.downloadsURL+"/downloads/range/last-year/"+name, &out); err != nil {
		return nil, err
	}
	return out.Downloads, nil
}

// Readme returns the best readme for d: the document's own, the latest
// version's, the previous version's, then the repository host's.
// It returns "" when none is found.
func (c *Client) Readme(ctx context.Context, d *PackageDetail) string {
	if r := LocalReadme(d); r != "" {
		return r
	}
	host, path, ok := ParseRepository(d.Repository.URL)
	if !ok {
		return ""
	}
	var (
		body []byte
		err  error
	)
	switch host {
	case "github.com":
		body, err = c.get(ctx, "readme", c.githubAPI+"/repos/"+path+"/readme", map[string]string{
			"Accept": "application/vnd.github.raw",
		})
	case "gitlab.com":
		body, err = c.get(ctx, "readme", c.gitlabAPI+"/projects/"+url.PathEscape(path)+"/repository/files/README.md/raw?ref=HEAD", nil)
	}
	if err != nil {
		log.Debug("registry: readme fallback for %s: %v", d.Name, err)
		return ""
	}
	return strings.TrimSpace(string(body))
}

// LocalReadme returns the readme embedded in the registry document.
func LocalReadme(d *PackageDetail) string {
	if strings.TrimSpace(d.Readme) != "" {
		return d.Readme
	}
	latest := d.Latest()
	idx := -1
	for i, v := range d.Versions {
		if v.Tag == latest {
			idx = i
			break
		}
	}
	if idx < 0 {
		idx = len(d.Versions) - 1
	}
	for i := idx; i >= 0 && i >= idx-1; i-- {
		if r := d.Versions[i].Detail.Readme; strings.TrimSpace(r) != "" {
			return r
		}
	}
	return ""
}

// ParseRepository extracts host and owner/repo path from the repository
// URL forms found in package documents.
func ParseRepository(raw string) (host, path string, ok bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", "", false
	}
	for prefix, h := range map[string]string{"github:": "github.com", "gitlab:": "gitlab.com"} {
		if strings.HasPrefix(s, prefix) {
			return h, strings.TrimSuffix(strings.TrimPrefix(s, prefix), ".git"), true
		}
	}
	// owner/repo shorthand means GitHub
	if !strings.Contains(s, ":") && strings.Count(s, "/") == 1 {
		return "github.com", strings.TrimSuffix(s, ".git"), true
	}
	s = strings.TrimPrefix(s, "git+")
	if strings.HasPrefix(s, "git@") {
		// git@github.com:owner/repo.git
		s = "ssh://" + strings.Replace(strings.TrimPrefix(s, "git@"), ":", "/", 1)
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", "", false
	}
	host = strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "github.com" && host != "gitlab.com" {
		return "", "", false
	}
	path = strings.Trim(strings.TrimSuffix(u.Path, ".git"), "/")
	if strings.Count(path, "/") < 1 {
		return "", "", false
	}
	if host == "github.com" {
		parts := strings.SplitN(path, "/", 3)
		path = parts[0] + "/" + parts[1]
	}
	return host, path, true
}

func (c *Client) getJSON(ctx context.Context, endpoint, rawURL string, out any) error {
	body, err := c.get(ctx, endpoint, rawURL, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint, rawURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.observe(endpoint, 0, time.Since(start))
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	c.metrics.observe(endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return nil, &StatusError{Code: resp.StatusCode, Status: http.StatusText(resp.StatusCode), URL: rawURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}

func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}

// escapeName encodes scoped names the way the registry expects (@scope%2Fname).
func escapeName(name string) string {
	return url.PathEscape(name)
}
