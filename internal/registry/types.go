// ABOUTME: Registry response types for search, package detail and download ranges
// ABOUTME: Tolerates the registry's loose shapes: string-or-object authors, licenses and repositories

package registry

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mariosdrth/npm-explorer/internal/jsonorder"
)

// SortType selects the search ranking weights.
type SortType int

const (
	SortOptimal SortType = iota
	SortPopularity
	SortQuality
	SortMaintenance
)

// String returns the label shown in the UI.
func (s SortType) String() string {
	switch s {
	case SortPopularity:
		return "Popularity"
	case SortQuality:
		return "Quality"
	case SortMaintenance:
		return "Maintenance"
	default:
		return "Optimal"
	}
}

// Weights are the registry's search ranking parameters.
type Weights struct {
	Quality     float64
	Popularity  float64
	Maintenance float64
}

// Weights returns the ranking weights for s.
func (s SortType) Weights() Weights {
	switch s {
	case SortPopularity:
		return Weights{Popularity: 1}
	case SortQuality:
		return Weights{Quality: 1}
	case SortMaintenance:
		return Weights{Maintenance: 1}
	default:
		return Weights{Quality: 0.65, Popularity: 0.98, Maintenance: 0.5}
	}
}

// Person is an author or maintainer. The registry sends either an object
// or a "Name <email> (url)" string.
type Person struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	URL   string `json:"url,omitempty"`
}

func (p *Person) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = parsePerson(s)
		return nil
	}
	type plain Person
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	*p = Person(obj)
	return nil
}

func parsePerson(s string) Person {
	var p Person
	if i := strings.IndexByte(s, '('); i >= 0 {
		if j := strings.IndexByte(s[i:], ')'); j > 0 {
			p.URL = strings.TrimSpace(s[i+1 : i+j])
		}
		s = s[:i]
	}
	if i := strings.IndexByte(s, '<'); i >= 0 {
		if j := strings.IndexByte(s[i:], '>'); j > 0 {
			p.Email = strings.TrimSpace(s[i+1 : i+j])
		}
		s = s[:i]
	}
	p.Name = strings.TrimSpace(s)
	return p
}

// License is a SPDX string or a legacy {"type": ...} object.
type License string

func (l *License) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = License(s)
		return nil
	}
	var obj struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		*l = License(obj.Type)
	}
	return nil
}

// Repository is a source repository reference.
type Repository struct {
	Type      string `json:"type,omitempty"`
	URL       string `json:"url"`
	Directory string `json:"directory,omitempty"`
}

func (r *Repository) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = Repository{URL: s}
		return nil
	}
	type plain Repository
	var obj plain
	if err := json.Unmarshal(data, &obj); err == nil {
		*r = Repository(obj)
	}
	return nil
}

// WebURL is the repository URL without the git+ prefix and .git suffix.
func (r Repository) WebURL() string {
	u := strings.TrimPrefix(r.URL, "git+")
	if strings.HasPrefix(u, "git://") {
		u = "https://" + strings.TrimPrefix(u, "git://")
	}
	return strings.TrimSuffix(u, ".git")
}

// Keywords accepts an array or a single comma separated string.
type Keywords []string

func (k *Keywords) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*k = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				*k = append(*k, part)
			}
		}
	}
	return nil
}

// SearchPackage is the package part of a search hit.
type SearchPackage struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	Keywords    Keywords  `json:"keywords"`
	Date        time.Time `json:"date"`
	Links       struct {
		Npm        string `json:"npm"`
		Homepage   string `json:"homepage"`
		Repository string `json:"repository"`
	} `json:"links"`
	Author    *Person `json:"author"`
	Publisher *struct {
		Username string `json:"username"`
	} `json:"publisher"`
}

// ScoreDetail is the per-axis score of a hit.
type ScoreDetail struct {
	Quality     float64 `json:"quality"`
	Popularity  float64 `json:"popularity"`
	Maintenance float64 `json:"maintenance"`
}

// SearchResult is one search hit.
type SearchResult struct {
	Package SearchPackage `json:"package"`
	Score   struct {
		Final  float64     `json:"final"`
		Detail ScoreDetail `json:"detail"`
	} `json:"score"`
	SearchScore float64 `json:"searchScore"`
}

// AuthorName returns the author, falling back to the publisher.
func (r SearchResult) AuthorName() string {
	if r.Package.Author != nil && r.Package.Author.Name != "" {
		return r.Package.Author.Name
	}
	if r.Package.Publisher != nil {
		return r.Package.Publisher.Username
	}
	return ""
}

// SearchResponse is a page of search hits.
type SearchResponse struct {
	Objects []SearchResult `json:"objects"`
	Total   int            `json:"total"`
}

// VersionDetail is the manifest of one published version.
type VersionDetail struct {
	Version     string `json:"version"`
	Description string `json:"description"`
	Readme      string `json:"readme"`
	Dist        struct {
		UnpackedSize int64 `json:"unpackedSize"`
		FileCount    int   `json:"fileCount"`
	} `json:"dist"`
}

// Version pairs a version tag with its detail.
type Version struct {
	Tag    string
	Detail VersionDetail
}

// PackageDetail is the registry document for one package.
// Versions keep the registry's publication order.
type PackageDetail struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	DistTags    map[string]string `json:"dist-tags"`
	Versions    []Version         `json:"-"`
	Readme      string            `json:"readme"`
	Repository  Repository        `json:"repository"`
	Homepage    string            `json:"homepage"`
	License     License           `json:"license"`
	Keywords    Keywords          `json:"keywords"`
	Author      *Person           `json:"author"`
	Time        map[string]string `json:"time"`
}

func (d *PackageDetail) UnmarshalJSON(data []byte) error {
	type plain PackageDetail
	aux := struct {
		*plain
		RawVersions json.RawMessage `json:"versions"`
	}{plain: (*plain)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.RawVersions) == 0 || string(aux.RawVersions) == "null" {
		return nil
	}
	tree, err := jsonorder.Parse(aux.RawVersions)
	if err != nil {
		return fmt.Errorf("decoding versions: %w", err)
	}
	if tree.Kind != jsonorder.Object {
		return nil
	}
	d.Versions = make([]Version, 0, len(tree.Members))
	for _, m := range tree.Members {
		v := Version{Tag: m.Key}
		raw := aux.RawVersions[m.Value.Start:m.Value.End]
		if err := json.Unmarshal(raw, &v.Detail); err != nil {
			return fmt.Errorf("decoding version %s: %w", m.Key, err)
		}
		d.Versions = append(d.Versions, v)
	}
	return nil
}

// Latest returns the dist-tags latest version.
func (d *PackageDetail) Latest() string {
	return d.DistTags["latest"]
}

// Version looks up a version by tag.
func (d *PackageDetail) Version(tag string) (VersionDetail, bool) {
	for _, v := range d.Versions {
		if v.Tag == tag {
			return v.Detail, true
		}
	}
	return VersionDetail{}, false
}

// NewestFirst returns version tags in reverse publication order.
func (d *PackageDetail) NewestFirst() []string {
	out := make([]string, len(d.Versions))
	for i, v := range d.Versions {
		out[len(d.Versions)-1-i] = v.Tag
	}
	return out
}

// Published returns the publish time of tag, or the zero time.
func (d *PackageDetail) Published(tag string) time.Time {
	t, err := time.Parse(time.RFC3339, d.Time[tag])
	if err != nil {
		return time.Time{}
	}
	return t
}

// AuthorName returns the author's display name or "".
func (d *PackageDetail) AuthorName() string {
	if d.Author == nil {
		return ""
	}
	return d.Author.Name
}

// DailyDownloads is one sample of the downloads range API.
type DailyDownloads struct {
	Downloads int64  `json:"downloads"`
	Day       string `json:"day"` // yyyy-mm-dd
}

// DownloadsRange is the downloads API response.
type DownloadsRange struct {
	Start     string           `json:"start"`
	End       string           `json:"end"`
	Package   string           `json:"package"`
	Downloads []DailyDownloads `json:"downloads"`
}
