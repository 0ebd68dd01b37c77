// ABOUTME: Server-side HTML for panels: document shell, search results, package detail, errors
// ABOUTME: Readmes go through goldmark then bluemonday; counts and sizes are humanized

package panel

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/mariosdrth/npm-explorer/internal/log"
	"github.com/mariosdrth/npm-explorer/internal/registry"
	"github.com/mariosdrth/npm-explorer/internal/tree"
)

//go:embed templates/*.html
var templateFS embed.FS

// NpmPageURL is the public package page prefix.
const NpmPageURL = "https://www.npmjs.com/package/"

// Renderer turns panel state and registry data into HTML fragments.
type Renderer struct {
	tmpl   *template.Template
	md     goldmark.Markdown
	policy *bluemonday.Policy
	now    func() time.Time

	// SideDistance is how many pages either side of the active one are shown.
	SideDistance int
}

// NewRenderer parses the embedded templates.
func NewRenderer() *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("align").OnElements("p", "div", "h1", "h2", "h3", "img")
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	return &Renderer{
		tmpl: template.Must(template.ParseFS(templateFS, "templates/*.html")),
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
		policy:       policy,
		now:          time.Now,
		SideDistance: 2,
	}
}

type documentView struct {
	ID       string
	Nonce    string
	Socket   string
	Fragment template.HTML
}

// Document wraps fragment in the page shell for panel id. socket is the
// websocket origin allowed by the content security policy.
func (r *Renderer) Document(id, socket, fragment string) (string, error) {
	return r.execute("document", documentView{
		ID:       id,
		Nonce:    strings.ReplaceAll(uuid.NewString(), "-", ""),
		Socket:   socket,
		Fragment: template.HTML(fragment), // rendered by this package
	})
}

// Loading is the placeholder shown while content is fetched.
func (r *Renderer) Loading() string {
	s, _ := r.execute("loading", nil)
	return s
}

// ErrorMessage is the user facing text for a failed fetch.
func ErrorMessage(err error) string {
	var se *registry.StatusError
	if errors.As(err, &se) {
		return fmt.Sprintf("Server responded with %d %s!", se.Code, se.Status)
	}
	return "Could not reach the registry: " + err.Error()
}

// Error renders a failed fetch.
func (r *Renderer) Error(err error) string {
	msg := ErrorMessage(err)
	s, rerr := r.execute("error", msg)
	if rerr != nil {
		return template.HTMLEscapeString(msg)
	}
	return s
}

type sortButton struct {
	Label   string
	Command string
	Active  bool
}

type resultView struct {
	Name        string
	Version     string
	Description string
	Author      string
	Published   string
	Keywords    []string
}

type searchView struct {
	Summary string
	Results []resultView
	Pages   []registry.PageItem
	HasPrev bool
	HasNext bool
}

type versionOption struct {
	Value    string
	Label    string
	Selected bool
}

type packageView struct {
	Name             string
	Author           string
	Description      string
	Installed        bool
	InstalledVersion string
	Dev              bool
	Wanted           string
	Versions         []versionOption
	Published        string
	UnpackedSize     string
	FileCount        int
	NpmURL           string
	RepositoryURL    string
	Homepage         string
	License          string
	Keywords         []string
	Readme           template.HTML
}

type contentView struct {
	SearchText string
	Sorts      []sortButton
	Search     *searchView
	Package    *packageView
}

var sortOrder = []struct {
	sort    registry.SortType
	command string
}{
	{registry.SortOptimal, EventSortPackagesOptimal},
	{registry.SortPopularity, EventSortPackagesPopularity},
	{registry.SortQuality, EventSortPackagesQuality},
	{registry.SortMaintenance, EventSortPackagesMaintenance},
}

// Search renders a page of search results for st.
func (r *Renderer) Search(st State, res *registry.SearchResponse) (string, error) {
	v := contentView{SearchText: st.SearchText}
	for _, s := range sortOrder {
		v.Sorts = append(v.Sorts, sortButton{Label: s.sort.String(), Command: s.command, Active: s.sort == st.SearchType})
	}

	sv := &searchView{}
	total := registry.TotalPages(res.Total, st.SearchSize)
	switch {
	case res.Total == 0:
		sv.Summary = "No packages found"
	default:
		sv.Summary = fmt.Sprintf("Showing %s-%s of %s packages",
			FormatCount(int64(st.SearchResultsFrom+1)),
			FormatCount(int64(st.SearchResultsFrom+len(res.Objects))),
			FormatCount(int64(res.Total)))
	}
	if total > 1 {
		sv.Pages = registry.Paginate(total, st.ActivePage, r.SideDistance)
		sv.HasPrev = st.ActivePage > 1
		sv.HasNext = st.ActivePage < total
	}
	for _, o := range res.Objects {
		rv := resultView{
			Name:        o.Package.Name,
			Version:     o.Package.Version,
			Description: registry.PlainText(o.Package.Description),
			Author:      o.AuthorName(),
			Keywords:    o.Package.Keywords,
		}
		if !o.Package.Date.IsZero() {
			rv.Published = registry.TimeAgo(r.now(), o.Package.Date)
		}
		sv.Results = append(sv.Results, rv)
	}
	v.Search = sv
	return r.execute("search", v)
}

// Package renders the detail view of d for target. dep is the manifest
// entry when the package is declared.
func (r *Renderer) Package(target Target, d *registry.PackageDetail, readme string, dep *tree.Dependency) (string, error) {
	latest := d.Latest()
	pv := &packageView{
		Name:             target.Name,
		Author:           d.AuthorName(),
		Description:      registry.PlainText(d.Description),
		Installed:        target.Installed,
		InstalledVersion: target.Version,
		Dev:              target.Dev,
		NpmURL:           NpmPageURL + target.Name,
		RepositoryURL:    strings.TrimPrefix(d.Repository.URL, "git+"),
		Homepage:         d.Homepage,
		License:          string(d.License),
		Keywords:         d.Keywords,
		Readme:           r.readmeHTML(readme),
	}
	if dep != nil && dep.Outdated {
		pv.Wanted = dep.WantedVersion
	}
	for _, tag := range d.NewestFirst() {
		opt := versionOption{Value: tag, Label: tag}
		if tag == latest {
			opt.Label += " (latest)"
			opt.Selected = true
		}
		pv.Versions = append(pv.Versions, opt)
	}
	if t := d.Published(latest); !t.IsZero() {
		pv.Published = registry.TimeAgo(r.now(), t)
	}
	if v, ok := d.Version(latest); ok {
		if v.Dist.UnpackedSize > 0 {
			pv.UnpackedSize = humanize.Bytes(uint64(v.Dist.UnpackedSize))
		}
		pv.FileCount = v.Dist.FileCount
	}
	return r.execute("package", contentView{SearchText: "", Package: pv})
}

func (r *Renderer) readmeHTML(src string) template.HTML {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		log.Debug("panel: rendering readme: %v", err)
		return ""
	}
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes())) // sanitized above
}

func (r *Renderer) execute(name string, data any) (string, error) {
	var b strings.Builder
	if err := r.tmpl.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return b.String(), nil
}
