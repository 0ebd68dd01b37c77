// ABOUTME: Tests for panel state transitions, event handling, rendering and install flows
// ABOUTME: Uses in-memory registry/dependency fakes and goquery for HTML assertions

package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mariosdrth/npm-explorer/internal/manifest"
	"github.com/mariosdrth/npm-explorer/internal/registry"
	"github.com/mariosdrth/npm-explorer/internal/tree"
)

type searchCall struct {
	Text string
	From int
	Size int
	Sort registry.SortType
}

type fakeRegistry struct {
	mu        sync.Mutex
	calls     []searchCall
	total     int
	gate      chan struct{}
	pkg       *registry.PackageDetail
	pkgErr    error
	downloads []registry.DailyDownloads
	readme    string
}

func (f *fakeRegistry) Search(ctx context.Context, text string, from, size int, sort registry.SortType) (*registry.SearchResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, searchCall{text, from, size, sort})
	gate := f.gate
	total := f.total
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	res := &registry.SearchResponse{Total: total}
	for i := from; i < from+size && i < total; i++ {
		var r registry.SearchResult
		r.Package.Name = fmt.Sprintf("pkg-%d", i)
		r.Package.Version = "1.0.0"
		r.Package.Description = "package <b>number</b> " + fmt.Sprint(i)
		if i%2 == 0 {
			r.Package.Author = &registry.Person{Name: "alice"}
		}
		r.Package.Keywords = registry.Keywords{"cli"}
		res.Objects = append(res.Objects, r)
	}
	return res, nil
}

func (f *fakeRegistry) Package(ctx context.Context, name string) (*registry.PackageDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pkgErr != nil {
		return nil, f.pkgErr
	}
	d := *f.pkg
	d.Name = name
	return &d, nil
}

func (f *fakeRegistry) Downloads(ctx context.Context, name string) ([]registry.DailyDownloads, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloads, nil
}

func (f *fakeRegistry) Readme(ctx context.Context, d *registry.PackageDetail) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readme
}

func (f *fakeRegistry) lastCall() searchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeDeps struct {
	mu   sync.Mutex
	deps map[string]tree.Dependency
}

func (f *fakeDeps) Dependency(name string, section *manifest.Section) (tree.Dependency, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deps[name]
	if !ok {
		return tree.Dependency{}, false
	}
	if section != nil && *section != d.Section() {
		return tree.Dependency{}, false
	}
	return d, true
}

func (f *fakeDeps) set(d tree.Dependency) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deps == nil {
		f.deps = make(map[string]tree.Dependency)
	}
	f.deps[d.Name] = d
}

type recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recorder) add(m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
}

func (r *recorder) all() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

func (r *recorder) find(cmd string) (Message, bool) {
	msgs := r.all()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Command == cmd {
			return msgs[i], true
		}
	}
	return Message{}, false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func lodash() *registry.PackageDetail {
	latest := registry.Version{Tag: "4.17.21"}
	latest.Detail.Dist.UnpackedSize = 1413741
	latest.Detail.Dist.FileCount = 1054
	return &registry.PackageDetail{
		Name:        "lodash",
		Description: "Lodash modular utilities.",
		DistTags:    map[string]string{"latest": "4.17.21"},
		Versions:    []registry.Version{{Tag: "4.17.20"}, latest},
		Repository:  registry.Repository{URL: "git+https://github.com/lodash/lodash.git"},
		Homepage:    "https://lodash.com/",
		License:     "MIT",
		Keywords:    registry.Keywords{"modules", "stdlib"},
		Author:      &registry.Person{Name: "John-David Dalton"},
		Time:        map[string]string{"4.17.21": "2021-02-20T15:42:16.891Z"},
	}
}

func dailyDownloads(n int, each int64) []registry.DailyDownloads {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	days := make([]registry.DailyDownloads, n)
	for i := range days {
		days[i] = registry.DailyDownloads{Day: start.AddDate(0, 0, i).Format("2006-01-02"), Downloads: each}
	}
	return days
}

func newTestPanel(t *testing.T, reg *fakeRegistry, deps *fakeDeps, install InstallFunc, target *Target, search string) (*Panel, *recorder) {
	t.Helper()
	r := NewRenderer()
	r.SideDistance = 1
	r.now = func() time.Time { return time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC) }
	opts := Options{Registry: reg, Renderer: r, SearchSize: 20, Install: install}
	if deps != nil {
		opts.Dependencies = deps
	}
	p := New("test", opts, target, search)
	rec := &recorder{}
	p.Subscribe(rec.add)
	return p, rec
}

func parse(t *testing.T, fragment string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		t.Fatalf("parsing fragment: %v", err)
	}
	return doc
}

func TestState_Transitions(t *testing.T) {
	t.Parallel()

	s := NewState(20)
	if s.Search("   ") {
		t.Error("blank search changed state")
	}
	if !s.Search("react") || s.SearchText != "react" || s.ActivePage != 1 || s.SearchResultsFrom != 0 {
		t.Fatalf("Search = %+v", s)
	}
	s.Total = 95
	if got := s.TotalPages(); got != 5 {
		t.Errorf("TotalPages = %d; want 5", got)
	}
	if !s.GoToPage(3) || s.SearchResultsFrom != 40 {
		t.Errorf("GoToPage(3) from = %d; want 40", s.SearchResultsFrom)
	}
	if !s.NextPage() || s.ActivePage != 4 {
		t.Errorf("NextPage active = %d; want 4", s.ActivePage)
	}
	if s.GoToPage(6) || s.GoToPage(0) || s.GoToPage(4) {
		t.Error("out of range or same page accepted")
	}
	if !s.PreviousPage() || s.ActivePage != 3 {
		t.Errorf("PreviousPage active = %d; want 3", s.ActivePage)
	}
	if !s.SortBy(registry.SortPopularity) || s.ActivePage != 1 || s.SearchType != registry.SortPopularity {
		t.Errorf("SortBy = %+v", s)
	}
	if !s.SearchKeyword("cli") || s.SearchText != "keywords:cli" {
		t.Errorf("SearchKeyword text = %q", s.SearchText)
	}

	s.Select(Target{Name: "lodash"})
	if s.SearchText != "" || s.Dependency == nil || s.Dependency.Name != "lodash" {
		t.Errorf("Select = %+v", s)
	}
	if s.NextPage() {
		t.Error("paging in a package view")
	}
	if s.SortBy(registry.SortQuality) || s.SearchType != registry.SortQuality {
		t.Error("SortBy in a package view should record the sort without refreshing")
	}
}

func TestEvent_DecodesLowercaseSearchText(t *testing.T) {
	t.Parallel()

	var ev Event
	if err := json.Unmarshal([]byte(`{"command":"search","searchtext":"left-pad"}`), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.SearchText != "left-pad" {
		t.Errorf("SearchText = %q; want left-pad", ev.SearchText)
	}
}

func TestPanel_SearchAndPaging(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{total: 200}
	p, rec := newTestPanel(t, reg, nil, nil, nil, "react")
	ctx := context.Background()

	p.Refresh(ctx)
	if st := p.State(); st.Total != 200 {
		t.Fatalf("Total = %d; want 200", st.Total)
	}
	msgs := rec.all()
	if len(msgs) != 2 || msgs[0].Command != MessageHTML || msgs[1].Command != MessageHTML {
		t.Fatalf("messages = %+v", msgs)
	}

	p.HandleEvent(ctx, Event{Command: EventPageClicked, Page: 5})
	if c := reg.lastCall(); c.From != 80 || c.Size != 20 {
		t.Errorf("page 5 call = %+v; want from 80", c)
	}

	doc := parse(t, p.Fragment())
	navs := doc.Find("nav.pagination")
	if navs.Length() != 2 {
		t.Fatalf("pagination controls = %d; want 2", navs.Length())
	}
	top, _ := navs.Eq(0).Html()
	bottom, _ := navs.Eq(1).Html()
	if top != bottom {
		t.Errorf("pagination copies differ:\n%s\n%s", top, bottom)
	}
	var labels []string
	navs.Eq(0).Find(".page-btn, .page-ellipsis").Each(func(_ int, s *goquery.Selection) {
		labels = append(labels, s.Text())
	})
	if got := strings.Join(labels, " "); got != "1 … 4 5 6 … 10" {
		t.Errorf("pages = %q; want %q", got, "1 … 4 5 6 … 10")
	}
	if got := navs.Eq(0).Find(".page-btn.active").Text(); got != "5" {
		t.Errorf("active page = %q; want 5", got)
	}
	if got := doc.Find("#search-message").Text(); got != "Showing 81-100 of 200 packages" {
		t.Errorf("summary = %q", got)
	}
	if got := doc.Find(".result-list-item").Length(); got != 20 {
		t.Errorf("results = %d; want 20", got)
	}
	if got := doc.Find(".no-author").Length(); got != 10 {
		t.Errorf("no-author rows = %d; want 10", got)
	}
	if got := doc.Find(".result-list-item p").Eq(1).Text(); got != "package number 80" {
		t.Errorf("description = %q; want markup stripped", got)
	}

	p.HandleEvent(ctx, Event{Command: EventNextPageClicked})
	if c := reg.lastCall(); c.From != 100 {
		t.Errorf("next page from = %d; want 100", c.From)
	}
	p.HandleEvent(ctx, Event{Command: EventSortPackagesMaintenance})
	if c := reg.lastCall(); c.From != 0 || c.Sort != registry.SortMaintenance {
		t.Errorf("sort call = %+v", c)
	}
	p.HandleEvent(ctx, Event{Command: EventKeywordClicked, Keyword: "cli"})
	if c := reg.lastCall(); c.Text != "keywords:cli" || c.From != 0 {
		t.Errorf("keyword call = %+v", c)
	}
	calls := len(reg.calls)
	p.HandleEvent(ctx, Event{Command: EventSearch, SearchText: ""})
	if len(reg.calls) != calls {
		t.Error("empty search triggered a fetch")
	}
}

func TestPanel_PackageView(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{
		pkg:       lodash(),
		downloads: dailyDownloads(15, 1000),
		readme:    "# Lodash\n\n<script>alert(1)</script>\n\nA modern utility library.",
	}
	deps := &fakeDeps{}
	deps.set(tree.Dependency{Name: "lodash", Version: "^4.17.0", Installed: true, Outdated: true, WantedVersion: "4.17.21"})
	p, rec := newTestPanel(t, reg, deps, nil, &Target{Name: "lodash", Installed: true, Version: "^4.17.0"}, "")

	p.Refresh(context.Background())

	doc := parse(t, p.Fragment())
	checks := map[string]string{
		"#content-info-name":              "lodash",
		"#content-info-author":            "John-David Dalton",
		"#content-info-installed-version": "Version (^4.17.0) installed",
		"#content-info-wanted-version":    "4.17.21",
		"#version option[selected]":       "4.17.21 (latest)",
		"#content-md h1":                  "Lodash",
	}
	for sel, want := range checks {
		if got := strings.TrimSpace(doc.Find(sel).First().Text()); got != want {
			t.Errorf("%s = %q; want %q", sel, got, want)
		}
	}
	if v, _ := doc.Find("#version option").First().Attr("value"); v != "4.17.21" {
		t.Errorf("first option = %q; want newest", v)
	}
	if doc.Find("#content-md script").Length() != 0 {
		t.Error("readme script not sanitized")
	}
	if doc.Find("#install-btn-dep").Length() != 0 {
		t.Error("install dropdown shown for a declared package")
	}
	links := map[string]bool{}
	doc.Find(".details-section-link").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		links[href] = true
	})
	for _, want := range []string{"https://www.npmjs.com/package/lodash", "https://github.com/lodash/lodash.git", "https://lodash.com/"} {
		if !links[want] {
			t.Errorf("missing link %s in %v", want, links)
		}
	}
	if !strings.Contains(doc.Find("#details").Text(), "1.4 MB") {
		t.Errorf("unpacked size missing: %q", doc.Find("#details").Text())
	}

	graph, ok := rec.find(MessageBuildGraph)
	if !ok {
		t.Fatal("no buildGraph message")
	}
	if len(graph.XValues) != 2 || graph.XValues[1] != "09-01-2024 - 15-01-2024" {
		t.Errorf("xValues = %v", graph.XValues)
	}
	if graph.InitialDownloadValue != "7,000" {
		t.Errorf("initial value = %q; want 7,000", graph.InitialDownloadValue)
	}
	if _, g := p.Snapshot(); g == nil || g.Command != MessageBuildGraph {
		t.Error("snapshot lacks the chart")
	}
}

func TestPanel_NewPackageView(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{pkg: lodash()}
	p, _ := newTestPanel(t, reg, nil, nil, &Target{Name: "chalk"}, "")
	p.Refresh(context.Background())

	doc := parse(t, p.Fragment())
	if doc.Find("#install-btn-dep").Length() != 1 || doc.Find("#install-btn-dev-dep").Length() != 1 {
		t.Error("install dropdown missing for a new package")
	}
	if doc.Find("#content-info-installed-version").Length() != 0 {
		t.Error("installed line shown for a new package")
	}
	if got := doc.Find("#no-md-message").Text(); got != "No Readme found for this package" {
		t.Errorf("readme message = %q", got)
	}
}

func TestPanel_ErrorPage(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{pkgErr: &registry.StatusError{Code: 404, Status: "Not Found"}}
	p, rec := newTestPanel(t, reg, nil, nil, &Target{Name: "nope"}, "")
	p.Refresh(context.Background())

	if got := parse(t, p.Fragment()).Find("#error-container h1").Text(); got != "Server responded with 404 Not Found!" {
		t.Errorf("error page = %q", got)
	}
	if _, ok := rec.find(MessageBuildGraph); ok {
		t.Error("chart posted for a failed fetch")
	}
}

func TestPanel_DisposedIgnoresCompletion(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	reg := &fakeRegistry{total: 50, gate: gate}
	p, rec := newTestPanel(t, reg, nil, nil, nil, "react")

	done := make(chan struct{})
	go func() {
		p.Refresh(context.Background())
		close(done)
	}()
	waitFor(t, "loading placeholder", func() bool { return len(rec.all()) == 1 })
	p.Dispose()
	close(gate)
	<-done

	if n := len(rec.all()); n != 1 {
		t.Errorf("messages after dispose = %d; want only the placeholder", n)
	}
	if st := p.State(); st.Total != 0 {
		t.Errorf("Total = %d; disposed panel was updated", st.Total)
	}
	p.HandleEvent(context.Background(), Event{Command: EventSearch, SearchText: "vue"})
	if len(reg.calls) != 1 {
		t.Error("disposed panel handled an event")
	}
}

func TestPanel_SelectSearchResult(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{total: 3, pkg: lodash()}
	deps := &fakeDeps{}
	deps.set(tree.Dependency{Name: "pkg-1", Version: "^1.0.0", Dev: true})
	p, rec := newTestPanel(t, reg, deps, nil, nil, "pkg")
	ctx := context.Background()
	p.Refresh(ctx)

	p.HandleEvent(ctx, Event{Command: EventSearchResultSelected, PackageName: "pkg-1"})
	st := p.State()
	if st.SearchText != "" || st.Dependency == nil {
		t.Fatalf("state = %+v", st)
	}
	if want := (Target{Name: "pkg-1", Installed: true, Version: "^1.0.0", Dev: true}); *st.Dependency != want {
		t.Errorf("Dependency = %+v; want %+v", *st.Dependency, want)
	}
	msgs := rec.all()
	if msgs[len(msgs)-1].Command != MessageHideLoading {
		t.Errorf("last message = %q; want hideLoading", msgs[len(msgs)-1].Command)
	}
	if got := parse(t, p.Fragment()).Find("#content-info-installed-version").Text(); got != "Version (^1.0.0) installed as dev dependency" {
		t.Errorf("installed line = %q", got)
	}
}

type installCall struct {
	Name, Version string
	Dev           bool
}

func TestPanel_InstallVersion(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{pkg: lodash()}
	deps := &fakeDeps{}
	deps.set(tree.Dependency{Name: "lodash", Version: "^4.17.0"})
	settled := make(chan struct{})
	var call installCall
	install := func(ctx context.Context, name, version string, dev bool) (<-chan struct{}, error) {
		call = installCall{name, version, dev}
		return settled, nil
	}
	p, rec := newTestPanel(t, reg, deps, install, &Target{Name: "lodash", Installed: true, Version: "^4.17.0"}, "")
	p.Refresh(context.Background())

	p.HandleEvent(context.Background(), Event{Command: EventInstallVersion, Version: "4.17.21 (latest)"})
	if call != (installCall{"lodash", "4.17.21", false}) {
		t.Errorf("install = %+v", call)
	}
	if _, ok := rec.find(MessageShowLoading); !ok {
		t.Error("no showLoading before install")
	}
	if _, ok := rec.find(MessageUpdateVersion); ok {
		t.Fatal("updateVersion before the install settled")
	}

	deps.set(tree.Dependency{Name: "lodash", Version: "^4.17.21"})
	close(settled)
	waitFor(t, "hideLoading", func() bool {
		_, ok := rec.find(MessageHideLoading)
		return ok
	})
	upd, _ := rec.find(MessageUpdateVersion)
	if upd.NewVersion != "^4.17.21" || upd.IsDev {
		t.Errorf("updateVersion = %+v", upd)
	}
	if v := p.State().Dependency.Version; v != "^4.17.21" {
		t.Errorf("state version = %q", v)
	}
}

func TestPanel_InstallVersionRequiresDeclaredPackage(t *testing.T) {
	t.Parallel()

	called := false
	install := func(ctx context.Context, name, version string, dev bool) (<-chan struct{}, error) {
		called = true
		return nil, nil
	}
	p, _ := newTestPanel(t, &fakeRegistry{pkg: lodash()}, nil, install, &Target{Name: "chalk"}, "")
	p.HandleEvent(context.Background(), Event{Command: EventInstallVersion, Version: "5.0.0"})
	if called {
		t.Error("installVersion ran for an undeclared package")
	}
}

func TestPanel_InstallNewPackage(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{pkg: lodash()}
	deps := &fakeDeps{}
	settled := make(chan struct{})
	var call installCall
	install := func(ctx context.Context, name, version string, dev bool) (<-chan struct{}, error) {
		call = installCall{name, version, dev}
		return settled, nil
	}
	p, _ := newTestPanel(t, reg, deps, install, &Target{Name: "chalk"}, "")
	p.Refresh(context.Background())

	p.HandleEvent(context.Background(), Event{Command: EventInstallVersionForNewPackage, Version: "5.3.0", IsDev: true})
	if call != (installCall{"chalk", "5.3.0", true}) {
		t.Errorf("install = %+v", call)
	}

	deps.set(tree.Dependency{Name: "chalk", Version: "^5.3.0", Dev: true})
	close(settled)
	waitFor(t, "re-render as installed", func() bool {
		return strings.Contains(p.Fragment(), "Version (^5.3.0) installed as dev dependency")
	})
	if st := p.State(); st.Dependency == nil || !st.Dependency.Installed || !st.Dependency.Dev {
		t.Errorf("state = %+v", st.Dependency)
	}
}

func TestPanel_InstallNewPackageKeepsLaterNavigation(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{pkg: lodash(), total: 3}
	deps := &fakeDeps{}
	settled := make(chan struct{})
	install := func(ctx context.Context, name, version string, dev bool) (<-chan struct{}, error) {
		return settled, nil
	}
	p, _ := newTestPanel(t, reg, deps, install, &Target{Name: "chalk"}, "")
	p.Refresh(context.Background())

	p.HandleEvent(context.Background(), Event{Command: EventInstallVersionForNewPackage, Version: "5.3.0"})
	p.HandleEvent(context.Background(), Event{Command: EventSearch, SearchText: "vue"})
	waitFor(t, "search results", func() bool { return strings.Contains(p.Fragment(), `value="vue"`) })

	deps.set(tree.Dependency{Name: "chalk", Version: "^5.3.0"})
	close(settled)
	time.Sleep(50 * time.Millisecond)

	st := p.State()
	if st.Dependency != nil || st.SearchText != "vue" {
		t.Errorf("state after install = %+v; want the vue search kept", st)
	}
	if !strings.Contains(p.Fragment(), `value="vue"`) {
		t.Error("search page replaced after the install settled")
	}
}
