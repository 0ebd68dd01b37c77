// ABOUTME: Tests for BrowserModel: search paging, sorting, detail view, install requests and stale results
// ABOUTME: Runs against the fake registry; commands are drained synchronously

package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mariosdrth/npm-explorer/internal/registry"
)

var _ tea.Model = BrowserModel{}

func newTestBrowser(reg *fakeRegistry) BrowserModel {
	return NewBrowserModel(context.Background(), reg, nil, 20).SetSize(100, 40)
}

func TestBrowserModel_SearchAndPaging(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{total: 45}
	m, cmd := newTestBrowser(reg).Search("react")
	if !m.Loading() {
		t.Error("Loading() = false right after Search")
	}
	m = drain(t, m, cmd)

	if m.Loading() {
		t.Error("Loading() = true after results arrived")
	}
	if got := m.State().Total; got != 45 {
		t.Errorf("Total = %d; want 45", got)
	}
	v := m.View()
	for _, want := range []string{"Showing 1-20 of 45 packages", "react-0", "package number 0", "No author provided", "[1]"} {
		if !strings.Contains(v, want) {
			t.Errorf("View() missing %q", want)
		}
	}

	m = press(t, m, "n")
	if got := reg.lastCall(); got.from != 20 || got.text != "react" {
		t.Errorf("next page call = %+v; want from 20", got)
	}
	if !strings.Contains(m.View(), "Showing 21-40 of 45 packages") {
		t.Errorf("View() after next = %q", m.View())
	}

	m = press(t, m, "n", "n")
	if got := m.State().ActivePage; got != 3 {
		t.Errorf("ActivePage = %d; want 3 (last page)", got)
	}
	if !strings.Contains(m.View(), "Showing 41-45 of 45 packages") {
		t.Errorf("View() on last page = %q", m.View())
	}

	m = press(t, m, "ctrl+s")
	got := reg.lastCall()
	if got.sort != registry.SortPopularity || got.from != 0 {
		t.Errorf("sort call = %+v; want popularity from 0", got)
	}
}

func TestBrowserModel_EmptySearchIgnored(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{total: 5}
	m, cmd := newTestBrowser(reg).Search("   ")
	if cmd != nil {
		t.Error("blank search returned a command")
	}
	if m.Loading() {
		t.Error("blank search started loading")
	}
}

func TestBrowserModel_StaleResultsDropped(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{total: 3}
	m := newTestBrowser(reg)
	m, first := m.Search("old")
	m, second := m.Search("new")
	m = drain(t, m, second)
	m = drain(t, m, first)

	v := m.View()
	if !strings.Contains(v, "new-0") || strings.Contains(v, "old-0") {
		t.Errorf("View() = %q; want only the newest results", v)
	}
}

func TestBrowserModel_DetailAndBack(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{total: 3}
	m, cmd := newTestBrowser(reg).Search("react")
	m = drain(t, m, cmd)
	m = press(t, m, "down", "enter")

	st := m.State()
	if st.Dependency == nil || st.Dependency.Name != "react-1" {
		t.Fatalf("Dependency = %+v; want react-1", st.Dependency)
	}
	v := m.View()
	for _, want := range []string{"react-1", "1.2.0", "Weekly Downloads: 7,700", "2.0 kB", "MIT", "util", "Not in package.json"} {
		if !strings.Contains(v, want) {
			t.Errorf("detail View() missing %q", want)
		}
	}

	updated, cmd := m.Update(keyMsgs("esc")[0])
	m = updated.(BrowserModel)
	if cmd != nil {
		t.Error("back to results returned a command; want the cached page")
	}
	if got := m.State().SearchText; got != "react" {
		t.Errorf("SearchText after back = %q; want %q", got, "react")
	}
	if !strings.Contains(m.View(), "react-2") {
		t.Errorf("View() after back = %q", m.View())
	}

	_, cmd = m.Update(keyMsgs("esc")[0])
	if cmd == nil {
		t.Fatal("esc on results returned no command")
	}
	if _, ok := cmd().(browserExitMsg); !ok {
		t.Error("esc on results did not exit the browser")
	}
}

func TestBrowserModel_InstallRequests(t *testing.T) {
	t.Parallel()

	m, cmd := newTestBrowser(&fakeRegistry{}).Open("left-pad")
	m = drain(t, m, cmd)

	tests := []struct {
		key string
		dev bool
	}{
		{"i", false},
		{"I", true},
	}
	for _, tt := range tests {
		_, cmd := m.Update(keyMsgs(tt.key)[0])
		if cmd == nil {
			t.Fatalf("%s: no command", tt.key)
		}
		req, ok := cmd().(InstallRequestMsg)
		if !ok {
			t.Fatalf("%s: message is not an InstallRequestMsg", tt.key)
		}
		want := InstallRequestMsg{Name: "left-pad", Version: "1.2.0", Dev: tt.dev}
		if req != want {
			t.Errorf("%s: request = %+v; want %+v", tt.key, req, want)
		}
	}

	_, cmd = m.Update(keyMsgs("esc")[0])
	if _, ok := cmd().(browserExitMsg); !ok {
		t.Error("esc on a directly opened package did not exit")
	}
}

func TestBrowserModel_ErrorShown(t *testing.T) {
	t.Parallel()

	m, cmd := newTestBrowser(&fakeRegistry{}).Open("missing")
	m = drain(t, m, cmd)
	if got := m.View(); !strings.Contains(got, "Server responded with 404 Not Found!") {
		t.Errorf("View() = %q; want the status error", got)
	}
}

func TestBrowserModel_InputSearch(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{total: 2}
	m, _ := newTestBrowser(reg).FocusInput()
	if !m.InputFocused() {
		t.Fatal("InputFocused() = false")
	}
	m = press(t, m, "vue", "enter")
	if m.InputFocused() {
		t.Error("input kept focus after enter")
	}
	if got := reg.lastCall().text; got != "vue" {
		t.Errorf("search text = %q; want %q", got, "vue")
	}
}
