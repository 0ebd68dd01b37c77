// ABOUTME: Per-panel state: inspected package or search query, pagination cursor and sort type
// ABOUTME: Transitions are pure methods that report whether the panel must refresh

package panel

import (
	"strings"

	"github.com/mariosdrth/npm-explorer/internal/registry"
)

// Target is the package a panel inspects.
type Target struct {
	Name      string `json:"name"`
	Installed bool   `json:"installed"`
	Version   string `json:"version,omitempty"` // declared range when installed
	Dev       bool   `json:"dev,omitempty"`
}

// State is the observable state of one panel. Dependency and SearchText
// are mutually exclusive.
type State struct {
	Dependency        *Target
	SearchText        string
	ActivePage        int // 1-based
	SearchResultsFrom int
	SearchSize        int
	SearchType        registry.SortType
	Disposed          bool

	// Total is the hit count of the last search; it bounds paging.
	Total int
}

// NewState returns an empty state paging size results at a time.
func NewState(size int) State {
	if size <= 0 {
		size = 20
	}
	return State{ActivePage: 1, SearchSize: size}
}

// TotalPages is the number of result pages of the last search.
func (s *State) TotalPages() int {
	return registry.TotalPages(s.Total, s.SearchSize)
}

// Search switches to a new query at page 1. Blank text is ignored.
func (s *State) Search(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	s.Dependency = nil
	s.SearchText = text
	s.Total = 0
	s.setPage(1)
	return true
}

// SearchKeyword searches for packages tagged with kw.
func (s *State) SearchKeyword(kw string) bool {
	kw = strings.TrimSpace(kw)
	if kw == "" {
		return false
	}
	return s.Search("keywords:" + kw)
}

// Select inspects t.
func (s *State) Select(t Target) {
	s.Dependency = &t
	s.SearchText = ""
	s.Total = 0
	s.setPage(1)
}

// GoToPage moves to page when it lies within the result pages and differs
// from the active one.
func (s *State) GoToPage(page int) bool {
	if s.SearchText == "" || page < 1 || page > s.TotalPages() || page == s.ActivePage {
		return false
	}
	s.setPage(page)
	return true
}

// NextPage moves forward one page.
func (s *State) NextPage() bool { return s.GoToPage(s.ActivePage + 1) }

// PreviousPage moves back one page.
func (s *State) PreviousPage() bool { return s.GoToPage(s.ActivePage - 1) }

// SortBy changes the ranking and returns to page 1. Only a search view
// needs a refresh.
func (s *State) SortBy(t registry.SortType) bool {
	s.SearchType = t
	if s.SearchText == "" {
		return false
	}
	s.setPage(1)
	return true
}

func (s *State) setPage(page int) {
	s.ActivePage = page
	s.SearchResultsFrom = (page - 1) * s.SearchSize
}
