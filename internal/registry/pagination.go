// ABOUTME: Pagination window for search results: first, last, active and nearby pages
// ABOUTME: Every other run of pages collapses into a single ellipsis item

package registry

// PageItem is a page number or an ellipsis.
type PageItem struct {
	Page     int // 0 for an ellipsis
	Active   bool
	Ellipsis bool
}

// TotalPages returns the number of pages needed for total results.
func TotalPages(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Paginate returns the controls for totalPages with activePage selected.
// Page 1, the last page, the active page and pages within sideDistance of
// it are shown.
func Paginate(totalPages, activePage, sideDistance int) []PageItem {
	if totalPages <= 0 {
		return nil
	}
	if activePage < 1 {
		activePage = 1
	}
	if activePage > totalPages {
		activePage = totalPages
	}

	var items []PageItem
	gap := false
	for p := 1; p <= totalPages; p++ {
		visible := p == 1 || p == totalPages || (p >= activePage-sideDistance && p <= activePage+sideDistance)
		if !visible {
			if !gap {
				items = append(items, PageItem{Ellipsis: true})
				gap = true
			}
			continue
		}
		gap = false
		items = append(items, PageItem{Page: p, Active: p == activePage})
	}
	return items
}
