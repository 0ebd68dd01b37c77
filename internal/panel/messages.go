// ABOUTME: Wire messages between a panel page and the host, both as {"command": ...} JSON
// ABOUTME: Events flow page -> host over the websocket; Messages flow host -> page

package panel

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mariosdrth/npm-explorer/internal/registry"
)

// Page-to-host commands.
const (
	EventSearch                      = "search"
	EventSearchResultSelected        = "searchResultSelected"
	EventInstallVersion              = "installVersion"
	EventInstallVersionForNewPackage = "installVersionForNewPackage"
	EventKeywordClicked              = "keywordClicked"
	EventPreviousPageClicked         = "previousPageClicked"
	EventNextPageClicked             = "nextPageClicked"
	EventPageClicked                 = "pageClicked"
	EventSortPackagesOptimal         = "sortPackagesOptimal"
	EventSortPackagesPopularity      = "sortPackagesPopularity"
	EventSortPackagesQuality         = "sortPackagesQuality"
	EventSortPackagesMaintenance     = "sortPackagesMaintenance"
)

// Host-to-page commands.
const (
	MessageHTML          = "html"
	MessageShowLoading   = "showLoading"
	MessageHideLoading   = "hideLoading"
	MessageUpdateVersion = "updateVersion"
	MessageBuildGraph    = "buildGraph"
)

// Event is a message from the page. JSON keys match case-insensitively,
// so older pages sending "searchtext" decode too.
type Event struct {
	Command     string `json:"command"`
	SearchText  string `json:"searchText,omitempty"`
	PackageName string `json:"packageName,omitempty"`
	Version     string `json:"version,omitempty"`
	IsDev       bool   `json:"isDev,omitempty"`
	Keyword     string `json:"keyword,omitempty"`
	Page        int    `json:"page,omitempty"`
}

// Message is a message to the page.
type Message struct {
	Command              string   `json:"command"`
	Content              string   `json:"content,omitempty"`
	NewVersion           string   `json:"newVersion,omitempty"`
	IsDev                bool     `json:"isDev,omitempty"`
	XValues              []string `json:"xValues,omitempty"`
	YValues              []int64  `json:"yValues,omitempty"`
	InitialDownloadValue string   `json:"initialDownloadValue,omitempty"`
}

var sortEvents = map[string]registry.SortType{
	EventSortPackagesOptimal:     registry.SortOptimal,
	EventSortPackagesPopularity:  registry.SortPopularity,
	EventSortPackagesQuality:     registry.SortQuality,
	EventSortPackagesMaintenance: registry.SortMaintenance,
}

func knownEvent(cmd string) bool {
	switch cmd {
	case EventSearch, EventSearchResultSelected, EventInstallVersion, EventInstallVersionForNewPackage,
		EventKeywordClicked, EventPreviousPageClicked, EventNextPageClicked, EventPageClicked:
		return true
	}
	_, ok := sortEvents[cmd]
	return ok
}

var numbers = message.NewPrinter(language.English)

// FormatCount renders n with thousands separators.
func FormatCount(n int64) string {
	return numbers.Sprintf("%d", n)
}

func htmlMessage(content string) Message {
	return Message{Command: MessageHTML, Content: content}
}

func loadingMessage(show bool) Message {
	if show {
		return Message{Command: MessageShowLoading}
	}
	return Message{Command: MessageHideLoading}
}

// graphMessage charts weekly buckets; the initial value is the newest week.
func graphMessage(buckets []registry.WeeklyBucket) Message {
	m := Message{
		Command: MessageBuildGraph,
		XValues: make([]string, len(buckets)),
		YValues: make([]int64, len(buckets)),
	}
	for i, b := range buckets {
		m.XValues[i] = b.Label()
		m.YValues[i] = b.Downloads
	}
	if n := len(buckets); n > 0 {
		m.InitialDownloadValue = FormatCount(buckets[n-1].Downloads)
	}
	return m
}
