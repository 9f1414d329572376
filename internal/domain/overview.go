package domain

import "strings"

// HighlightLimit caps the highlight length in characters (runes).
const HighlightLimit = 400

// highlightEllipsis marks a truncated highlight with a single rune.
const highlightEllipsis = "…"

// Metrics is the fixed-shape counter record returned by the overview.
// TasksDone and NewLeads are window-bound; BlockedTasks is a current
// snapshot; ActiveProjects counts distinct project ids in the log window.
type Metrics struct {
	TasksDone      int `json:"tasksDone"`
	NewLeads       int `json:"newLeads"`
	ActiveProjects int `json:"activeProjects"`
	BlockedTasks   int `json:"blockedTasks"`
}

// ProjectRef is a permission-scoped directory entry for one project.
type ProjectRef struct {
	Name     string
	ClientID string
}

// ClientRef is a permission-scoped directory entry for one client.
type ClientRef struct {
	Name string
}

// OverviewContext holds the per-request display-name directories. Entries
// exist only for ids the viewer may resolve.
type OverviewContext struct {
	Projects map[string]ProjectRef
	Clients  map[string]ClientRef
}

// Summary is the cached overview payload: counters plus the narrative.
type Summary struct {
	Metrics   Metrics `json:"metrics"`
	Highlight string  `json:"highlight"`
}

// ClampHighlight trims trailing whitespace and enforces HighlightLimit,
// cutting to limit-1 runes and appending a single ellipsis when over.
func ClampHighlight(s string) string {
	s = strings.TrimRight(s, " \t\r\n")
	runes := []rune(s)
	if len(runes) <= HighlightLimit {
		return s
	}
	return string(runes[:HighlightLimit-1]) + highlightEllipsis
}
