// Package query contains pure projection functions over connection records.
// Nothing here holds state or touches the clock; every function is directly
// unit-testable and safe to call from any goroutine.
package query

import (
	"sort"
	"strings"

	"kestrel/internal/bridge"
)

// SortKey selects the field records are ordered by.
type SortKey string

const (
	SortByTime    SortKey = "time"
	SortByTraffic SortKey = "traffic"
	SortByHost    SortKey = "host"
	SortByProcess SortKey = "process"
)

// SortOrder is ascending or descending.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// FilterSort returns the records matching freeText and keywords, ordered by
// key/order with ties broken by ID. The input slice is never modified; with
// empty filters the result is the full input, only reordered.
func FilterSort(records []bridge.ConnectionRecord, freeText string, keywords []string, key SortKey, order SortOrder) []bridge.ConnectionRecord {
	out := make([]bridge.ConnectionRecord, 0, len(records))
	for _, r := range records {
		if Matches(r, freeText, keywords) {
			out = append(out, r)
		}
	}
	sortRecords(out, key, order)
	return out
}

// Matches reports whether a single record passes both filters. An empty
// freeText and empty keywords match everything.
func Matches(r bridge.ConnectionRecord, freeText string, keywords []string) bool {
	if freeText != "" && !matchFreeText(r, freeText) {
		return false
	}
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if !strings.Contains(keywordHaystack(r), strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

// matchFreeText checks a case-insensitive substring match against the
// record's primary display fields.
func matchFreeText(r bridge.ConnectionRecord, text string) bool {
	needle := strings.ToLower(text)
	for _, field := range []string{r.Host, r.Process, r.Rule, r.RulePayload, r.SourceIP, r.DestinationIP} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// keywordHaystack is the wider haystack used for keyword AND-matching: the
// free-text fields plus the chain list, joined and lower-cased.
func keywordHaystack(r bridge.ConnectionRecord) string {
	parts := []string{r.Host, r.Process, r.Rule, r.RulePayload, r.SourceIP, r.DestinationIP}
	parts = append(parts, r.Chains...)
	return strings.ToLower(strings.Join(parts, " "))
}

func sortRecords(records []bridge.ConnectionRecord, key SortKey, order SortOrder) {
	less := lessFunc(key)
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch {
		case less(a, b):
			return order != Descending
		case less(b, a):
			return order == Descending
		default:
			// Ties broken by ID for a deterministic order.
			return a.ID < b.ID
		}
	})
}

func lessFunc(key SortKey) func(a, b bridge.ConnectionRecord) bool {
	switch key {
	case SortByTraffic:
		return func(a, b bridge.ConnectionRecord) bool {
			return a.Upload+a.Download < b.Upload+b.Download
		}
	case SortByHost:
		return func(a, b bridge.ConnectionRecord) bool {
			return strings.ToLower(a.Host) < strings.ToLower(b.Host)
		}
	case SortByProcess:
		return func(a, b bridge.ConnectionRecord) bool {
			return strings.ToLower(a.Process) < strings.ToLower(b.Process)
		}
	default: // SortByTime
		return func(a, b bridge.ConnectionRecord) bool {
			return a.StartedAt.Before(b.StartedAt)
		}
	}
}
