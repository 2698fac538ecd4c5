package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kestrel/internal/bridge"
)

func sampleRecords() []bridge.ConnectionRecord {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []bridge.ConnectionRecord{
		{
			ID: "a", Host: "example.com", Process: "curl",
			Rule: "DOMAIN", RulePayload: "example.com",
			Chains: []string{"proxy-hk"},
			Upload: 100, Download: 2000,
			StartedAt: base,
		},
		{
			ID: "b", Host: "cdn.example.com", Process: "firefox",
			Rule: "DOMAIN-SUFFIX", RulePayload: "example.com",
			Chains: []string{"proxy-jp", "fallback"},
			Upload: 50, Download: 9000,
			StartedAt: base.Add(1 * time.Second),
		},
		{
			ID: "c", Host: "api.other.net", Process: "curl",
			Rule: "MATCH",
			Chains: []string{"DIRECT"},
			Upload: 700, Download: 10,
			StartedAt: base.Add(2 * time.Second),
		},
	}
}

func TestFilterSortDoesNotModifyInput(t *testing.T) {
	records := sampleRecords()
	original := make([]bridge.ConnectionRecord, len(records))
	copy(original, records)

	FilterSort(records, "", nil, SortByTraffic, Descending)

	assert.Equal(t, original, records, "input slice must stay untouched")
}

func TestEmptyFiltersReturnEverything(t *testing.T) {
	records := sampleRecords()
	out := FilterSort(records, "", nil, SortByTime, Ascending)
	assert.Len(t, out, len(records))
}

func TestFreeTextMatchesAnyField(t *testing.T) {
	records := sampleRecords()

	// Host match, case-insensitive.
	out := FilterSort(records, "EXAMPLE", nil, SortByTime, Ascending)
	require.Len(t, out, 2)

	// Process match.
	out = FilterSort(records, "firefox", nil, SortByTime, Ascending)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].ID)

	// Rule match.
	out = FilterSort(records, "match", nil, SortByTime, Ascending)
	require.Len(t, out, 1)
	assert.Equal(t, "c", out[0].ID)
}

func TestKeywordsAreANDed(t *testing.T) {
	records := sampleRecords()

	out := FilterSort(records, "", []string{"example", "curl"}, SortByTime, Ascending)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ID)

	// A keyword with no match anywhere empties the result.
	out = FilterSort(records, "", []string{"example", "nosuchthing"}, SortByTime, Ascending)
	assert.Empty(t, out)
}

func TestKeywordsMatchChains(t *testing.T) {
	records := sampleRecords()

	out := FilterSort(records, "", []string{"proxy-jp"}, SortByTime, Ascending)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].ID)
}

func TestEmptyKeywordsIgnored(t *testing.T) {
	records := sampleRecords()
	out := FilterSort(records, "", []string{"", ""}, SortByTime, Ascending)
	assert.Len(t, out, len(records))
}

func TestSortByTraffic(t *testing.T) {
	records := sampleRecords()

	out := FilterSort(records, "", nil, SortByTraffic, Descending)
	require.Len(t, out, 3)
	// Totals: b=9050, a=2100, c=710.
	assert.Equal(t, []string{"b", "a", "c"}, ids(out))

	out = FilterSort(records, "", nil, SortByTraffic, Ascending)
	assert.Equal(t, []string{"c", "a", "b"}, ids(out))
}

func TestSortByTime(t *testing.T) {
	records := sampleRecords()
	out := FilterSort(records, "", nil, SortByTime, Ascending)
	assert.Equal(t, []string{"a", "b", "c"}, ids(out))
}

func TestSortByHostAndProcess(t *testing.T) {
	records := sampleRecords()

	out := FilterSort(records, "", nil, SortByHost, Ascending)
	assert.Equal(t, []string{"c", "b", "a"}, ids(out))

	out = FilterSort(records, "", nil, SortByProcess, Ascending)
	// curl, curl, firefox; equal keys keep ID order via the tiebreak.
	assert.Equal(t, []string{"a", "c", "b"}, ids(out))
}

func TestTiesBrokenByID(t *testing.T) {
	now := time.Now()
	records := []bridge.ConnectionRecord{
		{ID: "z", Host: "same", StartedAt: now},
		{ID: "a", Host: "same", StartedAt: now},
		{ID: "m", Host: "same", StartedAt: now},
	}

	out := FilterSort(records, "", nil, SortByTime, Ascending)
	assert.Equal(t, []string{"a", "m", "z"}, ids(out))

	// The tiebreak is stable regardless of direction.
	out = FilterSort(records, "", nil, SortByTime, Descending)
	assert.Equal(t, []string{"a", "m", "z"}, ids(out))
}

func TestSameInputSameOutput(t *testing.T) {
	records := sampleRecords()
	first := FilterSort(records, "example", []string{"proxy-hk"}, SortByTraffic, Descending)
	second := FilterSort(records, "example", []string{"proxy-hk"}, SortByTraffic, Descending)
	assert.Equal(t, first, second)
}

func ids(records []bridge.ConnectionRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
