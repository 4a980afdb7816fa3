package correlation

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logwell-systems/logwell/internal/models"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func recordAt(file string, line int, requestID, traceID string, at time.Time) *models.LogRecord {
	record := &models.LogRecord{
		Level:     models.LevelError,
		Message:   "boom",
		Timestamp: at,
	}
	if file != "" {
		record.SourceFile = strPtr(file)
		record.LineNumber = intPtr(line)
	}
	if requestID != "" {
		record.RequestID = strPtr(requestID)
	}
	if traceID != "" {
		record.TraceID = strPtr(traceID)
	}
	return record
}

func TestRootCauseCandidates(t *testing.T) {
	now := time.Now().UTC()
	var records []*models.LogRecord
	for i := 0; i < 5; i++ {
		records = append(records, recordAt("db.go", 10, "", "", now))
	}
	for i := 0; i < 3; i++ {
		records = append(records, recordAt("handler.go", 42, "", "", now))
	}
	records = append(records, recordAt("cache.go", 7, "", "", now))
	records = append(records, recordAt("", 0, "", "", now))

	candidates := RootCauseCandidates(records)
	require.Len(t, candidates, 3)
	assert.Equal(t, RootCauseCandidate{SourceFile: "db.go", LineNumber: 10, Count: 5}, candidates[0])
	assert.Equal(t, RootCauseCandidate{SourceFile: "handler.go", LineNumber: 42, Count: 3}, candidates[1])
	assert.Equal(t, RootCauseCandidate{SourceFile: "cache.go", LineNumber: 7, Count: 1}, candidates[2])
}

func TestRootCauseCandidatesCapped(t *testing.T) {
	now := time.Now().UTC()
	var records []*models.LogRecord
	for i := 0; i < 8; i++ {
		// Each location occurs i+1 times so ranking is unambiguous.
		for n := 0; n <= i; n++ {
			records = append(records, recordAt(fmt.Sprintf("f%d.go", i), i, "", "", now))
		}
	}

	candidates := RootCauseCandidates(records)
	require.Len(t, candidates, 5)
	assert.Equal(t, "f7.go", candidates[0].SourceFile)
	assert.Equal(t, 8, candidates[0].Count)
	assert.Equal(t, 4, candidates[4].Count)
}

func TestCorrelations(t *testing.T) {
	now := time.Now().UTC()
	records := []*models.LogRecord{
		recordAt("", 0, "req-1", "trace-1", now),
		recordAt("", 0, "req-1", "trace-1", now),
		recordAt("", 0, "req-2", "", now),
		recordAt("", 0, "", "", now),
	}

	set := Correlations(records)
	assert.Equal(t, []string{"req-1", "req-2"}, set.RequestIDs)
	assert.Equal(t, []string{"trace-1"}, set.TraceIDs)
}

func TestCorrelationsCapped(t *testing.T) {
	now := time.Now().UTC()
	var records []*models.LogRecord
	for i := 0; i < 15; i++ {
		records = append(records, recordAt("", 0, fmt.Sprintf("req-%02d", i), "", now))
	}

	set := Correlations(records)
	assert.Len(t, set.RequestIDs, 10)
	assert.Empty(t, set.TraceIDs)
}

func TestBucketWidth(t *testing.T) {
	tests := []struct {
		window time.Duration
		want   time.Duration
	}{
		{30 * time.Minute, time.Minute},
		{time.Hour, time.Minute},
		{3 * time.Hour, 5 * time.Minute},
		{12 * time.Hour, 15 * time.Minute},
		{3 * 24 * time.Hour, time.Hour},
		{30 * 24 * time.Hour, 6 * time.Hour},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BucketWidth(tt.window), "window %s", tt.window)
	}
}

func TestBuildTimelineZeroFills(t *testing.T) {
	from := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	to := from.Add(10 * time.Minute)

	records := []*models.LogRecord{
		recordAt("", 0, "", "", from.Add(30*time.Second)),
		recordAt("", 0, "", "", from.Add(90*time.Second)),
		recordAt("", 0, "", "", from.Add(95*time.Second)),
		recordAt("", 0, "", "", to.Add(time.Minute)), // outside window
	}

	timeline := BuildTimeline(records, from, to)
	require.Len(t, timeline.Buckets, 10)
	assert.Equal(t, time.Minute, timeline.Width)
	assert.Equal(t, 1, timeline.Buckets[0].Count)
	assert.Equal(t, 2, timeline.Buckets[1].Count)
	for _, bucket := range timeline.Buckets[2:] {
		assert.Equal(t, 0, bucket.Count)
	}

	require.NotNil(t, timeline.Peak)
	assert.Equal(t, from.Add(time.Minute), timeline.Peak.Start)
	assert.Equal(t, 2, timeline.Peak.Count)
}

func TestBuildTimelineEmptyWindow(t *testing.T) {
	from := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	timeline := BuildTimeline(nil, from, from.Add(time.Hour))

	assert.Len(t, timeline.Buckets, 60)
	assert.Nil(t, timeline.Peak, "peak undefined for an all-empty window")
}

func TestBuildTimelinePeakPrefersEarliest(t *testing.T) {
	from := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	records := []*models.LogRecord{
		recordAt("", 0, "", "", from.Add(time.Minute)),
		recordAt("", 0, "", "", from.Add(5*time.Minute)),
	}

	timeline := BuildTimeline(records, from, from.Add(10*time.Minute))
	require.NotNil(t, timeline.Peak)
	assert.Equal(t, from.Add(time.Minute), timeline.Peak.Start)
}
