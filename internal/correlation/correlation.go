// Package correlation derives read-side analysis from an incident's member
// records: likely root-cause locations, shared request/trace identifiers and
// event-rate timelines. Everything here is pure and recomputed per request.
package correlation

import (
	"sort"
	"time"

	"github.com/logwell-systems/logwell/internal/models"
)

const (
	maxRootCauseCandidates = 5
	maxCorrelationIDs      = 10
)

// RootCauseCandidate is a source location ranked by how many of the
// incident's events it produced.
type RootCauseCandidate struct {
	SourceFile string `json:"sourceFile"`
	LineNumber int    `json:"lineNumber"`
	Count      int    `json:"count"`
}

// CorrelationSet holds the identifiers most often attached to the incident's
// events, for pivoting into request traces.
type CorrelationSet struct {
	RequestIDs []string `json:"requestIds"`
	TraceIDs   []string `json:"traceIds"`
}

// RootCauseCandidates ranks (sourceFile, lineNumber) pairs by occurrence and
// returns the top five. Records without a source file are skipped. Ties keep
// map iteration order.
func RootCauseCandidates(records []*models.LogRecord) []RootCauseCandidate {
	type location struct {
		file string
		line int
	}
	counts := make(map[location]int)
	for _, record := range records {
		if record.SourceFile == nil || *record.SourceFile == "" {
			continue
		}
		loc := location{file: *record.SourceFile}
		if record.LineNumber != nil {
			loc.line = *record.LineNumber
		}
		counts[loc]++
	}

	candidates := make([]RootCauseCandidate, 0, len(counts))
	for loc, count := range counts {
		candidates = append(candidates, RootCauseCandidate{
			SourceFile: loc.file,
			LineNumber: loc.line,
			Count:      count,
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Count > candidates[j].Count
	})

	if len(candidates) > maxRootCauseCandidates {
		candidates = candidates[:maxRootCauseCandidates]
	}
	return candidates
}

// Correlations collects the top ten request IDs and trace IDs by frequency.
// Absent identifiers are ignored.
func Correlations(records []*models.LogRecord) CorrelationSet {
	requestCounts := make(map[string]int)
	traceCounts := make(map[string]int)
	for _, record := range records {
		if record.RequestID != nil && *record.RequestID != "" {
			requestCounts[*record.RequestID]++
		}
		if record.TraceID != nil && *record.TraceID != "" {
			traceCounts[*record.TraceID]++
		}
	}
	return CorrelationSet{
		RequestIDs: topKeys(requestCounts, maxCorrelationIDs),
		TraceIDs:   topKeys(traceCounts, maxCorrelationIDs),
	}
}

func topKeys(counts map[string]int, limit int) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}
	if len(keys) == 0 {
		return []string{}
	}
	return keys
}

// TimelineBucket is one fixed-width slice of an incident timeline.
type TimelineBucket struct {
	Start time.Time `json:"start"`
	Count int       `json:"count"`
}

// Timeline is the bucketed event-rate view of an incident over a window.
type Timeline struct {
	From    time.Time        `json:"from"`
	To      time.Time        `json:"to"`
	Width   time.Duration    `json:"-"`
	Buckets []TimelineBucket `json:"buckets"`
	Peak    *TimelineBucket  `json:"peak,omitempty"`
}

// BucketWidth picks the bucket width for a window so charts stay readable
// at any zoom level.
func BucketWidth(window time.Duration) time.Duration {
	switch {
	case window <= time.Hour:
		return time.Minute
	case window <= 6*time.Hour:
		return 5 * time.Minute
	case window <= 24*time.Hour:
		return 15 * time.Minute
	case window <= 7*24*time.Hour:
		return time.Hour
	default:
		return 6 * time.Hour
	}
}

// BuildTimeline buckets the records into fixed-width slices covering
// [from, to). Empty buckets are kept so the series has no gaps. Peak is the
// earliest bucket with the highest count, nil when every bucket is empty.
func BuildTimeline(records []*models.LogRecord, from, to time.Time) *Timeline {
	width := BucketWidth(to.Sub(from))

	var buckets []TimelineBucket
	for start := from; start.Before(to); start = start.Add(width) {
		buckets = append(buckets, TimelineBucket{Start: start})
	}

	for _, record := range records {
		if record.Timestamp.Before(from) || !record.Timestamp.Before(to) {
			continue
		}
		idx := int(record.Timestamp.Sub(from) / width)
		if idx >= 0 && idx < len(buckets) {
			buckets[idx].Count++
		}
	}

	timeline := &Timeline{From: from, To: to, Width: width, Buckets: buckets}
	for i := range buckets {
		if buckets[i].Count == 0 {
			continue
		}
		if timeline.Peak == nil || buckets[i].Count > timeline.Peak.Count {
			peak := buckets[i]
			timeline.Peak = &peak
		}
	}
	return timeline
}
