// Package aggregator folds grouping-eligible log records into incident
// aggregates. Enrichment and batch grouping are pure; the merge with
// persisted incidents happens inside the repository's atomic upsert.
package aggregator

import (
	"github.com/logwell-systems/logwell/internal/fingerprint"
	"github.com/logwell-systems/logwell/internal/models"
)

// Incident titles are the original message truncated to this many runes.
const maxTitleLength = 160

// Enrich computes the grouping identity for every grouping-eligible record in
// the batch: normalized message, fingerprint seeded with service and source
// context. Records below error severity pass through untouched — an explicit
// business rule, not an omission.
func Enrich(records []*models.LogRecord) {
	for _, record := range records {
		if !record.Level.Groupable() {
			continue
		}
		record.NormalizedMessage = fingerprint.Normalize(record.Message)
		fp := fingerprint.Compute(fingerprint.Seed(
			strVal(record.ServiceName),
			strVal(record.SourceFile),
			intVal(record.LineNumber),
			record.NormalizedMessage,
		))
		record.Fingerprint = &fp
	}
}

// Group rolls enriched records up into one aggregate per fingerprint.
// Aggregates come back in first-appearance order within the batch.
func Group(records []*models.LogRecord) []*models.IncidentAggregate {
	byFingerprint := make(map[string]*models.IncidentAggregate)
	var ordered []*models.IncidentAggregate

	for _, record := range records {
		if record.Fingerprint == nil {
			continue
		}
		fp := *record.Fingerprint

		agg, ok := byFingerprint[fp]
		if !ok {
			agg = &models.IncidentAggregate{
				Fingerprint:       fp,
				Title:             TruncateTitle(record.Message),
				NormalizedMessage: record.NormalizedMessage,
				ServiceName:       orDefault(strVal(record.ServiceName), fingerprint.DefaultService),
				SourceFile:        orDefault(strVal(record.SourceFile), fingerprint.DefaultSource),
				LineNumber:        intVal(record.LineNumber),
				HighestLevel:      record.Level,
				FirstSeen:         record.Timestamp,
				LastSeen:          record.Timestamp,
			}
			byFingerprint[fp] = agg
			ordered = append(ordered, agg)
		}

		agg.HighestLevel = models.MaxLevel(agg.HighestLevel, record.Level)
		if record.Timestamp.Before(agg.FirstSeen) {
			agg.FirstSeen = record.Timestamp
		}
		if record.Timestamp.After(agg.LastSeen) {
			agg.LastSeen = record.Timestamp
		}
		agg.TotalEvents++
	}

	return ordered
}

// TruncateTitle produces the incident's draft title: the original message cut
// to 160 runes with an ellipsis marker when longer.
func TruncateTitle(message string) string {
	runes := []rune(message)
	if len(runes) <= maxTitleLength {
		return message
	}
	return string(runes[:maxTitleLength]) + "..."
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intVal(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
