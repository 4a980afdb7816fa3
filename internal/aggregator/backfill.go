package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/logwell-systems/logwell/internal/models"
	"github.com/logwell-systems/logwell/internal/repository"
)

// BackfillResult reports what one backfill run touched.
type BackfillResult struct {
	Scanned          int
	CreatedIncidents int
	UpdatedRecords   int
}

// Backfill recomputes the grouping for every error and fatal record in the
// window and repairs records whose stored grouping differs from the
// recomputed one. Running it twice over the same window is a no-op the
// second time: it never inflates incident counters and only writes records
// that actually changed.
func Backfill(ctx context.Context, repo repository.Repository, projectID string, from, to time.Time) (*BackfillResult, error) {
	records, err := repo.ListGroupableRecords(ctx, projectID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list groupable records: %w", err)
	}

	result := &BackfillResult{Scanned: len(records)}
	if len(records) == 0 {
		return result, nil
	}

	// Snapshot the stored grouping before Enrich overwrites it.
	type grouping struct {
		fingerprint *string
		incidentID  *string
		serviceName *string
	}
	stored := make(map[string]grouping, len(records))
	for _, record := range records {
		stored[record.ID] = grouping{record.Fingerprint, record.IncidentID, record.ServiceName}
	}

	Enrich(records)
	aggregates := Group(records)

	incidentIDs := make(map[string]string, len(aggregates))
	for _, agg := range aggregates {
		_, err := repo.GetIncidentByFingerprint(ctx, projectID, agg.Fingerprint)
		missing := errors.Is(err, repository.ErrIncidentNotFound)
		if err != nil && !missing {
			return nil, fmt.Errorf("failed to look up incident: %w", err)
		}

		id, err := repo.InsertIncidentIfAbsent(ctx, &models.Incident{
			ProjectID:         projectID,
			Fingerprint:       agg.Fingerprint,
			Title:             agg.Title,
			NormalizedMessage: agg.NormalizedMessage,
			ServiceName:       agg.ServiceName,
			SourceFile:        agg.SourceFile,
			LineNumber:        agg.LineNumber,
			HighestLevel:      agg.HighestLevel,
			FirstSeen:         agg.FirstSeen,
			LastSeen:          agg.LastSeen,
			TotalEvents:       agg.TotalEvents,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to insert incident: %w", err)
		}
		if missing {
			result.CreatedIncidents++
		}
		incidentIDs[agg.Fingerprint] = id
	}

	for _, record := range records {
		if record.Fingerprint == nil {
			continue
		}
		incidentID, ok := incidentIDs[*record.Fingerprint]
		if !ok {
			continue
		}

		// Rewrite only when the (fingerprint, incidentID, serviceName)
		// triple actually changed.
		prev := stored[record.ID]
		if samePtr(prev.fingerprint, record.Fingerprint) &&
			prev.incidentID != nil && *prev.incidentID == incidentID &&
			samePtr(prev.serviceName, record.ServiceName) {
			continue
		}

		id := incidentID
		if err := repo.UpdateRecordGrouping(ctx, record.ID, record.Fingerprint, &id, record.ServiceName); err != nil {
			return nil, fmt.Errorf("failed to update record grouping: %w", err)
		}
		result.UpdatedRecords++
	}

	return result, nil
}

func samePtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
