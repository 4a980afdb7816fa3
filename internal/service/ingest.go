package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/logwell-systems/logwell/internal/aggregator"
	"github.com/logwell-systems/logwell/internal/events"
	"github.com/logwell-systems/logwell/internal/metrics"
	"github.com/logwell-systems/logwell/internal/models"
	"github.com/logwell-systems/logwell/internal/normalizer"
	"github.com/logwell-systems/logwell/internal/otlp"
)

// ErrStorageFailure marks repository failures so callers can tell them apart
// from payload validation errors.
var ErrStorageFailure = errors.New("storage failure")

// BatchResponse is the partial-success result of a batch ingest.
type BatchResponse struct {
	Accepted int      `json:"accepted"`
	Rejected int      `json:"rejected"`
	Errors   []string `json:"errors,omitempty"`
}

// OTLPResponse reports how many OTLP log records were dropped.
type OTLPResponse struct {
	Rejected int
}

// IngestBatch parses a native batch payload, stores the valid records and
// reports per-record failures. Invalid records never abort the batch.
func (s *Service) IngestBatch(ctx context.Context, projectID string, body []byte) (*BatchResponse, error) {
	result, err := normalizer.ParseBatch(body)
	if err != nil {
		metrics.RecordsTotal.WithLabelValues("batch", "invalid").Inc()
		return nil, err
	}

	if err := s.store(ctx, projectID, "batch", result.Records); err != nil {
		return nil, err
	}

	metrics.RecordsTotal.WithLabelValues("batch", "accepted").Add(float64(result.Accepted()))
	metrics.RecordsTotal.WithLabelValues("batch", "rejected").Add(float64(result.Rejected()))

	return &BatchResponse{
		Accepted: result.Accepted(),
		Rejected: result.Rejected(),
		Errors:   result.Errors,
	}, nil
}

// IngestStrict parses a single record with fail-fast validation and stores it.
func (s *Service) IngestStrict(ctx context.Context, projectID string, body []byte) (*models.LogRecord, error) {
	record, err := normalizer.ParseStrict(body)
	if err != nil {
		metrics.RecordsTotal.WithLabelValues("strict", "rejected").Inc()
		return nil, err
	}

	if err := s.store(ctx, projectID, "strict", []*models.LogRecord{record}); err != nil {
		return nil, err
	}

	metrics.RecordsTotal.WithLabelValues("strict", "accepted").Inc()
	return record, nil
}

// IngestOTLP decodes an OTLP/JSON logs payload and stores what survives.
// A malformed top-level document is an error; malformed records inside a
// well-formed document are counted and dropped.
func (s *Service) IngestOTLP(ctx context.Context, projectID string, body []byte) (*OTLPResponse, error) {
	result, err := otlp.Decode(body)
	if err != nil {
		metrics.RecordsTotal.WithLabelValues("otlp", "invalid").Inc()
		return nil, err
	}

	if err := s.store(ctx, projectID, "otlp", result.Records); err != nil {
		return nil, err
	}

	metrics.RecordsTotal.WithLabelValues("otlp", "accepted").Add(float64(len(result.Records)))
	metrics.RecordsTotal.WithLabelValues("otlp", "rejected").Add(float64(result.Rejected))

	return &OTLPResponse{Rejected: result.Rejected}, nil
}

// store runs the shared tail of every ingest path: assign identities,
// compute grouping, persist atomically, then fan out.
func (s *Service) store(ctx context.Context, projectID, endpoint string, records []*models.LogRecord) error {
	if len(records) == 0 {
		return nil
	}

	start := time.Now()
	for _, record := range records {
		record.ID = uuid.New().String()
		record.ProjectID = projectID
	}

	aggregator.Enrich(records)
	aggregates := aggregator.Group(records)

	upserts, err := s.repo.SaveBatch(ctx, projectID, records, aggregates)
	if err != nil {
		metrics.StorageErrors.Inc()
		return fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	metrics.StorageDuration.Observe(time.Since(start).Seconds())
	metrics.IngestDuration.Observe(time.Since(start).Seconds())

	s.fanOut(ctx, projectID, endpoint, records, upserts)
	return nil
}

// fanOut publishes events and mirrors records into the search index.
// Failures are logged, never surfaced: the batch is already durable.
func (s *Service) fanOut(ctx context.Context, projectID, endpoint string, records []*models.LogRecord, upserts []*models.IncidentUpsert) {
	now := time.Now().UTC()

	if err := s.publisher.PublishLogsIngested(ctx, &events.LogsIngestedEvent{
		ProjectID: projectID,
		Accepted:  len(records),
		Timestamp: now,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to publish logs event",
			"project_id", projectID, "endpoint", endpoint, "error", err)
	}

	for _, upsert := range upserts {
		event := &events.IncidentEvent{
			ProjectID:   projectID,
			IncidentID:  upsert.IncidentID,
			Fingerprint: upsert.Fingerprint,
			ReopenCount: upsert.ReopenCount,
			Timestamp:   now,
		}
		switch {
		case upsert.Created:
			metrics.IncidentsCreated.Inc()
			if err := s.publisher.PublishIncidentCreated(ctx, event); err != nil {
				s.logger.WarnContext(ctx, "failed to publish incident created",
					"incident_id", upsert.IncidentID, "error", err)
			}
		case upsert.Reopened:
			metrics.IncidentsReopened.Inc()
			if err := s.publisher.PublishIncidentReopened(ctx, event); err != nil {
				s.logger.WarnContext(ctx, "failed to publish incident reopened",
					"incident_id", upsert.IncidentID, "error", err)
			}
		}
	}

	if err := s.indexer.IndexRecords(ctx, records); err != nil {
		metrics.SearchIndexErrors.Inc()
		s.logger.WarnContext(ctx, "failed to mirror records into search index",
			"project_id", projectID, "count", len(records), "error", err)
	}
}
