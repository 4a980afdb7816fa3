package repository

import (
	"context"
	"errors"
	"time"

	"github.com/logwell-systems/logwell/internal/models"
)

// ErrIncidentNotFound is returned when no incident matches the lookup.
var ErrIncidentNotFound = errors.New("incident not found")

// ErrInvalidCursor is returned when a pagination token cannot be decoded.
var ErrInvalidCursor = errors.New("invalid cursor")

// DefaultReopenThreshold is the auto-resolve gap: an incident receiving a new
// qualifying event more than this long after its last event reopens.
const DefaultReopenThreshold = 30 * time.Minute

// Repository defines persistence operations for log records and incidents.
// SaveBatch is the only write path used by live ingestion and must be atomic:
// either the whole batch's records and incident updates land, or none do.
type Repository interface {
	// SaveBatch upserts the batch aggregates, assigns the resulting
	// incident IDs to the matching records (including records that created
	// a brand-new incident in this batch), and inserts all records, in one
	// transaction.
	SaveBatch(ctx context.Context, projectID string, records []*models.LogRecord, aggregates []*models.IncidentAggregate) ([]*models.IncidentUpsert, error)

	GetIncident(ctx context.Context, projectID, incidentID string) (*models.Incident, error)
	GetIncidentByFingerprint(ctx context.Context, projectID, fp string) (*models.Incident, error)

	// ListIncidents pages by lastSeen descending using an opaque keyset
	// cursor; it returns the next cursor, empty when exhausted.
	ListIncidents(ctx context.Context, projectID, cursor string, limit int) ([]*models.Incident, string, error)

	ListIncidentRecords(ctx context.Context, projectID, incidentID string, limit int) ([]*models.LogRecord, error)
	ListIncidentRecordsInRange(ctx context.Context, projectID, incidentID string, from, to time.Time) ([]*models.LogRecord, error)

	// ListGroupableRecords returns error/fatal records in the window, for
	// the backfill job.
	ListGroupableRecords(ctx context.Context, projectID string, from, to time.Time) ([]*models.LogRecord, error)

	// InsertIncidentIfAbsent inserts the incident unless one already exists
	// for its (project, fingerprint) and returns the surviving incident's
	// ID. Used by the backfill, which must never inflate counters.
	InsertIncidentIfAbsent(ctx context.Context, incident *models.Incident) (string, error)

	// UpdateRecordGrouping corrects a record's fingerprint, incident ID and
	// service name; the backfill calls it only for records whose recomputed
	// grouping differs.
	UpdateRecordGrouping(ctx context.Context, recordID string, fp, incidentID, serviceName *string) error

	Close() error
}
