package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/logwell-systems/logwell/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool            *pgxpool.Pool
	reopenThreshold time.Duration
}

// NewPostgresRepository creates a pooled PostgreSQL repository.
func NewPostgresRepository(ctx context.Context, connString string, reopenThreshold time.Duration) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if reopenThreshold <= 0 {
		reopenThreshold = DefaultReopenThreshold
	}

	return &PostgresRepository{pool: pool, reopenThreshold: reopenThreshold}, nil
}

// upsertIncidentQuery is the atomic conditional upsert. The unique
// (project_id, fingerprint) constraint is the source of truth for existence:
// concurrent creators of the same fingerprint converge on the conflict
// branch instead of racing a prior read. The reopen CASE compares the batch
// aggregate's single first_seen against the stored last_seen, so a batch
// full of reopening events still increments reopen_count exactly once.
const upsertIncidentQuery = `
	WITH existing AS (
		SELECT reopen_count FROM incidents
		WHERE project_id = $2 AND fingerprint = $3
	)
	INSERT INTO incidents (
		id, project_id, fingerprint, title, normalized_message,
		service_name, source_file, line_number, highest_level,
		first_seen, last_seen, total_events, reopen_count
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 0)
	ON CONFLICT (project_id, fingerprint) DO UPDATE SET
		reopen_count  = incidents.reopen_count +
			CASE WHEN EXCLUDED.first_seen > incidents.last_seen + $13::interval THEN 1 ELSE 0 END,
		highest_level = GREATEST(incidents.highest_level, EXCLUDED.highest_level),
		first_seen    = LEAST(incidents.first_seen, EXCLUDED.first_seen),
		last_seen     = GREATEST(incidents.last_seen, EXCLUDED.last_seen),
		total_events  = incidents.total_events + EXCLUDED.total_events
	RETURNING id, (xmax = 0) AS created, reopen_count,
		reopen_count > COALESCE((SELECT reopen_count FROM existing), reopen_count) AS reopened
`

const insertRecordQuery = `
	INSERT INTO log_records (
		id, project_id, level, message, event_time,
		source_file, line_number, service_name,
		request_id, trace_id, span_id, user_id, client_address,
		attributes, fingerprint, incident_id
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
`

// SaveBatch persists one ingestion batch atomically: incident upserts first
// (yielding IDs for same-batch creations), then every record with its
// assigned incident.
func (r *PostgresRepository) SaveBatch(ctx context.Context, projectID string, records []*models.LogRecord, aggregates []*models.IncidentAggregate) ([]*models.IncidentUpsert, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	upserts := make([]*models.IncidentUpsert, 0, len(aggregates))
	idByFingerprint := make(map[string]string, len(aggregates))

	for _, agg := range aggregates {
		upsert := &models.IncidentUpsert{Fingerprint: agg.Fingerprint}
		err := tx.QueryRow(ctx, upsertIncidentQuery,
			uuid.New().String(), projectID, agg.Fingerprint,
			agg.Title, agg.NormalizedMessage,
			agg.ServiceName, agg.SourceFile, agg.LineNumber,
			agg.HighestLevel.Rank(), agg.FirstSeen, agg.LastSeen,
			agg.TotalEvents, r.reopenThreshold,
		).Scan(&upsert.IncidentID, &upsert.Created, &upsert.ReopenCount, &upsert.Reopened)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert incident: %w", err)
		}
		idByFingerprint[agg.Fingerprint] = upsert.IncidentID
		upserts = append(upserts, upsert)
	}

	for _, record := range records {
		if record.Fingerprint != nil {
			if id, ok := idByFingerprint[*record.Fingerprint]; ok {
				incidentID := id
				record.IncidentID = &incidentID
			}
		}

		var attrs []byte
		if len(record.Attributes) > 0 {
			attrs, err = json.Marshal(record.Attributes)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal attributes: %w", err)
			}
		}

		_, err = tx.Exec(ctx, insertRecordQuery,
			record.ID, projectID, string(record.Level), record.Message, record.Timestamp,
			record.SourceFile, record.LineNumber, record.ServiceName,
			record.RequestID, record.TraceID, record.SpanID, record.UserID, record.ClientAddr,
			attrs, record.Fingerprint, record.IncidentID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert log record: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}
	return upserts, nil
}

const incidentColumns = `
	id, project_id, fingerprint, title, normalized_message,
	service_name, source_file, line_number, highest_level,
	first_seen, last_seen, total_events, reopen_count
`

func scanIncident(row pgx.Row) (*models.Incident, error) {
	incident := &models.Incident{}
	var rank int
	err := row.Scan(
		&incident.ID, &incident.ProjectID, &incident.Fingerprint,
		&incident.Title, &incident.NormalizedMessage,
		&incident.ServiceName, &incident.SourceFile, &incident.LineNumber,
		&rank, &incident.FirstSeen, &incident.LastSeen,
		&incident.TotalEvents, &incident.ReopenCount,
	)
	if err != nil {
		return nil, err
	}
	incident.HighestLevel = models.LevelFromRank(rank)
	return incident, nil
}

func (r *PostgresRepository) GetIncident(ctx context.Context, projectID, incidentID string) (*models.Incident, error) {
	query := fmt.Sprintf(`SELECT %s FROM incidents WHERE project_id = $1 AND id = $2`, incidentColumns)

	incident, err := scanIncident(r.pool.QueryRow(ctx, query, projectID, incidentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIncidentNotFound
		}
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}
	return incident, nil
}

func (r *PostgresRepository) GetIncidentByFingerprint(ctx context.Context, projectID, fp string) (*models.Incident, error) {
	query := fmt.Sprintf(`SELECT %s FROM incidents WHERE project_id = $1 AND fingerprint = $2`, incidentColumns)

	incident, err := scanIncident(r.pool.QueryRow(ctx, query, projectID, fp))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIncidentNotFound
		}
		return nil, fmt.Errorf("failed to get incident by fingerprint: %w", err)
	}
	return incident, nil
}

func (r *PostgresRepository) ListIncidents(ctx context.Context, projectID, cursor string, limit int) ([]*models.Incident, string, error) {
	args := []interface{}{projectID}
	where := "WHERE project_id = $1"

	if cursor != "" {
		afterSeen, afterID, err := DecodeCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		where += " AND (last_seen, id) < ($2, $3)"
		args = append(args, afterSeen, afterID)
	}
	args = append(args, limit+1)

	query := fmt.Sprintf(`
		SELECT %s FROM incidents
		%s
		ORDER BY last_seen DESC, id DESC
		LIMIT $%d
	`, incidentColumns, where, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	incidents := []*models.Incident{}
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan incident: %w", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("row iteration error: %w", err)
	}

	next := ""
	if len(incidents) > limit {
		incidents = incidents[:limit]
		last := incidents[len(incidents)-1]
		next = EncodeCursor(last.LastSeen, last.ID)
	}
	return incidents, next, nil
}

const recordColumns = `
	id, project_id, level, message, event_time,
	source_file, line_number, service_name,
	request_id, trace_id, span_id, user_id, client_address,
	attributes, fingerprint, incident_id
`

func scanRecord(row pgx.Row) (*models.LogRecord, error) {
	record := &models.LogRecord{}
	var level string
	var attrs []byte
	err := row.Scan(
		&record.ID, &record.ProjectID, &level, &record.Message, &record.Timestamp,
		&record.SourceFile, &record.LineNumber, &record.ServiceName,
		&record.RequestID, &record.TraceID, &record.SpanID, &record.UserID, &record.ClientAddr,
		&attrs, &record.Fingerprint, &record.IncidentID,
	)
	if err != nil {
		return nil, err
	}
	record.Level = models.Level(level)
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &record.Attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
		}
	}
	return record, nil
}

func (r *PostgresRepository) queryRecords(ctx context.Context, query string, args ...interface{}) ([]*models.LogRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query log records: %w", err)
	}
	defer rows.Close()

	records := []*models.LogRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

func (r *PostgresRepository) ListIncidentRecords(ctx context.Context, projectID, incidentID string, limit int) ([]*models.LogRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM log_records
		WHERE project_id = $1 AND incident_id = $2
		ORDER BY event_time ASC
		LIMIT $3
	`, recordColumns)
	return r.queryRecords(ctx, query, projectID, incidentID, limit)
}

func (r *PostgresRepository) ListIncidentRecordsInRange(ctx context.Context, projectID, incidentID string, from, to time.Time) ([]*models.LogRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM log_records
		WHERE project_id = $1 AND incident_id = $2
		  AND event_time >= $3 AND event_time < $4
		ORDER BY event_time ASC
	`, recordColumns)
	return r.queryRecords(ctx, query, projectID, incidentID, from, to)
}

func (r *PostgresRepository) ListGroupableRecords(ctx context.Context, projectID string, from, to time.Time) ([]*models.LogRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM log_records
		WHERE project_id = $1 AND level IN ('error', 'fatal')
		  AND event_time >= $2 AND event_time < $3
		ORDER BY event_time ASC
	`, recordColumns)
	return r.queryRecords(ctx, query, projectID, from, to)
}

func (r *PostgresRepository) InsertIncidentIfAbsent(ctx context.Context, incident *models.Incident) (string, error) {
	id := incident.ID
	if id == "" {
		id = uuid.New().String()
	}

	// DO NOTHING + fallback select keeps the backfill from ever touching
	// counters on an existing incident.
	query := `
		INSERT INTO incidents (
			id, project_id, fingerprint, title, normalized_message,
			service_name, source_file, line_number, highest_level,
			first_seen, last_seen, total_events, reopen_count
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 0)
		ON CONFLICT (project_id, fingerprint) DO NOTHING
		RETURNING id
	`
	var insertedID string
	err := r.pool.QueryRow(ctx, query,
		id, incident.ProjectID, incident.Fingerprint,
		incident.Title, incident.NormalizedMessage,
		incident.ServiceName, incident.SourceFile, incident.LineNumber,
		incident.HighestLevel.Rank(), incident.FirstSeen, incident.LastSeen,
		incident.TotalEvents,
	).Scan(&insertedID)
	if err == nil {
		return insertedID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("failed to insert incident: %w", err)
	}

	existing, err := r.GetIncidentByFingerprint(ctx, incident.ProjectID, incident.Fingerprint)
	if err != nil {
		return "", err
	}
	return existing.ID, nil
}

func (r *PostgresRepository) UpdateRecordGrouping(ctx context.Context, recordID string, fp, incidentID, serviceName *string) error {
	query := `
		UPDATE log_records
		SET fingerprint = $2, incident_id = $3,
		    service_name = COALESCE($4, service_name)
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, recordID, fp, incidentID, serviceName)
	if err != nil {
		return fmt.Errorf("failed to update record grouping: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("record %s not found", recordID)
	}
	return nil
}

// Close closes the connection pool.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
