package repository

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/logwell-systems/logwell/internal/models"
)

// MemoryRepository is an in-memory Repository for tests and local
// development. It mirrors the Postgres merge semantics, including the
// single-increment reopen rule.
type MemoryRepository struct {
	mu              sync.RWMutex
	reopenThreshold time.Duration

	records   map[string]*models.LogRecord
	incidents map[string]*models.Incident // key: projectID + "/" + fingerprint
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository(reopenThreshold time.Duration) *MemoryRepository {
	if reopenThreshold <= 0 {
		reopenThreshold = DefaultReopenThreshold
	}
	return &MemoryRepository{
		reopenThreshold: reopenThreshold,
		records:         make(map[string]*models.LogRecord),
		incidents:       make(map[string]*models.Incident),
	}
}

func incidentKey(projectID, fp string) string {
	return projectID + "/" + fp
}

// SaveBatch applies the aggregate merges and stores all records atomically
// under one lock, matching the Postgres transaction semantics.
func (m *MemoryRepository) SaveBatch(ctx context.Context, projectID string, records []*models.LogRecord, aggregates []*models.IncidentAggregate) ([]*models.IncidentUpsert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	upserts := make([]*models.IncidentUpsert, 0, len(aggregates))
	idByFingerprint := make(map[string]string, len(aggregates))

	for _, agg := range aggregates {
		upsert := m.upsertLocked(projectID, agg)
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
		clone := *record
		m.records[record.ID] = &clone
	}

	return upserts, nil
}

func (m *MemoryRepository) upsertLocked(projectID string, agg *models.IncidentAggregate) *models.IncidentUpsert {
	key := incidentKey(projectID, agg.Fingerprint)

	existing, ok := m.incidents[key]
	if !ok {
		created := &models.Incident{
			ID:                uuid.New().String(),
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
		}
		m.incidents[key] = created
		return &models.IncidentUpsert{
			IncidentID:  created.ID,
			Fingerprint: agg.Fingerprint,
			Created:     true,
		}
	}

	// Reopen eligibility compares the batch aggregate's single firstSeen
	// against the stored lastSeen, so one batch increments at most once.
	reopened := agg.FirstSeen.Sub(existing.LastSeen) > m.reopenThreshold
	if reopened {
		existing.ReopenCount++
	}
	existing.HighestLevel = models.MaxLevel(existing.HighestLevel, agg.HighestLevel)
	if agg.FirstSeen.Before(existing.FirstSeen) {
		existing.FirstSeen = agg.FirstSeen
	}
	if agg.LastSeen.After(existing.LastSeen) {
		existing.LastSeen = agg.LastSeen
	}
	existing.TotalEvents += agg.TotalEvents

	return &models.IncidentUpsert{
		IncidentID:  existing.ID,
		Fingerprint: agg.Fingerprint,
		Reopened:    reopened,
		ReopenCount: existing.ReopenCount,
	}
}

func (m *MemoryRepository) GetIncident(ctx context.Context, projectID, incidentID string) (*models.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, incident := range m.incidents {
		if incident.ProjectID == projectID && incident.ID == incidentID {
			clone := *incident
			return &clone, nil
		}
	}
	return nil, ErrIncidentNotFound
}

func (m *MemoryRepository) GetIncidentByFingerprint(ctx context.Context, projectID, fp string) (*models.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if incident, ok := m.incidents[incidentKey(projectID, fp)]; ok {
		clone := *incident
		return &clone, nil
	}
	return nil, ErrIncidentNotFound
}

func (m *MemoryRepository) ListIncidents(ctx context.Context, projectID, cursor string, limit int) ([]*models.Incident, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []*models.Incident
	for _, incident := range m.incidents {
		if incident.ProjectID == projectID {
			clone := *incident
			all = append(all, &clone)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].LastSeen.Equal(all[j].LastSeen) {
			return all[i].LastSeen.After(all[j].LastSeen)
		}
		return all[i].ID > all[j].ID
	})

	start := 0
	if cursor != "" {
		afterSeen, afterID, err := DecodeCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		for i, incident := range all {
			if incident.LastSeen.Before(afterSeen) ||
				(incident.LastSeen.Equal(afterSeen) && incident.ID < afterID) {
				start = i
				break
			}
			start = len(all)
		}
	}

	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	page := all[start:end]

	next := ""
	if end < len(all) && len(page) > 0 {
		last := page[len(page)-1]
		next = EncodeCursor(last.LastSeen, last.ID)
	}
	return page, next, nil
}

func (m *MemoryRepository) ListIncidentRecords(ctx context.Context, projectID, incidentID string, limit int) ([]*models.LogRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.LogRecord
	for _, record := range m.records {
		if record.ProjectID == projectID && record.IncidentID != nil && *record.IncidentID == incidentID {
			clone := *record
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) ListIncidentRecordsInRange(ctx context.Context, projectID, incidentID string, from, to time.Time) ([]*models.LogRecord, error) {
	records, err := m.ListIncidentRecords(ctx, projectID, incidentID, 0)
	if err != nil {
		return nil, err
	}
	var out []*models.LogRecord
	for _, record := range records {
		if !record.Timestamp.Before(from) && record.Timestamp.Before(to) {
			out = append(out, record)
		}
	}
	return out, nil
}

func (m *MemoryRepository) ListGroupableRecords(ctx context.Context, projectID string, from, to time.Time) ([]*models.LogRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.LogRecord
	for _, record := range m.records {
		if record.ProjectID != projectID || !record.Level.Groupable() {
			continue
		}
		if record.Timestamp.Before(from) || !record.Timestamp.Before(to) {
			continue
		}
		clone := *record
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryRepository) InsertIncidentIfAbsent(ctx context.Context, incident *models.Incident) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := incidentKey(incident.ProjectID, incident.Fingerprint)
	if existing, ok := m.incidents[key]; ok {
		return existing.ID, nil
	}

	clone := *incident
	if clone.ID == "" {
		clone.ID = uuid.New().String()
	}
	m.incidents[key] = &clone
	return clone.ID, nil
}

func (m *MemoryRepository) UpdateRecordGrouping(ctx context.Context, recordID string, fp, incidentID, serviceName *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[recordID]
	if !ok {
		return fmt.Errorf("record %s not found", recordID)
	}
	record.Fingerprint = fp
	record.IncidentID = incidentID
	if serviceName != nil {
		record.ServiceName = serviceName
	}
	return nil
}

func (m *MemoryRepository) Close() error { return nil }

// EncodeCursor packs a keyset position into an opaque pagination token.
func EncodeCursor(lastSeen time.Time, id string) string {
	return base64.RawURLEncoding.EncodeToString(
		[]byte(strconv.FormatInt(lastSeen.UnixMilli(), 10) + "|" + id))
}

// DecodeCursor unpacks a pagination token produced by EncodeCursor. Any
// undecodable token reports ErrInvalidCursor.
func DecodeCursor(cursor string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", ErrInvalidCursor
	}
	millis, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return time.UnixMilli(millis).UTC(), parts[1], nil
}
