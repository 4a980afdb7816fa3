package service

import (
	"context"
	"time"

	"github.com/logwell-systems/logwell/internal/correlation"
	"github.com/logwell-systems/logwell/internal/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	// detailSampleSize caps how many member records feed the root-cause and
	// correlation analysis.
	detailSampleSize = 1000
)

// IncidentView is one incident as served by the read API, with the derived
// status attached.
type IncidentView struct {
	ID           string    `json:"id"`
	Fingerprint  string    `json:"fingerprint"`
	Title        string    `json:"title"`
	Status       string    `json:"status"`
	HighestLevel string    `json:"highestLevel"`
	ServiceName  string    `json:"serviceName"`
	SourceFile   string    `json:"sourceFile"`
	LineNumber   int       `json:"lineNumber"`
	FirstSeen    time.Time `json:"firstSeen"`
	LastSeen     time.Time `json:"lastSeen"`
	TotalEvents  int64     `json:"totalEvents"`
	ReopenCount  int       `json:"reopenCount"`
}

// IncidentList is one page of incidents plus the cursor for the next.
type IncidentList struct {
	Incidents  []IncidentView `json:"incidents"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

// IncidentDetail augments a single incident with its analysis.
type IncidentDetail struct {
	IncidentView
	NormalizedMessage string                           `json:"normalizedMessage"`
	RootCauses        []correlation.RootCauseCandidate `json:"rootCauseCandidates"`
	Correlations      correlation.CorrelationSet       `json:"correlations"`
}

func (s *Service) toView(incident *models.Incident, now time.Time) IncidentView {
	return IncidentView{
		ID:           incident.ID,
		Fingerprint:  incident.Fingerprint,
		Title:        incident.Title,
		Status:       incident.StatusOf(now, s.reopenThreshold),
		HighestLevel: string(incident.HighestLevel),
		ServiceName:  incident.ServiceName,
		SourceFile:   incident.SourceFile,
		LineNumber:   incident.LineNumber,
		FirstSeen:    incident.FirstSeen,
		LastSeen:     incident.LastSeen,
		TotalEvents:  incident.TotalEvents,
		ReopenCount:  incident.ReopenCount,
	}
}

// ListIncidents returns one page of a project's incidents, newest activity
// first, with statuses derived at call time.
func (s *Service) ListIncidents(ctx context.Context, projectID, cursor string, limit int) (*IncidentList, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	incidents, next, err := s.repo.ListIncidents(ctx, projectID, cursor, limit)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	views := make([]IncidentView, 0, len(incidents))
	for _, incident := range incidents {
		views = append(views, s.toView(incident, now))
	}
	return &IncidentList{Incidents: views, NextCursor: next}, nil
}

// GetIncidentDetail loads one incident and derives its root-cause candidates
// and correlation identifiers from a sample of member records.
func (s *Service) GetIncidentDetail(ctx context.Context, projectID, incidentID string) (*IncidentDetail, error) {
	incident, err := s.repo.GetIncident(ctx, projectID, incidentID)
	if err != nil {
		return nil, err
	}

	records, err := s.repo.ListIncidentRecords(ctx, projectID, incidentID, detailSampleSize)
	if err != nil {
		return nil, err
	}

	detail := &IncidentDetail{
		IncidentView:      s.toView(incident, time.Now().UTC()),
		NormalizedMessage: incident.NormalizedMessage,
		RootCauses:        correlation.RootCauseCandidates(records),
		Correlations:      correlation.Correlations(records),
	}
	if detail.RootCauses == nil {
		detail.RootCauses = []correlation.RootCauseCandidate{}
	}
	return detail, nil
}

// GetIncidentTimeline buckets the incident's events over [from, to).
func (s *Service) GetIncidentTimeline(ctx context.Context, projectID, incidentID string, from, to time.Time) (*correlation.Timeline, error) {
	if _, err := s.repo.GetIncident(ctx, projectID, incidentID); err != nil {
		return nil, err
	}

	records, err := s.repo.ListIncidentRecordsInRange(ctx, projectID, incidentID, from, to)
	if err != nil {
		return nil, err
	}
	return correlation.BuildTimeline(records, from, to), nil
}
