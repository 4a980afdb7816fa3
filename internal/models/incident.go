package models

import "time"

// Incident statuses. Status is never persisted: it is derived from lastSeen
// at read time, so an incident resolves purely by the passage of time.
const (
	StatusOpen     = "open"
	StatusResolved = "resolved"
)

// Incident is the persisted aggregate of all events sharing a fingerprint
// within a project. Uniqueness is enforced on (project_id, fingerprint).
// TotalEvents and ReopenCount only increase, FirstSeen is a running minimum,
// LastSeen a running maximum, and HighestLevel only moves toward greater
// severity.
type Incident struct {
	ID                string    `json:"id"`
	ProjectID         string    `json:"project_id"`
	Fingerprint       string    `json:"fingerprint"`
	Title             string    `json:"title"`
	NormalizedMessage string    `json:"normalized_message"`
	ServiceName       string    `json:"service_name"`
	SourceFile        string    `json:"source_file"`
	LineNumber        int       `json:"line_number"`
	HighestLevel      Level     `json:"highest_level"`
	FirstSeen         time.Time `json:"first_seen"`
	LastSeen          time.Time `json:"last_seen"`
	TotalEvents       int64     `json:"total_events"`
	ReopenCount       int       `json:"reopen_count"`
}

// Status derives the incident's open/resolved state from its last activity.
// It must stay a pure function of (lastSeen, now, threshold) and is
// recomputed on every read.
func Status(lastSeen, now time.Time, threshold time.Duration) string {
	if now.Sub(lastSeen) <= threshold {
		return StatusOpen
	}
	return StatusResolved
}

// StatusOf is a convenience wrapper over Status for a loaded incident.
func (i *Incident) StatusOf(now time.Time, threshold time.Duration) string {
	return Status(i.LastSeen, now, threshold)
}

// IncidentAggregate is the batch-scoped rollup of all groupable records
// sharing one fingerprint within a single ingestion batch. It is merged into
// the persisted incident by the upsert and then discarded.
type IncidentAggregate struct {
	Fingerprint       string
	Title             string
	NormalizedMessage string
	ServiceName       string
	SourceFile        string
	LineNumber        int
	HighestLevel      Level
	FirstSeen         time.Time
	LastSeen          time.Time
	TotalEvents       int64
}

// IncidentUpsert reports the outcome of merging one aggregate into the store.
// Reopened is true when this merge bumped the reopen counter.
type IncidentUpsert struct {
	IncidentID  string
	Fingerprint string
	Created     bool
	Reopened    bool
	ReopenCount int
}
