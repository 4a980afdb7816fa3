package models

import "time"

// LogRecord is the canonical form of one ingested event, produced by the
// protocol or simple normalizer. Records are immutable once persisted except
// for Fingerprint, IncidentID and ServiceName, which the backfill job may
// correct.
type LogRecord struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`

	SourceFile  *string `json:"source_file,omitempty"`
	LineNumber  *int    `json:"line_number,omitempty"`
	ServiceName *string `json:"service_name,omitempty"`

	RequestID  *string `json:"request_id,omitempty"`
	TraceID    *string `json:"trace_id,omitempty"`
	SpanID     *string `json:"span_id,omitempty"`
	UserID     *string `json:"user_id,omitempty"`
	ClientAddr *string `json:"client_address,omitempty"`

	Attributes map[string]any `json:"attributes,omitempty"`

	// Set by the incident aggregator for groupable levels only.
	Fingerprint       *string `json:"fingerprint,omitempty"`
	IncidentID        *string `json:"incident_id,omitempty"`
	NormalizedMessage string  `json:"-"`
}
