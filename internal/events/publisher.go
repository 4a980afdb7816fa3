// Package events fans ingestion results out on NATS so downstream consumers
// (alert routers, dashboards) see new records and incident transitions as
// they happen. Publishing is best effort and never blocks ingestion.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects are per-project so consumers can subscribe with a wildcard or
// pin a single tenant.
const (
	subjectLogsIngested     = "logwell.logs.%s"
	subjectIncidentCreated  = "logwell.incidents.created.%s"
	subjectIncidentReopened = "logwell.incidents.reopened.%s"
)

// LogsIngestedEvent announces a stored ingestion batch.
type LogsIngestedEvent struct {
	ProjectID string    `json:"projectId"`
	Accepted  int       `json:"accepted"`
	Rejected  int       `json:"rejected"`
	Timestamp time.Time `json:"timestamp"`
}

// IncidentEvent announces an incident creation or reopen.
type IncidentEvent struct {
	ProjectID   string    `json:"projectId"`
	IncidentID  string    `json:"incidentId"`
	Fingerprint string    `json:"fingerprint"`
	ReopenCount int       `json:"reopenCount,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher fans out ingestion events.
type Publisher interface {
	PublishLogsIngested(ctx context.Context, event *LogsIngestedEvent) error
	PublishIncidentCreated(ctx context.Context, event *IncidentEvent) error
	PublishIncidentReopened(ctx context.Context, event *IncidentEvent) error
	Close() error
}

// NATSPublisher publishes events over a NATS connection.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the given NATS URL.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) PublishLogsIngested(ctx context.Context, event *LogsIngestedEvent) error {
	return p.publish(fmt.Sprintf(subjectLogsIngested, event.ProjectID), event)
}

func (p *NATSPublisher) PublishIncidentCreated(ctx context.Context, event *IncidentEvent) error {
	return p.publish(fmt.Sprintf(subjectIncidentCreated, event.ProjectID), event)
}

func (p *NATSPublisher) PublishIncidentReopened(ctx context.Context, event *IncidentEvent) error {
	return p.publish(fmt.Sprintf(subjectIncidentReopened, event.ProjectID), event)
}

// publish marshals the event to JSON and publishes it to the subject.
func (p *NATSPublisher) publish(subject string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Close drains the connection so queued messages flush before shutdown.
func (p *NATSPublisher) Close() error {
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Drain()
}

// NoOpPublisher drops all events (NATS disabled).
type NoOpPublisher struct{}

func (NoOpPublisher) PublishLogsIngested(ctx context.Context, event *LogsIngestedEvent) error {
	return nil
}

func (NoOpPublisher) PublishIncidentCreated(ctx context.Context, event *IncidentEvent) error {
	return nil
}

func (NoOpPublisher) PublishIncidentReopened(ctx context.Context, event *IncidentEvent) error {
	return nil
}

func (NoOpPublisher) Close() error { return nil }
