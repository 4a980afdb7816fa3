// Package seeder generates realistic log traffic and posts it to a running
// ingest endpoint. Useful for demos and for exercising the grouping pipeline
// under load.
package seeder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// Config controls a seeding run.
type Config struct {
	URL        string
	APIKey     string
	Count      int
	BatchSize  int
	ErrorRate  float64
	TimeSpread time.Duration
	Interval   time.Duration
}

// DefaultConfig returns sensible defaults for a local run.
func DefaultConfig() *Config {
	return &Config{
		URL:        "http://localhost:8080/v1/ingest",
		Count:      1000,
		BatchSize:  100,
		ErrorRate:  0.2,
		TimeSpread: 24 * time.Hour,
	}
}

// event mirrors the native batch record shape.
type event struct {
	Timestamp  string `json:"timestamp,omitempty"`
	Level      string `json:"level"`
	Message    string `json:"message"`
	Service    string `json:"service,omitempty"`
	SourceFile string `json:"source_file,omitempty"`
	LineNumber int    `json:"line_number,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	TraceID    string `json:"trace_id,omitempty"`
}

var services = []string{"checkout", "payments", "inventory", "auth", "shipping", "notifications"}

// errorSites are recurring failure locations so the seeded data produces a
// handful of incidents with many events each instead of thousands of
// singletons.
var errorSites = []struct {
	file     string
	line     int
	template string
}{
	{"db/pool.go", 112, "connection pool exhausted after %dms waiting for conn %s"},
	{"http/client.go", 87, "upstream request to %s timed out after %dms"},
	{"cache/redis.go", 41, "failed to refresh cache key %s: connection refused"},
	{"payments/charge.go", 203, "charge declined for order %s: insufficient funds"},
	{"queue/consumer.go", 66, "failed to ack message %s: broker unavailable"},
}

var infoMessages = []string{
	"request served in %dms",
	"user %s logged in",
	"cache warmed with %d entries",
	"processed order %s",
	"health probe ok",
}

// Generate produces a single record. Sequence position spreads timestamps
// evenly across the configured window with jitter.
func (c *Config) Generate(seq int) event {
	ts := time.Now().UTC()
	if c.TimeSpread > 0 && c.Count > 1 {
		offset := time.Duration(float64(c.TimeSpread) * float64(seq) / float64(c.Count))
		jitter := time.Duration(rand.Int63n(int64(time.Minute)))
		ts = ts.Add(-c.TimeSpread + offset + jitter)
	}

	e := event{
		Timestamp: ts.Format(time.RFC3339Nano),
		Service:   services[rand.Intn(len(services))],
		RequestID: fmt.Sprintf("req-%s", gofakeit.UUID()[:8]),
	}

	if rand.Float64() < c.ErrorRate {
		site := errorSites[rand.Intn(len(errorSites))]
		e.Level = "error"
		if rand.Intn(20) == 0 {
			e.Level = "fatal"
		}
		e.Message = fillTemplate(site.template)
		e.SourceFile = site.file
		e.LineNumber = site.line
		e.TraceID = strings.ReplaceAll(gofakeit.UUID(), "-", "")
	} else {
		e.Level = []string{"debug", "info", "info", "warn"}[rand.Intn(4)]
		e.Message = fillTemplate(infoMessages[rand.Intn(len(infoMessages))])
	}
	return e
}

func fillTemplate(tmpl string) string {
	args := make([]interface{}, 0, 2)
	for i := 0; i < len(tmpl)-1; i++ {
		if tmpl[i] != '%' {
			continue
		}
		switch tmpl[i+1] {
		case 'd':
			args = append(args, rand.Intn(5000))
		case 's':
			args = append(args, gofakeit.UUID()[:8])
		}
	}
	return fmt.Sprintf(tmpl, args...)
}

// Runner posts generated batches to the ingest endpoint.
type Runner struct {
	config *Config
	client *http.Client
}

func NewRunner(config *Config) *Runner {
	return &Runner{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Run generates Count events and sends them in batches. Failed batches are
// counted and reported, they do not abort the run.
func (r *Runner) Run() error {
	gofakeit.Seed(time.Now().UnixNano())

	log.Printf("Seeding %d events to %s (batch size %d, error rate %.0f%%)",
		r.config.Count, r.config.URL, r.config.BatchSize, r.config.ErrorRate*100)

	successCount := 0
	failCount := 0
	batch := make([]event, 0, r.config.BatchSize)

	for i := 0; i < r.config.Count; i++ {
		batch = append(batch, r.config.Generate(i))

		if len(batch) >= r.config.BatchSize || i == r.config.Count-1 {
			if err := r.sendBatch(batch); err != nil {
				log.Printf("Failed to send batch: %v", err)
				failCount += len(batch)
			} else {
				successCount += len(batch)
			}
			batch = batch[:0]
		}

		if r.config.Interval > 0 && i < r.config.Count-1 {
			time.Sleep(r.config.Interval)
		}
	}

	log.Printf("Seeding complete: %d sent, %d failed", successCount, failCount)
	if failCount > 0 {
		return fmt.Errorf("%d events failed to send", failCount)
	}
	return nil
}

func (r *Runner) sendBatch(batch []event) error {
	payload, err := json.Marshal(map[string]interface{}{"logs": batch})
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, r.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.config.APIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ingest returned %d: %s", resp.StatusCode, body)
	}
	return nil
}
