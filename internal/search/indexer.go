// Package search mirrors stored log records into OpenSearch for full-text
// queries. The mirror is best effort: Postgres remains the system of record
// and indexing failures never fail ingestion.
package search

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/opensearch-project/opensearch-go/v2/opensearchutil"

	"github.com/logwell-systems/logwell/internal/models"
)

// Config holds OpenSearch connection settings.
type Config struct {
	URL           string
	Username      string
	Password      string
	TLSSkipVerify bool
	Index         string
}

// Hit is one search result.
type Hit struct {
	ID          string    `json:"id"`
	Level       string    `json:"level"`
	Message     string    `json:"message"`
	ServiceName string    `json:"serviceName,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	IncidentID  string    `json:"incidentId,omitempty"`
}

// Query is a full-text search over a project's records.
type Query struct {
	ProjectID string
	Text      string
	Level     string
	From      time.Time
	To        time.Time
	Limit     int
}

// Indexer mirrors records into the search index and serves queries.
type Indexer interface {
	IndexRecords(ctx context.Context, records []*models.LogRecord) error
	Search(ctx context.Context, query Query) ([]Hit, error)
	Close() error
}

// OpenSearchIndexer backs Indexer with an OpenSearch cluster.
type OpenSearchIndexer struct {
	client *opensearch.Client
	index  string
}

// NewOpenSearchIndexer connects to the cluster and ensures the index
// template exists.
func NewOpenSearchIndexer(cfg Config) (*OpenSearchIndexer, error) {
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	indexer := &OpenSearchIndexer{client: client, index: cfg.Index}
	if err := indexer.ensureTemplate(); err != nil {
		return nil, err
	}
	return indexer, nil
}

func (i *OpenSearchIndexer) ensureTemplate() error {
	template := map[string]interface{}{
		"index_patterns": []string{i.index + "*"},
		"template": map[string]interface{}{
			"settings": map[string]interface{}{
				"number_of_shards":   1,
				"number_of_replicas": 0,
				"codec":              "best_compression",
			},
			"mappings": map[string]interface{}{
				"properties": map[string]interface{}{
					"projectId":   map[string]interface{}{"type": "keyword"},
					"level":       map[string]interface{}{"type": "keyword"},
					"message":     map[string]interface{}{"type": "text"},
					"serviceName": map[string]interface{}{"type": "keyword"},
					"sourceFile":  map[string]interface{}{"type": "keyword"},
					"requestId":   map[string]interface{}{"type": "keyword"},
					"traceId":     map[string]interface{}{"type": "keyword"},
					"fingerprint": map[string]interface{}{"type": "keyword"},
					"incidentId":  map[string]interface{}{"type": "keyword"},
					"timestamp":   map[string]interface{}{"type": "date"},
				},
			},
		},
		"priority": 100,
	}

	body, err := json.Marshal(template)
	if err != nil {
		return err
	}

	res, err := i.client.Indices.PutIndexTemplate(i.index+"-template", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create index template: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return fmt.Errorf("failed to create index template: %s - %s", res.Status(), string(bodyBytes))
	}
	return nil
}

type indexDoc struct {
	ProjectID   string         `json:"projectId"`
	Level       string         `json:"level"`
	Message     string         `json:"message"`
	ServiceName *string        `json:"serviceName,omitempty"`
	SourceFile  *string        `json:"sourceFile,omitempty"`
	RequestID   *string        `json:"requestId,omitempty"`
	TraceID     *string        `json:"traceId,omitempty"`
	Fingerprint *string        `json:"fingerprint,omitempty"`
	IncidentID  *string        `json:"incidentId,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// IndexRecords bulk-indexes the records, keyed by record ID so replays
// overwrite instead of duplicating.
func (i *OpenSearchIndexer) IndexRecords(ctx context.Context, records []*models.LogRecord) error {
	if len(records) == 0 {
		return nil
	}

	bi, err := opensearchutil.NewBulkIndexer(opensearchutil.BulkIndexerConfig{
		Client: i.client,
		Index:  i.index,
	})
	if err != nil {
		return fmt.Errorf("failed to create bulk indexer: %w", err)
	}

	var failures []string
	for _, record := range records {
		data, err := json.Marshal(indexDoc{
			ProjectID:   record.ProjectID,
			Level:       string(record.Level),
			Message:     record.Message,
			ServiceName: record.ServiceName,
			SourceFile:  record.SourceFile,
			RequestID:   record.RequestID,
			TraceID:     record.TraceID,
			Fingerprint: record.Fingerprint,
			IncidentID:  record.IncidentID,
			Timestamp:   record.Timestamp,
			Attributes:  record.Attributes,
		})
		if err != nil {
			failures = append(failures, fmt.Sprintf("marshal %s: %v", record.ID, err))
			continue
		}

		err = bi.Add(ctx, opensearchutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: record.ID,
			Body:       bytes.NewReader(data),
			OnFailure: func(ctx context.Context, item opensearchutil.BulkIndexerItem, res opensearchutil.BulkIndexerResponseItem, err error) {
				if err != nil {
					failures = append(failures, err.Error())
				} else {
					failures = append(failures, fmt.Sprintf("%s: %s", res.Error.Type, res.Error.Reason))
				}
			},
		})
		if err != nil {
			failures = append(failures, fmt.Sprintf("add %s: %v", record.ID, err))
		}
	}

	if err := bi.Close(ctx); err != nil {
		return fmt.Errorf("bulk indexer close: %w", err)
	}
	if len(failures) > 0 {
		return fmt.Errorf("indexing failed for %d records: %s", len(failures), strings.Join(failures, "; "))
	}
	return nil
}

// Search runs a full-text query scoped to one project.
func (i *OpenSearchIndexer) Search(ctx context.Context, query Query) ([]Hit, error) {
	filters := []map[string]interface{}{
		{"term": map[string]interface{}{"projectId": query.ProjectID}},
	}
	if query.Level != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"level": query.Level},
		})
	}
	if !query.From.IsZero() || !query.To.IsZero() {
		rangeQuery := map[string]interface{}{}
		if !query.From.IsZero() {
			rangeQuery["gte"] = query.From.Format(time.RFC3339Nano)
		}
		if !query.To.IsZero() {
			rangeQuery["lt"] = query.To.Format(time.RFC3339Nano)
		}
		filters = append(filters, map[string]interface{}{
			"range": map[string]interface{}{"timestamp": rangeQuery},
		})
	}

	boolQuery := map[string]interface{}{"filter": filters}
	if query.Text != "" {
		boolQuery["must"] = []map[string]interface{}{
			{"match": map[string]interface{}{"message": query.Text}},
		}
	}

	limit := query.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	body, err := json.Marshal(map[string]interface{}{
		"size":  limit,
		"query": map[string]interface{}{"bool": boolQuery},
		"sort":  []map[string]interface{}{{"timestamp": map[string]interface{}{"order": "desc"}}},
	})
	if err != nil {
		return nil, err
	}

	req := opensearchapi.SearchRequest{
		Index: []string{i.index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search failed: %s - %s", res.Status(), string(bodyBytes))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string   `json:"_id"`
				Source indexDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	hits := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hit := Hit{
			ID:        h.ID,
			Level:     h.Source.Level,
			Message:   h.Source.Message,
			Timestamp: h.Source.Timestamp,
		}
		if h.Source.ServiceName != nil {
			hit.ServiceName = *h.Source.ServiceName
		}
		if h.Source.IncidentID != nil {
			hit.IncidentID = *h.Source.IncidentID
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (i *OpenSearchIndexer) Close() error { return nil }

// NoOpIndexer drops all writes and serves no results (search disabled).
type NoOpIndexer struct{}

func (NoOpIndexer) IndexRecords(ctx context.Context, records []*models.LogRecord) error {
	return nil
}

func (NoOpIndexer) Search(ctx context.Context, query Query) ([]Hit, error) {
	return []Hit{}, nil
}

func (NoOpIndexer) Close() error { return nil }
