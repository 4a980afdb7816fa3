// Package service implements the ingestion pipeline and the incident read
// API on top of the repository. Handlers stay thin; everything with
// semantics lives here.
package service

import (
	"context"
	"time"

	"github.com/logwell-systems/logwell/internal/events"
	"github.com/logwell-systems/logwell/internal/logging"
	"github.com/logwell-systems/logwell/internal/repository"
	"github.com/logwell-systems/logwell/internal/search"
)

// Service wires the pipeline's collaborators together.
type Service struct {
	repo            repository.Repository
	publisher       events.Publisher
	indexer         search.Indexer
	logger          *logging.Logger
	reopenThreshold time.Duration
}

// SearchLogs runs a full-text query against the search mirror, always scoped
// to the caller's project.
func (s *Service) SearchLogs(ctx context.Context, projectID string, query search.Query) ([]search.Hit, error) {
	query.ProjectID = projectID
	return s.indexer.Search(ctx, query)
}

// New builds a Service. Publisher and indexer may be no-op implementations
// when NATS or OpenSearch are disabled.
func New(repo repository.Repository, publisher events.Publisher, indexer search.Indexer, logger *logging.Logger, reopenThreshold time.Duration) *Service {
	if reopenThreshold <= 0 {
		reopenThreshold = repository.DefaultReopenThreshold
	}
	return &Service{
		repo:            repo,
		publisher:       publisher,
		indexer:         indexer,
		logger:          logger,
		reopenThreshold: reopenThreshold,
	}
}
