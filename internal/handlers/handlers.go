// Package handlers exposes the ingestion and incident HTTP API. Handlers
// parse and validate the wire surface, then delegate to the service layer.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/logwell-systems/logwell/internal/auth"
	"github.com/logwell-systems/logwell/internal/httputil"
	"github.com/logwell-systems/logwell/internal/logging"
	"github.com/logwell-systems/logwell/internal/metrics"
	"github.com/logwell-systems/logwell/internal/normalizer"
	"github.com/logwell-systems/logwell/internal/otlp"
	"github.com/logwell-systems/logwell/internal/ratelimit"
	"github.com/logwell-systems/logwell/internal/repository"
	"github.com/logwell-systems/logwell/internal/search"
	"github.com/logwell-systems/logwell/internal/service"
)

const defaultTimelineWindow = time.Hour

type Handler struct {
	service      *service.Service
	limiter      ratelimit.RateLimiter
	logger       *logging.Logger
	maxBodyBytes int64
}

func NewHandler(svc *service.Service, limiter ratelimit.RateLimiter, logger *logging.Logger, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 5 * 1024 * 1024
	}
	return &Handler{
		service:      svc,
		limiter:      limiter,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// HealthCheck handles GET /healthz
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readBody reads the request body with the configured size cap and counts
// the bytes. The rate limit is checked first so over-limit callers cost
// nothing.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	projectID := auth.ProjectID(r.Context())

	allowed, err := h.limiter.Allow(r.Context(), projectID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "rate limiter failure", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if !allowed {
		h.logger.WarnContext(r.Context(), "rate limit exceeded",
			"project_id", projectID, "client_ip", httputil.GetClientIP(r))
		httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return nil, false
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return nil, false
		}
		httputil.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}

	metrics.IngestBytesTotal.Add(float64(len(body)))
	return body, true
}

// IngestOTLP handles POST /v1/logs
func (h *Handler) IngestOTLP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	projectID := auth.ProjectID(r.Context())
	resp, err := h.service.IngestOTLP(r.Context(), projectID, body)
	if err != nil {
		if errors.Is(err, otlp.ErrInvalidDocument) {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "otlp ingest failed", "project_id", projectID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to store logs")
		return
	}

	// The protocol reports rejected counts as decimal strings and an empty
	// object when everything was accepted.
	if resp.Rejected > 0 {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{
			"rejectedLogRecords": fmt.Sprintf("%d", resp.Rejected),
			"errorMessage":       fmt.Sprintf("%d log records were malformed and dropped", resp.Rejected),
		})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{})
}

// IngestBatch handles POST /v1/ingest
func (h *Handler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	projectID := auth.ProjectID(r.Context())
	resp, err := h.service.IngestBatch(r.Context(), projectID, body)
	if err != nil {
		if errors.Is(err, normalizer.ErrInvalidPayload) {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "batch ingest failed", "project_id", projectID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to store logs")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// IngestStrict handles POST /v1/ingest/strict
func (h *Handler) IngestStrict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	projectID := auth.ProjectID(r.Context())
	record, err := h.service.IngestStrict(r.Context(), projectID, body)
	if err != nil {
		if errors.Is(err, service.ErrStorageFailure) {
			h.logger.ErrorContext(r.Context(), "strict ingest failed", "project_id", projectID, "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to store log")
			return
		}
		// Everything else from the strict path is a validation failure.
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := map[string]interface{}{"id": record.ID}
	if record.IncidentID != nil {
		result["incidentId"] = *record.IncidentID
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

// ListIncidents handles GET /api/v1/incidents
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	projectID := auth.ProjectID(r.Context())
	cursor := r.URL.Query().Get("cursor")
	limit := httputil.ParseIntParam(r.URL.Query().Get("limit"), 0)

	list, err := h.service.ListIncidents(r.Context(), projectID, cursor, limit)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCursor) {
			httputil.WriteError(w, http.StatusBadRequest, "invalid cursor")
			return
		}
		h.logger.ErrorContext(r.Context(), "list incidents failed", "project_id", projectID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list incidents")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, list)
}

// IncidentSubroute dispatches GET /api/v1/incidents/{id} and
// GET /api/v1/incidents/{id}/timeline.
func (h *Handler) IncidentSubroute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/incidents/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		h.getIncident(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "timeline":
		h.getTimeline(w, r, parts[0])
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) getIncident(w http.ResponseWriter, r *http.Request, incidentID string) {
	projectID := auth.ProjectID(r.Context())

	detail, err := h.service.GetIncidentDetail(r.Context(), projectID, incidentID)
	if err != nil {
		if errors.Is(err, repository.ErrIncidentNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "incident not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get incident failed", "incident_id", incidentID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load incident")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, detail)
}

func (h *Handler) getTimeline(w http.ResponseWriter, r *http.Request, incidentID string) {
	projectID := auth.ProjectID(r.Context())

	now := time.Now().UTC()
	from, to := now.Add(-defaultTimelineWindow), now
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
		to = parsed
	}
	if !to.After(from) {
		httputil.WriteError(w, http.StatusBadRequest, "to must be after from")
		return
	}

	timeline, err := h.service.GetIncidentTimeline(r.Context(), projectID, incidentID, from, to)
	if err != nil {
		if errors.Is(err, repository.ErrIncidentNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "incident not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get timeline failed", "incident_id", incidentID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load timeline")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, timeline)
}

// SearchLogs handles GET /api/v1/logs/search
func (h *Handler) SearchLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	projectID := auth.ProjectID(r.Context())
	query := search.Query{
		Text:  r.URL.Query().Get("q"),
		Level: r.URL.Query().Get("level"),
		Limit: httputil.ParseIntParam(r.URL.Query().Get("limit"), 100),
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		query.From = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
		query.To = parsed
	}

	hits, err := h.service.SearchLogs(r.Context(), projectID, query)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "log search failed", "project_id", projectID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "search failed")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"hits": hits})
}
