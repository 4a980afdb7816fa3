package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/logwell-systems/logwell/internal/auth"
	"github.com/logwell-systems/logwell/internal/handlers"
	"github.com/logwell-systems/logwell/internal/middleware"
)

// NewRouter wires the API routes with their middleware chains: lw_ API keys
// guard the write paths, JWTs guard the read paths.
func NewRouter(h *handlers.Handler, resolver *auth.KeyResolver, verifier *auth.Verifier) http.Handler {
	mux := http.NewServeMux()

	// Unauthenticated surface
	mux.HandleFunc("/healthz", h.HealthCheck)
	mux.Handle("/metrics", promhttp.Handler())

	// Write paths
	ingestAuth := auth.IngestAuth(resolver)
	mux.Handle("/v1/logs", ingestAuth(http.HandlerFunc(h.IngestOTLP)))
	mux.Handle("/v1/ingest", ingestAuth(http.HandlerFunc(h.IngestBatch)))
	mux.Handle("/v1/ingest/strict", ingestAuth(http.HandlerFunc(h.IngestStrict)))

	// Read paths
	readAuth := auth.ReadAuth(verifier)
	mux.Handle("/api/v1/incidents", readAuth(http.HandlerFunc(h.ListIncidents)))
	mux.Handle("/api/v1/incidents/", readAuth(http.HandlerFunc(h.IncidentSubroute)))
	mux.Handle("/api/v1/logs/search", readAuth(http.HandlerFunc(h.SearchLogs)))

	cors := middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: []string{"*.logwell.dev", "http://localhost:3000"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	})

	return middleware.RequestID(cors(mux))
}
