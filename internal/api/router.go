package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/preventia/preventia-core/internal/analytics"
	"github.com/preventia/preventia-core/internal/compliance"
	"github.com/preventia/preventia-core/internal/logging"
	"github.com/preventia/preventia-core/internal/orchestrator"
	"github.com/preventia/preventia-core/internal/sources"
	"github.com/preventia/preventia-core/internal/storage/postgres"
)

// Server wires the Analytics Query Layer, Source Registry, Compliance
// Evaluator and Scraper Orchestrator behind the REST surface spec.md §6
// names.
type Server struct {
	analytics            *analytics.Service
	sources              *sources.Registry
	evaluator            *compliance.Evaluator
	orchestrator         *orchestrator.Orchestrator
	articles             *postgres.Database
	runs                 *runTracker
	log                  *logging.Logger
	router               *mux.Router
	defaultRetentionDays int
}

// NewServer builds the router. articles provides the single-article read
// path (`/articles/{id}`); every other read goes through analytics.
// defaultRetentionDays (retention.default_days) fills in data_retention_days
// on a create request that doesn't specify one.
func NewServer(
	analyticsSvc *analytics.Service,
	sourceRegistry *sources.Registry,
	evaluator *compliance.Evaluator,
	orch *orchestrator.Orchestrator,
	articles *postgres.Database,
	defaultRetentionDays int,
) *Server {
	s := &Server{
		analytics:            analyticsSvc,
		sources:              sourceRegistry,
		evaluator:             evaluator,
		orchestrator:         orch,
		articles:             articles,
		runs:                 newRunTracker(),
		log:                  logging.Default().WithComponent("api.server"),
		defaultRetentionDays: defaultRetentionDays,
	}
	s.router = s.buildRouter()
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) buildRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.devPermissionMiddleware)

	r.HandleFunc("/analytics/dashboard", requirePermissionMiddleware("analytics:read", s.handleDashboard)).Methods("GET")
	r.HandleFunc("/analytics/sentiment/timeline", requirePermissionMiddleware("analytics:read", s.handleSentimentTimeline)).Methods("GET")
	r.HandleFunc("/analytics/topics/distribution", requirePermissionMiddleware("analytics:read", s.handleTopicDistribution)).Methods("GET")
	r.HandleFunc("/analytics/geographic/distribution", requirePermissionMiddleware("analytics:read", s.handleGeographicDistribution)).Methods("GET")

	r.HandleFunc("/articles", requirePermissionMiddleware("articles:read", s.handleArticlesSearch)).Methods("GET")
	r.HandleFunc("/articles/{id}", requirePermissionMiddleware("articles:read", s.handleArticleDetail)).Methods("GET")

	r.HandleFunc("/sources", requirePermissionMiddleware("sources:read", s.handleListSources)).Methods("GET")
	r.HandleFunc("/sources", requirePermissionMiddleware("sources:write", s.handleCreateSource)).Methods("POST")
	r.HandleFunc("/sources/{id}", requirePermissionMiddleware("sources:write", s.handleUpdateSource)).Methods("PUT")
	r.HandleFunc("/sources/{id}", requirePermissionMiddleware("sources:write", s.handleDeleteSource)).Methods("DELETE")

	r.HandleFunc("/compliance/validate", requirePermissionMiddleware("compliance:write", s.handleComplianceValidate)).Methods("POST")
	r.HandleFunc("/scrapers/run/{source_id}", requirePermissionMiddleware("scrapers:write", s.handleRunScraper)).Methods("POST")
	r.HandleFunc("/scrapers/runs/ws", s.handleRunStream)

	return r
}

// devPermissionMiddleware populates the request's *User from a
// comma-separated X-Debug-Permissions header. Production deployments
// replace this entirely with the external JWT/RBAC wrapper spec.md §6
// describes; this stub only exists so the core is independently testable
// without that wrapper in front of it.
func (s *Server) devPermissionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		perms := map[string]bool{}
		for _, p := range strings.Split(r.Header.Get("X-Debug-Permissions"), ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				perms[p] = true
			}
		}
		user := &User{ID: r.Header.Get("X-Debug-User"), Permissions: perms}
		next.ServeHTTP(w, withUser(r, user))
	})
}
