package search

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pinkbeam/platform/pkg/httputil"
	"github.com/pinkbeam/platform/pkg/observability"
)

// Handlers exposes the search service over HTTP.
type Handlers struct {
	service *Service
	metrics *observability.Metrics
}

// NewHandlers creates search HTTP handlers.
func NewHandlers(service *Service, metrics *observability.Metrics) *Handlers {
	return &Handlers{service: service, metrics: metrics}
}

// RegisterRoutes registers search routes on the router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/search", h.search).Methods("GET")
}

// search handles GET /api/v1/search
// Query parameters:
//   - q: free-text query (required; empty yields empty result groups)
//   - type: project|client|ticket|blog (optional; omitted searches all)
//   - limit: max results per entity type (default: 5)
func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	query := httputil.ParseQueryString(r, "q", "")
	entityType := httputil.ParseQueryString(r, "type", "")

	limit, err := httputil.ParseQueryInt(r, "limit", DefaultLimit)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	ctx := r.Context()

	switch entityType {
	case "":
		results, err := h.service.GlobalSearch(ctx, query, limit)
		if err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		h.record("global", time.Since(start))
		httputil.WriteSuccess(w, map[string]interface{}{
			"query":   query,
			"results": results,
			"total":   results.Total(),
		})
	case TypeProject, TypeClient, TypeTicket, TypeBlog:
		var results []Result
		switch entityType {
		case TypeProject:
			results, err = h.service.SearchProjects(ctx, query, limit)
		case TypeClient:
			results, err = h.service.SearchClients(ctx, query, limit)
		case TypeTicket:
			results, err = h.service.SearchTickets(ctx, query, limit)
		case TypeBlog:
			results, err = h.service.SearchBlogPosts(ctx, query, limit)
		}
		if err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		h.record(entityType, time.Since(start))
		httputil.WriteSuccess(w, map[string]interface{}{
			"query":   query,
			"results": results,
			"total":   len(results),
		})
	default:
		httputil.WriteBadRequest(w, "invalid type: must be one of project, client, ticket, blog")
	}
}

func (h *Handlers) record(entityType string, elapsed time.Duration) {
	if h.metrics == nil {
		return
	}
	h.metrics.SearchesTotal.WithLabelValues(entityType).Inc()
	h.metrics.SearchDuration.WithLabelValues(entityType).Observe(elapsed.Seconds())
}
