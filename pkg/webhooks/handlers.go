package webhooks

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pinkbeam/platform/pkg/httputil"
)

// Handlers exposes webhook endpoint management over HTTP. These are admin
// routes; upstream middleware is responsible for access control.
type Handlers struct {
	manager *Manager
}

// NewHandlers creates webhook admin handlers.
func NewHandlers(manager *Manager) *Handlers {
	return &Handlers{manager: manager}
}

// RegisterRoutes registers webhook admin routes on the router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/webhooks", h.create).Methods("POST")
	router.HandleFunc("/api/v1/webhooks", h.list).Methods("GET")
	router.HandleFunc("/api/v1/webhooks/{id}", h.get).Methods("GET")
	router.HandleFunc("/api/v1/webhooks/{id}", h.update).Methods("PUT")
	router.HandleFunc("/api/v1/webhooks/{id}", h.delete).Methods("DELETE")
	router.HandleFunc("/api/v1/webhooks/{id}/activate", h.activate).Methods("POST")
	router.HandleFunc("/api/v1/webhooks/{id}/deactivate", h.deactivate).Methods("POST")
	router.HandleFunc("/api/v1/webhooks/{id}/deliveries", h.deliveries).Methods("GET")
	router.HandleFunc("/api/v1/webhooks/{id}/stats", h.stats).Methods("GET")
}

func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	var endpoint Endpoint
	if !httputil.ParseJSONOrError(w, r, &endpoint) {
		return
	}
	if err := h.manager.Register(&endpoint); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteCreated(w, endpoint)
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, h.manager.List())
}

func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	endpoint, err := h.manager.Get(id)
	if err != nil {
		httputil.WriteNotFoundError(w, err.Error())
		return
	}
	httputil.WriteSuccess(w, endpoint)
}

func (h *Handlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var updates Endpoint
	if !httputil.ParseJSONOrError(w, r, &updates) {
		return
	}
	if err := h.manager.Update(id, &updates); err != nil {
		httputil.WriteNotFoundError(w, err.Error())
		return
	}
	endpoint, _ := h.manager.Get(id)
	httputil.WriteSuccess(w, endpoint)
}

func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.manager.Unregister(id); err != nil {
		httputil.WriteNotFoundError(w, err.Error())
		return
	}
	httputil.WriteNoContent(w)
}

func (h *Handlers) activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handlers) deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handlers) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var err error
	if active {
		err = h.manager.Activate(id)
	} else {
		err = h.manager.Deactivate(id)
	}
	if err != nil {
		httputil.WriteNotFoundError(w, err.Error())
		return
	}
	endpoint, _ := h.manager.Get(id)
	httputil.WriteSuccess(w, endpoint)
}

func (h *Handlers) deliveries(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", 50)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if _, err := h.manager.Get(id); err != nil {
		httputil.WriteNotFoundError(w, err.Error())
		return
	}
	httputil.WriteSuccess(w, h.manager.DeliveryLogs(id, limit))
}

func (h *Handlers) stats(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.manager.Get(id); err != nil {
		httputil.WriteNotFoundError(w, err.Error())
		return
	}
	httputil.WriteSuccess(w, h.manager.DeliveryStats(id))
}
