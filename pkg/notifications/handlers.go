package notifications

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pinkbeam/platform/pkg/async"
	"github.com/pinkbeam/platform/pkg/httputil"
)

// EventPublisher pushes platform events to subscribed webhook endpoints.
// Implemented by the webhooks manager; nil disables event publishing.
type EventPublisher interface {
	Publish(ctx context.Context, event string, payload interface{})
}

// Handlers exposes the notification service over HTTP. The caller's identity
// comes from the X-User-ID header; upstream auth middleware is responsible
// for having verified it.
type Handlers struct {
	service   *Service
	publisher EventPublisher
}

// NewHandlers creates notification HTTP handlers. publisher may be nil.
func NewHandlers(service *Service, publisher EventPublisher) *Handlers {
	return &Handlers{service: service, publisher: publisher}
}

// RegisterRoutes registers notification routes on the router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/notifications", h.create).Methods("POST")
	router.HandleFunc("/api/v1/notifications", h.list).Methods("GET")
	router.HandleFunc("/api/v1/notifications/unread-count", h.unreadCount).Methods("GET")
	router.HandleFunc("/api/v1/notifications/read-all", h.markAllRead).Methods("POST")
	router.HandleFunc("/api/v1/notifications/{id}/read", h.markRead).Methods("PATCH")
	router.HandleFunc("/api/v1/notifications/{id}/unread", h.markUnread).Methods("PATCH")
	router.HandleFunc("/api/v1/notifications/{id}", h.delete).Methods("DELETE")
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		httputil.WriteUnauthorized(w, "missing user identity")
		return "", false
	}
	return userID, true
}

// CreateNotificationRequest is the POST body for notification creation.
// UserID defaults to the caller when omitted, which lets internal services
// notify arbitrary users while regular clients can only notify themselves.
type CreateNotificationRequest struct {
	UserID  string                 `json:"userId"`
	Type    string                 `json:"type"`
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateNotificationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID == "" {
		req.UserID = caller
	}

	result := h.service.Create(r.Context(), req.UserID, req.Type, req.Title, req.Message, req.Data)
	if !result.Success {
		writeResultError(w, result.Error)
		return
	}

	if h.publisher != nil {
		notification := *result.Notification
		async.SafeGo(context.Background(), 10*time.Second, "notification webhook publish", func(ctx context.Context) error {
			h.publisher.Publish(ctx, "notification.created", notification)
			return nil
		})
	}

	httputil.WriteCreated(w, result)
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit, err := httputil.ParseQueryInt(r, "limit", DefaultListLimit)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	unreadOnly, err := httputil.ParseQueryBool(r, "unread_only", false)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	result := h.service.List(r.Context(), userID, ListOptions{
		Limit:      limit,
		Offset:     offset,
		UnreadOnly: unreadOnly,
		Type:       httputil.ParseQueryString(r, "type", ""),
	})
	if !result.Success {
		writeResultError(w, result.Error)
		return
	}
	httputil.WriteSuccess(w, result)
}

func (h *Handlers) unreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	result := h.service.UnreadCount(r.Context(), userID)
	if !result.Success {
		writeResultError(w, result.Error)
		return
	}
	httputil.WriteSuccess(w, result)
}

func (h *Handlers) markRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	result := h.service.MarkAsRead(r.Context(), id, userID)
	if !result.Success {
		writeResultError(w, result.Error)
		return
	}
	httputil.WriteSuccess(w, result)
}

func (h *Handlers) markUnread(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	result := h.service.MarkAsUnread(r.Context(), id, userID)
	if !result.Success {
		writeResultError(w, result.Error)
		return
	}
	httputil.WriteSuccess(w, result)
}

func (h *Handlers) markAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	result := h.service.MarkAllAsRead(r.Context(), userID)
	if !result.Success {
		writeResultError(w, result.Error)
		return
	}
	httputil.WriteSuccess(w, result)
}

func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	result := h.service.Delete(r.Context(), id, userID)
	if !result.Success {
		writeResultError(w, result.Error)
		return
	}
	httputil.WriteSuccess(w, result)
}

// writeResultError maps service result errors onto HTTP statuses. Ownership
// misses are 404; validation problems are 400; everything else is a 500.
func writeResultError(w http.ResponseWriter, message string) {
	switch message {
	case ErrNotFoundOrDenied:
		httputil.WriteNotFoundError(w, message)
	case "User ID is required", "Notification type and title are required":
		httputil.WriteBadRequest(w, message)
	default:
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, message)
	}
}
