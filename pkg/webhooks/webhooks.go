package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pinkbeam/platform/pkg/async"
	"github.com/pinkbeam/platform/pkg/observability"
)

// EventType identifies a platform event that endpoints can subscribe to.
type EventType string

const (
	EventQuoteCreated        EventType = "quote.created"
	EventQuoteStatusChanged  EventType = "quote.status_changed"
	EventTicketCreated       EventType = "ticket.created"
	EventTicketStatusChanged EventType = "ticket.status_changed"
	EventTicketComment       EventType = "ticket.comment_added"
	EventNotificationCreated EventType = "notification.created"
)

// KnownEventTypes lists every event type the platform emits.
var KnownEventTypes = []EventType{
	EventQuoteCreated,
	EventQuoteStatusChanged,
	EventTicketCreated,
	EventTicketStatusChanged,
	EventTicketComment,
	EventNotificationCreated,
}

// Event is the payload delivered to subscribed endpoints.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Endpoint is a registered webhook destination.
type Endpoint struct {
	ID          string      `json:"id"`
	URL         string      `json:"url"`
	Events      []EventType `json:"events"`
	Secret      string      `json:"secret,omitempty"`
	Active      bool        `json:"active"`
	Description string      `json:"description,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	// fromConfig marks endpoints loaded from the YAML config file so a
	// reload can replace them without touching API-registered endpoints.
	fromConfig bool
}

// Manager fans platform events out to subscribed endpoints. Deliveries run
// on a bounded worker pool; failures are retried with exponential backoff
// by the retry worker.
type Manager struct {
	mu            sync.RWMutex
	endpoints     map[string]*Endpoint
	client        *http.Client
	deliveryStore *DeliveryLogStore
	retryWorker   *RetryWorker
	rateLimiter   *RateLimiter
	pool          *async.WorkerPool
	logger        *observability.Logger
	metrics       *observability.Metrics
	now           func() time.Time
}

// NewManager creates a webhook manager. The context bounds the delivery
// worker pool; cancel it on shutdown. metrics may be nil.
func NewManager(ctx context.Context, logger *observability.Logger, metrics *observability.Metrics) *Manager {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	deliveryStore := NewDeliveryLogStore(1000)
	manager := &Manager{
		endpoints:     make(map[string]*Endpoint),
		client:        &http.Client{Timeout: 10 * time.Second},
		deliveryStore: deliveryStore,
		rateLimiter:   NewRateLimiter(100, time.Minute),
		pool:          async.NewWorkerPool(ctx, 4, "webhook delivery", 15*time.Second),
		logger:        logger,
		metrics:       metrics,
		now:           time.Now,
	}
	manager.retryWorker = NewRetryWorker(manager, deliveryStore, NewRetryPolicy(DefaultRetryConfig()), logger, metrics)
	return manager
}

// StartRetryWorker starts background retry processing.
func (m *Manager) StartRetryWorker(ctx context.Context) {
	m.retryWorker.Start(ctx, 30*time.Second)
}

// StopRetryWorker stops background retry processing.
func (m *Manager) StopRetryWorker() {
	m.retryWorker.Stop()
}

// Shutdown drains the delivery pool, waiting at most until the context
// deadline for in-flight deliveries to finish.
func (m *Manager) Shutdown(ctx context.Context) error {
	timeout := 10 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	return m.pool.Shutdown(timeout)
}

// Register adds an endpoint. URL and at least one event are required.
func (m *Manager) Register(endpoint *Endpoint) error {
	if endpoint.URL == "" {
		return fmt.Errorf("webhook URL is required")
	}
	if len(endpoint.Events) == 0 {
		return fmt.Errorf("at least one event type is required")
	}

	endpoint.ID = uuid.New().String()
	endpoint.Active = true
	endpoint.CreatedAt = m.now()
	endpoint.UpdatedAt = endpoint.CreatedAt

	m.mu.Lock()
	m.endpoints[endpoint.ID] = endpoint
	m.mu.Unlock()

	m.logger.WithFields(map[string]interface{}{
		"webhook_id": endpoint.ID,
		"url":        endpoint.URL,
		"events":     len(endpoint.Events),
	}).Info("webhook endpoint registered")
	return nil
}

// Unregister removes an endpoint.
func (m *Manager) Unregister(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.endpoints[id]; !exists {
		return fmt.Errorf("webhook not found")
	}
	delete(m.endpoints, id)
	return nil
}

// Update applies non-empty fields from updates to an endpoint.
func (m *Manager) Update(id string, updates *Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	endpoint, exists := m.endpoints[id]
	if !exists {
		return fmt.Errorf("webhook not found")
	}
	if updates.URL != "" {
		endpoint.URL = updates.URL
	}
	if len(updates.Events) > 0 {
		endpoint.Events = updates.Events
	}
	if updates.Secret != "" {
		endpoint.Secret = updates.Secret
	}
	endpoint.UpdatedAt = m.now()
	return nil
}

// Get retrieves an endpoint by ID.
func (m *Manager) Get(id string) (*Endpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	endpoint, exists := m.endpoints[id]
	if !exists {
		return nil, fmt.Errorf("webhook not found")
	}
	return endpoint, nil
}

// List returns all registered endpoints.
func (m *Manager) List() []*Endpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	endpoints := make([]*Endpoint, 0, len(m.endpoints))
	for _, endpoint := range m.endpoints {
		endpoints = append(endpoints, endpoint)
	}
	return endpoints
}

// Activate re-enables deliveries to an endpoint.
func (m *Manager) Activate(id string) error {
	return m.setActive(id, true)
}

// Deactivate pauses deliveries to an endpoint without removing it.
func (m *Manager) Deactivate(id string) error {
	return m.setActive(id, false)
}

func (m *Manager) setActive(id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	endpoint, exists := m.endpoints[id]
	if !exists {
		return fmt.Errorf("webhook not found")
	}
	endpoint.Active = active
	endpoint.UpdatedAt = m.now()
	return nil
}

// Publish implements the event-publisher contract used across the
// platform: fire-and-forget with errors logged, never returned, so event
// fan-out can never fail the operation that produced the event.
func (m *Manager) Publish(ctx context.Context, event string, payload interface{}) {
	if err := m.Dispatch(ctx, &Event{Type: EventType(event), Data: payload}); err != nil {
		m.logger.WithError(err).WithFields(map[string]interface{}{
			"event": event,
		}).Error("webhook dispatch failed")
	}
}

// Dispatch queues delivery of an event to every active subscribed
// endpoint. Deliveries run on the worker pool; Dispatch returns once all
// are queued.
func (m *Manager) Dispatch(ctx context.Context, event *Event) error {
	event.ID = uuid.New().String()
	event.Timestamp = m.now()

	m.mu.RLock()
	var targets []*Endpoint
	for _, endpoint := range m.endpoints {
		if endpoint.Active && endpoint.subscribedTo(event.Type) {
			targets = append(targets, endpoint)
		}
	}
	m.mu.RUnlock()

	for _, endpoint := range targets {
		deliveryLog := &DeliveryLog{
			ID:        uuid.New().String(),
			WebhookID: endpoint.ID,
			EventID:   event.ID,
			EventType: event.Type,
			URL:       endpoint.URL,
			Status:    DeliveryStatusPending,
			CreatedAt: m.now(),
		}
		m.deliveryStore.Add(deliveryLog)

		endpoint, deliveryLog := endpoint, deliveryLog
		if err := m.pool.Submit(func(taskCtx context.Context) error {
			m.deliver(taskCtx, endpoint, event, deliveryLog)
			return nil
		}); err != nil {
			return fmt.Errorf("failed to queue webhook delivery: %w", err)
		}
	}
	return nil
}

func (e *Endpoint) subscribedTo(eventType EventType) bool {
	for _, t := range e.Events {
		if t == eventType {
			return true
		}
	}
	return false
}

// deliver performs one delivery attempt and updates the delivery log with
// the outcome, scheduling a retry when the policy allows one.
func (m *Manager) deliver(ctx context.Context, endpoint *Endpoint, event *Event, deliveryLog *DeliveryLog) {
	deliveryLog.Attempts++
	start := m.now()

	err := m.send(ctx, endpoint, event, deliveryLog)
	deliveryLog.Duration = m.now().Sub(start)

	if err != nil {
		policy := m.retryWorker.policy
		if policy.ShouldRetry(deliveryLog.Attempts, err) {
			deliveryLog.Status = DeliveryStatusRetrying
			nextRetry := policy.NextRetryTime(deliveryLog.Attempts)
			deliveryLog.NextRetryAt = &nextRetry
			deliveryLog.ErrorMessage = err.Error()
		} else {
			deliveryLog.Status = DeliveryStatusFailed
			deliveryLog.ErrorMessage = err.Error()
			now := m.now()
			deliveryLog.CompletedAt = &now
		}
		m.logger.WithError(err).WithFields(map[string]interface{}{
			"webhook_id": endpoint.ID,
			"event":      string(event.Type),
			"status":     string(deliveryLog.Status),
		}).Warn("webhook delivery attempt failed")
	} else {
		deliveryLog.Status = DeliveryStatusSuccess
		now := m.now()
		deliveryLog.CompletedAt = &now
	}

	if m.metrics != nil {
		m.metrics.WebhookDeliveriesTotal.WithLabelValues(string(deliveryLog.Status)).Inc()
	}
	m.deliveryStore.Update(deliveryLog)
}

// send performs the HTTP POST for one delivery attempt.
func (m *Manager) send(ctx context.Context, endpoint *Endpoint, event *Event, deliveryLog *DeliveryLog) error {
	if !m.rateLimiter.Allow(endpoint.ID) {
		return fmt.Errorf("rate limit exceeded for webhook %s", endpoint.ID)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Pinkbeam-Event", string(event.Type))
	req.Header.Set("X-Pinkbeam-Event-ID", event.ID)
	req.Header.Set("X-Pinkbeam-Delivery", m.now().Format(time.RFC3339))
	if endpoint.Secret != "" {
		req.Header.Set("X-Pinkbeam-Signature", generateSignature(payload, endpoint.Secret))
	}

	if deliveryLog != nil {
		deliveryLog.RequestHeaders = make(map[string]string)
		for key, values := range req.Header {
			if len(values) > 0 {
				deliveryLog.RequestHeaders[key] = values[0]
			}
		}
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if deliveryLog != nil {
		deliveryLog.StatusCode = resp.StatusCode
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-2xx status: %d", resp.StatusCode)
	}
	return nil
}

// DeliveryLogs retrieves recent delivery logs for an endpoint.
func (m *Manager) DeliveryLogs(webhookID string, limit int) []*DeliveryLog {
	return m.deliveryStore.GetByWebhook(webhookID, limit)
}

// DeliveryStats retrieves delivery statistics for an endpoint.
func (m *Manager) DeliveryStats(webhookID string) DeliveryStats {
	return m.deliveryStore.GetStats(webhookID)
}

// VerifySignature checks a received signature against the payload. Intended
// for webhook consumers; uses constant-time comparison.
func VerifySignature(payload []byte, signature, secret string) bool {
	expected := generateSignature(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func generateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
