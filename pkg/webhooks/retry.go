package webhooks

import (
	"context"
	"math"
	"time"

	"github.com/pinkbeam/platform/pkg/observability"
)

// RetryConfig configures delivery retry behavior.
type RetryConfig struct {
	MaxAttempts       int           `json:"max_attempts"`
	InitialDelay      time.Duration `json:"initial_delay"`
	MaxDelay          time.Duration `json:"max_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       5,
		InitialDelay:      1 * time.Second,
		MaxDelay:          5 * time.Minute,
		BackoffMultiplier: 2.0,
	}
}

// RetryPolicy implements exponential backoff.
type RetryPolicy struct {
	config RetryConfig
}

// NewRetryPolicy creates a retry policy, clamping invalid config values to
// the defaults.
func NewRetryPolicy(config RetryConfig) *RetryPolicy {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 1 * time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 5 * time.Minute
	}
	if config.BackoffMultiplier <= 1.0 {
		config.BackoffMultiplier = 2.0
	}
	return &RetryPolicy{config: config}
}

// ShouldRetry reports whether a failed delivery gets another attempt.
func (p *RetryPolicy) ShouldRetry(attempts int, err error) bool {
	if err == nil {
		return false
	}
	return attempts < p.config.MaxAttempts
}

// NextRetryDelay computes the backoff delay after the given attempt count.
func (p *RetryPolicy) NextRetryDelay(attempts int) time.Duration {
	if attempts <= 0 {
		return p.config.InitialDelay
	}
	delay := float64(p.config.InitialDelay) * math.Pow(p.config.BackoffMultiplier, float64(attempts-1))
	if delay > float64(p.config.MaxDelay) {
		return p.config.MaxDelay
	}
	return time.Duration(delay)
}

// NextRetryTime computes the wall-clock time of the next attempt.
func (p *RetryPolicy) NextRetryTime(attempts int) time.Time {
	return time.Now().Add(p.NextRetryDelay(attempts))
}

// RetryWorker periodically re-attempts deliveries that previously failed
// with retries remaining.
type RetryWorker struct {
	manager *Manager
	store   *DeliveryLogStore
	policy  *RetryPolicy
	logger  *observability.Logger
	metrics *observability.Metrics
	stopCh  chan struct{}
	ticker  *time.Ticker
}

// NewRetryWorker creates a retry worker. metrics may be nil.
func NewRetryWorker(manager *Manager, store *DeliveryLogStore, policy *RetryPolicy, logger *observability.Logger, metrics *observability.Metrics) *RetryWorker {
	return &RetryWorker{
		manager: manager,
		store:   store,
		policy:  policy,
		logger:  logger,
		metrics: metrics,
		stopCh:  make(chan struct{}),
	}
}

// Start begins background retry processing on the given interval.
func (w *RetryWorker) Start(ctx context.Context, checkInterval time.Duration) {
	w.ticker = time.NewTicker(checkInterval)

	go func() {
		defer observability.RecoverPanic(w.logger, "webhook retry worker")
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-w.ticker.C:
				w.processRetries(ctx)
			}
		}
	}()
}

// Stop halts background processing.
func (w *RetryWorker) Stop() {
	if w.ticker != nil {
		w.ticker.Stop()
	}
	close(w.stopCh)
}

func (w *RetryWorker) processRetries(ctx context.Context) {
	for _, log := range w.store.GetPendingRetries() {
		endpoint, err := w.manager.Get(log.WebhookID)
		if err != nil {
			w.failLog(log, "webhook no longer registered")
			continue
		}
		if !endpoint.Active {
			w.failLog(log, "webhook is inactive")
			continue
		}
		w.retryDelivery(ctx, endpoint, log)
	}
}

func (w *RetryWorker) failLog(log *DeliveryLog, reason string) {
	log.Status = DeliveryStatusFailed
	log.ErrorMessage = reason
	now := time.Now()
	log.CompletedAt = &now
	w.store.Update(log)
}

func (w *RetryWorker) retryDelivery(ctx context.Context, endpoint *Endpoint, log *DeliveryLog) {
	log.Attempts++
	if w.metrics != nil {
		w.metrics.WebhookRetriesTotal.Inc()
	}

	// The original payload is not persisted; the retry re-sends the event
	// envelope so consumers can fetch current state by id.
	event := &Event{
		ID:        log.EventID,
		Type:      log.EventType,
		Timestamp: log.CreatedAt,
	}

	start := time.Now()
	err := w.manager.send(ctx, endpoint, event, log)
	log.Duration = time.Since(start)

	if err != nil {
		if w.policy.ShouldRetry(log.Attempts, err) {
			log.Status = DeliveryStatusRetrying
			nextRetry := w.policy.NextRetryTime(log.Attempts)
			log.NextRetryAt = &nextRetry
			log.ErrorMessage = err.Error()
		} else {
			w.logger.WithError(err).WithFields(map[string]interface{}{
				"webhook_id": endpoint.ID,
				"event_id":   log.EventID,
				"attempts":   log.Attempts,
			}).Error("webhook delivery exhausted retries")
			log.Status = DeliveryStatusFailed
			log.ErrorMessage = "max retries exceeded: " + err.Error()
			now := time.Now()
			log.CompletedAt = &now
		}
	} else {
		log.Status = DeliveryStatusSuccess
		log.ErrorMessage = ""
		now := time.Now()
		log.CompletedAt = &now
	}

	if w.metrics != nil {
		w.metrics.WebhookDeliveriesTotal.WithLabelValues(string(log.Status)).Inc()
	}
	w.store.Update(log)
}
