package webhooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicyBackoff(t *testing.T) {
	policy := NewRetryPolicy(DefaultRetryConfig())

	assert.Equal(t, 1*time.Second, policy.NextRetryDelay(1))
	assert.Equal(t, 2*time.Second, policy.NextRetryDelay(2))
	assert.Equal(t, 4*time.Second, policy.NextRetryDelay(3))
	assert.Equal(t, 8*time.Second, policy.NextRetryDelay(4))
}

func TestRetryPolicyCapsAtMaxDelay(t *testing.T) {
	policy := NewRetryPolicy(RetryConfig{
		MaxAttempts:       10,
		InitialDelay:      time.Second,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2.0,
	})

	assert.Equal(t, 5*time.Second, policy.NextRetryDelay(8))
}

func TestRetryPolicyShouldRetry(t *testing.T) {
	policy := NewRetryPolicy(RetryConfig{MaxAttempts: 3})

	assert.True(t, policy.ShouldRetry(1, assert.AnError))
	assert.True(t, policy.ShouldRetry(2, assert.AnError))
	assert.False(t, policy.ShouldRetry(3, assert.AnError))
	assert.False(t, policy.ShouldRetry(1, nil))
}

func TestRetryPolicyClampsInvalidConfig(t *testing.T) {
	policy := NewRetryPolicy(RetryConfig{MaxAttempts: -1, BackoffMultiplier: 0.5})

	assert.True(t, policy.ShouldRetry(4, assert.AnError))
	assert.False(t, policy.ShouldRetry(5, assert.AnError))
	assert.Equal(t, 2*time.Second, policy.NextRetryDelay(2))
}

func TestProcessRetriesDeliversPendingRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	manager := newTestManager(t)
	endpoint := &Endpoint{URL: server.URL, Events: []EventType{EventQuoteCreated}}
	require.NoError(t, manager.Register(endpoint))

	past := time.Now().Add(-time.Second)
	log := &DeliveryLog{
		ID:          "d-1",
		WebhookID:   endpoint.ID,
		EventID:     "e-1",
		EventType:   EventQuoteCreated,
		URL:         endpoint.URL,
		Status:      DeliveryStatusRetrying,
		Attempts:    1,
		NextRetryAt: &past,
		CreatedAt:   time.Now().Add(-time.Minute),
	}
	manager.deliveryStore.Add(log)

	manager.retryWorker.processRetries(context.Background())

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	got, ok := manager.deliveryStore.Get("d-1")
	require.True(t, ok)
	assert.Equal(t, DeliveryStatusSuccess, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.NotNil(t, got.CompletedAt)
}

func TestProcessRetriesFailsLogForMissingEndpoint(t *testing.T) {
	manager := newTestManager(t)

	past := time.Now().Add(-time.Second)
	log := &DeliveryLog{
		ID:          "d-1",
		WebhookID:   "gone",
		EventID:     "e-1",
		EventType:   EventQuoteCreated,
		Status:      DeliveryStatusRetrying,
		NextRetryAt: &past,
		CreatedAt:   time.Now(),
	}
	manager.deliveryStore.Add(log)

	manager.retryWorker.processRetries(context.Background())

	got, _ := manager.deliveryStore.Get("d-1")
	assert.Equal(t, DeliveryStatusFailed, got.Status)
}

func TestProcessRetriesFailsLogForInactiveEndpoint(t *testing.T) {
	manager := newTestManager(t)
	endpoint := &Endpoint{URL: "https://example.com/hook", Events: []EventType{EventQuoteCreated}}
	require.NoError(t, manager.Register(endpoint))
	require.NoError(t, manager.Deactivate(endpoint.ID))

	past := time.Now().Add(-time.Second)
	log := &DeliveryLog{
		ID:          "d-1",
		WebhookID:   endpoint.ID,
		EventID:     "e-1",
		EventType:   EventQuoteCreated,
		Status:      DeliveryStatusRetrying,
		NextRetryAt: &past,
		CreatedAt:   time.Now(),
	}
	manager.deliveryStore.Add(log)

	manager.retryWorker.processRetries(context.Background())

	got, _ := manager.deliveryStore.Get("d-1")
	assert.Equal(t, DeliveryStatusFailed, got.Status)
	assert.Equal(t, "webhook is inactive", got.ErrorMessage)
}

func TestRetryExhaustionMarksFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	manager := newTestManager(t)
	endpoint := &Endpoint{URL: server.URL, Events: []EventType{EventQuoteCreated}}
	require.NoError(t, manager.Register(endpoint))

	past := time.Now().Add(-time.Second)
	log := &DeliveryLog{
		ID:          "d-1",
		WebhookID:   endpoint.ID,
		EventID:     "e-1",
		EventType:   EventQuoteCreated,
		URL:         endpoint.URL,
		Status:      DeliveryStatusRetrying,
		Attempts:    4,
		NextRetryAt: &past,
		CreatedAt:   time.Now(),
	}
	manager.deliveryStore.Add(log)

	manager.retryWorker.processRetries(context.Background())

	got, _ := manager.deliveryStore.Get("d-1")
	assert.Equal(t, DeliveryStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "max retries exceeded")
}

func TestRetryWorkerStartStop(t *testing.T) {
	manager := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager.StartRetryWorker(ctx)
	time.Sleep(20 * time.Millisecond)
	manager.StopRetryWorker()
}
