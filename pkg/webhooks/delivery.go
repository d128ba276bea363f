package webhooks

import (
	"sort"
	"sync"
	"time"
)

// DeliveryStatus is the lifecycle state of one delivery.
type DeliveryStatus string

const (
	DeliveryStatusPending  DeliveryStatus = "pending"
	DeliveryStatusSuccess  DeliveryStatus = "success"
	DeliveryStatusFailed   DeliveryStatus = "failed"
	DeliveryStatusRetrying DeliveryStatus = "retrying"
)

// DeliveryLog records one event delivery to one endpoint, across all of
// its attempts.
type DeliveryLog struct {
	ID             string            `json:"id"`
	WebhookID      string            `json:"webhook_id"`
	EventID        string            `json:"event_id"`
	EventType      EventType         `json:"event_type"`
	URL            string            `json:"url"`
	Status         DeliveryStatus    `json:"status"`
	StatusCode     int               `json:"status_code,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	Attempts       int               `json:"attempts"`
	NextRetryAt    *time.Time        `json:"next_retry_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	Duration       time.Duration     `json:"duration,omitempty"`
	RequestHeaders map[string]string `json:"request_headers,omitempty"`
	ResponseBody   string            `json:"response_body,omitempty"`
}

// DeliveryStats summarizes delivery outcomes for one endpoint.
type DeliveryStats struct {
	Total       int           `json:"total"`
	Success     int           `json:"success"`
	Failed      int           `json:"failed"`
	Pending     int           `json:"pending"`
	Retrying    int           `json:"retrying"`
	SuccessRate float64       `json:"success_rate"`
	AvgDuration time.Duration `json:"avg_duration"`
}

// DeliveryLogStore keeps recent delivery logs in memory, bounded by
// maxLogs with oldest-first eviction. Operational visibility only; logs do
// not survive a restart.
type DeliveryLogStore struct {
	mu      sync.RWMutex
	logs    map[string]*DeliveryLog
	maxLogs int
}

// NewDeliveryLogStore creates a bounded delivery log store.
func NewDeliveryLogStore(maxLogs int) *DeliveryLogStore {
	if maxLogs <= 0 {
		maxLogs = 1000
	}
	return &DeliveryLogStore{
		logs:    make(map[string]*DeliveryLog),
		maxLogs: maxLogs,
	}
}

// Add stores a delivery log, evicting the oldest entries when full.
func (s *DeliveryLogStore) Add(log *DeliveryLog) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.logs) >= s.maxLogs {
		s.evictOldest()
	}
	s.logs[log.ID] = log
}

// Update replaces a stored delivery log.
func (s *DeliveryLogStore) Update(log *DeliveryLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[log.ID] = log
}

// Get retrieves a delivery log by ID.
func (s *DeliveryLogStore) Get(id string) (*DeliveryLog, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log, exists := s.logs[id]
	return log, exists
}

// GetByWebhook returns an endpoint's delivery logs, newest first.
func (s *DeliveryLogStore) GetByWebhook(webhookID string, limit int) []*DeliveryLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*DeliveryLog
	for _, log := range s.logs {
		if log.WebhookID == webhookID {
			result = append(result, log)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// GetByEvent returns all delivery logs for one event.
func (s *DeliveryLogStore) GetByEvent(eventID string) []*DeliveryLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*DeliveryLog
	for _, log := range s.logs {
		if log.EventID == eventID {
			result = append(result, log)
		}
	}
	return result
}

// GetPendingRetries returns logs whose retry time has arrived.
func (s *DeliveryLogStore) GetPendingRetries() []*DeliveryLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var result []*DeliveryLog
	for _, log := range s.logs {
		if log.Status == DeliveryStatusRetrying && log.NextRetryAt != nil && !log.NextRetryAt.After(now) {
			result = append(result, log)
		}
	}
	return result
}

// GetStats aggregates delivery outcomes for one endpoint.
func (s *DeliveryLogStore) GetStats(webhookID string) DeliveryStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats DeliveryStats
	var totalDuration time.Duration
	var completed int

	for _, log := range s.logs {
		if log.WebhookID != webhookID {
			continue
		}
		stats.Total++
		switch log.Status {
		case DeliveryStatusSuccess:
			stats.Success++
		case DeliveryStatusFailed:
			stats.Failed++
		case DeliveryStatusPending:
			stats.Pending++
		case DeliveryStatusRetrying:
			stats.Retrying++
		}
		if log.Duration > 0 {
			totalDuration += log.Duration
			completed++
		}
	}

	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Success) / float64(stats.Total)
	}
	if completed > 0 {
		stats.AvgDuration = totalDuration / time.Duration(completed)
	}
	return stats
}

// evictOldest removes the oldest tenth of stored logs. Caller holds the
// write lock.
func (s *DeliveryLogStore) evictOldest() {
	all := make([]*DeliveryLog, 0, len(s.logs))
	for _, log := range s.logs {
		all = append(all, log)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	evict := len(all) / 10
	if evict < 1 {
		evict = 1
	}
	for _, log := range all[:evict] {
		delete(s.logs, log.ID)
	}
}
