package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistersAll(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	require.NotNil(t, m)

	// Vectors only appear in gather output once a label combination exists.
	m.SearchesTotal.WithLabelValues("project").Inc()
	m.EmailsSentTotal.WithLabelValues("quote_admin").Inc()
	m.WebhookDeliveriesTotal.WithLabelValues("delivered").Inc()

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["pinkbeam_searches_total"])
	assert.True(t, names["pinkbeam_emails_sent_total"])
	assert.True(t, names["pinkbeam_webhook_deliveries_total"])
}

func TestSearchCounterIncrements(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.SearchesTotal.WithLabelValues("global").Inc()
	m.SearchesTotal.WithLabelValues("global").Inc()
	m.SearchesTotal.WithLabelValues("ticket").Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.SearchesTotal.WithLabelValues("global")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchesTotal.WithLabelValues("ticket")))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	handler := HTTPMetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	count := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/notifications", "201"))
	assert.Equal(t, float64(1), count)
}

func TestCollectDBStats(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.CollectDBStats(7, 3)

	assert.Equal(t, float64(7), testutil.ToFloat64(m.DBConnectionsActive))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.DBConnectionsIdle))
}
