package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grocerybot/assistant/internal/domain"
	"github.com/grocerybot/assistant/internal/usecase"
)

func TestMetrics_Items(t *testing.T) {
	m := New()

	m.ItemFinished(usecase.OutcomePurchased)
	m.ItemFinished(usecase.OutcomePurchased)
	m.ItemFinished(usecase.OutcomeSkipped)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.items.WithLabelValues("purchased")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.items.WithLabelValues("skipped")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.items.WithLabelValues("unresolved")))
}

func TestMetrics_Runs(t *testing.T) {
	m := New()

	m.RunFinished(usecase.RunSummary{Remaining: 3, Quit: true, Duration: time.Minute})
	m.RunFinished(usecase.RunSummary{Remaining: 0, Duration: 2 * time.Minute})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("quit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("completed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.remaining))
}

func TestMetrics_Driver(t *testing.T) {
	m := New()

	m.CommandSent(domain.ActionOpenURL)
	m.CommandSent(domain.ActionOpenURL)
	m.ResponseReceived(domain.ActionOpenURL, "status", 200*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.commands.WithLabelValues("OPEN_URL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.responses.WithLabelValues("OPEN_URL", "status")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.driverWait))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ItemFinished(usecase.OutcomeUnresolved)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `grocerybot_items_total{outcome="unresolved"} 1`)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
