package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(Decisions.WithLabelValues("HOLD"))
	Decisions.WithLabelValues("HOLD").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Decisions.WithLabelValues("HOLD")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveCycle("test", time.Now())
	RPCRetries.Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "archon_rpc_retries_total")
	assert.Contains(t, rec.Body.String(), `archon_cycle_duration_seconds_count{loop="test"}`)
}
