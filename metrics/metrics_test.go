package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	r := New()

	r.ObserveRun("momentum", StatusSuccess, time.Now().Add(-time.Second))
	r.ObserveRun("momentum", StatusFailed, time.Now())

	assert.Equal(t, 1.0, testutil.ToFloat64(r.RunsTotal.WithLabelValues("momentum", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RunsTotal.WithLabelValues("momentum", StatusFailed)))
	assert.Greater(t, testutil.ToFloat64(r.LastSuccess.WithLabelValues("momentum")), 0.0)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.LastSuccess.WithLabelValues("rankings")))
}

func TestCountersIgnoreNonPositive(t *testing.T) {
	r := New()

	r.AddRows("sector_ranking", 11)
	r.AddRows("sector_ranking", 0)
	r.AddFailures("rankings", -1)
	r.SetCrossSection("rankings:sector", 11)
	r.SetDistributionCount("SPY", 4)

	assert.Equal(t, 11.0, testutil.ToFloat64(r.RowsWritten.WithLabelValues("sector_ranking")))
	assert.Equal(t, 0, testutil.CollectAndCount(r.UpsertFailures))
	assert.Equal(t, 11.0, testutil.ToFloat64(r.CrossSectionSize.WithLabelValues("rankings:sector")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.DistributionDayCount.WithLabelValues("SPY")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.AddRows("momentum_scores", 3)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `rows_written_total{table="momentum_scores"} 3`)
}
