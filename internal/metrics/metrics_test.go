package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveQuery(t *testing.T) {
	reg := New(prometheus.NewRegistry())

	reg.ObserveQuery("traveler", time.Now(), nil)
	reg.ObserveQuery("traveler", time.Now(), errors.New("boom"))
	reg.ObserveQuery("questions", time.Now(), nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.DBQueriesTotal.WithLabelValues("traveler", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.DBQueriesTotal.WithLabelValues("traveler", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.DBQueriesTotal.WithLabelValues("questions", "ok")))
}

func TestObserveFill(t *testing.T) {
	reg := New(prometheus.NewRegistry())

	reg.ObserveFill("austria", OutcomeFilled, time.Now(), 3)
	reg.ObserveFill("austria", OutcomeFailed, time.Now(), 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.FillsTotal.WithLabelValues("austria", OutcomeFilled)))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.FillsTotal.WithLabelValues("austria", OutcomeFailed)))
	assert.Equal(t, 1, testutil.CollectAndCount(reg.MissingFields))
}

func TestObserveCache(t *testing.T) {
	reg := New(prometheus.NewRegistry())

	reg.ObserveCache("templates", true)
	reg.ObserveCache("templates", false)
	reg.ObserveCache("templates", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CacheHitsTotal.WithLabelValues("templates")))
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.CacheMissesTotal.WithLabelValues("templates")))
}

func TestNilRegistryIsNoop(t *testing.T) {
	var reg *Registry

	assert.NotPanics(t, func() {
		reg.ObserveQuery("traveler", time.Now(), nil)
		reg.ObserveCache("templates", true)
		reg.ObserveFill("malta", OutcomeFilled, time.Now(), 1)
	})
	assert.NotNil(t, reg.Handler())
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := NewDefault()
	reg.ObserveFill("portugal", OutcomeFilled, time.Now(), 0)

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `visa_pdf_fills_total{country="portugal",outcome="filled"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
