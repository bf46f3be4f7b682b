package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCounts(t *testing.T) {
	r := New()

	r.Screened.WithLabelValues("matched").Inc()
	r.Screened.WithLabelValues("matched").Inc()
	r.CacheHits.WithLabelValues("daily").Inc()
	r.Percent.Set(42)

	assert.Equal(t, float64(2), testutil.ToFloat64(r.Screened.WithLabelValues("matched")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.CacheHits.WithLabelValues("daily")))
	assert.Equal(t, float64(42), testutil.ToFloat64(r.Percent))
}

func TestIndependentRegistries(t *testing.T) {
	// Two registries in one process must not collide on names.
	assert.NotPanics(t, func() {
		New()
		New()
	})
}

func TestHandler(t *testing.T) {
	r := New()
	r.Processed.Set(10)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "screener_run_processed 10"))
}
