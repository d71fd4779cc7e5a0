package metrics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-social/logger"
	"github.com/saiset-co/sai-social/types"
)

type routeRecorder struct {
	routes map[string]types.FastHTTPHandler
}

func (r *routeRecorder) Add(method, path string, handler types.FastHTTPHandler) {
	r.routes[method+" "+path] = handler
}
func (r *routeRecorder) GET(path string, h types.FastHTTPHandler)    { r.Add("GET", path, h) }
func (r *routeRecorder) POST(path string, h types.FastHTTPHandler)   { r.Add("POST", path, h) }
func (r *routeRecorder) PUT(path string, h types.FastHTTPHandler)    { r.Add("PUT", path, h) }
func (r *routeRecorder) DELETE(path string, h types.FastHTTPHandler) { r.Add("DELETE", path, h) }
func (r *routeRecorder) Handler() fasthttp.RequestHandler            { return nil }

func newTestMetrics() *PrometheusMetrics {
	return NewPrometheusMetrics(logger.NewNop(), &types.MetricsConfig{
		Enabled:   true,
		Namespace: "sai_social",
		Path:      "/metrics",
	})
}

func TestCounterAccumulatesPerLabelSet(t *testing.T) {
	m := newTestMetrics()

	hit := map[string]string{"container": "countCache", "operation": "get", "result": "hit"}
	miss := map[string]string{"container": "countCache", "operation": "get", "result": "miss"}

	m.Counter("cache_operations_total", hit).Inc()
	m.Counter("cache_operations_total", hit).Add(2)
	m.Counter("cache_operations_total", miss).Inc()

	assert.Equal(t, 3.0, m.Counter("cache_operations_total", hit).Get())
	assert.Equal(t, 1.0, m.Counter("cache_operations_total", miss).Get())
}

func TestGaugeAndHistogram(t *testing.T) {
	m := newTestMetrics()

	gauge := m.Gauge("cache_keys", map[string]string{"container": "userCache"})
	gauge.Set(5)
	gauge.Inc()
	assert.Equal(t, 6.0, gauge.Get())

	histogram := m.Histogram("cache_access_response_ms", []float64{1, 10, 100}, map[string]string{"result": "hit"})
	histogram.Observe(4)
	histogram.Observe(40)
	assert.Equal(t, uint64(2), histogram.GetCount())
	assert.Equal(t, 44.0, histogram.GetSum())
}

func TestConflictingLabelsFallBackToNoop(t *testing.T) {
	m := newTestMetrics()

	m.Counter("requests_total", map[string]string{"a": "1"}).Inc()
	conflicting := m.Counter("requests_total", map[string]string{"b": "1"})

	assert.NotPanics(t, conflicting.Inc)
	assert.Equal(t, 0.0, conflicting.Get())
}

func TestRegisterRoutesServesExposition(t *testing.T) {
	m := newTestMetrics()
	m.Counter("cache_operations_total", map[string]string{"result": "hit"}).Inc()

	router := &routeRecorder{routes: map[string]types.FastHTTPHandler{}}
	m.RegisterRoutes(router)

	handler, ok := router.routes["GET /metrics"]
	require.True(t, ok)

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI("/metrics")
	handler(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.True(t, strings.Contains(string(ctx.Response.Body()), "sai_social_cache_operations_total"))
}

func TestNoopMetrics(t *testing.T) {
	m := NewNoop()

	assert.NotPanics(t, func() {
		m.Counter("x", nil).Inc()
		m.Gauge("y", nil).Set(1)
		m.Histogram("z", nil, nil).Observe(1)
	})
	assert.Equal(t, 0.0, m.Counter("x", nil).Get())
}
