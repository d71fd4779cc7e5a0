package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-social/types"
)

type PrometheusMetrics struct {
	logger     types.Logger
	config     *types.MetricsConfig
	registry   *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	mu         sync.Mutex
	running    int32
}

func NewPrometheusMetrics(logger types.Logger, config *types.MetricsConfig) *PrometheusMetrics {
	registry := prometheus.NewRegistry()
	if config.GoMetrics {
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	logger.Info("Prometheus metrics initialized",
		zap.String("namespace", config.Namespace),
		zap.String("subsystem", config.Subsystem),
		zap.Bool("go_metrics", config.GoMetrics))

	return &PrometheusMetrics{
		logger:     logger,
		config:     config,
		registry:   registry,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func (p *PrometheusMetrics) Start() error {
	if !atomic.CompareAndSwapInt32(&p.running, 0, 1) {
		return types.ErrServerAlreadyRunning
	}

	p.logger.Info("Prometheus metrics started")
	return nil
}

func (p *PrometheusMetrics) Stop() error {
	if !atomic.CompareAndSwapInt32(&p.running, 1, 0) {
		return types.ErrServerNotRunning
	}

	p.logger.Info("Prometheus metrics stopped")
	return nil
}

func (p *PrometheusMetrics) IsRunning() bool {
	return atomic.LoadInt32(&p.running) == 1
}

// Registry exposes the underlying registry for gathering in tests and exporters.
func (p *PrometheusMetrics) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusMetrics) Counter(name string, labels map[string]string) types.Counter {
	key := buildKey(name, labels)

	p.mu.Lock()
	defer p.mu.Unlock()

	counter, exists := p.counters[key]
	if !exists {
		counter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   p.config.Namespace,
				Subsystem:   p.config.Subsystem,
				Name:        name,
				Help:        fmt.Sprintf("Counter metric %s", name),
				ConstLabels: p.config.Labels,
			},
			labelNames(labels),
		)

		if !p.register(name, counter) {
			return emptyCounter{}
		}
		p.counters[key] = counter
	}

	return &PrometheusCounter{logger: p.logger, counter: counter.With(labels)}
}

func (p *PrometheusMetrics) Gauge(name string, labels map[string]string) types.Gauge {
	key := buildKey(name, labels)

	p.mu.Lock()
	defer p.mu.Unlock()

	gauge, exists := p.gauges[key]
	if !exists {
		gauge = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   p.config.Namespace,
				Subsystem:   p.config.Subsystem,
				Name:        name,
				Help:        fmt.Sprintf("Gauge metric %s", name),
				ConstLabels: p.config.Labels,
			},
			labelNames(labels),
		)

		if !p.register(name, gauge) {
			return emptyGauge{}
		}
		p.gauges[key] = gauge
	}

	return &PrometheusGauge{logger: p.logger, gauge: gauge.With(labels)}
}

func (p *PrometheusMetrics) Histogram(name string, buckets []float64, labels map[string]string) types.Histogram {
	key := buildKey(name, labels)

	p.mu.Lock()
	defer p.mu.Unlock()

	histogram, exists := p.histograms[key]
	if !exists {
		histogram = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   p.config.Namespace,
				Subsystem:   p.config.Subsystem,
				Name:        name,
				Help:        fmt.Sprintf("Histogram metric %s", name),
				Buckets:     buckets,
				ConstLabels: p.config.Labels,
			},
			labelNames(labels),
		)

		if !p.register(name, histogram) {
			return emptyHistogram{}
		}
		p.histograms[key] = histogram
	}

	return &PrometheusHistogram{observer: histogram.With(labels)}
}

// RegisterRoutes mounts the exposition endpoint on the service router.
func (p *PrometheusMetrics) RegisterRoutes(router types.HTTPRouter) {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
	router.GET(p.config.Path, types.FastHTTPHandler(handler))
}

func (p *PrometheusMetrics) register(name string, collector prometheus.Collector) bool {
	if err := p.registry.Register(collector); err != nil {
		p.logger.Error("Failed to register prometheus metric", zap.String("name", name), zap.Error(err))
		return false
	}

	p.logger.Debug("Prometheus metric created", zap.String("name", name))
	return true
}

// buildKey identifies a vector by name and label set; the same name with a
// different label set is a registration conflict reported by the registry.
func buildKey(name string, labels map[string]string) string {
	return name + "{" + strings.Join(labelNames(labels), ",") + "}"
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type PrometheusCounter struct {
	logger  types.Logger
	counter prometheus.Counter
}

func (c *PrometheusCounter) Inc() {
	c.counter.Inc()
}

func (c *PrometheusCounter) Add(value float64) {
	c.counter.Add(value)
}

func (c *PrometheusCounter) Get() float64 {
	metric := &dto.Metric{}
	if err := c.counter.Write(metric); err != nil {
		c.logger.Error("Failed to write counter", zap.Error(err))
	}
	return metric.GetCounter().GetValue()
}

type PrometheusGauge struct {
	logger types.Logger
	gauge  prometheus.Gauge
}

func (g *PrometheusGauge) Set(value float64) {
	g.gauge.Set(value)
}

func (g *PrometheusGauge) Inc() {
	g.gauge.Inc()
}

func (g *PrometheusGauge) Dec() {
	g.gauge.Dec()
}

func (g *PrometheusGauge) Get() float64 {
	metric := &dto.Metric{}
	if err := g.gauge.Write(metric); err != nil {
		g.logger.Error("Failed to write gauge", zap.Error(err))
	}
	return metric.GetGauge().GetValue()
}

type PrometheusHistogram struct {
	observer prometheus.Observer
}

func (h *PrometheusHistogram) Observe(value float64) {
	h.observer.Observe(value)
}

func (h *PrometheusHistogram) ObserveDuration(start time.Time) {
	h.observer.Observe(time.Since(start).Seconds())
}

func (h *PrometheusHistogram) GetCount() uint64 {
	if histogram := h.snapshot(); histogram != nil {
		return histogram.GetSampleCount()
	}
	return 0
}

func (h *PrometheusHistogram) GetSum() float64 {
	if histogram := h.snapshot(); histogram != nil {
		return histogram.GetSampleSum()
	}
	return 0
}

func (h *PrometheusHistogram) snapshot() *dto.Histogram {
	promMetric, ok := h.observer.(prometheus.Metric)
	if !ok {
		return nil
	}

	metric := &dto.Metric{}
	if err := promMetric.Write(metric); err != nil {
		return nil
	}

	return metric.GetHistogram()
}
