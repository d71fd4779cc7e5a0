package metrics

import (
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-social/types"
)

// NewManager returns the prometheus backend when metrics are enabled and a
// no-op manager otherwise, so callers never branch on configuration.
func NewManager(config types.ConfigManager, logger types.Logger) types.MetricsManager {
	metricsConfig := config.GetConfig().Metrics

	if metricsConfig == nil || !metricsConfig.Enabled {
		logger.Info("Metrics disabled, using no-op manager")
		return NewNoop()
	}

	manager := NewPrometheusMetrics(logger, metricsConfig)
	logger.Info("Metrics manager initialized", zap.String("path", metricsConfig.Path))

	return manager
}

type NoopMetrics struct{}

func NewNoop() types.MetricsManager {
	return NoopMetrics{}
}

func (NoopMetrics) Start() error                    { return nil }
func (NoopMetrics) Stop() error                     { return nil }
func (NoopMetrics) IsRunning() bool                 { return false }
func (NoopMetrics) RegisterRoutes(types.HTTPRouter) {}

func (NoopMetrics) Counter(string, map[string]string) types.Counter {
	return emptyCounter{}
}

func (NoopMetrics) Gauge(string, map[string]string) types.Gauge {
	return emptyGauge{}
}

func (NoopMetrics) Histogram(string, []float64, map[string]string) types.Histogram {
	return emptyHistogram{}
}

type emptyCounter struct{}

func (emptyCounter) Inc()          {}
func (emptyCounter) Add(_ float64) {}
func (emptyCounter) Get() float64  { return 0 }

type emptyGauge struct{}

func (emptyGauge) Set(_ float64) {}
func (emptyGauge) Inc()          {}
func (emptyGauge) Dec()          {}
func (emptyGauge) Get() float64  { return 0 }

type emptyHistogram struct{}

func (emptyHistogram) Observe(_ float64)           {}
func (emptyHistogram) ObserveDuration(_ time.Time) {}
func (emptyHistogram) GetCount() uint64            { return 0 }
func (emptyHistogram) GetSum() float64             { return 0 }
