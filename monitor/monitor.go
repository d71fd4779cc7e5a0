package monitor

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	saimetrics "github.com/saiset-co/sai-social/metrics"
	"github.com/saiset-co/sai-social/types"
	"github.com/saiset-co/sai-social/utils"
)

const (
	StatsJobName       = "cache_stats_log"
	MaintenanceJobName = "cache_maintenance"

	recommendLowHitRate  = "Consider increasing cache TTL values or preloading frequently accessed data"
	recommendSlowAccess  = "High response times detected - consider optimizing cache storage or reducing cache size"
	recommendTooManyKeys = "High number of cache keys - consider implementing LRU eviction or reducing TTL"
	recommendOptimal     = "Cache performance is optimal"
)

var (
	userContainers = []string{types.UserContainer, types.ProfileContainer, types.AvatarContainer}
	postContainers = []string{types.PostContainer, types.PostMetadataContainer, types.CountContainer, types.FrequentPostsContainer}
	feedContainers = []string{types.FrequentPostsContainer}
)

var _ types.CacheMonitor = (*Monitor)(nil)

// Monitor observes a cache store. Hit and miss totals are read from the
// container counters relative to a baseline captured when the current
// metrics window opened.
type Monitor struct {
	config  *types.MonitorConfig
	store   types.CacheStore
	cron    types.CronManager
	logger  types.Logger
	metrics types.MetricsManager
	clock   types.Clock

	mu              sync.RWMutex
	windowStart     time.Time
	baselineHits    uint64
	baselineMisses  uint64
	avgResponseTime float64
	lastCleanup     time.Time

	running int32
}

func New(config *types.MonitorConfig, store types.CacheStore, cron types.CronManager, logger types.Logger, metrics types.MetricsManager, clock types.Clock) *Monitor {
	if clock == nil {
		clock = utils.SystemClock{}
	}

	if metrics == nil {
		metrics = saimetrics.NewNoop()
	}

	m := &Monitor{
		config:  config,
		store:   store,
		cron:    cron,
		logger:  logger,
		metrics: metrics,
		clock:   clock,
	}

	now := clock.Now()
	m.lastCleanup = now
	m.resetWindowLocked(now)

	return m
}

func (m *Monitor) Start() error {
	if !m.config.Enabled {
		return types.ErrMonitorIsDisabled
	}

	if m.config.StatsInterval <= 0 || m.config.CleanupInterval <= 0 {
		return types.ErrMonitorIntervalEmpty
	}

	if !atomic.CompareAndSwapInt32(&m.running, 0, 1) {
		return types.ErrMonitorIsRunning
	}

	err := m.cron.Add(StatsJobName, every(m.config.StatsInterval), m.guard(StatsJobName, m.LogStatistics))
	if err != nil {
		atomic.StoreInt32(&m.running, 0)
		return types.WrapError(err, "failed to schedule cache statistics")
	}

	err = m.cron.Add(MaintenanceJobName, every(m.config.CleanupInterval), m.guard(MaintenanceJobName, m.RunMaintenance))
	if err != nil {
		_ = m.cron.Remove(StatsJobName)
		atomic.StoreInt32(&m.running, 0)
		return types.WrapError(err, "failed to schedule cache maintenance")
	}

	m.logger.Info("Cache monitor started",
		zap.Duration("stats_interval", m.config.StatsInterval),
		zap.Duration("cleanup_interval", m.config.CleanupInterval))

	return nil
}

// Stop unschedules both ticks. A tick already executing is left to finish.
func (m *Monitor) Stop() error {
	if !atomic.CompareAndSwapInt32(&m.running, 1, 0) {
		return types.ErrMonitorIsNotRunning
	}

	for _, name := range []string{StatsJobName, MaintenanceJobName} {
		if err := m.cron.Remove(name); err != nil {
			m.logger.Warn("Failed to remove monitor job", zap.String("job_name", name), zap.Error(err))
		}
	}

	m.logger.Info("Cache monitor stopped")
	return nil
}

func (m *Monitor) IsRunning() bool {
	return atomic.LoadInt32(&m.running) == 1
}

func (m *Monitor) RecordAccess(hit bool, responseTimeMs float64) {
	m.mu.Lock()
	m.avgResponseTime = (m.avgResponseTime + responseTimeMs) / 2
	m.mu.Unlock()

	result := "miss"
	if hit {
		result = "hit"
	}

	m.metrics.Histogram("cache_access_response_ms",
		[]float64{1, 5, 10, 50, 100, 500},
		map[string]string{"result": result},
	).Observe(responseTimeMs)
}

// LogStatistics writes one statistics snapshot to the log and refreshes the
// key and hit rate gauges. The store is not modified.
func (m *Monitor) LogStatistics() {
	stats := m.Statistics()

	for name, detail := range stats.CacheDetails {
		m.metrics.Gauge("cache_keys", map[string]string{"container": name}).Set(float64(detail.Keys))
	}
	m.metrics.Gauge("cache_hit_rate_percent", nil).Set(stats.Performance.HitRate)

	m.logger.Info("Cache statistics",
		zap.Int64("uptime_minutes", stats.Performance.UptimeMs/int64(time.Minute/time.Millisecond)),
		zap.Uint64("total_requests", stats.Performance.TotalRequests),
		zap.String("hit_rate", stats.Performance.HitRateText),
		zap.String("average_response_time", stats.Performance.AverageResponseTime),
		zap.Float64("requests_per_second", stats.Performance.RequestsPerSecond),
		zap.Any("containers", stats.CacheDetails),
		zap.String("estimated_memory", stats.Memory.EstimatedMemoryUsage),
	)
}

// RunMaintenance sweeps expired entries and rolls the metrics window over
// once it is older than the configured window length.
func (m *Monitor) RunMaintenance() {
	expired := m.store.FlushExpired()
	now := m.clock.Now()

	m.mu.Lock()
	m.lastCleanup = now
	rolled := m.config.MetricsWindow > 0 && now.Sub(m.windowStart) > m.config.MetricsWindow
	if rolled {
		m.resetWindowLocked(now)
	}
	m.mu.Unlock()

	m.logger.Info("Cache maintenance completed",
		zap.Int("expired_entries", expired),
		zap.Bool("metrics_window_reset", rolled))
}

func (m *Monitor) Statistics() (stats types.Statistics) {
	defer m.recoverCall("statistics", nil)

	now := m.clock.Now()
	containers := m.store.Stats()
	totalKeys := m.store.TotalKeys()

	m.mu.RLock()
	windowStart := m.windowStart
	baseHits, baseMisses := m.baselineHits, m.baselineMisses
	avg := m.avgResponseTime
	lastCleanup := m.lastCleanup
	m.mu.RUnlock()

	var hits, misses uint64
	details := make(map[string]types.ContainerDetail, len(containers))
	for _, c := range containers {
		hits += c.Hits
		misses += c.Misses
		details[c.Name] = types.ContainerDetail{
			Keys:       c.Keys,
			Hits:       c.Hits,
			Misses:     c.Misses,
			TTLSeconds: int64(c.TTL / time.Second),
		}
	}

	hits = sinceBaseline(hits, baseHits)
	misses = sinceBaseline(misses, baseMisses)
	total := hits + misses

	uptime := now.Sub(windowStart)
	hitRate := percent(hits, total)

	var rps float64
	if seconds := uptime.Seconds(); seconds > 0 {
		rps = float64(total) / seconds
	}

	estimated := int64(totalKeys) * int64(m.config.EntrySizeBytes)

	return types.Statistics{
		Performance: types.PerformanceStats{
			UptimeMs:              uptime.Milliseconds(),
			TotalRequests:         total,
			CacheHits:             hits,
			CacheMisses:           misses,
			HitRate:               hitRate,
			HitRateText:           fmt.Sprintf("%.2f%%", hitRate),
			AverageResponseTimeMs: avg,
			AverageResponseTime:   fmt.Sprintf("%.2fms", avg),
			RequestsPerSecond:     rps,
		},
		CacheDetails: details,
		Memory: types.MemoryEstimate{
			EstimatedBytes:       estimated,
			EstimatedMemoryUsage: fmt.Sprintf("%.2f MB", float64(estimated)/1024/1024),
			LastCleanup:          lastCleanup,
		},
		Recommendations: m.recommend(hitRate, avg, totalKeys),
	}
}

func (m *Monitor) Health() (health types.CacheHealth) {
	defer m.recoverCall("health", nil)

	stats := m.Statistics()

	// Compared at the printed precision so the status agrees with HitRate.
	status := string(types.StatusWarning)
	if math.Round(stats.Performance.HitRate*100)/100 > m.config.Thresholds.HealthyHitRate {
		status = string(types.StatusHealthy)
	}

	return types.CacheHealth{
		Status:        status,
		HitRate:       stats.Performance.HitRateText,
		TotalKeys:     m.store.TotalKeys(),
		UptimeMinutes: stats.Performance.UptimeMs / int64(time.Minute/time.Millisecond),
		LastCleanup:   stats.Memory.LastCleanup,
	}
}

func (m *Monitor) Export() types.MetricsExport {
	return types.MetricsExport{
		Timestamp:  m.clock.Now(),
		Statistics: m.Statistics(),
		Health:     m.Health(),
	}
}

// Cleanup clears the containers of one scope. Unknown scopes leave the
// store untouched and return types.ErrCleanupTypeUnknown.
func (m *Monitor) Cleanup(cleanupType types.CleanupType) (err error) {
	defer m.recoverCall("cleanup", &err)

	if !cleanupType.Valid() {
		m.logger.Warn("Unknown cache cleanup type", zap.String("type", string(cleanupType)))
		return types.Errorf(types.ErrCleanupTypeUnknown, "type: %s", cleanupType)
	}

	switch cleanupType {
	case types.CleanupAll:
		m.store.ClearAll()
		m.mu.Lock()
		m.resetWindowLocked(m.clock.Now())
		m.mu.Unlock()
	case types.CleanupExpired:
		m.store.FlushExpired()
	case types.CleanupUser:
		m.store.ClearContainers(userContainers...)
	case types.CleanupPost:
		m.store.ClearContainers(postContainers...)
	case types.CleanupFeed:
		m.store.ClearContainers(feedContainers...)
	}

	m.mu.Lock()
	m.lastCleanup = m.clock.Now()
	m.mu.Unlock()

	m.logger.Info("Cache cleanup performed", zap.String("type", string(cleanupType)))

	return nil
}

func (m *Monitor) recommend(hitRate, avgResponseMs float64, totalKeys int) []string {
	thresholds := m.config.Thresholds
	recommendations := make([]string, 0, 3)

	if hitRate < thresholds.MinHitRate {
		recommendations = append(recommendations, recommendLowHitRate)
	}

	if avgResponseMs > thresholds.MaxResponseTimeMs {
		recommendations = append(recommendations, recommendSlowAccess)
	}

	if totalKeys > thresholds.MaxKeys {
		recommendations = append(recommendations, recommendTooManyKeys)
	}

	if len(recommendations) == 0 {
		recommendations = append(recommendations, recommendOptimal)
	}

	return recommendations
}

// resetWindowLocked must be called with mu held.
func (m *Monitor) resetWindowLocked(now time.Time) {
	m.windowStart = now
	m.baselineHits, m.baselineMisses = m.store.Totals()
	m.avgResponseTime = 0
}

// recoverCall turns a panic inside a public method into a logged error. It
// must be deferred directly.
func (m *Monitor) recoverCall(operation string, err *error) {
	r := recover()
	if r == nil {
		return
	}

	m.logger.Error("Cache monitor operation panicked",
		zap.String("operation", operation),
		zap.Any("panic", r))

	if err != nil {
		*err = types.Errorf(types.ErrMonitorOperationFailed, "%s: %v", operation, r)
	}
}

// guard keeps a panicking tick from taking the scheduler down with it.
func (m *Monitor) guard(name string, tick func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("Cache monitor tick panicked",
					zap.String("job_name", name),
					zap.Any("panic", r))
			}
		}()

		tick()
	}
}

func every(interval time.Duration) string {
	return "@every " + interval.String()
}

func sinceBaseline(current, baseline uint64) uint64 {
	if current < baseline {
		return 0
	}
	return current - baseline
}

func percent(part, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
