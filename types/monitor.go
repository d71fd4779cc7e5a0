package types

import (
	"time"
)

type CleanupType string

const (
	CleanupAll     CleanupType = "all"
	CleanupExpired CleanupType = "expired"
	CleanupUser    CleanupType = "user"
	CleanupPost    CleanupType = "post"
	CleanupFeed    CleanupType = "feed"
)

func (c CleanupType) Valid() bool {
	switch c {
	case CleanupAll, CleanupExpired, CleanupUser, CleanupPost, CleanupFeed:
		return true
	}
	return false
}

// ParseCleanupType rejects names outside the known cleanup scopes.
func ParseCleanupType(name string) (CleanupType, error) {
	c := CleanupType(name)
	if !c.Valid() {
		return "", Errorf(ErrCleanupTypeUnknown, "type: %s", name)
	}
	return c, nil
}

type CacheMonitor interface {
	LifecycleManager
	Statistics() Statistics
	Health() CacheHealth
	Export() MetricsExport
	Cleanup(cleanupType CleanupType) error
	RecordAccess(hit bool, responseTimeMs float64)
}

type Statistics struct {
	Performance     PerformanceStats           `json:"performance"`
	CacheDetails    map[string]ContainerDetail `json:"cacheDetails"`
	Memory          MemoryEstimate             `json:"memory"`
	Recommendations []string                   `json:"recommendations"`
}

type PerformanceStats struct {
	UptimeMs              int64   `json:"uptime"`
	TotalRequests         uint64  `json:"totalRequests"`
	CacheHits             uint64  `json:"cacheHits"`
	CacheMisses           uint64  `json:"cacheMisses"`
	HitRate               float64 `json:"hitRateValue"`
	HitRateText           string  `json:"hitRate"`
	AverageResponseTimeMs float64 `json:"averageResponseTimeMs"`
	AverageResponseTime   string  `json:"averageResponseTime"`
	RequestsPerSecond     float64 `json:"requestsPerSecond"`
}

type ContainerDetail struct {
	Keys       int    `json:"keys"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	TTLSeconds int64  `json:"ttl"`
}

// MemoryEstimate is derived from the live key count, not measured.
type MemoryEstimate struct {
	EstimatedBytes       int64     `json:"estimatedBytes"`
	EstimatedMemoryUsage string    `json:"estimatedMemoryUsage"`
	LastCleanup          time.Time `json:"lastCleanup"`
}

type CacheHealth struct {
	Status        string    `json:"status"`
	HitRate       string    `json:"hitRate"`
	TotalKeys     int       `json:"totalKeys"`
	UptimeMinutes int64     `json:"uptime"`
	LastCleanup   time.Time `json:"lastCleanup"`
}

type MetricsExport struct {
	Timestamp time.Time `json:"timestamp"`
	Statistics
	Health CacheHealth `json:"health"`
}
