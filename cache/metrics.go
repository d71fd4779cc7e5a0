package cache

import (
	"github.com/saiset-co/sai-social/types"
)

type operationRecorder struct {
	metrics types.MetricsManager
}

func newOperationRecorder(metrics types.MetricsManager) *operationRecorder {
	return &operationRecorder{metrics: metrics}
}

func (r *operationRecorder) record(container, operation, result string) {
	if r == nil || r.metrics == nil {
		return
	}

	r.metrics.Counter("cache_operations_total", map[string]string{
		"container": container,
		"operation": operation,
		"result":    result,
	}).Inc()
}
