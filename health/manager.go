package health

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/sai-social/types"
	"github.com/saiset-co/sai-social/utils"
)

type State int32

const (
	StateStopped State = iota
	StateRunning
)

const defaultCheckTimeout = 5 * time.Second

type Manager struct {
	config       types.ConfigManager
	logger       types.Logger
	checkers     map[string]types.HealthChecker
	startTime    time.Time
	mu           sync.RWMutex
	state        atomic.Value
	checkTimeout time.Duration
}

func NewManager(config types.ConfigManager, logger types.Logger) *Manager {
	manager := &Manager{
		config:       config,
		logger:       logger,
		checkers:     make(map[string]types.HealthChecker),
		startTime:    time.Now(),
		checkTimeout: defaultCheckTimeout,
	}

	manager.state.Store(StateStopped)

	return manager
}

func (hm *Manager) RegisterChecker(name string, checker types.HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	hm.checkers[name] = checker
}

// Check runs every registered checker in parallel and folds the results
// into one report.
func (hm *Manager) Check(ctx context.Context) types.HealthReport {
	hm.mu.RLock()
	checkers := make(map[string]types.HealthChecker, len(hm.checkers))
	for name, checker := range hm.checkers {
		checkers[name] = checker
	}
	hm.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, hm.checkTimeout)
	defer cancel()

	g, gCtx := errgroup.WithContext(checkCtx)
	results := make(map[string]types.HealthCheck, len(checkers))
	var resultMu sync.Mutex

	for name, checker := range checkers {
		name, checker := name, checker
		g.Go(func() error {
			result := hm.executeCheck(gCtx, name, checker)

			resultMu.Lock()
			results[name] = result
			resultMu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	return hm.buildReport(results)
}

func (hm *Manager) Start() error {
	if !hm.state.CompareAndSwap(StateStopped, StateRunning) {
		return types.ErrServerAlreadyRunning
	}

	hm.startTime = time.Now()
	hm.logger.Info("Health manager started")
	return nil
}

func (hm *Manager) Stop() error {
	if !hm.state.CompareAndSwap(StateRunning, StateStopped) {
		return types.ErrHealthIsNotRunning
	}

	hm.logger.Info("Health manager stopped")
	return nil
}

func (hm *Manager) IsRunning() bool {
	return hm.state.Load().(State) == StateRunning
}

func (hm *Manager) RegisterRoutes(router types.HTTPRouter) {
	router.GET("/health", hm.handleHealth)
	router.GET("/version", hm.handleVersion)
}

func (hm *Manager) handleVersion(ctx *fasthttp.RequestCtx) {
	utils.WriteJSON(ctx, fasthttp.StatusOK, readBuildInfo(hm.config.GetConfig().Version))
}

func (hm *Manager) handleHealth(ctx *fasthttp.RequestCtx) {
	if !hm.IsRunning() {
		utils.WriteMessage(ctx, fasthttp.StatusServiceUnavailable, "error", types.ErrHealthIsNotRunning.Error())
		return
	}

	report := hm.Check(context.Background())

	status := fasthttp.StatusOK
	if report.Status == types.StatusUnhealthy {
		status = fasthttp.StatusServiceUnavailable
	}

	utils.WriteJSON(ctx, status, report)
}

func (hm *Manager) executeCheck(ctx context.Context, name string, checker types.HealthChecker) types.HealthCheck {
	start := time.Now()
	resultChan := make(chan types.HealthCheck, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				hm.logger.Error("Health check panicked", zap.String("checker", name), zap.Any("panic", r))
				resultChan <- types.HealthCheck{
					Status:  types.StatusUnhealthy,
					Message: fmt.Sprintf("Health check panicked: %v", r),
				}
			}
		}()

		resultChan <- checker(ctx)
	}()

	var result types.HealthCheck
	select {
	case result = <-resultChan:
	case <-ctx.Done():
		result = types.HealthCheck{
			Status:  types.StatusUnhealthy,
			Message: "Health check timeout",
		}
	}

	result.Name = name
	result.LastCheck = time.Now()
	result.Duration = time.Since(start)

	return result
}

func (hm *Manager) buildReport(results map[string]types.HealthCheck) types.HealthReport {
	config := hm.config.GetConfig()

	summary := types.HealthSummary{
		Total: len(results),
	}

	overallStatus := types.StatusHealthy
	for _, result := range results {
		switch result.Status {
		case types.StatusHealthy:
			summary.Healthy++
		case types.StatusWarning:
			summary.Warning++
			if overallStatus == types.StatusHealthy {
				overallStatus = types.StatusWarning
			}
		case types.StatusUnhealthy:
			summary.Unhealthy++
			overallStatus = types.StatusUnhealthy
		default:
			summary.Unknown++
			if overallStatus == types.StatusHealthy {
				overallStatus = types.StatusUnknown
			}
		}
	}

	return types.HealthReport{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Uptime:    time.Since(hm.startTime),
		Service: types.ServiceInfo{
			Name:    config.Name,
			Version: config.Version,
		},
		Checks:  results,
		Summary: summary,
	}
}
