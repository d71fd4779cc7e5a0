package cron

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-social/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

const defaultShutdownTimeout = 10 * time.Second

// Manager schedules named jobs on a robfig/cron scheduler. Every job runs
// behind a recover guard and reports run statistics.
type Manager struct {
	logger          types.Logger
	metrics         types.MetricsManager
	cron            *cron.Cron
	jobs            map[string]*types.JobEntry
	state           atomic.Value
	mu              sync.RWMutex
	shutdownTimeout time.Duration
	jobTimeout      time.Duration
}

func NewManager(config *types.CronConfig, logger types.Logger, metrics types.MetricsManager) (*Manager, error) {
	timezone, err := time.LoadLocation(config.Timezone)
	if err != nil {
		logger.Warn("Unknown cron timezone, falling back to UTC", zap.String("timezone", config.Timezone))
		timezone = time.UTC
	}

	manager := &Manager{
		logger:  logger,
		metrics: metrics,
		cron: cron.New(
			cron.WithLocation(timezone),
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cronLogger{logger: logger})),
		),
		jobs:            make(map[string]*types.JobEntry),
		shutdownTimeout: defaultShutdownTimeout,
		jobTimeout:      config.JobTimeout,
	}

	manager.state.Store(StateStopped)

	return manager, nil
}

func (m *Manager) Add(jobName, spec string, job func()) error {
	if jobName == "" {
		return types.ErrCronJobNameIsEmpty
	}

	if spec == "" {
		return types.ErrCronExpressionInvalid
	}

	if job == nil {
		return types.ErrCronJobIsNil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[jobName]; exists {
		return types.Errorf(types.ErrCronJobExists, "job: %s", jobName)
	}

	entryID, err := m.cron.AddFunc(spec, m.wrapJob(jobName, job))
	if err != nil {
		return types.Errorf(types.ErrCronExpressionInvalid, "spec %q: %v", spec, err)
	}

	entry := &types.JobEntry{
		ID:      entryID,
		Name:    jobName,
		Spec:    spec,
		Job:     job,
		AddedAt: time.Now(),
	}

	if cronEntry := m.cron.Entry(entryID); cronEntry.ID != 0 {
		entry.NextRun = cronEntry.Next
	}

	m.jobs[jobName] = entry

	m.logger.Info("Cron job added",
		zap.String("job_name", jobName),
		zap.String("spec", spec))

	return nil
}

// Remove unschedules a job. A run already in flight is allowed to finish.
func (m *Manager) Remove(jobName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.jobs[jobName]
	if !exists {
		return types.Errorf(types.ErrCronJobNotFound, "job: %s", jobName)
	}

	m.cron.Remove(entry.ID)
	delete(m.jobs, jobName)

	m.logger.Info("Cron job removed", zap.String("job_name", jobName))

	return nil
}

func (m *Manager) Jobs() []types.JobEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]types.JobEntry, 0, len(m.jobs))
	for _, entry := range m.jobs {
		jobs = append(jobs, *entry)
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })

	return jobs
}

func (m *Manager) Start() error {
	if !m.transitionState(StateStopped, StateStarting) {
		return types.ErrCronIsRunning
	}

	m.cron.Start()
	m.state.Store(StateRunning)
	m.setSchedulerStatus(1)

	m.logger.Info("Cron manager started")
	return nil
}

func (m *Manager) Stop() error {
	if !m.transitionState(StateRunning, StateStopping) {
		return types.ErrCronSchedulerStopped
	}

	defer m.state.Store(StateStopped)

	stopCtx := m.cron.Stop()
	m.setSchedulerStatus(0)

	select {
	case <-stopCtx.Done():
		m.logger.Info("Cron scheduler stopped gracefully")
		return nil
	case <-time.After(m.shutdownTimeout):
		m.logger.Warn("Cron manager stop timeout, running jobs were abandoned")
		return types.ErrCronJobTimeout
	}
}

func (m *Manager) IsRunning() bool {
	return m.state.Load().(State) == StateRunning
}

func (m *Manager) transitionState(from, to State) bool {
	return m.state.CompareAndSwap(from, to)
}

func (m *Manager) wrapJob(jobName string, job func()) func() {
	return func() {
		startTime := time.Now()
		m.logger.Debug("Cron job started", zap.String("job_name", jobName))

		m.incActiveJobsGauge(1)
		defer m.incActiveJobsGauge(-1)

		err := m.run(jobName, job)
		duration := time.Since(startTime)

		result := "success"
		if err != nil {
			result = "error"
		}

		m.incJobExecutionsCounter(jobName, result)
		m.observeJobDuration(jobName, duration.Seconds())
		m.updateJobStats(jobName, startTime, duration, err)

		if err != nil {
			m.logger.Error("Cron job failed",
				zap.String("job_name", jobName),
				zap.Duration("duration", duration),
				zap.Error(err))
			return
		}

		m.logger.Debug("Cron job completed",
			zap.String("job_name", jobName),
			zap.Duration("duration", duration))
	}
}

// run executes job and converts a panic into an error. With a job timeout
// configured the wait is bounded, though the job goroutine itself is not killed.
func (m *Manager) run(jobName string, job func()) error {
	done := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- types.Errorf(types.ErrCronJobFailed, "job panic: %v", r)
			}
		}()
		job()
		done <- nil
	}()

	if m.jobTimeout <= 0 {
		return <-done
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.jobTimeout)
	defer cancel()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return types.Errorf(types.ErrCronJobTimeout, "job %s: timeout after %v", jobName, m.jobTimeout)
	}
}

func (m *Manager) updateJobStats(jobName string, startTime time.Time, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.jobs[jobName]
	if !exists {
		return
	}

	entry.LastRun = startTime
	entry.LastDuration = duration
	entry.TotalDuration += duration
	entry.RunCount++
	entry.AvgDuration = entry.TotalDuration / time.Duration(entry.RunCount)
	entry.Error = err

	if cronEntry := m.cron.Entry(entry.ID); cronEntry.ID != 0 {
		entry.NextRun = cronEntry.Next
	}
}

func (m *Manager) incJobExecutionsCounter(jobName, result string) {
	if m.metrics == nil {
		return
	}

	m.metrics.Counter("cron_job_executions_total", map[string]string{
		"job_name": jobName,
		"result":   result,
	}).Inc()
}

func (m *Manager) observeJobDuration(jobName string, seconds float64) {
	if m.metrics == nil {
		return
	}

	m.metrics.Histogram("cron_job_duration_seconds",
		[]float64{0.001, 0.01, 0.1, 1.0, 10.0},
		map[string]string{"job_name": jobName},
	).Observe(seconds)
}

func (m *Manager) incActiveJobsGauge(delta int) {
	if m.metrics == nil {
		return
	}

	if delta > 0 {
		m.metrics.Gauge("cron_active_jobs", nil).Inc()
	} else {
		m.metrics.Gauge("cron_active_jobs", nil).Dec()
	}
}

func (m *Manager) setSchedulerStatus(value float64) {
	if m.metrics == nil {
		return
	}
	m.metrics.Gauge("cron_scheduler_running", nil).Set(value)
}

// cronLogger adapts types.Logger to cron.Logger.
type cronLogger struct {
	logger types.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, toFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(toFields(keysAndValues), zap.Error(err))...)
}

func toFields(keysAndValues []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		fields = append(fields, zap.Any(fmt.Sprintf("%v", keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}
