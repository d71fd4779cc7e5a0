package types

import (
	"errors"
	"fmt"
)

var (
	ErrConfigNotFound       = errors.New("config not found")
	ErrConfigInvalidPath    = errors.New("config invalid path")
	ErrConfigParseFailed    = errors.New("config parse failed")
	ErrConfigIsNil          = errors.New("config is nil")
	ErrConfigLoadFailed     = errors.New("config load failed")
	ErrConfigValidateFailed = errors.New("config validate failed")
)

var (
	ErrServerNotRunning     = errors.New("server not running")
	ErrServerAlreadyRunning = errors.New("server already running")
	ErrServerStartFailed    = errors.New("server start failed")
	ErrHandlerIsNil         = errors.New("handler is nil")
	ErrPathNotFound         = errors.New("path not found")
)

var (
	ErrCacheIsNotRunning  = errors.New("cache store is not running")
	ErrCleanupTypeUnknown = errors.New("cleanup type unknown")
)

var (
	ErrMonitorIsRunning       = errors.New("cache monitor is running")
	ErrMonitorIsNotRunning    = errors.New("cache monitor is not running")
	ErrMonitorIsDisabled      = errors.New("cache monitor is disabled")
	ErrMonitorIntervalEmpty   = errors.New("cache monitor interval is empty")
	ErrMonitorOperationFailed = errors.New("cache monitor operation failed")
)

var (
	ErrCronJobNotFound       = errors.New("cron job not found")
	ErrCronIsRunning         = errors.New("cron is running")
	ErrCronSchedulerStopped  = errors.New("cron scheduler stopped")
	ErrCronJobExists         = errors.New("cron job exists")
	ErrCronExpressionInvalid = errors.New("cron expression invalid")
	ErrCronJobFailed         = errors.New("cron job failed")
	ErrCronJobNameIsEmpty    = errors.New("cron job name is empty")
	ErrCronJobIsNil          = errors.New("cron job is nil")
	ErrCronJobTimeout        = errors.New("cron job timeout")
)

var (
	ErrMetricsStartFailed = errors.New("metrics start failed")
	ErrMetricsIsDisabled  = errors.New("metrics manager is disabled")
)

var (
	ErrHealthIsNotRunning = errors.New("health manager is not running")
)

var (
	ErrDatabaseIsNotOpen = errors.New("database is not open")
	ErrDocumentNotFound  = errors.New("document not found")
)

var (
	ErrLogFileIsEmpty      = errors.New("log file is empty")
	ErrLogFileWrongFormat  = errors.New("log file wrong format")
	ErrLoggerTypeUnknown   = errors.New("logger type unknown")
	ErrLoggerConfigInvalid = errors.New("logger config invalid")
)

var (
	ErrServiceIsRunning    = errors.New("service is running")
	ErrServiceIsNotRunning = errors.New("service is not running")
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInternalError    = errors.New("internal error")
)

func Errorf(baseErr error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", baseErr, fmt.Sprintf(format, args...))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func NewErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func IsError(err, target error) bool {
	return errors.Is(err, target)
}
