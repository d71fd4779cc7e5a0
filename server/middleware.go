package server

import (
	"runtime"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-social/types"
	"github.com/saiset-co/sai-social/utils"
)

const stackBufSize = 4096

type RecoveryMiddleware struct {
	logger     types.Logger
	metrics    types.MetricsManager
	stackTrace bool
}

func NewRecoveryMiddleware(logger types.Logger, metrics types.MetricsManager, stackTrace bool) *RecoveryMiddleware {
	return &RecoveryMiddleware{
		logger:     logger,
		metrics:    metrics,
		stackTrace: stackTrace,
	}
}

func (r *RecoveryMiddleware) Name() string { return "recovery" }

func (r *RecoveryMiddleware) Handle(ctx *fasthttp.RequestCtx, next types.FastHTTPHandler) {
	defer func() {
		if rec := recover(); rec != nil {
			fields := []zap.Field{
				zap.Any("panic", rec),
				zap.ByteString("method", ctx.Method()),
				zap.ByteString("path", ctx.Path()),
			}

			if r.stackTrace {
				buf := make([]byte, stackBufSize)
				n := runtime.Stack(buf, false)
				fields = append(fields, zap.String("stack", utils.BytesToString(buf[:n])))
			}

			if requestID := ctx.Request.Header.Peek("X-Request-ID"); len(requestID) > 0 {
				fields = append(fields, zap.ByteString("request_id", requestID))
			}

			r.logger.Error("Recovered from panic", fields...)

			if r.metrics != nil {
				r.metrics.Counter("http_panics_total", nil).Inc()
			}

			utils.CreateErrorResponse(ctx)
		}
	}()

	next(ctx)
}

type LoggingMiddleware struct {
	logger  types.Logger
	metrics types.MetricsManager
}

func NewLoggingMiddleware(logger types.Logger, metrics types.MetricsManager) *LoggingMiddleware {
	return &LoggingMiddleware{
		logger:  logger,
		metrics: metrics,
	}
}

func (l *LoggingMiddleware) Name() string { return "logging" }

func (l *LoggingMiddleware) Handle(ctx *fasthttp.RequestCtx, next types.FastHTTPHandler) {
	start := time.Now()

	next(ctx)

	status := ctx.Response.StatusCode()
	method := string(ctx.Method())

	fields := []zap.Field{
		zap.String("method", method),
		zap.String("path", string(ctx.Path())),
		zap.Int("status", status),
		zap.Duration("duration", time.Since(start)),
	}

	if userID := ctx.Request.Header.Peek("X-User-ID"); len(userID) > 0 {
		fields = append(fields, zap.ByteString("user_id", userID))
	}

	switch {
	case status >= 500:
		l.logger.Error("Request completed", fields...)
	case status >= 400:
		l.logger.Warn("Request completed", fields...)
	default:
		l.logger.Debug("Request completed", fields...)
	}

	if l.metrics != nil {
		labels := map[string]string{"method": method, "status": strconv.Itoa(status)}
		l.metrics.Counter("http_requests_total", labels).Inc()
		l.metrics.Histogram("http_request_duration_seconds", nil, map[string]string{"method": method}).ObserveDuration(start)
	}
}
