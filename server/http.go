package server

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-social/types"
)

var _ types.HTTPServer = (*FastHTTPServer)(nil)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

const defaultShutdownTimeout = 5 * time.Second

type FastHTTPServer struct {
	logger          types.Logger
	router          types.HTTPRouter
	httpConfig      *types.HTTPConfig
	server          *fasthttp.Server
	listener        net.Listener
	state           atomic.Value
	shutdownTimeout time.Duration
	serveDone       chan struct{}
}

func NewHTTPServer(config types.ConfigManager, logger types.Logger, router types.HTTPRouter) *FastHTTPServer {
	httpConfig := config.GetConfig().Server.HTTP

	shutdownTimeout := defaultShutdownTimeout
	if httpConfig.ShutdownTimeout > 0 {
		shutdownTimeout = time.Duration(httpConfig.ShutdownTimeout) * time.Second
	}

	server := &FastHTTPServer{
		logger:          logger,
		router:          router,
		httpConfig:      httpConfig,
		shutdownTimeout: shutdownTimeout,
	}

	server.state.Store(StateStopped)

	return server
}

func (h *FastHTTPServer) Start() error {
	if !h.transitionState(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	addr := fmt.Sprintf("%s:%d", h.httpConfig.Host, h.httpConfig.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		h.setState(StateStopped)
		return types.Errorf(types.ErrServerStartFailed, "listen %s: %v", addr, err)
	}

	h.listener = listener
	h.serveDone = make(chan struct{})
	h.server = &fasthttp.Server{
		Handler:                      h.router.Handler(),
		Name:                         "sai-social",
		ReadTimeout:                  time.Duration(h.httpConfig.ReadTimeout) * time.Second,
		WriteTimeout:                 time.Duration(h.httpConfig.WriteTimeout) * time.Second,
		IdleTimeout:                  time.Duration(h.httpConfig.IdleTimeout) * time.Second,
		MaxRequestBodySize:           h.httpConfig.MaxBodySize,
		TCPKeepalive:                 true,
		DisablePreParseMultipartForm: true,
		CloseOnShutdown:              true,
	}

	go func(server *fasthttp.Server, done chan struct{}) {
		defer close(done)

		if err := server.Serve(listener); err != nil {
			h.logger.Error("HTTP server failed", zap.Error(err))
			h.setState(StateStopped)
		}
	}(h.server, h.serveDone)

	h.setState(StateRunning)

	h.logger.Info("HTTP server started successfully", zap.String("address", listener.Addr().String()))

	return nil
}

func (h *FastHTTPServer) Stop() error {
	if !h.transitionState(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	defer h.setState(StateStopped)

	ctx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()

	if err := h.server.ShutdownWithContext(ctx); err != nil {
		h.logger.Warn("Server stop timeout, some connections may not have closed gracefully", zap.Error(err))
		return nil
	}

	select {
	case <-h.serveDone:
	case <-ctx.Done():
	}

	h.logger.Info("HTTP server stopped gracefully")

	return nil
}

func (h *FastHTTPServer) IsRunning() bool {
	return h.getState() == StateRunning
}

// Addr is the bound listener address, useful when the configured port is 0.
func (h *FastHTTPServer) Addr() string {
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

func (h *FastHTTPServer) getState() State {
	return h.state.Load().(State)
}

func (h *FastHTTPServer) setState(newState State) {
	h.state.Store(newState)
}

func (h *FastHTTPServer) transitionState(from, to State) bool {
	return h.state.CompareAndSwap(from, to)
}
