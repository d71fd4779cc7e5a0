package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/sai-social/cache"
	"github.com/saiset-co/sai-social/config"
	"github.com/saiset-co/sai-social/cron"
	"github.com/saiset-co/sai-social/database"
	"github.com/saiset-co/sai-social/health"
	"github.com/saiset-co/sai-social/logger"
	"github.com/saiset-co/sai-social/metrics"
	"github.com/saiset-co/sai-social/monitor"
	"github.com/saiset-co/sai-social/server"
	"github.com/saiset-co/sai-social/social"
	"github.com/saiset-co/sai-social/types"
	"github.com/saiset-co/sai-social/utils"
)

const defaultRequestTimeout = 30 * time.Second

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

type Service struct {
	ctx             context.Context
	cancel          context.CancelFunc
	done            chan struct{}
	wg              sync.WaitGroup
	state           atomic.Value
	shutdownTimeout time.Duration
	startTimeout    time.Duration
	requestTimeout  time.Duration

	config    types.ConfigManager
	logger    types.LoggerManager
	metrics   types.MetricsManager
	db        *database.CloverStore
	store     *cache.Store
	cron      *cron.Manager
	monitor   *monitor.Monitor
	health    *health.Manager
	profiles  *social.Profiles
	feed      *social.Feed
	router    *server.Router
	server    *server.FastHTTPServer
	validator *validator.Validate
}

func NewService(ctx context.Context, configPath string) (*Service, error) {
	if configPath == "" {
		return nil, types.ErrConfigInvalidPath
	}

	if _, err := os.Stat(configPath); err != nil {
		return nil, types.WrapError(err, "file does not exist")
	}

	configManager, err := config.NewConfigurationManager(ctx, configPath)
	if err != nil {
		return nil, types.WrapError(err, "failed to register config manager")
	}

	return NewServiceWithConfig(ctx, configManager)
}

// NewServiceWithConfig wires every component from an already loaded
// configuration.
func NewServiceWithConfig(ctx context.Context, configManager types.ConfigManager) (*Service, error) {
	serviceCtx, cancel := context.WithCancel(ctx)

	s := &Service{
		ctx:             serviceCtx,
		cancel:          cancel,
		done:            make(chan struct{}),
		shutdownTimeout: 30 * time.Second,
		startTimeout:    60 * time.Second,
		requestTimeout:  defaultRequestTimeout,
		config:          configManager,
		validator:       validator.New(validator.WithRequiredStructEnabled()),
	}

	if httpConfig := configManager.GetConfig().Server.HTTP; httpConfig != nil && httpConfig.WriteTimeout > 0 {
		s.requestTimeout = time.Duration(httpConfig.WriteTimeout) * time.Second
	}

	s.state.Store(StateStopped)

	if err := s.registerProviders(); err != nil {
		cancel()
		return nil, types.WrapError(err, "failed to register providers")
	}

	return s, nil
}

func (s *Service) registerProviders() error {
	_config := s.config.GetConfig()
	clock := utils.SystemClock{}

	loggerManager, err := logger.NewManager(s.ctx, s.config)
	if err != nil {
		return types.WrapError(err, "failed to register logger")
	}
	s.logger = loggerManager

	s.metrics = metrics.NewManager(s.config, loggerManager)

	s.db, err = database.NewCloverStore(_config.Database, loggerManager)
	if err != nil {
		return types.WrapError(err, "failed to register database")
	}

	s.store = cache.NewStore(s.ctx, _config.Cache, loggerManager, s.metrics, clock)

	s.cron, err = cron.NewManager(_config.Cron, loggerManager, s.metrics)
	if err != nil {
		return types.WrapError(err, "failed to register cron manager")
	}

	s.monitor = monitor.New(_config.Monitor, s.store, s.cron, loggerManager, s.metrics, clock)

	s.profiles = social.NewProfiles(s.db, s.store, loggerManager, clock, s.monitor, _config.PublicBaseURL)
	s.feed = social.NewFeed(s.db, s.store, s.profiles, loggerManager, clock, s.monitor, _config.PublicBaseURL)

	s.health = health.NewManager(s.config, loggerManager)
	s.health.RegisterChecker("cache", s.cacheHealthCheck)
	s.health.RegisterChecker("database", s.databaseHealthCheck)

	s.router = server.NewRouter(
		server.NewRecoveryMiddleware(loggerManager, s.metrics, true),
		server.NewLoggingMiddleware(loggerManager, s.metrics),
	)
	if cors := _config.Server.CORS; cors != nil && cors.Enabled {
		s.router.Use(server.NewCORSMiddleware(cors, loggerManager))
	}
	s.registerRoutes()

	s.server = server.NewHTTPServer(s.config, loggerManager, s.router)

	return nil
}

func (s *Service) registerRoutes() {
	_config := s.config.GetConfig()

	if _config.Health.Enabled {
		s.health.RegisterRoutes(s.router)
	}

	if _config.Metrics.Enabled {
		s.metrics.RegisterRoutes(s.router)
	}

	api := s.router.Group("/api")

	cacheRoutes := api.Group("/cache")
	cacheRoutes.GET("/stats", s.handleCacheStats)
	cacheRoutes.GET("/health", s.handleCacheHealth)
	cacheRoutes.GET("/export", s.handleCacheExport)
	cacheRoutes.POST("/cleanup/{type}", s.handleCacheCleanup)

	posts := api.Group("/posts")
	posts.GET("", s.handleListPosts)
	posts.POST("", s.handleCreatePost)
	posts.DELETE("/{postId}", s.handleDeletePost)
	posts.POST("/{postId}/comments", s.handleAddComment)
	posts.POST("/{postId}/reactions", s.handleReact)
	posts.GET("/{postId}/metadata", s.handlePostMetadata)

	users := api.Group("/users")
	users.POST("", s.handleCreateUser)
	users.GET("/{userId}/profile", s.handleGetProfile)
	users.PUT("/{userId}/profile", s.handleUpdateProfile)
}

// Start blocks until the service context is cancelled by Stop or a signal.
func (s *Service) Start() error {
	if !s.transitionState(StateStopped, StateStarting) {
		s.logger.Warn("Service is already running")
		return types.ErrServiceIsRunning
	}

	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				runErr = fmt.Errorf("service panic: %v", r)
				s.logger.Error("Service run panic", zap.String("stack", string(buf[:n])))
				s.setState(StateStopped)
			}
		}()

		runErr = s.run()
	}()

	return runErr
}

func (s *Service) run() error {
	s.logger.Info("Starting service", zap.String("name", s.config.GetConfig().Name))

	ctx, cancel := context.WithTimeout(s.ctx, s.startTimeout)
	defer cancel()

	if err := s.startComponents(ctx); err != nil {
		s.setState(StateStopped)
		return types.WrapError(err, "failed to start components")
	}

	s.setState(StateRunning)
	s.setupSignalHandling()

	s.wg.Add(1)
	go s.contextMonitor()

	s.logger.Info("Service started successfully")

	<-s.done

	if err := s.stopComponents(); err != nil {
		s.logger.Error("Error during service shutdown", zap.Error(err))
	}

	s.wg.Wait()
	s.setState(StateStopped)

	s.logger.Info("Service stopped gracefully")
	return nil
}

func (s *Service) Stop() error {
	if !s.transitionState(StateRunning, StateStopping) {
		s.logger.Warn("Service is not running")
		return types.ErrServiceIsNotRunning
	}

	s.logger.Info("Stopping service...")
	s.cancel()

	return nil
}

func (s *Service) Done() <-chan struct{} {
	return s.done
}

func (s *Service) IsRunning() bool {
	return s.getState() == StateRunning
}

func (s *Service) getState() State {
	return s.state.Load().(State)
}

func (s *Service) setState(newState State) {
	s.state.Store(newState)
}

func (s *Service) transitionState(from, to State) bool {
	return s.state.CompareAndSwap(from, to)
}

func (s *Service) startComponents(ctx context.Context) error {
	_config := s.config.GetConfig()

	for name, manager := range map[string]types.LifecycleManager{"config": s.config, "logger": s.logger} {
		if manager.IsRunning() {
			continue
		}
		if err := manager.Start(); err != nil {
			return types.WrapError(err, "failed to start "+name)
		}
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return startComponent(gCtx, "database", s.db)
	})

	g.Go(func() error {
		return startComponent(gCtx, "cache store", s.store)
	})

	if _config.Metrics.Enabled {
		g.Go(func() error {
			if err := startComponent(gCtx, "metrics manager", s.metrics); err != nil {
				s.logger.Error("Failed to start metrics manager", zap.Error(err))
			}
			return nil
		})
	}

	if _config.Health.Enabled {
		g.Go(func() error {
			if err := startComponent(gCtx, "health manager", s.health); err != nil {
				s.logger.Error("Failed to start health manager", zap.Error(err))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		select {
		case <-ctx.Done():
			return types.NewErrorf("component startup timeout: %v", ctx.Err())
		default:
			return err
		}
	}

	if err := s.cron.Start(); err != nil {
		return types.WrapError(err, "failed to start cron manager")
	}

	if _config.Monitor.Enabled {
		if err := s.monitor.Start(); err != nil {
			s.logger.Error("Failed to start cache monitor", zap.Error(err))
		}
	}

	if err := s.server.Start(); err != nil {
		return types.WrapError(err, "failed to start HTTP server")
	}

	s.logger.Info("All components started successfully")
	return nil
}

func startComponent(ctx context.Context, name string, manager types.LifecycleManager) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		if err := manager.Start(); err != nil {
			return types.WrapError(err, "failed to start "+name)
		}
		return nil
	}
}

func (s *Service) stopComponents() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	var errs []error

	s.logger.Info("Stopping service components...")

	if s.server.IsRunning() {
		if err := s.server.Stop(); err != nil {
			s.logger.Error("Failed to stop HTTP server", zap.Error(err))
			errs = append(errs, err)
		}
	}

	if s.monitor.IsRunning() {
		if err := s.monitor.Stop(); err != nil {
			s.logger.Error("Failed to stop cache monitor", zap.Error(err))
			errs = append(errs, err)
		}
	}

	g, gCtx := errgroup.WithContext(ctx)

	for name, manager := range map[string]types.LifecycleManager{
		"cron manager":    s.cron,
		"cache store":     s.store,
		"health manager":  s.health,
		"metrics manager": s.metrics,
	} {
		name, manager := name, manager
		if !manager.IsRunning() {
			continue
		}

		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
				if err := manager.Stop(); err != nil {
					s.logger.Error("Failed to stop "+name, zap.Error(err))
					return err
				}
				return nil
			}
		})
	}

	if err := g.Wait(); err != nil {
		select {
		case <-ctx.Done():
			s.logger.Warn("Component shutdown timeout, some components may not have stopped gracefully")
		default:
			errs = append(errs, err)
		}
	}

	if s.db.IsRunning() {
		if err := s.db.Stop(); err != nil {
			s.logger.Error("Failed to stop database", zap.Error(err))
			errs = append(errs, err)
		}
	}

	s.logger.Info("All components stopped")

	for _, manager := range []types.LifecycleManager{s.logger, s.config} {
		if manager.IsRunning() {
			if err := manager.Stop(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		return types.NewErrorf("errors during shutdown: %v", errs)
	}

	return nil
}

func (s *Service) setupSignalHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			s.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
			if s.transitionState(StateRunning, StateStopping) {
				s.cancel()
			}
		case <-s.ctx.Done():
			s.logger.Info("Service context cancelled")
		}
	}()
}

func (s *Service) contextMonitor() {
	defer s.wg.Done()
	defer close(s.done)

	<-s.ctx.Done()

	switch err := s.ctx.Err(); {
	case types.IsError(err, context.Canceled):
		s.logger.Info("Service shutdown: context cancelled")
	case types.IsError(err, context.DeadlineExceeded):
		s.logger.Warn("Service shutdown: context deadline exceeded")
	default:
		s.logger.Info("Service shutdown: context done")
	}
}

func (s *Service) cacheHealthCheck(_ context.Context) types.HealthCheck {
	report := s.monitor.Health()

	status := types.StatusWarning
	if report.Status == string(types.StatusHealthy) {
		status = types.StatusHealthy
	}

	return types.HealthCheck{
		Status:  status,
		Message: "hit rate " + report.HitRate,
		Details: map[string]interface{}{
			"totalKeys": report.TotalKeys,
			"uptime":    report.UptimeMinutes,
		},
	}
}

func (s *Service) databaseHealthCheck(_ context.Context) types.HealthCheck {
	if !s.db.IsRunning() {
		return types.HealthCheck{Status: types.StatusUnhealthy, Message: types.ErrDatabaseIsNotOpen.Error()}
	}
	return types.HealthCheck{Status: types.StatusHealthy}
}
