package config

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/saiset-co/sai-social/types"
)

type State int32

const (
	StateStopped State = iota
	StateRunning
)

const defaultLoadTimeout = 30 * time.Second

type ConfigurationManager struct {
	ctx         context.Context
	config      atomic.Pointer[types.ServiceConfig]
	configPath  string
	loader      *Loader
	state       atomic.Value
	loadTimeout time.Duration
}

func NewConfigurationManager(ctx context.Context, configPath string) (*ConfigurationManager, error) {
	cm := newManager(ctx, configPath)

	if err := cm.Load(); err != nil {
		return nil, types.WrapError(err, "failed to load initial configuration")
	}

	return cm, nil
}

// NewStaticManager serves an already built configuration, validated the same
// way a file would be.
func NewStaticManager(config *types.ServiceConfig) (*ConfigurationManager, error) {
	cm := newManager(context.Background(), "")

	if err := cm.loader.Validate(config); err != nil {
		return nil, err
	}

	cm.config.Store(config)
	return cm, nil
}

func newManager(ctx context.Context, configPath string) *ConfigurationManager {
	cm := &ConfigurationManager{
		ctx:         ctx,
		configPath:  configPath,
		loader:      NewLoader(),
		loadTimeout: defaultLoadTimeout,
	}

	cm.state.Store(StateStopped)
	return cm
}

func (cm *ConfigurationManager) Start() error {
	if !cm.state.CompareAndSwap(StateStopped, StateRunning) {
		return types.ErrServerAlreadyRunning
	}
	return nil
}

func (cm *ConfigurationManager) Stop() error {
	if !cm.state.CompareAndSwap(StateRunning, StateStopped) {
		return types.ErrServerNotRunning
	}
	return nil
}

func (cm *ConfigurationManager) IsRunning() bool {
	return cm.state.Load().(State) == StateRunning
}

func (cm *ConfigurationManager) Load() error {
	loadCtx, cancel := context.WithTimeout(cm.ctx, cm.loadTimeout)
	defer cancel()

	config, err := cm.loader.LoadFromFile(loadCtx, cm.configPath)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrConfigLoadFailed, err)
	}

	cm.config.Store(config)
	return nil
}

func (cm *ConfigurationManager) GetConfig() *types.ServiceConfig {
	return cm.config.Load()
}
