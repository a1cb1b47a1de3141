package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/propchain/marketplace-client/pkg/config"
)

var errDeveloperInduced = errors.New("in memory config: developer induced error")

// Config is an in memory config used for testing
type Config struct {
	stateMu  sync.RWMutex
	value    interface{}
	err      error
	shutdown bool
}

// NewConfig returns a new in memory config. Use an initial nil value to
// indicate no value is set
func NewConfig(value interface{}) *Config {
	return &Config{
		value: value,
		err:   nil,
	}
}

// Get implements Config.Get
func (c *Config) Get(_ context.Context) (interface{}, error) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	if c.shutdown {
		return nil, config.ErrShutdown
	}

	if c.err != nil {
		return nil, c.err
	}
	if c.value == nil {
		return nil, config.ErrNoValue
	}
	return c.value, nil
}

// Shutdown implements Config.Shutdown
func (c *Config) Shutdown() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	c.shutdown = true
}

// SetValue updates the config value. A nil value indicates no value is set
func (c *Config) SetValue(value interface{}) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	c.value = value
	c.err = nil
}

// InduceErrors causes the config to start returning errors
func (c *Config) InduceErrors() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	c.err = errDeveloperInduced
}
