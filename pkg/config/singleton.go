package config

import (
	"sync"
)

var (
	globalConfig *Config
	configMutex  sync.RWMutex
	initOnce     sync.Once
)

// Initialize loads the process configuration once. An empty path loads the
// defaults with environment overrides. Later calls are no-ops and return nil.
func Initialize(path string) error {
	var initErr error

	initOnce.Do(func() {
		var cfg *Config
		if path == "" {
			cfg, initErr = LoadDefaults()
		} else {
			cfg, initErr = LoadConfigWithEnvOverrides(path)
		}
		if initErr != nil {
			return
		}

		configMutex.Lock()
		globalConfig = cfg
		configMutex.Unlock()
	})

	return initErr
}

// GetConfig returns the configuration stored by Initialize, or nil.
func GetConfig() *Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}
