package logging

import (
	"sync"
)

var (
	instance *Logger
	mu       sync.RWMutex
)

// InitLogger initializes the global logger instance.
// It is safe to call more than once; later calls replace the instance.
func InitLogger(config *LogConfig) error {
	logger, err := NewLogger(config)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	instance = logger
	return nil
}

// GetGlobalLogger returns the global logger instance.
// If InitLogger has not been called, a no-frills stderr logger is created
// so library code can always log.
func GetGlobalLogger() *Logger {
	mu.RLock()
	if instance != nil {
		defer mu.RUnlock()
		return instance
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if instance == nil {
		logger, err := NewLogger(&LogConfig{File: defaultLogFile(), MaxSize: 10, MaxBackups: 1, MaxAge: 7})
		if err != nil {
			panic("failed to initialize fallback logger: " + err.Error())
		}
		instance = logger
	}
	return instance
}
