package config

import (
	"context"
	"crypto/sha256"
	"os"
	"reflect"
	"sync"
	"time"

	"orderbridge/internal/models"

	"github.com/sirupsen/logrus"
)

// DefaultWatchInterval is how often the config file is polled
const DefaultWatchInterval = 5 * time.Second

// ConfigWatcher reloads the config file when its content changes and hands
// the new config to registered callbacks. Only the log level and feature
// flags are applied live; everything else needs a restart.
type ConfigWatcher struct {
	configPath string
	interval   time.Duration
	logger     *logrus.Logger

	mu        sync.RWMutex
	config    *models.Config
	digest    [sha256.Size]byte
	callbacks []func(*models.Config)
}

func NewConfigWatcher(configPath string, initial *models.Config, interval time.Duration, logger *logrus.Logger) *ConfigWatcher {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	return &ConfigWatcher{
		configPath: configPath,
		interval:   interval,
		logger:     logger,
		config:     initial,
	}
}

// Start polls until ctx is done. It fails only when the file cannot be read
// at startup.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	digest, err := fileDigest(cw.configPath)
	if err != nil {
		return err
	}
	cw.mu.Lock()
	cw.digest = digest
	cw.mu.Unlock()

	cw.logger.WithFields(logrus.Fields{
		"path":     cw.configPath,
		"interval": cw.interval.String(),
	}).Info("Configuration watcher started")

	ticker := time.NewTicker(cw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cw.logger.Info("Configuration watcher stopping")
			return nil
		case <-ticker.C:
			cw.poll()
		}
	}
}

func (cw *ConfigWatcher) poll() {
	digest, err := fileDigest(cw.configPath)
	if err != nil {
		cw.logger.WithError(err).Warn("Failed to read configuration file")
		return
	}

	cw.mu.RLock()
	unchanged := digest == cw.digest
	cw.mu.RUnlock()
	if unchanged {
		return
	}

	if cw.reloadConfig() {
		cw.mu.Lock()
		cw.digest = digest
		cw.mu.Unlock()
	}
}

func fileDigest(path string) ([sha256.Size]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	return sha256.Sum256(data), nil
}

func (cw *ConfigWatcher) GetConfig() *models.Config {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	return cw.config
}

// OnConfigChange registers fn to run after every successful reload
func (cw *ConfigWatcher) OnConfigChange(fn func(*models.Config)) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, fn)
}

// reloadConfig swaps in the file's current config. An invalid file keeps the
// previous config and reports false.
func (cw *ConfigWatcher) reloadConfig() bool {
	next, err := LoadConfig(cw.configPath)
	if err != nil {
		cw.logger.WithError(err).Error("Failed to reload configuration, keeping the previous one")
		return false
	}

	cw.mu.Lock()
	previous := cw.config
	cw.config = next
	callbacks := append([]func(*models.Config){}, cw.callbacks...)
	cw.mu.Unlock()

	fields := logrus.Fields{"log_level": next.LogLevel}
	if restart := RestartRequired(previous, next); len(restart) > 0 {
		fields["restart_required"] = restart
	}
	cw.logger.WithFields(fields).Info("Configuration reloaded")

	for _, fn := range callbacks {
		cw.notify(fn, next)
	}
	return true
}

func (cw *ConfigWatcher) notify(fn func(*models.Config), cfg *models.Config) {
	defer func() {
		if r := recover(); r != nil {
			cw.logger.WithField("panic", r).Error("Config change callback panicked")
		}
	}()
	fn(cfg)
}

// RestartRequired names the changed sections that are only read at startup
func RestartRequired(previous, next *models.Config) []string {
	if previous == nil || next == nil {
		return nil
	}

	sections := []struct {
		name       string
		prev, next interface{}
	}{
		{"server", previous.Server, next.Server},
		{"whatsapp", previous.WhatsApp, next.WhatsApp},
		{"database", previous.Database, next.Database},
		{"media", previous.Media, next.Media},
		{"retry", previous.Retry, next.Retry},
		{"tracing", previous.Tracing, next.Tracing},
		{"events", previous.Events, next.Events},
	}

	var changed []string
	for _, s := range sections {
		if !reflect.DeepEqual(s.prev, s.next) {
			changed = append(changed, s.name)
		}
	}
	return changed
}

// ApplyLogLevel keeps logger's level in sync with the config. Unknown
// levels are ignored.
func ApplyLogLevel(logger *logrus.Logger) func(*models.Config) {
	return func(c *models.Config) {
		level, err := logrus.ParseLevel(c.LogLevel)
		if err != nil {
			logger.WithField("log_level", c.LogLevel).Warn("Ignoring unknown log level")
			return
		}
		logger.SetLevel(level)
	}
}
