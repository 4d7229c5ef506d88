package config

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"orderbridge/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestConfigWatcher_Start_InvalidPath(t *testing.T) {
	watcher := NewConfigWatcher("/nonexistent/config.json", nil, time.Millisecond, quietLogger())

	assert.Error(t, watcher.Start(context.Background()))
}

func TestConfigWatcher_ReloadsOnContentChange(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, t.TempDir(), validConfig)

	initial, err := LoadConfig(path)
	require.NoError(t, err)

	watcher := NewConfigWatcher(path, initial, 10*time.Millisecond, quietLogger())

	var mu sync.Mutex
	var seen []string
	watcher.OnConfigChange(func(c *models.Config) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, c.LogLevel)
	})
	watcher.OnConfigChange(func(*models.Config) { panic("bad callback") })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Start(ctx) }()

	// rewriting identical bytes is not a change
	require.NoError(t, os.WriteFile(path, []byte(validConfig), 0600))
	time.Sleep(50 * time.Millisecond)
	assert.Same(t, initial, watcher.GetConfig())

	updated := strings.Replace(validConfig, `"log_level": "warn"`, `"log_level": "debug"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0600))

	assert.Eventually(t, func() bool {
		return watcher.GetConfig().LogLevel == "debug"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"debug"}, seen)
}

func TestConfigWatcher_KeepsConfigOnInvalidReload(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, t.TempDir(), validConfig)

	initial, err := LoadConfig(path)
	require.NoError(t, err)

	watcher := NewConfigWatcher(path, initial, time.Hour, quietLogger())
	require.NoError(t, os.WriteFile(path, []byte(`{"broken": `), 0600))

	assert.False(t, watcher.reloadConfig())
	assert.Same(t, initial, watcher.GetConfig())
}

func TestRestartRequired(t *testing.T) {
	previous := &models.Config{
		Server:   models.ServerConfig{Port: "8080"},
		Media:    models.MediaConfig{AllowedHosts: []string{"fbcdn.net"}},
		Features: map[string]bool{"direct_upload": true},
		LogLevel: "info",
	}
	next := &models.Config{
		Server:   models.ServerConfig{Port: "8080"},
		Media:    models.MediaConfig{AllowedHosts: []string{"fbcdn.net", "fbsbx.com"}},
		Features: map[string]bool{"direct_upload": false},
		LogLevel: "debug",
	}

	assert.Equal(t, []string{"media"}, RestartRequired(previous, next))
	assert.Empty(t, RestartRequired(previous, previous))
	assert.Nil(t, RestartRequired(nil, next))
}

func TestApplyLogLevel(t *testing.T) {
	logger := quietLogger()
	apply := ApplyLogLevel(logger)

	apply(&models.Config{LogLevel: "debug"})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	apply(&models.Config{LogLevel: "nonsense"})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}
