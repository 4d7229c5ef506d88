package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"orderbridge/internal/constants"
	apperrors "orderbridge/internal/errors"
	"orderbridge/internal/models"
	"orderbridge/internal/security"
	"orderbridge/internal/validation"

	"github.com/joho/godotenv"
)

var (
	ErrMissingDBPath        = models.ConfigError{Message: "missing database path"}
	ErrMissingPublicBaseURL = models.ConfigError{Message: "missing public base URL (set PUBLIC_BASE_URL)"}
	ErrMissingPhoneNumberID = models.ConfigError{Message: "missing WhatsApp phone number ID (set WHATSAPP_PHONE_NUMBER_ID)"}
)

// EnvFileName is loaded from the config file's directory before env overrides
// are applied. Variables already set in the environment win.
const EnvFileName = ".env"

// LoadConfig reads the JSON config at path, applies defaults and environment
// overrides, then validates the result. An empty path builds the config from
// defaults and the environment alone.
func LoadConfig(path string) (*models.Config, error) {
	var config models.Config

	envDir := "."
	if path != "" {
		// Validate config file path to prevent directory traversal
		if err := security.ValidateFilePath(path); err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}

		file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal(file, &config); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		envDir = filepath.Dir(path)
	}

	if err := loadEnvFile(filepath.Join(envDir, EnvFileName)); err != nil {
		return nil, err
	}

	applyDefaults(&config)
	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	if err := validateSecurity(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func loadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func applyDefaults(c *models.Config) {
	if c.Server.Port == "" {
		c.Server.Port = strconv.Itoa(constants.DefaultServerPort)
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}

	if c.WhatsApp.GraphURL == "" {
		c.WhatsApp.GraphURL = constants.DefaultWhatsAppGraphURL
	}
	if c.WhatsApp.APIVersion == "" {
		c.WhatsApp.APIVersion = constants.DefaultWhatsAppAPIVersion
	}
	if c.WhatsApp.TimeoutMs <= 0 {
		c.WhatsApp.TimeoutMs = constants.DefaultWhatsAppTimeoutMs
	}
	if c.WhatsApp.SendBreakerFailures <= 0 {
		c.WhatsApp.SendBreakerFailures = constants.DefaultSendBreakerFailures
	}
	if c.WhatsApp.SendBreakerResetSec <= 0 {
		c.WhatsApp.SendBreakerResetSec = constants.DefaultSendBreakerResetSec
	}

	if c.Media.Dir == "" {
		c.Media.Dir = constants.DefaultMediaDir
	}
	if len(c.Media.AllowedHosts) == 0 {
		c.Media.AllowedHosts = append([]string(nil), constants.DefaultAllowedMediaHosts...)
	}
	if c.Media.FetchTimeoutMs <= 0 {
		c.Media.FetchTimeoutMs = constants.DefaultMediaFetchTimeoutMs
	}
	if c.Media.MaxUploadSizeMB <= 0 {
		c.Media.MaxUploadSizeMB = constants.DefaultMaxUploadSizeMB
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultDatabaseRetryAttempts
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = constants.DefaultTracingServiceName
	}
	if c.Tracing.SampleRate <= 0 {
		c.Tracing.SampleRate = constants.DefaultTracingSampleRate
	}

	if c.Events.Exchange == "" {
		c.Events.Exchange = constants.DefaultEventsExchange
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func applyEnvironmentOverrides(c *models.Config) {
	// SECURITY: the access token and encryption secret should only come from the environment
	if token := os.Getenv("WHATSAPP_ACCESS_TOKEN"); token != "" {
		c.WhatsApp.AccessToken = token
	}
	if id := os.Getenv("WHATSAPP_PHONE_NUMBER_ID"); id != "" {
		c.WhatsApp.PhoneNumberID = id
	}
	if secret := os.Getenv("ORDERBRIDGE_ENCRYPTION_SECRET"); secret != "" {
		c.Database.EncryptionSecret = secret
	}

	if base := os.Getenv("PUBLIC_BASE_URL"); base != "" {
		c.Server.PublicBaseURL = base
	}
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Port = port
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if dir := os.Getenv("MEDIA_DIR"); dir != "" {
		c.Media.Dir = dir
	}
	if amqpURL := os.Getenv("AMQP_URL"); amqpURL != "" {
		c.Events.AMQPURL = amqpURL
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}

func validate(c *models.Config) error {
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.WhatsApp.PhoneNumberID == "" {
		return ErrMissingPhoneNumberID
	}
	if c.Server.PublicBaseURL == "" {
		return ErrMissingPublicBaseURL
	}

	base, err := url.Parse(c.Server.PublicBaseURL)
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return models.ConfigError{Message: fmt.Sprintf("public base URL must be an absolute http(s) URL, got %q", c.Server.PublicBaseURL)}
	}
	if base.RawQuery != "" || base.Fragment != "" {
		return models.ConfigError{Message: "public base URL must not carry a query or fragment"}
	}

	port, err := strconv.Atoi(c.Server.Port)
	if err != nil {
		return models.ConfigError{Message: fmt.Sprintf("invalid server port %q", c.Server.Port)}
	}
	if err := validation.ValidateNumericRange(port, "server.port", 1, 65535); err != nil {
		return models.ConfigError{Message: apperrors.GetUserMessage(err)}
	}

	if c.Retry.MaxBackoffMs < c.Retry.InitialBackoffMs {
		return models.ConfigError{Message: "retry max_backoff_ms must not be smaller than initial_backoff_ms"}
	}
	if c.Tracing.SampleRate > 1 {
		return models.ConfigError{Message: "tracing sample_rate must be between 0 and 1"}
	}

	return nil
}

// validateSecurity performs security-specific validation
func validateSecurity(c *models.Config) error {
	if c.Database.EncryptPhones && len(c.Database.EncryptionSecret) < constants.MinEncryptionSecret {
		return models.ConfigError{Message: fmt.Sprintf(
			"phone encryption needs ORDERBRIDGE_ENCRYPTION_SECRET of at least %d characters", constants.MinEncryptionSecret)}
	}

	// Check if we're in production mode
	isProduction := os.Getenv("ORDERBRIDGE_ENV") == "production"

	if isProduction {
		if c.WhatsApp.AccessToken == "" {
			return models.ConfigError{Message: "WhatsApp access token is required in production (set WHATSAPP_ACCESS_TOKEN environment variable)"}
		}
		if !c.Database.EncryptPhones {
			return models.ConfigError{Message: "phone encryption must be enabled in production"}
		}
		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
		}
	} else if c.WhatsApp.AccessToken == "" {
		fmt.Fprintf(os.Stderr, "WARNING: WhatsApp access token not set. Set WHATSAPP_ACCESS_TOKEN environment variable to reach the Cloud API.\n")
	}

	return nil
}
