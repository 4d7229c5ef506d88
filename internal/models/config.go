package models

// Config holds the application configuration
type Config struct {
	Server   ServerConfig    `json:"server"`
	WhatsApp WhatsAppConfig  `json:"whatsapp"`
	Database DatabaseConfig  `json:"database"`
	Media    MediaConfig     `json:"media"`
	Retry    RetryConfig     `json:"retry"`
	Tracing  TracingConfig   `json:"tracing"`
	Events   EventsConfig    `json:"events"`
	Features map[string]bool `json:"features"`
	LogLevel string          `json:"log_level"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string `json:"port"`
	// PublicBaseURL is prefixed to stored media paths to build permanent URLs
	PublicBaseURL   string `json:"public_base_url"`
	ReadTimeoutSec  int    `json:"read_timeout_sec"`
	WriteTimeoutSec int    `json:"write_timeout_sec"`
	IdleTimeoutSec  int    `json:"idle_timeout_sec"`
	// TrustedProxies lists proxy addresses or CIDRs whose forwarding headers are believed
	TrustedProxies []string `json:"trusted_proxies"`
	// AllowedOrigins are websocket origin patterns besides the request host
	AllowedOrigins []string `json:"allowed_origins"`
}

// WhatsAppConfig holds WhatsApp Cloud API settings
type WhatsAppConfig struct {
	GraphURL      string `json:"graph_url"`
	APIVersion    string `json:"api_version"`
	PhoneNumberID string `json:"phone_number_id"`
	// AccessToken is normally supplied through WHATSAPP_ACCESS_TOKEN
	AccessToken         string `json:"access_token"`
	TimeoutMs           int    `json:"timeout_ms"`
	SendBreakerFailures int    `json:"send_breaker_failures"`
	SendBreakerResetSec int    `json:"send_breaker_reset_sec"`
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path string `json:"path"`
	// EncryptPhones enables AES-GCM encryption of phone numbers at rest.
	// The secret is read from ORDERBRIDGE_ENCRYPTION_SECRET.
	EncryptPhones    bool   `json:"encrypt_phones"`
	EncryptionSecret string `json:"-"`
}

// MediaConfig holds media pipeline settings
type MediaConfig struct {
	Dir             string   `json:"dir"`
	AllowedHosts    []string `json:"allowed_hosts"`
	FetchTimeoutMs  int      `json:"fetch_timeout_ms"`
	MaxUploadSizeMB int      `json:"max_upload_size_mb"`
	// UploadLimitsMB caps uploads per media category. Zero entries fall
	// back to MaxUploadSizeMB.
	UploadLimitsMB MediaSizeLimits `json:"upload_limits_mb"`
}

// MediaSizeLimits holds per-category size limits in megabytes
type MediaSizeLimits struct {
	Image    int `json:"image"`
	Video    int `json:"video"`
	Audio    int `json:"audio"`
	Document int `json:"document"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initial_backoff_ms"`
	MaxBackoffMs     int `json:"max_backoff_ms"`
	MaxAttempts      int `json:"max_attempts"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	UseStdout      bool    `json:"use_stdout"`
}

// EventsConfig holds the optional AMQP event publisher settings.
// Publishing is disabled when AMQPURL is empty.
type EventsConfig struct {
	AMQPURL  string `json:"amqp_url"`
	Exchange string `json:"exchange"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
