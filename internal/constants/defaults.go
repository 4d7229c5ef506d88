package constants

// Server defaults
const (
	DefaultServerPort            = 8082
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 120
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
	ServerErrorChannelSize       = 1
	DefaultMaxUploadSizeMB       = 100
	DefaultMultipartMemoryMB     = 8
)

// Media pipeline defaults
const (
	DefaultMediaFetchTimeoutMs = 30000
	DefaultMediaDir            = "uploads/media"
	MediaRoutePrefix           = "/uploads/media/"
	MediaFilenamePrefix        = "media_"
	MediaFilenameRandomBytes   = 4
	ProxyCacheControl          = "public, max-age=3600"
	PermanentCacheControl      = "public, max-age=31536000"
	ProxyMediaSource           = "facebook-proxy"
	MediaUserAgent             = "orderbridge-media-relay/1.0"
)

// WhatsApp Cloud API defaults
const (
	DefaultWhatsAppGraphURL    = "https://graph.facebook.com"
	DefaultWhatsAppAPIVersion  = "v19.0"
	DefaultWhatsAppTimeoutMs   = 15000
	DefaultSendBreakerFailures = 5
	DefaultSendBreakerResetSec = 30
)

// Retry defaults
const (
	DefaultRetryBackoffMs        = 500
	DefaultMaxBackoffMs          = 10000
	DefaultDatabaseRetryAttempts = 3
	DefaultEventsDialAttempts    = 5
)

// Integration defaults
const (
	DefaultEventsExchange          = "orderbridge.events"
	DefaultTracingServiceName      = "orderbridge"
	DefaultTracingSampleRate       = 0.1
	DefaultRealtimeSubscriberQueue = 16
)

// Privacy settings
const (
	DefaultPhoneMaskLength   = 4
	DefaultMediaIDMaskLength = 4
)

// File permission constants
const (
	DefaultFilePermissions      = 0600
	DefaultMediaFilePermissions = 0644
	DefaultDirectoryPermissions = 0750
)

// Encryption parameters for phone numbers at rest
const (
	EncryptionSalt       = "orderbridge-phone-v1"
	EncryptionIterations = 100000
	EncryptionKeySize    = 32
	EncryptionNonceSize  = 12
	MinEncryptionSecret  = 32
)
