package common

import "github.com/spf13/viper"

// ===============================================================================
// Server-wide subscription limits
//
// These bound the values a session may request for a Subscription or
// MonitoredItem; CreateSubscription / CreateMonitoredItems clamp requested
// values into these ranges and report the revised value back to the client.

// PublishingIntervalLimits bounds the publishing interval a Subscription may request
type PublishingIntervalLimits struct {
	// MinMillis is the minimum publishing interval, in milliseconds
	MinMillis float64 `mapstructure:"min_millis" json:"min_millis" validate:"gt=0"`
	// MaxMillis is the maximum publishing interval, in milliseconds
	MaxMillis float64 `mapstructure:"max_millis" json:"max_millis" validate:"gtfield=MinMillis"`
}

// SamplingIntervalLimits bounds the sampling interval a MonitoredItem may request
type SamplingIntervalLimits struct {
	// MinMillis is the minimum sampling interval, in milliseconds
	MinMillis float64 `mapstructure:"min_millis" json:"min_millis" validate:"gte=0"`
	// MaxMillis is the maximum sampling interval, in milliseconds
	MaxMillis float64 `mapstructure:"max_millis" json:"max_millis" validate:"gtfield=MinMillis"`
}

// KeepAliveLifetimeDefaults provides server-side defaults used when a
// CreateSubscription request omits or under-specifies these counts
type KeepAliveLifetimeDefaults struct {
	// DefaultMaxKeepAliveCount used when a request specifies zero
	DefaultMaxKeepAliveCount uint32 `mapstructure:"default_max_keep_alive_count" json:"default_max_keep_alive_count" validate:"gte=1"`
	// MinLifetimeToKeepAliveRatio is the minimum lifetimeCount/maxKeepAliveCount
	// ratio (Part 4 mandates 3)
	MinLifetimeToKeepAliveRatio uint32 `mapstructure:"min_lifetime_to_keep_alive_ratio" json:"min_lifetime_to_keep_alive_ratio" validate:"gte=3"`
}

// SubscriptionLimits bounds server-wide subscription and monitored-item parameters
type SubscriptionLimits struct {
	// PublishingInterval bounds the requested publishing interval
	PublishingInterval PublishingIntervalLimits `mapstructure:"publishing_interval" json:"publishing_interval" validate:"required,dive"`
	// SamplingInterval bounds the requested sampling interval
	SamplingInterval SamplingIntervalLimits `mapstructure:"sampling_interval" json:"sampling_interval" validate:"required,dive"`
	// KeepAliveLifetime provides defaults/bounds for keep-alive and lifetime counts
	KeepAliveLifetime KeepAliveLifetimeDefaults `mapstructure:"keep_alive_lifetime" json:"keep_alive_lifetime" validate:"required,dive"`
	// MaxMonitoredItemsPerSubscription caps the number of items one Subscription may hold.
	// Zero means unbounded.
	MaxMonitoredItemsPerSubscription int `mapstructure:"max_monitored_items_per_subscription" json:"max_monitored_items_per_subscription" validate:"gte=0"`
	// MaxSubscriptionsPerSession caps the number of Subscriptions a single
	// SubscriptionManager may hold. Zero means unbounded.
	MaxSubscriptionsPerSession int `mapstructure:"max_subscriptions_per_session" json:"max_subscriptions_per_session" validate:"gte=0"`
	// AvailableMessagesRetentionCap bounds how many retained NotificationMessages
	// a Subscription keeps for Republish before evicting the oldest
	AvailableMessagesRetentionCap int `mapstructure:"available_messages_retention_cap" json:"available_messages_retention_cap" validate:"gte=1"`
}

// ===============================================================================
// Diagnostics API config (ops-facing, read-only reporting surface)

// HTTPServerConfig defines the HTTP server parameters for the diagnostics API
type HTTPServerConfig struct {
	// ListenOn is the interface the HTTP server will listen on
	ListenOn string `mapstructure:"listen_on" json:"listen_on" validate:"required,ip"`
	// Port is the port the HTTP server will listen on
	Port uint16 `mapstructure:"listen_port" json:"listen_port" validate:"required,gt=0,lt=65536"`
	// ReadTimeoutSec is the max duration for reading a request, in seconds.
	// Zero means no timeout.
	ReadTimeoutSec int `mapstructure:"read_timeout_sec" json:"read_timeout_sec" validate:"gte=0"`
	// WriteTimeoutSec is the max duration for writing a response, in seconds.
	// Zero means no timeout.
	WriteTimeoutSec int `mapstructure:"write_timeout_sec" json:"write_timeout_sec" validate:"gte=0"`
}

// HTTPRequestLogging defines HTTP request logging parameters
type HTTPRequestLogging struct {
	// RequestIDHeader is the HTTP header carrying the caller-supplied request ID
	RequestIDHeader string `mapstructure:"request_id_header" json:"request_id_header"`
	// DoNotLogHeaders lists headers to omit from request logging metadata
	DoNotLogHeaders []string `mapstructure:"do_not_log_headers" json:"do_not_log_headers"`
}

// DiagnosticsAPIConfig defines the read-only diagnostics HTTP surface. Only
// Logging is passed to RunDiagnosticsServer; PathPrefix and Server are
// validated but not applied: the server takes its path prefix, listen
// address and port from the serve command's CLI flags and uses fixed
// 60-second read/write timeouts.
type DiagnosticsAPIConfig struct {
	// PathPrefix is the endpoint path prefix for the diagnostics API
	PathPrefix string `mapstructure:"path_prefix" json:"path_prefix" validate:"required"`
	// Server is the HTTP server parameters
	Server HTTPServerConfig `mapstructure:"server_config" json:"server_config" validate:"required,dive"`
	// Logging is the request logging config
	Logging HTTPRequestLogging `mapstructure:"logging_config" json:"logging_config" validate:"required,dive"`
}

// ===============================================================================
// Event bus (process-local NATS broadcast of StatusChangeNotifications)

// EventBusConfig defines optional NATS connectivity for broadcasting
// StatusChangeNotifications to diagnostics subscribers. Connecting is
// entirely optional: the core operates correctly with Enabled=false.
type EventBusConfig struct {
	// Enabled toggles whether the registry publishes to NATS at all
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// ServerURI is the NATS connection URI
	ServerURI string `mapstructure:"server_uri" json:"server_uri" validate:"required_if=Enabled true,omitempty,uri"`
	// ConnectTimeoutSec is the max duration for connecting to the NATS server
	ConnectTimeoutSec int `mapstructure:"connect_timeout_sec" json:"connect_timeout_sec" validate:"gte=1"`
	// Subject is the subject StatusChangeNotifications are published under
	Subject string `mapstructure:"subject" json:"subject" validate:"required_if=Enabled true"`
}

// ===============================================================================
// Complete config

// SystemConfig defines the complete config for a subscription-core process
type SystemConfig struct {
	// Limits are the server-wide subscription/monitored-item limits
	Limits SubscriptionLimits `mapstructure:"limits" json:"limits" validate:"required,dive"`
	// Diagnostics is the read-only diagnostics API server config
	Diagnostics *DiagnosticsAPIConfig `mapstructure:"diagnostics,omitempty" json:"diagnostics,omitempty" validate:"omitempty,dive"`
	// EventBus is the optional NATS broadcast config
	EventBus EventBusConfig `mapstructure:"event_bus" json:"event_bus" validate:"required,dive"`
}

// ===============================================================================

// InstallDefaultConfigValues installs default config parameters in viper
func InstallDefaultConfigValues() {
	viper.SetDefault("limits.publishing_interval.min_millis", 50.0)
	viper.SetDefault("limits.publishing_interval.max_millis", 60000.0)
	viper.SetDefault("limits.sampling_interval.min_millis", 0.0)
	viper.SetDefault("limits.sampling_interval.max_millis", 60000.0)
	viper.SetDefault("limits.keep_alive_lifetime.default_max_keep_alive_count", 3)
	viper.SetDefault("limits.keep_alive_lifetime.min_lifetime_to_keep_alive_ratio", 3)
	viper.SetDefault("limits.max_monitored_items_per_subscription", 0)
	viper.SetDefault("limits.max_subscriptions_per_session", 0)
	viper.SetDefault("limits.available_messages_retention_cap", 1024)

	viper.SetDefault("diagnostics.path_prefix", "/")
	viper.SetDefault("diagnostics.server_config.listen_on", "0.0.0.0")
	viper.SetDefault("diagnostics.server_config.listen_port", 8080)
	viper.SetDefault("diagnostics.server_config.read_timeout_sec", 60)
	viper.SetDefault("diagnostics.server_config.write_timeout_sec", 60)
	viper.SetDefault("diagnostics.logging_config.request_id_header", "Opcua-Request-ID")
	viper.SetDefault("diagnostics.logging_config.do_not_log_headers", []string{
		"WWW-Authenticate", "Authorization", "Proxy-Authenticate", "Proxy-Authorization",
	})

	viper.SetDefault("event_bus.enabled", false)
	viper.SetDefault("event_bus.connect_timeout_sec", 10)
	viper.SetDefault("event_bus.subject", "opcua.subscriptions.status-change")
}
