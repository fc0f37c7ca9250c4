package constants

import (
	"time"
)

// Application identity
const (
	// AppName - short name used for config directories and log prefixes
	AppName = "chestbuddy"

	// ConfigDirName - directory under the user config dir holding settings
	// Unix: ~/.config/chestbuddy, Windows: %USERPROFILE%\.config\chestbuddy
	ConfigDirName = ".config/chestbuddy"

	// SettingsFileName - INI settings file inside ConfigDirName
	SettingsFileName = "settings.ini"
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	// Blocking transitions are bursty (a group block fans out to every
	// member) but short-lived; 1000 events per subscriber is generous.
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// Webhook forwarder
const (
	// WebhookRetryMax - maximum retries for webhook delivery
	WebhookRetryMax = 4

	// WebhookRetryWaitMin - initial delay before first webhook retry
	WebhookRetryWaitMin = 200 * time.Millisecond

	// WebhookRetryWaitMax - maximum delay between webhook retries
	WebhookRetryWaitMax = 5 * time.Second

	// WebhookRequestTimeout - per-request timeout for webhook delivery
	WebhookRequestTimeout = 10 * time.Second
)

// UI Updates
const (
	// ProgressUpdateInterval - interval for progress bar updates in the demo
	// commands (250ms). Balances responsiveness with performance.
	ProgressUpdateInterval = 250 * time.Millisecond
)
