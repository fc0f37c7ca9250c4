// Package config provides configuration management for ChestBuddy.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/ini.v1"

	"github.com/LinkesAuge/ChestBuddy-sub001/internal/constants"
)

// Settings holds user-editable options for the blocking subsystem's
// observers and event bus.
//
// Config file location:
//   - Windows: %USERPROFILE%\.config\chestbuddy\settings.ini
//   - Unix: ~/.config/chestbuddy/settings.ini
//
// INI format:
//
//	[events]
//	buffer_size = 1000
//
//	[notifications]
//	enabled = true
//	show_operation_ended = true
//	show_operation_failed = true
//
//	[webhook]
//	enabled = false
//	url = https://example.com/hooks/blocking
//	retry_max = 4
type Settings struct {
	// Events controls the notification bus.
	Events EventsSettings

	// Notifications controls desktop notifications.
	Notifications NotificationSettings

	// Webhook controls the HTTP event forwarder.
	Webhook WebhookSettings
}

// EventsSettings controls the notification bus.
type EventsSettings struct {
	// BufferSize is the per-subscriber channel buffer.
	// Clamped to [1, constants.EventBusMaxBuffer].
	BufferSize int `ini:"buffer_size"`
}

// NotificationSettings controls desktop notifications.
type NotificationSettings struct {
	// Enabled indicates whether desktop notifications are shown.
	// Default: true
	Enabled bool `ini:"enabled"`

	// ShowOperationEnded shows a notification when a long operation ends.
	// Default: true
	ShowOperationEnded bool `ini:"show_operation_ended"`

	// ShowOperationFailed shows a notification when an operation ends with
	// an error. Default: true
	ShowOperationFailed bool `ini:"show_operation_failed"`
}

// WebhookSettings controls the HTTP event forwarder.
type WebhookSettings struct {
	// Enabled indicates whether events are forwarded.
	// Default: false
	Enabled bool `ini:"enabled"`

	// URL receives one JSON document per event via POST.
	URL string `ini:"url"`

	// RetryMax caps delivery retries per event.
	RetryMax int `ini:"retry_max"`
}

// Validation errors
var (
	ErrInvalidBufferSize = errors.New("events buffer_size must be between 1 and 5000")
	ErrMissingWebhookURL = errors.New("webhook url is required when the webhook is enabled")
	ErrInvalidRetryMax   = errors.New("webhook retry_max must be between 0 and 10")
)

// DefaultSettingsPath returns the default path for the settings file.
func DefaultSettingsPath() (string, error) {
	var configDir string

	if runtime.GOOS == "windows" {
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", errors.New("USERPROFILE environment variable not set")
		}
		configDir = filepath.Join(userProfile, ".config", constants.AppName)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", constants.AppName)
	}

	return filepath.Join(configDir, constants.SettingsFileName), nil
}

// NewSettings creates Settings with default values.
func NewSettings() *Settings {
	return &Settings{
		Events: EventsSettings{
			BufferSize: constants.EventBusDefaultBuffer,
		},
		Notifications: NotificationSettings{
			Enabled:             true,
			ShowOperationEnded:  true,
			ShowOperationFailed: true,
		},
		Webhook: WebhookSettings{
			Enabled:  false,
			RetryMax: constants.WebhookRetryMax,
		},
	}
}

// LoadSettings loads configuration from an INI file.
// If the file doesn't exist, returns defaults and no error.
// If the file exists but is invalid, returns an error.
func LoadSettings(path string) (*Settings, error) {
	cfg := NewSettings()

	if path == "" {
		var err error
		path, err = DefaultSettingsPath()
		if err != nil {
			return cfg, nil // Return defaults if we can't determine path
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // Return defaults if config doesn't exist
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	eventsSection := iniFile.Section("events")
	cfg.Events.BufferSize = eventsSection.Key("buffer_size").MustInt(constants.EventBusDefaultBuffer)

	notifySection := iniFile.Section("notifications")
	cfg.Notifications.Enabled = notifySection.Key("enabled").MustBool(true)
	cfg.Notifications.ShowOperationEnded = notifySection.Key("show_operation_ended").MustBool(true)
	cfg.Notifications.ShowOperationFailed = notifySection.Key("show_operation_failed").MustBool(true)

	webhookSection := iniFile.Section("webhook")
	cfg.Webhook.Enabled = webhookSection.Key("enabled").MustBool(false)
	cfg.Webhook.URL = webhookSection.Key("url").String()
	cfg.Webhook.RetryMax = webhookSection.Key("retry_max").MustInt(constants.WebhookRetryMax)

	return cfg, nil
}

// SaveSettings saves configuration to an INI file.
// Creates parent directories if they don't exist.
func SaveSettings(cfg *Settings, path string) error {
	if path == "" {
		var err error
		path, err = DefaultSettingsPath()
		if err != nil {
			return fmt.Errorf("failed to determine settings path: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	eventsSection, err := iniFile.NewSection("events")
	if err != nil {
		return fmt.Errorf("failed to create events section: %w", err)
	}
	eventsSection.Key("buffer_size").SetValue(fmt.Sprintf("%d", cfg.Events.BufferSize))

	notifySection, err := iniFile.NewSection("notifications")
	if err != nil {
		return fmt.Errorf("failed to create notifications section: %w", err)
	}
	notifySection.Key("enabled").SetValue(fmt.Sprintf("%t", cfg.Notifications.Enabled))
	notifySection.Key("show_operation_ended").SetValue(fmt.Sprintf("%t", cfg.Notifications.ShowOperationEnded))
	notifySection.Key("show_operation_failed").SetValue(fmt.Sprintf("%t", cfg.Notifications.ShowOperationFailed))

	webhookSection, err := iniFile.NewSection("webhook")
	if err != nil {
		return fmt.Errorf("failed to create webhook section: %w", err)
	}
	webhookSection.Key("enabled").SetValue(fmt.Sprintf("%t", cfg.Webhook.Enabled))
	webhookSection.Key("url").SetValue(cfg.Webhook.URL)
	webhookSection.Key("retry_max").SetValue(fmt.Sprintf("%d", cfg.Webhook.RetryMax))

	if err := iniFile.SaveTo(path); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	return nil
}

// Validate checks the settings for consistency.
func (s *Settings) Validate() error {
	if s.Events.BufferSize < 1 || s.Events.BufferSize > constants.EventBusMaxBuffer {
		return ErrInvalidBufferSize
	}
	if s.Webhook.Enabled && s.Webhook.URL == "" {
		return ErrMissingWebhookURL
	}
	if s.Webhook.RetryMax < 0 || s.Webhook.RetryMax > 10 {
		return ErrInvalidRetryMax
	}
	return nil
}
