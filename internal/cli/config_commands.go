// Package cli provides configuration management commands.
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/LinkesAuge/ChestBuddy-sub001/internal/config"
	"github.com/LinkesAuge/ChestBuddy-sub001/internal/events"
	"github.com/LinkesAuge/ChestBuddy-sub001/internal/notify"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage chestbuddy configuration",
		Long: `Configuration management commands for chestbuddy.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  test  - Send a test event to the configured webhook
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// settingsPath resolves the settings file path from the --config flag,
// falling back to the default location.
func settingsPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultSettingsPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for chestbuddy.

The configuration will be saved to ~/.config/chestbuddy/settings.ini

Use --force to overwrite existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := settingsPath()
			if err != nil {
				return err
			}

			// Check if config already exists
			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Printf("Configuration already exists at: %s\n", path)
					fmt.Println("Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			fmt.Println("ChestBuddy Configuration Setup")
			fmt.Println("==============================")
			fmt.Println()

			reader := bufio.NewReader(os.Stdin)
			settings := config.NewSettings()

			fmt.Printf("Desktop notifications enabled [Y/n]: ")
			if input := readLine(reader); input != "" {
				settings.Notifications.Enabled = !strings.EqualFold(input, "n")
			}

			fmt.Printf("Webhook URL (empty to disable): ")
			if input := readLine(reader); input != "" {
				settings.Webhook.Enabled = true
				settings.Webhook.URL = input

				fmt.Printf("Webhook retry limit [%d]: ", settings.Webhook.RetryMax)
				if retries := readLine(reader); retries != "" {
					n, err := strconv.Atoi(retries)
					if err != nil {
						return fmt.Errorf("invalid retry limit %q: %w", retries, err)
					}
					settings.Webhook.RetryMax = n
				}
			}

			if err := settings.Validate(); err != nil {
				return err
			}
			if err := config.SaveSettings(settings, path); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			fmt.Println()
			fmt.Printf("Configuration saved to: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	return cmd
}

// readLine reads one trimmed line from stdin.
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := settingsPath()
			if err != nil {
				return err
			}

			settings, err := config.LoadSettings(path)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			fmt.Printf("Configuration file: %s\n", path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Println("  (file not found, showing defaults)")
			}
			fmt.Println()
			fmt.Printf("[events]\n")
			fmt.Printf("  buffer_size = %d\n", settings.Events.BufferSize)
			fmt.Printf("[notifications]\n")
			fmt.Printf("  enabled = %t\n", settings.Notifications.Enabled)
			fmt.Printf("  show_operation_ended = %t\n", settings.Notifications.ShowOperationEnded)
			fmt.Printf("  show_operation_failed = %t\n", settings.Notifications.ShowOperationFailed)
			fmt.Printf("[webhook]\n")
			fmt.Printf("  enabled = %t\n", settings.Webhook.Enabled)
			if settings.Webhook.URL != "" {
				fmt.Printf("  url = %s\n", settings.Webhook.URL)
			}
			fmt.Printf("  retry_max = %d\n", settings.Webhook.RetryMax)
			return nil
		},
	}
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Send a test event to the configured webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := settingsPath()
			if err != nil {
				return err
			}

			settings, err := config.LoadSettings(path)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			forwarder, err := notify.NewWebhookForwarder(&settings.Webhook, GetLogger())
			if err != nil {
				return fmt.Errorf("webhook not usable: %w", err)
			}

			ch := make(chan events.Event, 1)
			ch <- &events.StateChangedEvent{
				BaseEvent:  events.BaseEvent{EventType: events.EventBlockingStateChanged, Time: time.Now()},
				ResourceID: "config-test",
				Operation:  "config_test",
				Blocked:    false,
			}
			close(ch)

			forwarder.Start(ch)
			forwarder.Stop()

			fmt.Printf("Test event sent to %s\n", settings.Webhook.URL)
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := settingsPath()
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
}
