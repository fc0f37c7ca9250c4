package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/LinkesAuge/ChestBuddy-sub001/internal/blocking"
	"github.com/LinkesAuge/ChestBuddy-sub001/internal/config"
	"github.com/LinkesAuge/ChestBuddy-sub001/internal/events"
	"github.com/LinkesAuge/ChestBuddy-sub001/internal/notify"
	"github.com/LinkesAuge/ChestBuddy-sub001/internal/progress"
)

// newRunCmd creates the 'run' command.
func newRunCmd() *cobra.Command {
	var (
		operation string
		steps     int64
		delay     time.Duration
		failAt    int64
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single scripted operation with a progress bar",
		Long: `Run one operation against a synthetic resource tree.

While the operation is active, every registered resource is disabled;
when it ends they are re-enabled. Use --fail-at to abort the operation
partway through and verify that resources are still released.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := settingsPath()
			if err != nil {
				return err
			}
			settings, err := config.LoadSettings(path)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			log := GetLogger()
			bus := events.NewBus(settings.Events.BufferSize)
			defer bus.Close()

			coord := blocking.New(blocking.WithBus(bus), blocking.WithLogger(log))
			tree := buildResourceTree(coord)

			notifier := notify.NewNotifier(&settings.Notifications, log)
			go notifier.Watch(bus.SubscribeAll())

			if settings.Webhook.Enabled {
				forwarder, err := notify.NewWebhookForwarder(&settings.Webhook, log)
				if err != nil {
					return err
				}
				forwarder.Start(bus.SubscribeAll())
				defer forwarder.Stop()
			}

			var reporter progress.Reporter = progress.NewCLIProgress()
			if quiet {
				reporter = progress.NewNullProgress()
			}

			op := blocking.Operation(operation)
			ctx := GetContext()

			err = coord.RunOperation(op, func() error {
				reporter.Start(steps, operation)
				defer reporter.Finish()

				for i := int64(1); i <= steps; i++ {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(delay):
					}
					if failAt > 0 && i == failAt {
						return fmt.Errorf("operation aborted at step %d", i)
					}
					reporter.Update(i)
				}
				return nil
			}, blocking.WithGroups(tree.groups...))

			printTreeState(coord, tree)
			if err != nil {
				reporter.Error(err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&operation, "operation", "import", "Operation name")
	cmd.Flags().Int64Var(&steps, "steps", 50, "Number of steps to simulate")
	cmd.Flags().DurationVar(&delay, "delay", 50*time.Millisecond, "Delay per step")
	cmd.Flags().Int64Var(&failAt, "fail-at", 0, "Abort the operation at this step (0 = never)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress the progress bar")

	return cmd
}

// resourceTree is the synthetic UI used by the demo commands: toolbar
// actions, menu entries, and panels arranged in blocking groups.
type resourceTree struct {
	elements []*blocking.Element
	groups   []string
}

// buildResourceTree registers a synthetic UI with the coordinator and
// returns it.
func buildResourceTree(coord *blocking.Coordinator) *resourceTree {
	tree := &resourceTree{
		groups: []string{"toolbar", "menu", "data_view"},
	}

	add := func(id, group string) {
		el := blocking.NewElement(id)
		coord.Register(el, group)
		tree.elements = append(tree.elements, el)
	}

	add("toolbar.import", "toolbar")
	add("toolbar.export", "toolbar")
	add("toolbar.validate", "toolbar")
	add("menu.file.open", "menu")
	add("menu.file.save", "menu")
	add("menu.edit.correct", "menu")
	add("data_view.table", "data_view")
	add("data_view.filter", "data_view")

	return tree
}

// printTreeState dumps the enabled/blocked state of every resource.
func printTreeState(coord *blocking.Coordinator, tree *resourceTree) {
	snap := coord.Snapshot()
	fmt.Println()
	for _, rs := range snap.Resources {
		state := "enabled"
		if !rs.Enabled {
			state = "disabled"
		}
		if len(rs.BlockedBy) > 0 {
			fmt.Printf("  %-22s %s (blocked by %v)\n", rs.ID, state, rs.BlockedBy)
		} else {
			fmt.Printf("  %-22s %s\n", rs.ID, state)
		}
	}
}
