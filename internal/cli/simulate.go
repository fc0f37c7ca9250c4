package cli

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/LinkesAuge/ChestBuddy-sub001/internal/blocking"
	"github.com/LinkesAuge/ChestBuddy-sub001/internal/config"
	"github.com/LinkesAuge/ChestBuddy-sub001/internal/events"
	"github.com/LinkesAuge/ChestBuddy-sub001/internal/notify"
	"github.com/LinkesAuge/ChestBuddy-sub001/internal/progress"
)

// simulatedOperation pairs an operation name with the groups it blocks.
type simulatedOperation struct {
	name   string
	groups []string
}

// defaultSimulations mirrors the operations the desktop app runs: imports
// and exports freeze the whole UI, validation and correction only the
// data view.
var defaultSimulations = []simulatedOperation{
	{name: "import", groups: []string{"toolbar", "menu", "data_view"}},
	{name: "export", groups: []string{"toolbar", "menu"}},
	{name: "validate", groups: []string{"data_view"}},
	{name: "correct", groups: []string{"data_view", "menu"}},
}

// newSimulateCmd creates the 'simulate' command.
func newSimulateCmd() *cobra.Command {
	var (
		steps      int64
		delay      time.Duration
		operations []string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run several concurrent operations over a synthetic resource tree",
		Long: `Run concurrent operations against a synthetic UI and render one
progress bar per operation.

Operations that block the same group overlap: a resource stays disabled
until the last operation holding it has ended. The final state of every
resource is printed when all operations are done.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := settingsPath()
			if err != nil {
				return err
			}
			settings, err := config.LoadSettings(path)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			sims, err := selectSimulations(operations)
			if err != nil {
				return err
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

			ui := progress.NewOperationUI()
			// Route log lines above the bars so they do not tear the display.
			prevOut := log.Output()
			log.SetOutput(ui.Writer())

			ctx := GetContext()
			var wg sync.WaitGroup
			for i, sim := range sims {
				ui.AddOperation(sim.name, steps)
				wg.Add(1)
				go func(sim simulatedOperation, stagger time.Duration) {
					defer wg.Done()
					defer ui.Complete(sim.name)
					// Stagger the starts so the overlap windows differ.
					select {
					case <-ctx.Done():
						return
					case <-time.After(stagger):
					}

					_ = coord.RunOperation(blocking.Operation(sim.name), func() error {
						for s := int64(0); s < steps; s++ {
							select {
							case <-ctx.Done():
								return ctx.Err()
							case <-time.After(delay):
							}
							ui.Advance(sim.name, 1)
						}
						return nil
					}, blocking.WithGroups(sim.groups...))
				}(sim, time.Duration(i)*delay*3)
			}

			wg.Wait()
			ui.Wait()

			log.SetOutput(prevOut)
			printTreeState(coord, tree)

			if dropped := bus.GetDroppedEventCount(); dropped > 0 {
				log.Warn().Int64("dropped", dropped).Msg("Event subscribers fell behind")
			}
			return ctx.Err()
		},
	}

	cmd.Flags().Int64Var(&steps, "steps", 40, "Number of steps per operation")
	cmd.Flags().DurationVar(&delay, "delay", 75*time.Millisecond, "Delay per step")
	cmd.Flags().StringSliceVar(&operations, "operations", nil,
		"Operations to run (default: import,export,validate,correct)")

	return cmd
}

// selectSimulations filters the default set by the --operations flag.
func selectSimulations(names []string) ([]simulatedOperation, error) {
	if len(names) == 0 {
		return defaultSimulations, nil
	}

	byName := make(map[string]simulatedOperation, len(defaultSimulations))
	known := make([]string, 0, len(defaultSimulations))
	for _, sim := range defaultSimulations {
		byName[sim.name] = sim
		known = append(known, sim.name)
	}

	sims := make([]simulatedOperation, 0, len(names))
	for _, name := range names {
		sim, ok := byName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown operation %q (known: %s)", name, strings.Join(known, ", "))
		}
		sims = append(sims, sim)
	}
	return sims, nil
}
