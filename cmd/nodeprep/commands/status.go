package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/nodeprep/nodeprep/pkg/checkpoint"
	"github.com/nodeprep/nodeprep/pkg/config"
	"github.com/nodeprep/nodeprep/pkg/steps"
)

func newStatusCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show step completion status",
		Long: `Show each provisioning step and whether its checkpoint exists.

With --watch, the command re-renders whenever the checkpoint directory
changes, which gives a live view of a run in progress in another
terminal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			store := checkpoint.NewStore(cfg.CheckpointDir)
			if err := printStatus(store); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}
			defer watcher.Close()

			if err := watcher.Add(cfg.CheckpointDir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", cfg.CheckpointDir, err)
			}

			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case _, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					fmt.Println()
					if err := printStatus(store); err != nil {
						return err
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					log.Warn().Err(err).Msg("watch error")
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-render on checkpoint changes")

	return cmd
}

func printStatus(store *checkpoint.Store) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tSTATUS\tCOMPLETED AT")
	for _, name := range steps.Names() {
		if !store.Exists(name) {
			fmt.Fprintf(w, "%s\tpending\t-\n", name)
			continue
		}
		// A marker with an unreadable timestamp still counts as done.
		stamp := "unknown"
		if at, ok := store.CompletedAt(name); ok {
			stamp = at.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\tdone\t%s\n", name, stamp)
	}
	return w.Flush()
}
