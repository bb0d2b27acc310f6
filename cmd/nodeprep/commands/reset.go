package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/nodeprep/nodeprep/pkg/checkpoint"
	"github.com/nodeprep/nodeprep/pkg/config"
	"github.com/nodeprep/nodeprep/pkg/steps"
)

func newResetCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "reset [step]",
		Short: "Clear step checkpoints",
		Long: `Clear the checkpoint of one step, or of every step with --all.

Clearing a checkpoint is the recovery path when a completed step's
effects were reverted out-of-band (a package removed, a service
deleted): the engine trusts checkpoints and will not re-verify on its
own. The cleared step re-runs on the next up.`,
		Example: `  # Re-run the containerd step on the next up
  nodeprep reset step3-containerd

  # Start over completely
  nodeprep reset --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			store := checkpoint.NewStore(cfg.CheckpointDir)

			if all {
				if len(args) > 0 {
					return fmt.Errorf("cannot combine --all with a step name")
				}
				if err := store.ClearAll(); err != nil {
					return err
				}
				log.Info().Msg("All checkpoints cleared")
				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("specify a step name or --all (steps: %v)", steps.Names())
			}

			name := args[0]
			if !knownStep(name) {
				return fmt.Errorf("unknown step %q (steps: %v)", name, steps.Names())
			}
			if err := store.Clear(name); err != nil {
				return err
			}
			log.Info().Str("step", name).Msg("Checkpoint cleared")
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "clear every checkpoint")

	return cmd
}

func knownStep(name string) bool {
	for _, n := range steps.Names() {
		if n == name {
			return true
		}
	}
	return false
}
