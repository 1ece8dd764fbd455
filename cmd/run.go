package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cobra "github.com/spf13/cobra"

	activity "github.com/tapgrid/cli/internal/activity"
	agent "github.com/tapgrid/cli/internal/agent"
	grid "github.com/tapgrid/cli/internal/grid"
	logger "github.com/tapgrid/cli/internal/logger"
	vision "github.com/tapgrid/cli/internal/vision"
)

var runCmd = &cobra.Command{
	Use:   "run <instruction>",
	Short: "Let the vision model drive the device toward an instruction",
	Long: `Run the automation loop: capture the screen, draw the numbered grid,
ask the action model which cell to act on, perform the gesture, and
repeat until the model reports the task is done or the step limit is
reached. When a validation model is configured each action is checked
against a fresh capture.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		instruction := args[0]

		if maxSteps, _ := cmd.Flags().GetInt("max-steps"); maxSteps > 0 {
			cfg.Agent.MaxSteps = maxSteps
		}

		controller, info, err := openController()
		if err != nil {
			return err
		}
		defer func() { _ = controller.Close() }()

		style, err := cfg.Grid.Style()
		if err != nil {
			return err
		}

		actionCfg := cfg.Vision
		if cfg.Agent.Action.Model != "" {
			actionCfg.Model = cfg.Agent.Action.Model
		}
		actionVision, err := vision.New(actionCfg)
		if err != nil {
			return err
		}

		var store *activity.Store
		if cfg.Activity.Enabled {
			store, err = activity.Open(cfg.Activity.Path)
			if err != nil {
				logger.Warn("activity log disabled", "error", err)
			} else {
				defer func() { _ = store.Close() }()
			}
		}

		runner := agent.NewRunner(cfg, controller, grid.NewRenderer(style), actionVision, store)

		noValidate, _ := cmd.Flags().GetBool("no-validate")
		if !noValidate && cfg.Agent.Validation.Model != "" {
			validationCfg := cfg.Vision
			validationCfg.Model = cfg.Agent.Validation.Model
			validator, err := vision.New(validationCfg)
			if err != nil {
				return err
			}
			runner.WithValidator(validator)
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		logger.Info("starting run", "instruction", instruction, "provider", info.Name, "max_steps", cfg.Agent.MaxSteps)
		if err := runner.Run(ctx, instruction); err != nil {
			return err
		}

		fmt.Println("Done.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int("max-steps", 0, "maximum number of actions before giving up")
	runCmd.Flags().Bool("no-validate", false, "skip post-action validation")
}
