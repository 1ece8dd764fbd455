package cmd

import (
	"fmt"
	"strconv"

	cobra "github.com/spf13/cobra"

	logger "github.com/tapgrid/cli/internal/logger"
)

var tapCmd = &cobra.Command{
	Use:   "tap <cell>",
	Short: "Tap the center of a grid cell on the device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cell, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid cell number %q: %w", args[0], err)
		}

		controller, info, err := openController()
		if err != nil {
			return err
		}
		defer func() { _ = controller.Close() }()

		ctx := cmd.Context()
		width, height, err := controller.ScreenSize(ctx)
		if err != nil {
			return err
		}

		spec, err := cfg.Grid.ScreenSpec(width, height)
		if err != nil {
			return err
		}

		center, err := spec.CellCenter(cell)
		if err != nil {
			return err
		}

		logger.Debug("tapping cell", "cell", cell, "x", center.X, "y", center.Y, "provider", info.Name)
		if err := controller.Tap(ctx, center.X, center.Y); err != nil {
			return err
		}

		fmt.Printf("Tapped cell %d at (%d, %d)\n", cell, center.X, center.Y)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tapCmd)
}
