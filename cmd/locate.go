package cmd

import (
	"fmt"
	"strconv"

	cobra "github.com/spf13/cobra"
)

var locateCmd = &cobra.Command{
	Use:   "locate <cell>",
	Short: "Resolve a cell number to pixel coordinates",
	Long: `Resolve a 1-based cell number to its pixel center on the target
screen. Screen dimensions default to the connected device; pass
--width and --height to resolve against an arbitrary resolution
without a device.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cell, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid cell number %q: %w", args[0], err)
		}

		width, _ := cmd.Flags().GetInt("width")
		height, _ := cmd.Flags().GetInt("height")
		showRect, _ := cmd.Flags().GetBool("rect")

		if width == 0 || height == 0 {
			controller, _, err := openController()
			if err != nil {
				return fmt.Errorf("no --width/--height given and no device available: %w", err)
			}
			defer func() { _ = controller.Close() }()

			width, height, err = controller.ScreenSize(cmd.Context())
			if err != nil {
				return err
			}
		}

		spec, err := cfg.Grid.ScreenSpec(width, height)
		if err != nil {
			return err
		}

		center, err := spec.CellCenter(cell)
		if err != nil {
			return err
		}

		part, _ := spec.Partition()
		fmt.Printf("cell %d of %d (%dx%d grid): center (%d, %d)\n",
			cell, part.TotalCells, part.Columns, part.Rows, center.X, center.Y)

		if showRect {
			rect, err := spec.CellRect(cell)
			if err != nil {
				return err
			}
			fmt.Printf("rect: (%d, %d) - (%d, %d)\n", rect.Min.X, rect.Min.Y, rect.Max.X, rect.Max.Y)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(locateCmd)

	locateCmd.Flags().Int("width", 0, "screen width in pixels (default: query the device)")
	locateCmd.Flags().Int("height", 0, "screen height in pixels (default: query the device)")
	locateCmd.Flags().Bool("rect", false, "also print the cell's pixel rectangle")
}
