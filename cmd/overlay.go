package cmd

import (
	"fmt"

	imaging "github.com/disintegration/imaging"
	cobra "github.com/spf13/cobra"

	grid "github.com/tapgrid/cli/internal/grid"
)

var overlayCmd = &cobra.Command{
	Use:   "overlay <image>",
	Short: "Draw the numbered grid onto a screenshot",
	Long: `Load a screenshot, draw the numbered grid overlay onto it, and write
the result next to the input (or to --output). The grid geometry comes
from the configuration; pass --cell-size to override it for one run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inPath := args[0]
		outPath, _ := cmd.Flags().GetString("output")
		cellSize, _ := cmd.Flags().GetInt("cell-size")

		img, err := imaging.Open(inPath)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", inPath, err)
		}
		bounds := img.Bounds()

		if cellSize > 0 {
			cfg.Grid.CellSizePx = cellSize
		}
		spec, err := cfg.Grid.ScreenSpec(bounds.Dx(), bounds.Dy())
		if err != nil {
			return err
		}

		style, err := cfg.Grid.Style()
		if err != nil {
			return err
		}

		written, err := grid.NewRenderer(style).RenderToPath(inPath, outPath, spec)
		if err != nil {
			return err
		}

		part, _ := spec.Partition()
		fmt.Printf("Wrote %s (%dx%d grid, %d cells of %dpx)\n",
			written, part.Columns, part.Rows, part.TotalCells, spec.CellSizePx)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(overlayCmd)

	overlayCmd.Flags().StringP("output", "o", "", "output path (default <input>_grid.<ext>)")
	overlayCmd.Flags().Int("cell-size", 0, "cell size in pixels (overrides touch size and PPI)")
}
