package cmd

import (
	"fmt"

	imaging "github.com/disintegration/imaging"
	cobra "github.com/spf13/cobra"

	grid "github.com/tapgrid/cli/internal/grid"
	vision "github.com/tapgrid/cli/internal/vision"
)

var findCmd = &cobra.Command{
	Use:   "find <image> <description>",
	Short: "Ask the vision model which cell contains an element",
	Long: `Draw the numbered grid onto the given screenshot, send it to the
configured vision model, and ask which cell contains the described
element. Prints the cell number and its pixel center.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inPath, target := args[0], args[1]

		img, err := imaging.Open(inPath)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", inPath, err)
		}
		bounds := img.Bounds()

		spec, err := cfg.Grid.ScreenSpec(bounds.Dx(), bounds.Dy())
		if err != nil {
			return err
		}
		style, err := cfg.Grid.Style()
		if err != nil {
			return err
		}

		overlaid, err := grid.NewRenderer(style).Render(img, spec)
		if err != nil {
			return err
		}
		overlayPNG, err := grid.EncodePNG(overlaid)
		if err != nil {
			return err
		}

		analyzer, err := vision.New(cfg.Vision)
		if err != nil {
			return err
		}

		part, _ := spec.Partition()
		cell, err := analyzer.LocateCell(cmd.Context(), overlayPNG, part, target)
		if err != nil {
			return err
		}

		center, err := spec.CellCenter(cell)
		if err != nil {
			return err
		}

		fmt.Printf("%q is in cell %d, center (%d, %d)\n", target, cell, center.X, center.Y)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(findCmd)
}
