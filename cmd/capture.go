package cmd

import (
	"fmt"
	"os"
	"time"

	cobra "github.com/spf13/cobra"

	grid "github.com/tapgrid/cli/internal/grid"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture a screenshot from the device",
	Long: `Capture a screenshot from the connected device and write it as a
PNG file. With --grid the numbered overlay is drawn onto the capture
before writing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outPath, _ := cmd.Flags().GetString("output")
		withGrid, _ := cmd.Flags().GetBool("grid")

		controller, _, err := openController()
		if err != nil {
			return err
		}
		defer func() { _ = controller.Close() }()

		ctx := cmd.Context()
		img, err := controller.CaptureScreen(ctx)
		if err != nil {
			return err
		}

		if withGrid {
			bounds := img.Bounds()
			spec, err := cfg.Grid.ScreenSpec(bounds.Dx(), bounds.Dy())
			if err != nil {
				return err
			}
			style, err := cfg.Grid.Style()
			if err != nil {
				return err
			}
			img, err = grid.NewRenderer(style).Render(img, spec)
			if err != nil {
				return err
			}
		}

		if outPath == "" {
			outPath = fmt.Sprintf("capture_%s.png", time.Now().Format("20060102_150405"))
		}

		data, err := grid.EncodePNG(img)
		if err != nil {
			return err
		}
		if err := os.WriteFile(outPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", outPath, err)
		}

		fmt.Printf("Wrote %s\n", outPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().StringP("output", "o", "", "output path (default capture_<timestamp>.png)")
	captureCmd.Flags().Bool("grid", false, "draw the numbered grid overlay onto the capture")
}
