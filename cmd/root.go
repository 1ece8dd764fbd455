package cmd

import (
	"fmt"
	"os"

	cobra "github.com/spf13/cobra"

	config "github.com/tapgrid/cli/config"
	logger "github.com/tapgrid/cli/internal/logger"

	// Register the built-in device providers.
	_ "github.com/tapgrid/cli/internal/device/adb"
	_ "github.com/tapgrid/cli/internal/device/robot"
	_ "github.com/tapgrid/cli/internal/device/x11"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "tapgrid",
	Short: "Grid-based touchscreen automation",
	Long: `tapgrid addresses a device screen through a numbered grid overlay.
Each cell covers roughly one fingertip, so a vision model (or a human)
can name any tappable element by its cell number instead of raw pixel
coordinates.

Use 'tapgrid overlay' to draw the grid on a screenshot, 'tapgrid tap'
to tap a cell on a connected device, or 'tapgrid run' to let a vision
model drive the device toward an instruction.`,
}

func Execute() {
	defer logger.Close()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", fmt.Sprintf("config file (default is %s)", config.DefaultConfigPath))
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringP("device", "d", "", "device provider (adb, x11, robot; auto-detected when empty)")
	rootCmd.PersistentFlags().StringP("target", "t", "", "device target (adb serial or X display)")

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")

	configPath, _ := rootCmd.PersistentFlags().GetString("config")
	if configPath == "" {
		configPath = config.DefaultConfigPath
	}

	loaded, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config from %s: %v\n", configPath, err)
		os.Exit(1)
	}
	cfg = loaded

	if provider, _ := rootCmd.PersistentFlags().GetString("device"); provider != "" {
		cfg.Device.Provider = provider
	}
	if target, _ := rootCmd.PersistentFlags().GetString("target"); target != "" {
		cfg.Device.Target = target
	}

	logger.Init(verbose, cfg.Logging.File)
}
