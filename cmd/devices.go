package cmd

import (
	"fmt"

	cobra "github.com/spf13/cobra"

	device "github.com/tapgrid/cli/internal/device"
	adb "github.com/tapgrid/cli/internal/device/adb"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List device providers and connected devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, provider := range device.AllProviders() {
			info := provider.Info()
			state := "unavailable"
			if provider.IsAvailable() {
				state = "available"
			}
			fmt.Printf("%-8s %s\n", info.Name, state)

			if info.Name == "adb" && provider.IsAvailable() {
				serials, err := adb.Devices(cmd.Context())
				if err != nil {
					fmt.Printf("         failed to list devices: %v\n", err)
					continue
				}
				for _, serial := range serials {
					fmt.Printf("         %s\n", serial)
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
