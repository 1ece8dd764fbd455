package cmd

import (
	"fmt"

	device "github.com/tapgrid/cli/internal/device"
)

// openController resolves the configured provider (or auto-detects one)
// and connects to the configured target.
func openController() (device.Controller, device.Info, error) {
	provider, err := device.GetProvider(cfg.Device.Provider)
	if err != nil {
		return nil, device.Info{}, err
	}

	controller, err := provider.Controller(cfg.Device.Target)
	if err != nil {
		return nil, device.Info{}, fmt.Errorf("failed to connect to %s device: %w", provider.Info().Name, err)
	}

	return controller, provider.Info(), nil
}
