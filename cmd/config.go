package cmd

import (
	"fmt"
	"os"

	cobra "github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v3"

	config "github.com/tapgrid/cli/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the tapgrid configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := rootCmd.PersistentFlags().GetString("config")
		if path == "" {
			path = config.DefaultConfigPath
		}

		overwrite, _ := cmd.Flags().GetBool("overwrite")
		if _, err := os.Stat(path); err == nil && !overwrite {
			return fmt.Errorf("%s already exists (use --overwrite to replace it)", path)
		}

		if err := config.Write(config.DefaultConfig(), path); err != nil {
			return err
		}

		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to render config: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().Bool("overwrite", false, "replace an existing config file")
}
