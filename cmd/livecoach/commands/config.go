package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pulsefit/livecoach/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialize the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		fmt.Printf("# %s\n", cfg.Path())
		return cli.Output(cfg, cli.OutputOptions{Format: cli.FormatYAML})
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if _, err := os.Stat(cfg.Path()); err == nil {
			return fmt.Errorf("config already exists at %s", cfg.Path())
		}
		if cfg.SystemInstruction == "" {
			cfg.SystemInstruction = "You are an encouraging personal fitness coach. " +
				"Watch the user's form, track their vitals, and keep feedback short and spoken."
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		cli.PrintSuccess("wrote %s", cfg.Path())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
