package cmd

import (
	"audio-service/config"
	"os"

	"github.com/spf13/cobra"
)

// app carries the configuration loaded before any subcommand runs.
type app struct {
	configDir string
	cfg       *config.Config
}

func Root() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "audio-service",
		Short:         "audio upload and catalog service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			dir := a.configDir
			if dir == "" {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				dir = wd
			}
			cfg, err := config.Load(dir)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg != nil && a.cfg.DB != nil {
				return a.cfg.DB.Close()
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configDir, "config", "", "directory containing config.yaml (defaults to the working directory)")

	rootCmd.AddCommand(server(a), migrate(a), user(a), purgeFailed(a))
	return rootCmd
}
