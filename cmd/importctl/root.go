package main

import (
	"github.com/spf13/cobra"

	"github.com/mohammadpnp/school-import/internal/config"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "importctl",
		Short:         "Operate the school import service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (environment variables still apply)")

	loadConfig := func() (*config.Config, error) {
		return config.Load(configPath)
	}

	root.AddCommand(
		newMigrateCmd(loadConfig),
		newTemplateCmd(),
		&cobra.Command{
			Use:   "env",
			Short: "List the supported environment variables",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				cmd.Println(config.Description())
			},
		},
	)
	return root
}
