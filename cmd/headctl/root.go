package main

import (
	"github.com/danmuck/headctl/internal/agent"
	"github.com/danmuck/headctl/internal/config"
	"github.com/danmuck/headctl/internal/logging"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "headctl",
		Short:         "headctl runs the display head agent",
		Long:          `headctl receives start, stop and switch commands over a message bus and keeps exactly one scene focused on this display.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			logging.ConfigureRuntime()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAgent(configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to headctl TOML config")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the agent until SIGINT or SIGTERM",
			RunE: func(*cobra.Command, []string) error {
				return runAgent(configPath)
			},
		},
		newConfigCmd(&configPath),
	)
	return root
}

func runAgent(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	return agent.NewService(cfg).Run()
}
