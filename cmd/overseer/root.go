package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "overseer",
		Short:         "Xena chassis port reservation tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}

			return setupLogger(cmd.ErrOrStderr(), cfg.LogLevel)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path (TOML)")
	flags.StringVar(&ctx.logLevelFlag, "log-level", "warn", "Log level: debug, info, warn, error, fatal")
	flags.StringVar(&ctx.passwordFlag, "password", "", "Chassis logon password")
	flags.StringVar(&ctx.ownerFlag, "owner", "", "Owner name claimed after logon")

	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newToggleCommand(ctx))
	rootCmd.AddCommand(newSimulateCommand(ctx))

	return rootCmd
}
