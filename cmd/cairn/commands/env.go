package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Manage environments",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a new environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return c.app.CreateEnv(args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "destroy <name>",
		Short: "Destroy an environment (installed packages stay in the store)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return c.app.DestroyEnv(args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List environments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.ListEnvs(cmd.OutOrStdout())
		},
	})

	return cmd
}
