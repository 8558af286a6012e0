package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install the concretized closure, dependencies first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := envName(cmd)
			if err != nil {
				return err
			}
			return c.app.Install(cmd.Context(), name)
		},
	}
}

func (c *CLI) newUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Uninstall the environment's installed specs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := envName(cmd)
			if err != nil {
				return err
			}
			return c.app.Uninstall(cmd.Context(), name)
		},
	}
}

func (c *CLI) newStageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stage",
		Short: "Fetch and stage the closure without building",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := envName(cmd)
			if err != nil {
				return err
			}
			return c.app.Stage(cmd.Context(), name)
		},
	}
}

func (c *CLI) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the environment's roots, resolutions and install state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := envName(cmd)
			if err != nil {
				return err
			}
			return c.app.Status(name, cmd.OutOrStdout())
		},
	}
}

func (c *CLI) newLoadsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "loads",
		Short: "Print module-load lines for the installed closure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := envName(cmd)
			if err != nil {
				return err
			}
			return c.app.Loads(name, cmd.OutOrStdout())
		},
	}
}
