package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <spec>...",
		Short: "Add abstract specs to the environment",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := envName(cmd)
			if err != nil {
				return err
			}
			return c.app.Add(name, args)
		},
	}
}

func (c *CLI) newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <package>...",
		Short: "Remove root specs by package name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := envName(cmd)
			if err != nil {
				return err
			}
			return c.app.Remove(name, args)
		},
	}
}

func (c *CLI) newConcretizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "concretize",
		Short: "Resolve the environment's specs into a concrete closure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := envName(cmd)
			if err != nil {
				return err
			}
			force, _ := cmd.Flags().GetBool("force")
			return c.app.Concretize(cmd.Context(), name, force)
		},
	}
	cmd.Flags().BoolP("force", "f", false, "Discard the previous resolution and re-resolve everything")
	return cmd
}

func (c *CLI) newUpgradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade <package>",
		Short: "Re-resolve one package to the best available candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := envName(cmd)
			if err != nil {
				return err
			}
			return c.app.Upgrade(cmd.Context(), name, args[0])
		},
	}
}

func (c *CLI) newResetCompilerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset-compiler",
		Short: "Re-resolve the environment's toolchain and target platform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := envName(cmd)
			if err != nil {
				return err
			}
			compiler, _ := cmd.Flags().GetString("compiler")
			return c.app.ResetCompiler(cmd.Context(), name, compiler)
		},
	}
	cmd.Flags().String("compiler", "", "Compiler to prefer for all packages (spec syntax, e.g. gcc@13.2.0)")
	return cmd
}
