// Package commands implements the CLI commands for cairn.
package commands

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.trai.ch/cairn/internal/app"
	"go.trai.ch/cairn/internal/build"
	"go.trai.ch/cairn/internal/core/domain"
	"go.trai.ch/zerr"
)

// CLI represents the command line interface for cairn.
type CLI struct {
	app     *app.App
	rootCmd *cobra.Command
}

// New creates a new CLI instance with the given app.
func New(a *app.App) *CLI {
	rootCmd := &cobra.Command{
		Use:           "cairn",
		Short:         "Reproducible build environments from abstract package specs",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.PersistentFlags().StringP("env", "e", "", "Environment to operate on (falls back to $CAIRN_ENV)")

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.AddCommand(c.newEnvCmd())
	rootCmd.AddCommand(c.newAddCmd())
	rootCmd.AddCommand(c.newRemoveCmd())
	rootCmd.AddCommand(c.newConcretizeCmd())
	rootCmd.AddCommand(c.newInstallCmd())
	rootCmd.AddCommand(c.newUninstallCmd())
	rootCmd.AddCommand(c.newStatusCmd())
	rootCmd.AddCommand(c.newStageCmd())
	rootCmd.AddCommand(c.newLoadsCmd())
	rootCmd.AddCommand(c.newUpgradeCmd())
	rootCmd.AddCommand(c.newResetCompilerCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOut redirects command output. Used for testing.
func (c *CLI) SetOut(w io.Writer) {
	c.rootCmd.SetOut(w)
}

// envName resolves the target environment from --env or $CAIRN_ENV.
func envName(cmd *cobra.Command) (string, error) {
	name, _ := cmd.Flags().GetString("env")
	if name == "" {
		name = os.Getenv("CAIRN_ENV")
	}
	if name == "" {
		return "", zerr.Wrap(domain.ErrUnknownEnvironment, "no environment selected, use --env or $CAIRN_ENV")
	}
	return name, nil
}
