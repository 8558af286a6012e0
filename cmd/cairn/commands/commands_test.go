package commands_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/cairn/cmd/cairn/commands"
	"go.trai.ch/cairn/internal/adapters/claim"
	"go.trai.ch/cairn/internal/adapters/config"
	"go.trai.ch/cairn/internal/adapters/installer"
	"go.trai.ch/cairn/internal/adapters/logger"
	"go.trai.ch/cairn/internal/adapters/repo"
	"go.trai.ch/cairn/internal/adapters/telemetry"
	"go.trai.ch/cairn/internal/app"
	"go.trai.ch/cairn/internal/core/domain"
	"go.trai.ch/cairn/internal/engine/env"
)

func newCLI(t *testing.T) *commands.CLI {
	t.Helper()
	base := repo.NewMemory(repo.BaseNamespace,
		&domain.Recipe{
			Name:     domain.NewInternedString("libelf"),
			Versions: []string{"0.8.13"},
		},
	)
	log := logger.New()
	manager := env.NewManager(
		t.TempDir(),
		config.NewLoader(log),
		base,
		installer.New(t.TempDir(), log, nil),
		claim.NewTable(t.TempDir()),
		telemetry.NewNoOpTracer(),
		log,
	)
	return commands.New(app.New(manager, log))
}

func execute(t *testing.T, cli *commands.CLI, args ...string) (string, error) {
	t.Helper()
	var out strings.Builder
	cli.SetOut(&out)
	cli.SetArgs(args)
	err := cli.Execute(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, newCLI(t), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "cairn version")
}

func TestEnvCommands(t *testing.T) {
	cli := newCLI(t)

	_, err := execute(t, cli, "env", "create", "dev")
	require.NoError(t, err)

	out, err := execute(t, cli, "env", "list")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)

	_, err = execute(t, cli, "env", "create", "dev")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEnvironmentExists)

	_, err = execute(t, cli, "env", "destroy", "dev")
	require.NoError(t, err)

	out, err = execute(t, cli, "env", "list")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSpecWorkflow(t *testing.T) {
	cli := newCLI(t)

	_, err := execute(t, cli, "env", "create", "dev")
	require.NoError(t, err)

	_, err = execute(t, cli, "add", "--env", "dev", "libelf@0.8.13")
	require.NoError(t, err)
	_, err = execute(t, cli, "concretize", "--env", "dev")
	require.NoError(t, err)
	_, err = execute(t, cli, "install", "--env", "dev")
	require.NoError(t, err)

	out, err := execute(t, cli, "status", "--env", "dev")
	require.NoError(t, err)
	assert.Contains(t, out, "libelf")
	assert.Contains(t, out, "installed")

	out, err = execute(t, cli, "loads", "--env", "dev")
	require.NoError(t, err)
	assert.Contains(t, out, "module load libelf-0.8.13-")
}

func TestEnvFlagFallsBackToEnvironmentVariable(t *testing.T) {
	cli := newCLI(t)

	_, err := execute(t, cli, "env", "create", "dev")
	require.NoError(t, err)

	t.Setenv("CAIRN_ENV", "dev")
	_, err = execute(t, cli, "add", "libelf")
	require.NoError(t, err)

	out, err := execute(t, cli, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "libelf")
}

func TestMissingEnvironmentIsCommandError(t *testing.T) {
	cli := newCLI(t)

	t.Setenv("CAIRN_ENV", "")
	_, err := execute(t, cli, "status")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownEnvironment)

	_, err = execute(t, cli, "status", "--env", "nosuch")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownEnvironment)
}
