package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	originalArgs := os.Args
	defer func() { os.Args = originalArgs }()

	home := t.TempDir()
	t.Setenv("CAIRN_HOME", home)
	t.Setenv("CAIRN_ENV", "dev")

	repoDir := filepath.Join(home, "repo")
	require.NoError(t, os.MkdirAll(repoDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "zlib.yaml"),
		[]byte("versions: [\"1.2.11\", \"1.2.8\"]\n"), 0o600))

	steps := [][]string{
		{"cairn", "env", "create", "dev"},
		{"cairn", "add", "zlib@1.2.11"},
		{"cairn", "concretize"},
		{"cairn", "install"},
		{"cairn", "status"},
		{"cairn", "env", "list"},
	}
	for _, args := range steps {
		os.Args = args
		assert.Equal(t, 0, run(), "command %v", args)
	}

	// A lockfile exists after concretize.
	_, err := os.Stat(filepath.Join(home, "environments", "dev", "cairn.lock"))
	assert.NoError(t, err)
}

func TestRun_UnknownEnvironment(t *testing.T) {
	originalArgs := os.Args
	defer func() { os.Args = originalArgs }()

	t.Setenv("CAIRN_HOME", t.TempDir())
	t.Setenv("CAIRN_ENV", "nosuch")

	os.Args = []string{"cairn", "status"}
	assert.Equal(t, 1, run())
}
