// Package settings resolves the process-wide directory layout from the
// environment, with defaults under ~/.cairn.
package settings

import (
	"os"
	"path/filepath"
)

// Settings holds the directory layout shared by the adapters.
type Settings struct {
	// Home is the cairn root, $CAIRN_HOME or ~/.cairn.
	Home string
	// EnvRoot holds one directory per named environment.
	EnvRoot string
	// RepoDir is the base package repository.
	RepoDir string
	// ClaimDir holds the cross-process per-hash install claims.
	ClaimDir string
	// InstallRoot is where the build collaborator installs by hash.
	InstallRoot string
}

// Load resolves settings from the process environment.
func Load() *Settings {
	home := os.Getenv("CAIRN_HOME")
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			userHome = "."
		}
		home = filepath.Join(userHome, ".cairn")
	}

	s := &Settings{
		Home:        home,
		EnvRoot:     filepath.Join(home, "environments"),
		RepoDir:     filepath.Join(home, "repo"),
		ClaimDir:    filepath.Join(home, "claims"),
		InstallRoot: filepath.Join(home, "store"),
	}
	if repo := os.Getenv("CAIRN_REPO"); repo != "" {
		s.RepoDir = repo
	}
	return s
}
