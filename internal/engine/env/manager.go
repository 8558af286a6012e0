package env

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.trai.ch/cairn/internal/adapters/config"
	"go.trai.ch/cairn/internal/adapters/repo"
	"go.trai.ch/cairn/internal/core/domain"
	"go.trai.ch/cairn/internal/core/ports"
	"go.trai.ch/zerr"
)

// Manager creates, opens, lists and destroys environments under a root
// directory, one subdirectory per environment.
type Manager struct {
	envRoot   string
	loader    *config.Loader
	base      ports.Repository
	installer ports.Installer
	locker    ports.InstallLocker
	tracer    ports.Tracer
	logger    ports.Logger
}

// NewManager creates a Manager rooted at envRoot.
func NewManager(envRoot string, loader *config.Loader, base ports.Repository, installer ports.Installer, locker ports.InstallLocker, tracer ports.Tracer, logger ports.Logger) *Manager {
	return &Manager{
		envRoot:   envRoot,
		loader:    loader,
		base:      base,
		installer: installer,
		locker:    locker,
		tracer:    tracer,
		logger:    logger,
	}
}

// Create makes a new environment with an empty manifest.
func (m *Manager) Create(name string) (*Environment, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	dir := filepath.Join(m.envRoot, name)
	if _, err := os.Stat(filepath.Join(dir, ManifestName)); err == nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrEnvironmentExists, "manifest already present"), "name", name)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, zerr.Wrap(err, "creating environment directory")
	}

	env := m.newEnvironment(name, dir, &config.Manifest{})
	if err := env.reloadConfigLocked(); err != nil {
		return nil, err
	}
	if err := env.saveManifestLocked(); err != nil {
		return nil, err
	}
	m.logger.Info("created environment " + name)
	return env, nil
}

// Open loads an existing environment, restoring the closure from its
// lockfile when present.
func (m *Manager) Open(name string) (*Environment, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	dir := filepath.Join(m.envRoot, name)
	manifestPath := filepath.Join(dir, ManifestName)
	if _, err := os.Stat(manifestPath); err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrUnknownEnvironment, "no manifest"), "name", name)
	}

	manifest, err := m.loader.LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	env := m.newEnvironment(name, dir, manifest)
	if err := env.reloadConfigLocked(); err != nil {
		return nil, err
	}

	env.userSpecs, err = config.ParseSpecs(manifest)
	if err != nil {
		return nil, err
	}

	if err := m.restoreLock(env); err != nil {
		return nil, err
	}
	return env, nil
}

// Destroy removes an environment and its directory. Installed specs stay
// in the store; other environments may share them.
func (m *Manager) Destroy(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	dir := filepath.Join(m.envRoot, name)
	if _, err := os.Stat(filepath.Join(dir, ManifestName)); err != nil {
		return zerr.With(zerr.Wrap(domain.ErrUnknownEnvironment, "no manifest"), "name", name)
	}
	if err := os.RemoveAll(dir); err != nil {
		return zerr.Wrap(err, "removing environment directory")
	}
	m.logger.Info("destroyed environment " + name)
	return nil
}

// List returns the names of all environments, sorted.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.envRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, zerr.Wrap(err, "reading environment root")
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(m.envRoot, e.Name(), ManifestName)); err == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *Manager) newEnvironment(name, dir string, manifest *config.Manifest) *Environment {
	namespace := "env." + name

	var local ports.Repository
	overlayDir := filepath.Join(dir, OverlayDir)
	if info, err := os.Stat(overlayDir); err == nil && info.IsDir() {
		local = repo.NewFSRepository(overlayDir, namespace)
	}

	env := &Environment{
		name:      name,
		dir:       dir,
		namespace: namespace,
		manifest:  manifest,
		loader:    m.loader,
		repo:      repo.NewOverlay(namespace, local, m.base),
		installer: m.installer,
		locker:    m.locker,
		tracer:    m.tracer,
		logger:    m.logger,
	}
	return env
}

func (m *Manager) restoreLock(env *Environment) error {
	data, err := os.ReadFile(filepath.Join(env.dir, LockName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return zerr.Wrap(err, "reading lockfile")
	}

	var lf domain.Lockfile
	if err := json.Unmarshal(data, &lf); err != nil {
		return zerr.Wrap(domain.ErrInvalidLockfile, err.Error())
	}
	return env.FromLockfile(&lf)
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return zerr.With(zerr.Wrap(domain.ErrUnknownEnvironment, "invalid environment name"), "name", name)
	}
	return nil
}
