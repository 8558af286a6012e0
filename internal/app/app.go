// Package app implements the application layer for cairn: one facade per
// CLI operation, each resolving the named environment and delegating to it.
package app

import (
	"context"
	"fmt"
	"io"

	"go.trai.ch/cairn/internal/core/ports"
	"go.trai.ch/cairn/internal/engine/env"
	"go.trai.ch/zerr"
)

// App exposes the environment operations the CLI invokes.
type App struct {
	manager *env.Manager
	logger  ports.Logger
}

// New creates a new App instance.
func New(manager *env.Manager, logger ports.Logger) *App {
	return &App{manager: manager, logger: logger}
}

// CreateEnv creates a new named environment.
func (a *App) CreateEnv(name string) error {
	_, err := a.manager.Create(name)
	return err
}

// DestroyEnv removes an environment and its directory.
func (a *App) DestroyEnv(name string) error {
	return a.manager.Destroy(name)
}

// ListEnvs writes the environment names, one per line.
func (a *App) ListEnvs(w io.Writer) error {
	names, err := a.manager.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(w, name)
	}
	return nil
}

// Add appends abstract specs to an environment.
func (a *App) Add(envName string, specs []string) error {
	e, err := a.manager.Open(envName)
	if err != nil {
		return err
	}
	for _, raw := range specs {
		spec, err := e.Add(raw)
		if err != nil {
			return zerr.With(err, "spec", raw)
		}
		a.logger.Info("added " + spec.String())
	}
	return nil
}

// Remove drops roots from an environment by package name.
func (a *App) Remove(envName string, names []string) error {
	e, err := a.manager.Open(envName)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := e.Remove(name); err != nil {
			return err
		}
		a.logger.Info("removed " + name)
	}
	return nil
}

// Concretize resolves an environment's user specs into a concrete closure.
func (a *App) Concretize(ctx context.Context, envName string, force bool) error {
	e, err := a.manager.Open(envName)
	if err != nil {
		return err
	}
	return e.Concretize(ctx, force)
}

// Install builds the environment's closure dependency-first.
func (a *App) Install(ctx context.Context, envName string) error {
	e, err := a.manager.Open(envName)
	if err != nil {
		return err
	}
	return e.Install(ctx)
}

// Uninstall removes the environment's installed specs.
func (a *App) Uninstall(ctx context.Context, envName string) error {
	e, err := a.manager.Open(envName)
	if err != nil {
		return err
	}
	return e.Uninstall(ctx)
}

// Status renders the environment state to w.
func (a *App) Status(envName string, w io.Writer) error {
	e, err := a.manager.Open(envName)
	if err != nil {
		return err
	}
	return e.Status(w)
}

// Stage fetches and stages the closure without building.
func (a *App) Stage(ctx context.Context, envName string) error {
	e, err := a.manager.Open(envName)
	if err != nil {
		return err
	}
	return e.Stage(ctx)
}

// Loads writes module-load lines for the installed closure.
func (a *App) Loads(envName string, w io.Writer) error {
	e, err := a.manager.Open(envName)
	if err != nil {
		return err
	}
	return e.Loads(w)
}

// Upgrade re-resolves one package of an environment to the best available
// candidate.
func (a *App) Upgrade(ctx context.Context, envName, pkg string) error {
	e, err := a.manager.Open(envName)
	if err != nil {
		return err
	}
	return e.UpgradeDependency(ctx, pkg)
}

// ResetCompiler re-resolves the environment's toolchain. An empty compiler
// resets to the current defaults.
func (a *App) ResetCompiler(ctx context.Context, envName, compiler string) error {
	e, err := a.manager.Open(envName)
	if err != nil {
		return err
	}
	return e.ResetOSAndCompiler(ctx, compiler)
}
