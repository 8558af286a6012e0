package app

import (
	"go.trai.ch/cairn/internal/core/ports"
	"go.trai.ch/cairn/internal/engine/env"
)

// Components contains the initialized application components. It provides
// controlled access to what the CLI layer needs.
type Components struct {
	App     *App
	Logger  ports.Logger
	Manager *env.Manager
}

// NewComponents creates a Components struct from its dependencies.
func NewComponents(app *App, logger ports.Logger, manager *env.Manager) *Components {
	return &Components{
		App:     app,
		Logger:  logger,
		Manager: manager,
	}
}
