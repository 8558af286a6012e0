// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/cairn/internal/adapters/claim"
	_ "go.trai.ch/cairn/internal/adapters/config"
	_ "go.trai.ch/cairn/internal/adapters/installer"
	_ "go.trai.ch/cairn/internal/adapters/logger"
	_ "go.trai.ch/cairn/internal/adapters/repo"
	_ "go.trai.ch/cairn/internal/adapters/settings"
	_ "go.trai.ch/cairn/internal/adapters/telemetry/progrock"
	// Register app and engine nodes.
	_ "go.trai.ch/cairn/internal/app"
	_ "go.trai.ch/cairn/internal/engine/env"
)
