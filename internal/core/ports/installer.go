package ports

import (
	"context"

	"go.trai.ch/cairn/internal/core/domain"
)

// Installer is the build collaborator contract. The core invokes it once
// per content hash in dependency order; everything about how a spec is
// fetched, staged and compiled lives behind this boundary.
//
//go:generate go run go.uber.org/mock/mockgen -source=installer.go -destination=mocks/mock_installer.go -package=mocks
type Installer interface {
	// Install builds and installs a concrete spec. The spec is guaranteed
	// concrete and all of its dependencies installed.
	Install(ctx context.Context, spec *domain.Spec) error

	// IsInstalled reports whether the concrete spec is already installed.
	IsInstalled(spec *domain.Spec) bool

	// Uninstall removes an installed spec.
	Uninstall(ctx context.Context, spec *domain.Spec) error

	// Stage fetches and stages the spec's sources without building.
	Stage(ctx context.Context, spec *domain.Spec) error
}
