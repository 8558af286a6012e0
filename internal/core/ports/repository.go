// Package ports defines the core interfaces for the application.
package ports

import "go.trai.ch/cairn/internal/core/domain"

// Repository presents package recipes to the concretizer. Implementations
// include the base filesystem repository and the per-environment overlay
// that shadows it.
//
//go:generate go run go.uber.org/mock/mockgen -source=repository.go -destination=mocks/mock_repository.go -package=mocks
type Repository interface {
	// Get returns the recipe for the named package, preferring the given
	// namespace before falling back to the base namespace. Returns
	// domain.ErrPackageNotFound for unknown packages.
	Get(name, namespace string) (*domain.Recipe, error)
}
