package repo

import (
	"errors"

	"go.trai.ch/cairn/internal/core/domain"
	"go.trai.ch/cairn/internal/core/ports"
)

// Overlay presents recipes namespaced per environment: lookups try the
// environment's local repository first and fall back to the base
// repository. An environment can shadow a global package definition
// locally without mutating global state; the overlay is torn down with
// the environment.
type Overlay struct {
	namespace string
	local     ports.Repository
	base      ports.Repository
}

// NewOverlay layers an optional environment-local repository over a base
// repository. local may be nil when the environment has no overlay dir.
func NewOverlay(namespace string, local, base ports.Repository) *Overlay {
	return &Overlay{namespace: namespace, local: local, base: base}
}

// Namespace returns the overlay's environment namespace.
func (o *Overlay) Namespace() string {
	return o.namespace
}

// Get returns the recipe whose namespace matches the environment first,
// falling back to the base repository.
func (o *Overlay) Get(name, namespace string) (*domain.Recipe, error) {
	if o.local != nil && namespace == o.namespace {
		recipe, err := o.local.Get(name, o.namespace)
		if err == nil {
			return recipe, nil
		}
		if !errors.Is(err, domain.ErrPackageNotFound) {
			return nil, err
		}
	}
	return o.base.Get(name, BaseNamespace)
}
