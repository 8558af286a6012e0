package repo

import (
	"go.trai.ch/cairn/internal/core/domain"
	"go.trai.ch/zerr"
)

// Memory is an in-memory repository, used in tests and for seeding.
type Memory struct {
	namespace string
	recipes   map[string]*domain.Recipe
}

// NewMemory creates an in-memory repository for a namespace.
func NewMemory(namespace string, recipes ...*domain.Recipe) *Memory {
	m := &Memory{namespace: namespace, recipes: make(map[string]*domain.Recipe)}
	for _, r := range recipes {
		r.Namespace = namespace
		m.recipes[r.Name.String()] = r
	}
	return m
}

// Add registers a recipe.
func (m *Memory) Add(r *domain.Recipe) {
	r.Namespace = m.namespace
	m.recipes[r.Name.String()] = r
}

// Get implements ports.Repository.
func (m *Memory) Get(name, namespace string) (*domain.Recipe, error) {
	if namespace == m.namespace {
		if r, ok := m.recipes[name]; ok {
			return r, nil
		}
	}
	err := zerr.With(zerr.Wrap(domain.ErrPackageNotFound, "no recipe registered"), "package", name)
	return nil, zerr.With(err, "namespace", namespace)
}
