// Package repo implements package recipe repositories: a filesystem-backed
// base repository, an in-memory repository and the per-environment overlay.
package repo

import (
	"os"
	"path/filepath"
	"sync"

	"go.trai.ch/cairn/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// BaseNamespace is the namespace of the global repository.
const BaseNamespace = "builtin"

// recipeDTO is the on-disk recipe schema (`<repo>/<name>.yaml`).
type recipeDTO struct {
	Versions []string `yaml:"versions"`
	Variants map[string]struct {
		Default string   `yaml:"default"`
		Values  []string `yaml:"values"`
	} `yaml:"variants"`
	DependsOn []string `yaml:"depends_on"`
	Compilers []string `yaml:"compilers"`
}

// FSRepository serves recipes from a directory of YAML files, one file per
// package, caching parsed recipes.
type FSRepository struct {
	root      string
	namespace string

	mu    sync.RWMutex
	cache map[string]*domain.Recipe
}

// NewFSRepository creates a repository rooted at dir, serving the given
// namespace.
func NewFSRepository(dir, namespace string) *FSRepository {
	return &FSRepository{
		root:      filepath.Clean(dir),
		namespace: namespace,
		cache:     make(map[string]*domain.Recipe),
	}
}

// Get returns the recipe for the named package. The namespace argument
// must match this repository's namespace.
func (r *FSRepository) Get(name, namespace string) (*domain.Recipe, error) {
	if namespace != r.namespace {
		return nil, zerr.With(zerr.Wrap(domain.ErrPackageNotFound, "foreign namespace"), "namespace", namespace)
	}

	r.mu.RLock()
	if recipe, ok := r.cache[name]; ok {
		r.mu.RUnlock()
		return recipe, nil
	}
	r.mu.RUnlock()

	recipe, err := r.load(name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[name] = recipe
	r.mu.Unlock()
	return recipe, nil
}

func (r *FSRepository) load(name string) (*domain.Recipe, error) {
	path := filepath.Join(r.root, name+".yaml")
	data, err := os.ReadFile(path) //nolint:gosec // path is rooted in the repository dir
	if err != nil {
		if os.IsNotExist(err) {
			err := zerr.With(zerr.Wrap(domain.ErrPackageNotFound, "no recipe file"), "package", name)
			return nil, zerr.With(err, "namespace", r.namespace)
		}
		return nil, zerr.Wrap(err, "failed to read recipe")
	}

	var dto recipeDTO
	if err := yaml.Unmarshal(data, &dto); err != nil {
		err = zerr.Wrap(domain.ErrConfigFormat, err.Error())
		return nil, zerr.With(err, "file", path)
	}
	return buildRecipe(name, r.namespace, dto)
}

func buildRecipe(name, namespace string, dto recipeDTO) (*domain.Recipe, error) {
	recipe := &domain.Recipe{
		Name:      domain.NewInternedString(name),
		Namespace: namespace,
		Versions:  dto.Versions,
		Compilers: dto.Compilers,
	}
	if len(dto.Variants) > 0 {
		recipe.Variants = make(map[string]domain.VariantDef, len(dto.Variants))
		for vname, v := range dto.Variants {
			recipe.Variants[vname] = domain.VariantDef{Default: v.Default, Values: v.Values}
		}
	}
	for _, dep := range dto.DependsOn {
		spec, err := domain.ParseSpec(dep)
		if err != nil {
			return nil, zerr.With(err, "recipe", name)
		}
		recipe.Dependencies = append(recipe.Dependencies, spec)
	}
	return recipe, nil
}
