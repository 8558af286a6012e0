// Package env implements named environments: an ordered list of abstract
// user specs, their concretized closure and the on-disk manifest and
// lockfile that persist both.
package env

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"go.trai.ch/cairn/internal/adapters/config"
	"go.trai.ch/cairn/internal/core/domain"
	"go.trai.ch/cairn/internal/core/ports"
	"go.trai.ch/cairn/internal/engine/concretize"
	"go.trai.ch/zerr"
)

const (
	// ManifestName is the environment manifest file.
	ManifestName = "cairn.yaml"
	// LockName is the environment lockfile.
	LockName = "cairn.lock"
	// OverlayDir is the optional per-environment recipe overlay directory.
	OverlayDir = "packages"
)

// Environment is one named environment. User specs record intent in order;
// Remove keeps the concretized roots aligned with them, while a new Add
// leaves the resolution stale until the next Concretize rebuilds it.
type Environment struct {
	name      string
	dir       string
	namespace string

	manifest *config.Manifest
	loader   *config.Loader
	stack    *config.Stack
	prefs    *config.Preferences

	repo      ports.Repository
	conc      *concretize.Concretizer
	installer ports.Installer
	locker    ports.InstallLocker
	tracer    ports.Tracer
	logger    ports.Logger

	mu               sync.Mutex
	userSpecs        []*domain.Spec
	concretizedOrder []string
	specsByHash      map[string]*domain.Spec
}

// Name returns the environment name.
func (e *Environment) Name() string { return e.name }

// Dir returns the environment directory.
func (e *Environment) Dir() string { return e.dir }

// Roots returns the abstract user specs in order.
func (e *Environment) Roots() []*domain.Spec {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*domain.Spec, len(e.userSpecs))
	copy(out, e.userSpecs)
	return out
}

// RootHashes returns the concretized root hashes, aligned with Roots.
func (e *Environment) RootHashes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.concretizedOrder)
}

// Closure returns a copy of the concretized closure by content hash.
func (e *Environment) Closure() map[string]*domain.Spec {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]*domain.Spec, len(e.specsByHash))
	for hash, spec := range e.specsByHash {
		out[hash] = spec
	}
	return out
}

// Add appends an abstract spec to the environment. A second root with the
// same package name is rejected; constraints belong on the one root.
func (e *Environment) Add(raw string) (*domain.Spec, error) {
	spec, err := domain.ParseSpec(raw)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.userSpecs {
		if existing.Name == spec.Name {
			err := zerr.With(zerr.Wrap(domain.ErrDuplicateSpec, "package already has a root"), "spec", raw)
			return nil, zerr.With(err, "existing", existing.String())
		}
	}
	e.userSpecs = append(e.userSpecs, spec)
	if err := e.saveManifestLocked(); err != nil {
		e.userSpecs = e.userSpecs[:len(e.userSpecs)-1]
		return nil, err
	}
	return spec, nil
}

// Remove drops the root with the given package name. Its hash leaves the
// concretized roots immediately, keeping the environment usable, while the
// closure keeps the spec until the next Concretize purges it, so a removal
// is cheap and reversible up to that point.
func (e *Environment) Remove(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	aligned := len(e.concretizedOrder) == len(e.userSpecs)
	for i, spec := range e.userSpecs {
		if spec.Name.String() == name {
			removed := spec
			e.userSpecs = append(e.userSpecs[:i], e.userSpecs[i+1:]...)
			if err := e.saveManifestLocked(); err != nil {
				e.userSpecs = append(e.userSpecs[:i], append([]*domain.Spec{removed}, e.userSpecs[i:]...)...)
				return err
			}
			if aligned {
				e.concretizedOrder = append(e.concretizedOrder[:i], e.concretizedOrder[i+1:]...)
				return e.saveLockLocked()
			}
			return nil
		}
	}
	return zerr.With(zerr.Wrap(domain.ErrSpecNotFound, "no root with that name"), "name", name)
}

// Concretize resolves the user specs into a concrete closure, reusing the
// previous resolution where constraints still admit it. With force set the
// previous resolution is discarded and everything re-resolves fresh.
// Concretizing twice without changes is a no-op with identical hashes.
func (e *Environment) Concretize(ctx context.Context, force bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var pinned map[string]*domain.Spec
	if !force {
		pinned = e.specsByHash
	}
	return e.resolveLocked(ctx, concretize.Input{
		Roots:     e.userSpecs,
		Pinned:    pinned,
		Namespace: e.namespace,
	})
}

// UpgradeDependency re-resolves a single package to the best currently
// available candidate, keeping the rest of the closure pinned. Dependents
// of the upgraded package re-hash bottom-up; disjoint subtrees keep their
// hashes.
func (e *Environment) UpgradeDependency(ctx context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pinned := make(map[string]*domain.Spec, len(e.specsByHash))
	found := false
	for hash, spec := range e.specsByHash {
		if spec.Name.String() == name {
			found = true
			continue
		}
		pinned[hash] = spec
	}
	if !found {
		return zerr.With(zerr.Wrap(domain.ErrPackageNotFound, "not in the concretized closure"), "package", name)
	}
	return e.resolveLocked(ctx, concretize.Input{
		Roots:     e.userSpecs,
		Pinned:    pinned,
		Namespace: e.namespace,
	})
}

// ResetOSAndCompiler re-resolves the toolchain and target platform of the
// whole closure to current defaults. A non-empty compiler (spec syntax,
// `gcc@13.2.0`) becomes the environment-wide compiler preference first.
func (e *Environment) ResetOSAndCompiler(ctx context.Context, compiler string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if compiler != "" {
		if e.manifest.Env.Packages == nil {
			e.manifest.Env.Packages = make(map[string]config.PackagePrefs)
		}
		all := e.manifest.Env.Packages["all"]
		all.Compiler = []string{compiler}
		e.manifest.Env.Packages["all"] = all
		if err := e.saveManifestLocked(); err != nil {
			return err
		}
		if err := e.reloadConfigLocked(); err != nil {
			return err
		}
	}

	return e.resolveLocked(ctx, concretize.Input{
		Roots:          e.userSpecs,
		Pinned:         e.specsByHash,
		Namespace:      e.namespace,
		ResetToolchain: true,
	})
}

func (e *Environment) resolveLocked(ctx context.Context, in concretize.Input) error {
	res, err := e.conc.Resolve(ctx, in)
	if err != nil {
		return err
	}
	e.concretizedOrder = res.RootHashes
	e.specsByHash = res.ByHash
	return e.saveLockLocked()
}

// reloadConfigLocked rebuilds the scope stack and dependent collaborators
// after a manifest edit.
func (e *Environment) reloadConfigLocked() error {
	stack, err := e.loader.BuildStack(filepath.Join(e.dir, ManifestName), e.manifest)
	if err != nil {
		return err
	}
	e.stack = stack
	e.prefs = config.NewPreferences(stack)
	e.conc = concretize.New(e.repo, e.prefs, e.logger)
	return nil
}

// Status renders the environment state: each root with its resolved form
// and install state, then the closure size.
func (e *Environment) Status(w io.Writer) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	fmt.Fprintf(w, "environment %s\n", e.name)
	if len(e.userSpecs) == 0 {
		fmt.Fprintln(w, "  no root specs")
		return nil
	}

	concretized := len(e.concretizedOrder) == len(e.userSpecs)
	for i, spec := range e.userSpecs {
		if !concretized {
			fmt.Fprintf(w, "  %s  (not concretized)\n", spec)
			continue
		}
		hash := e.concretizedOrder[i]
		resolved := e.specsByHash[hash]
		state := "not installed"
		if e.installer.IsInstalled(resolved) {
			state = "installed"
		}
		fmt.Fprintf(w, "  %s -> %s  [%s]  %s\n", spec, resolved, hash[:8], state)
	}
	if concretized {
		fmt.Fprintf(w, "  %d specs in closure\n", len(e.specsByHash))
	}
	return nil
}

// Install builds the closure dependency-first. Every hash is claimed
// across processes before building; an already installed hash is skipped.
// A failing spec poisons only its dependents, independent subtrees keep
// installing, and the failures aggregate into one ErrBuildFailure.
func (e *Environment) Install(ctx context.Context) error {
	graph, err := e.graph()
	if err != nil {
		return err
	}

	names := make([]string, 0, graph.Len())
	for _, spec := range e.closureSpecs() {
		names = append(names, spec.String())
	}
	sort.Strings(names)
	e.tracer.EmitPlan(ctx, names)

	failed := make(map[string]error)
	for hash, spec := range graph.Walk() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if skip := e.failedDependency(spec, failed); skip != nil {
			failed[hash] = skip
			continue
		}
		if err := e.installOne(ctx, hash, spec); err != nil {
			e.logger.Error(err)
			failed[hash] = err
		}
	}

	if len(failed) == 0 {
		return nil
	}
	hashes := make([]string, 0, len(failed))
	for hash := range failed {
		hashes = append(hashes, hash)
	}
	sort.Strings(hashes)
	err = zerr.Wrap(domain.ErrBuildFailure,
		fmt.Sprintf("%d of %d specs failed to install", len(failed), graph.Len()))
	return zerr.With(err, "failed", strings.Join(hashes, ", "))
}

func (e *Environment) failedDependency(spec *domain.Spec, failed map[string]error) error {
	for _, dep := range spec.DependencyHashes {
		if _, ok := failed[dep]; ok {
			err := zerr.Wrap(domain.ErrBuildFailure, "dependency failed, skipping "+spec.String())
			return zerr.With(err, "dependency", dep)
		}
	}
	return nil
}

func (e *Environment) installOne(ctx context.Context, hash string, spec *domain.Spec) error {
	ctx, span := e.tracer.Start(ctx, "install "+spec.String())
	defer span.End()
	span.SetAttribute("hash", hash)

	release, err := e.locker.Acquire(ctx, hash)
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer release()

	if e.installer.IsInstalled(spec) {
		span.SetAttribute("cached", true)
		return nil
	}
	if err := e.installer.Install(ctx, spec); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Uninstall removes every installed spec of the closure, dependents before
// dependencies.
func (e *Environment) Uninstall(ctx context.Context) error {
	graph, err := e.graph()
	if err != nil {
		return err
	}

	order := make([]string, 0, graph.Len())
	for hash := range graph.Walk() {
		order = append(order, hash)
	}

	var errs []string
	for i := len(order) - 1; i >= 0; i-- {
		hash := order[i]
		spec := e.lookup(hash)
		if !e.installer.IsInstalled(spec) {
			continue
		}
		release, err := e.locker.Acquire(ctx, hash)
		if err != nil {
			return err
		}
		err = e.installer.Uninstall(ctx, spec)
		release()
		if err != nil {
			e.logger.Error(err)
			errs = append(errs, hash)
		}
	}
	if len(errs) > 0 {
		err := zerr.Wrap(domain.ErrBuildFailure, "uninstall failed")
		return zerr.With(err, "failed", strings.Join(errs, ", "))
	}
	return nil
}

// Stage fetches and stages every spec of the closure without building.
func (e *Environment) Stage(ctx context.Context) error {
	graph, err := e.graph()
	if err != nil {
		return err
	}
	for _, spec := range graph.Walk() {
		if err := e.installer.Stage(ctx, spec); err != nil {
			return err
		}
	}
	return nil
}

// Loads writes module-load lines for every installed spec, dependencies
// first so sourcing the output loads a working stack.
func (e *Environment) Loads(w io.Writer) error {
	graph, err := e.graph()
	if err != nil {
		return err
	}
	for hash, spec := range graph.Walk() {
		if !e.installer.IsInstalled(spec) {
			continue
		}
		fmt.Fprintf(w, "module load %s-%s-%s\n", spec.Name.String(), spec.Version, hash[:7])
	}
	return nil
}

// ToLockfile snapshots the concretized closure.
func (e *Environment) ToLockfile() (*domain.Lockfile, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.concretizedOrder) != len(e.userSpecs) {
		return nil, zerr.Wrap(domain.ErrIncompleteSpec, "environment is not concretized")
	}
	return domain.NewLockfile(e.concretizedOrder, e.specsByHash), nil
}

// FromLockfile restores the closure from a lockfile snapshot.
func (e *Environment) FromLockfile(lf *domain.Lockfile) error {
	if err := lf.Validate(); err != nil {
		return err
	}
	specs, err := lf.Specs()
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.concretizedOrder = slices.Clone(lf.Roots)
	e.specsByHash = specs
	return nil
}

func (e *Environment) graph() (*domain.Graph, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.concretizedOrder) != len(e.userSpecs) || len(e.specsByHash) == 0 {
		return nil, zerr.Wrap(domain.ErrIncompleteSpec, "environment is not concretized")
	}
	return domain.NewGraph(e.specsByHash)
}

func (e *Environment) closureSpecs() []*domain.Spec {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*domain.Spec, 0, len(e.specsByHash))
	for _, spec := range e.specsByHash {
		out = append(out, spec)
	}
	return out
}

func (e *Environment) lookup(hash string) *domain.Spec {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.specsByHash[hash]
}

// saveManifestLocked persists the manifest with the current user specs.
func (e *Environment) saveManifestLocked() error {
	specs := make([]string, 0, len(e.userSpecs))
	for _, spec := range e.userSpecs {
		specs = append(specs, spec.String())
	}
	e.manifest.Env.Specs = specs

	data, err := yaml.Marshal(e.manifest)
	if err != nil {
		return zerr.Wrap(err, "encoding manifest")
	}
	path := filepath.Join(e.dir, ManifestName)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return zerr.Wrap(err, "writing manifest")
	}
	return nil
}

func (e *Environment) saveLockLocked() error {
	lf := domain.NewLockfile(e.concretizedOrder, e.specsByHash)
	data, err := json.MarshalIndent(lf, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "encoding lockfile")
	}
	path := filepath.Join(e.dir, LockName)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return zerr.Wrap(err, "writing lockfile")
	}
	return nil
}
