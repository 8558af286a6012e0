// Package concretize turns abstract spec requests into a fully resolved,
// content-addressed dependency closure.
//
// Concretization is unified per environment: all roots contribute their
// constraints to a single constraint table keyed by package name, so two
// roots that share a dependency agree on one resolution of it. Conflicting
// constraints fail the whole operation and name every requester involved.
package concretize

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"go.trai.ch/cairn/internal/adapters/config"
	"go.trai.ch/cairn/internal/core/domain"
	"go.trai.ch/cairn/internal/core/ports"
	"go.trai.ch/zerr"
)

// DefaultCompiler is the toolchain used when neither constraints, pinned
// resolutions nor preferences name one.
var DefaultCompiler = domain.Compiler{Name: "gcc", Version: "13.2.0"}

// Concretizer resolves abstract specs against a repository and the
// environment's preference projection.
type Concretizer struct {
	repo   ports.Repository
	prefs  *config.Preferences
	logger ports.Logger
}

// New creates a Concretizer.
func New(repo ports.Repository, prefs *config.Preferences, logger ports.Logger) *Concretizer {
	return &Concretizer{repo: repo, prefs: prefs, logger: logger}
}

// Input is one concretization request.
type Input struct {
	// Roots are the environment's abstract user specs.
	Roots []*domain.Spec

	// Pinned holds previously concretized specs by content hash. Their
	// resolved attributes are reused where the merged constraints still
	// admit them; hashes are always rebuilt bottom-up.
	Pinned map[string]*domain.Spec

	// Namespace scopes repository lookups.
	Namespace string

	// DefaultArch is used for packages without an arch constraint. Empty
	// means the host platform.
	DefaultArch string

	// ResetToolchain drops pinned compiler and arch reuse so both
	// re-resolve to current defaults.
	ResetToolchain bool
}

// Result is the resolved closure.
type Result struct {
	// RootHashes holds the content hash of each input root, same order.
	RootHashes []string

	// ByHash is the full closure keyed by content hash.
	ByHash map[string]*domain.Spec

	// ByName is the same closure keyed by package name.
	ByName map[string]*domain.Spec
}

// Resolve concretizes the input. Independent subgraphs of the package
// graph resolve in parallel; the constraint table is built up front so
// parallelism never changes the outcome.
func (c *Concretizer) Resolve(ctx context.Context, in Input) (*Result, error) {
	table, err := c.gather(in)
	if err != nil {
		return nil, err
	}

	pinnedByName := indexPinned(in.Pinned)
	components := partition(table)

	res := &Result{
		ByHash: make(map[string]*domain.Spec, len(table)),
		ByName: make(map[string]*domain.Spec, len(table)),
	}
	var mu sync.Mutex

	eg, ctx := errgroup.WithContext(ctx)
	for _, names := range components {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			resolved, err := c.resolveComponent(names, table, pinnedByName, in)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, spec := range resolved {
				hash, err := spec.ContentHash()
				if err != nil {
					return err
				}
				res.ByHash[hash] = spec
				res.ByName[spec.Name.String()] = spec
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	res.RootHashes = make([]string, len(in.Roots))
	for i, root := range in.Roots {
		spec := res.ByName[root.Name.String()]
		hash, err := spec.ContentHash()
		if err != nil {
			return nil, err
		}
		res.RootHashes[i] = hash
	}
	return res, nil
}

// node accumulates the merged constraints for one package name.
type node struct {
	name   string
	recipe *domain.Recipe

	version  domain.VersionRange
	compiler domain.CompilerConstraint
	variants map[string]domain.VariantConstraint
	arch     string

	// origins lists every requester that constrained this node, for
	// conflict reporting.
	origins []string

	// deps are dependency package names, from recipe edges and ^ edges.
	deps map[string]bool
}

type request struct {
	constraint *domain.Spec
	origin     string
}

// gather runs the constraint fixpoint: every root and every recipe edge
// contributes its constraints to the per-name table.
func (c *Concretizer) gather(in Input) (map[string]*node, error) {
	table := make(map[string]*node)
	var queue []request

	for _, root := range in.Roots {
		queue = append(queue, request{constraint: root, origin: "environment root " + root.Name.String()})
	}

	for len(queue) > 0 {
		req := queue[0]
		queue = queue[1:]

		name := req.constraint.Name.String()
		n, ok := table[name]
		if !ok {
			recipe, err := c.repo.Get(name, in.Namespace)
			if err != nil {
				return nil, zerr.Wrap(err, "requested by "+req.origin)
			}
			n = &node{
				name:     name,
				recipe:   recipe,
				variants: make(map[string]domain.VariantConstraint),
				deps:     make(map[string]bool),
			}
			table[name] = n
			for _, dep := range recipe.Dependencies {
				n.deps[dep.Name.String()] = true
				queue = append(queue, request{constraint: dep, origin: name})
			}
		}

		if err := n.merge(req.constraint, req.origin); err != nil {
			return nil, err
		}

		// ^dep edges constrain the dependency and tie it into this
		// package's closure.
		for _, dep := range req.constraint.Dependencies {
			n.deps[dep.Name.String()] = true
			queue = append(queue, request{constraint: dep, origin: req.origin})
		}
	}
	return table, nil
}

func (n *node) merge(constraint *domain.Spec, origin string) error {
	merged, ok := n.version.Intersect(constraint.VersionConstraint)
	if !ok {
		return n.conflict("version", origin)
	}
	n.version = merged

	cc := constraint.CompilerConstraint
	if cc.Name != "" {
		switch n.compiler.Name {
		case "":
			n.compiler = cc
		case cc.Name:
			mergedCompiler, ok := n.compiler.Version.Intersect(cc.Version)
			if !ok {
				return n.conflict("compiler", origin)
			}
			n.compiler.Version = mergedCompiler
		default:
			return n.conflict("compiler", origin)
		}
	}

	for name, vc := range constraint.VariantConstraints {
		mergedVariant, ok := n.variants[name].Intersect(vc)
		if !ok {
			return n.conflict("variant "+name, origin)
		}
		n.variants[name] = mergedVariant
	}

	if constraint.ArchConstraint != "" {
		if n.arch != "" && n.arch != constraint.ArchConstraint {
			return n.conflict("arch", origin)
		}
		n.arch = constraint.ArchConstraint
	}

	if !slices.Contains(n.origins, origin) {
		n.origins = append(n.origins, origin)
	}
	return nil
}

func (n *node) conflict(what, origin string) error {
	requesters := append(slices.Clone(n.origins), origin)
	return zerr.Wrap(domain.ErrConcretizationConflict,
		fmt.Sprintf("conflicting %s constraints for %q, requested by %s",
			what, n.name, strings.Join(requesters, ", ")))
}

// requesters renders the origin list for conflict messages.
func (n *node) requesters() string {
	return strings.Join(n.origins, ", ")
}

// partition splits the constraint table into connected components of the
// dependency graph, each resolvable independently.
func partition(table map[string]*node) [][]string {
	parent := make(map[string]string, len(table))
	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	names := sortedNodeNames(table)
	for _, name := range names {
		parent[name] = name
	}
	for _, name := range names {
		for dep := range table[name].deps {
			union(name, dep)
		}
	}

	groups := make(map[string][]string)
	for _, name := range names {
		root := find(name)
		groups[root] = append(groups[root], name)
	}

	reps := make([]string, 0, len(groups))
	for rep := range groups {
		reps = append(reps, rep)
	}
	sort.Strings(reps)

	out := make([][]string, 0, len(groups))
	for _, rep := range reps {
		sort.Strings(groups[rep])
		out = append(out, groups[rep])
	}
	return out
}

// resolveComponent resolves one connected component bottom-up, building
// hashes dependency-first.
func (c *Concretizer) resolveComponent(names []string, table map[string]*node, pinnedByName map[string][]*domain.Spec, in Input) ([]*domain.Spec, error) {
	order, err := topoSort(names, table)
	if err != nil {
		return nil, err
	}

	resolved := make(map[string]*domain.Spec, len(order))
	out := make([]*domain.Spec, 0, len(order))
	for _, name := range order {
		n := table[name]
		spec, err := c.resolveNode(n, pinnedByName[name], resolved, in)
		if err != nil {
			return nil, err
		}
		resolved[name] = spec
		out = append(out, spec)
	}
	return out, nil
}

func topoSort(names []string, table map[string]*node) ([]string, error) {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(names))
	order := make([]string, 0, len(names))

	var visit func(string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return zerr.With(zerr.Wrap(domain.ErrCycleDetected, "dependency cycle"), "package", name)
		}
		state[name] = visiting
		deps := make([]string, 0, len(table[name].deps))
		for dep := range table[name].deps {
			deps = append(deps, dep)
		}
		sort.Strings(deps)
		for _, dep := range deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = done
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (c *Concretizer) resolveNode(n *node, pinned []*domain.Spec, resolved map[string]*domain.Spec, in Input) (*domain.Spec, error) {
	pref, err := c.prefs.For(n.name)
	if err != nil {
		return nil, err
	}

	reuse := pickPinned(n, pinned)

	version, err := c.resolveVersion(n, pref, reuse)
	if err != nil {
		return nil, err
	}
	compiler, err := c.resolveCompiler(n, pref, reuse, in.ResetToolchain)
	if err != nil {
		return nil, err
	}
	variants, err := c.resolveVariants(n, pref, reuse)
	if err != nil {
		return nil, err
	}

	arch := n.arch
	if arch == "" && reuse != nil && !in.ResetToolchain {
		arch = reuse.Arch
	}
	if arch == "" {
		arch = in.DefaultArch
	}
	if arch == "" {
		arch = runtime.GOOS + "-" + runtime.GOARCH
	}

	spec := &domain.Spec{
		Name:     domain.NewInternedString(n.name),
		Concrete: true,
		Version:  version,
		Compiler: compiler,
		Variants: variants,
		Arch:     arch,
	}

	deps := make([]string, 0, len(n.deps))
	for dep := range n.deps {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	for _, dep := range deps {
		depSpec, ok := resolved[dep]
		if !ok {
			return nil, zerr.With(zerr.Wrap(domain.ErrMissingDependency, "dependency resolved out of order"), "package", dep)
		}
		hash, err := depSpec.ContentHash()
		if err != nil {
			return nil, err
		}
		spec.DependencyHashes = append(spec.DependencyHashes, hash)
	}
	sort.Strings(spec.DependencyHashes)
	return spec, nil
}

// pickPinned selects a previous resolution whose attributes still satisfy
// the merged constraints, preferring the lowest hash for determinism.
func pickPinned(n *node, pinned []*domain.Spec) *domain.Spec {
	constraint := &domain.Spec{
		Name:               domain.NewInternedString(n.name),
		VersionConstraint:  n.version,
		CompilerConstraint: n.compiler,
		VariantConstraints: n.variants,
		ArchConstraint:     n.arch,
	}
	for _, p := range pinned {
		if p.Satisfies(constraint) {
			return p
		}
	}
	return nil
}

func (c *Concretizer) resolveVersion(n *node, pref config.Preference, reuse *domain.Spec) (string, error) {
	available := func(v string) bool {
		return slices.Contains(n.recipe.Versions, v) && n.version.Includes(v)
	}

	if reuse != nil && available(reuse.Version) {
		return reuse.Version, nil
	}
	for _, v := range pref.Versions {
		if available(v) {
			return v, nil
		}
	}

	candidates := slices.Clone(n.recipe.Versions)
	slices.SortFunc(candidates, func(a, b string) int {
		return domain.CompareVersions(b, a)
	})
	for _, v := range candidates {
		if n.version.Includes(v) {
			return v, nil
		}
	}

	return "", zerr.Wrap(domain.ErrConcretizationConflict,
		fmt.Sprintf("no available version of %q satisfies @%s, requested by %s",
			n.name, n.version.String(), n.requesters()))
}

func (c *Concretizer) resolveCompiler(n *node, pref config.Preference, reuse *domain.Spec, reset bool) (domain.Compiler, error) {
	// Ranked preference list, restricted to compilers the recipe supports.
	var ranked []domain.Compiler
	for _, entry := range pref.Compilers {
		name, version, _ := strings.Cut(entry, "@")
		if n.recipe.SupportsCompiler(name) {
			ranked = append(ranked, domain.Compiler{Name: name, Version: version})
		}
	}

	if n.compiler.Name != "" {
		if !n.recipe.SupportsCompiler(n.compiler.Name) {
			return domain.Compiler{}, zerr.Wrap(domain.ErrConcretizationConflict,
				fmt.Sprintf("package %q does not build with compiler %q, requested by %s",
					n.name, n.compiler.Name, n.requesters()))
		}
		if exact, ok := n.compiler.Version.Exact(); ok {
			return domain.Compiler{Name: n.compiler.Name, Version: exact}, nil
		}
		if reuse != nil && !reset && reuse.Compiler.Name == n.compiler.Name && n.compiler.Version.Includes(reuse.Compiler.Version) {
			return reuse.Compiler, nil
		}
		for _, cand := range ranked {
			if cand.Name == n.compiler.Name && cand.Version != "" && n.compiler.Version.Includes(cand.Version) {
				return cand, nil
			}
		}
		if DefaultCompiler.Name == n.compiler.Name && n.compiler.Version.Includes(DefaultCompiler.Version) {
			return DefaultCompiler, nil
		}
		return domain.Compiler{}, zerr.Wrap(domain.ErrConcretizationConflict,
			fmt.Sprintf("no known version of compiler %q satisfies @%s, requested by %s",
				n.compiler.Name, n.compiler.Version.String(), n.requesters()))
	}

	if reuse != nil && !reset && n.recipe.SupportsCompiler(reuse.Compiler.Name) {
		return reuse.Compiler, nil
	}
	for _, cand := range ranked {
		if cand.Version != "" {
			return cand, nil
		}
	}
	if n.recipe.SupportsCompiler(DefaultCompiler.Name) {
		return DefaultCompiler, nil
	}

	return domain.Compiler{}, zerr.Wrap(domain.ErrConcretizationConflict,
		fmt.Sprintf("no configured compiler builds %q, requested by %s", n.name, n.requesters()))
}

func (c *Concretizer) resolveVariants(n *node, pref config.Preference, reuse *domain.Spec) (map[string]string, error) {
	values := n.recipe.DefaultVariants()
	if values == nil {
		values = make(map[string]string)
	}

	if reuse != nil {
		for name, v := range reuse.Variants {
			if _, declared := n.recipe.Variants[name]; declared {
				values[name] = v
			}
		}
	}
	for name, v := range pref.Variants {
		if _, declared := n.recipe.Variants[name]; declared {
			values[name] = v
		}
	}

	for name, vc := range n.variants {
		def, declared := n.recipe.Variants[name]
		if !declared {
			return nil, zerr.Wrap(domain.ErrConcretizationConflict,
				fmt.Sprintf("package %q has no variant %q, requested by %s",
					n.name, name, n.requesters()))
		}
		if vc.Allows(values[name]) {
			continue
		}
		picked := ""
		for _, v := range vc.Allowed {
			if len(def.Values) == 0 || slices.Contains(def.Values, v) {
				picked = v
				break
			}
		}
		if picked == "" {
			return nil, zerr.Wrap(domain.ErrConcretizationConflict,
				fmt.Sprintf("no allowed value for variant %q of %q, requested by %s",
					name, n.name, n.requesters()))
		}
		values[name] = picked
	}

	for name, v := range values {
		def := n.recipe.Variants[name]
		if len(def.Values) > 0 && !slices.Contains(def.Values, v) {
			return nil, zerr.Wrap(domain.ErrConcretizationConflict,
				fmt.Sprintf("value %q is not valid for variant %q of %q, requested by %s",
					v, name, n.name, n.requesters()))
		}
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}

func indexPinned(pinned map[string]*domain.Spec) map[string][]*domain.Spec {
	byName := make(map[string][]*domain.Spec)
	hashes := make([]string, 0, len(pinned))
	for h := range pinned {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)
	for _, h := range hashes {
		spec := pinned[h]
		byName[spec.Name.String()] = append(byName[spec.Name.String()], spec)
	}
	return byName
}

func sortedNodeNames(table map[string]*node) []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
