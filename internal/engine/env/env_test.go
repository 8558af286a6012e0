package env_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/cairn/internal/adapters/claim"
	"go.trai.ch/cairn/internal/adapters/config"
	"go.trai.ch/cairn/internal/adapters/installer"
	"go.trai.ch/cairn/internal/adapters/logger"
	"go.trai.ch/cairn/internal/adapters/repo"
	"go.trai.ch/cairn/internal/adapters/telemetry"
	"go.trai.ch/cairn/internal/core/domain"
	"go.trai.ch/cairn/internal/engine/env"
)

type fixture struct {
	manager *env.Manager
	base    *repo.Memory
	store   *installer.Store
}

func mustParse(t *testing.T, raw string) *domain.Spec {
	t.Helper()
	spec, err := domain.ParseSpec(raw)
	require.NoError(t, err)
	return spec
}

func recipeDeps(t *testing.T, raws ...string) []*domain.Spec {
	t.Helper()
	deps := make([]*domain.Spec, 0, len(raws))
	for _, raw := range raws {
		deps = append(deps, mustParse(t, raw))
	}
	return deps
}

func newFixture(t *testing.T, hook installer.BuildHook) *fixture {
	t.Helper()
	base := repo.NewMemory(repo.BaseNamespace,
		&domain.Recipe{
			Name:         domain.NewInternedString("mpileaks"),
			Versions:     []string{"2.1", "2.2", "2.3"},
			Dependencies: recipeDeps(t, "callpath"),
		},
		&domain.Recipe{
			Name:         domain.NewInternedString("callpath"),
			Versions:     []string{"0.9"},
			Dependencies: recipeDeps(t, "dyninst", "libdwarf"),
		},
		&domain.Recipe{
			Name:     domain.NewInternedString("dyninst"),
			Versions: []string{"8.1.2"},
		},
		&domain.Recipe{
			Name:         domain.NewInternedString("libdwarf"),
			Versions:     []string{"20130729"},
			Dependencies: recipeDeps(t, "libelf"),
		},
		&domain.Recipe{
			Name:     domain.NewInternedString("libelf"),
			Versions: []string{"0.8.12", "0.8.13"},
		},
		&domain.Recipe{
			Name:     domain.NewInternedString("zlib"),
			Versions: []string{"1.2.11"},
		},
	)

	log := logger.New()
	store := installer.New(t.TempDir(), log, hook)
	manager := env.NewManager(
		t.TempDir(),
		config.NewLoader(log),
		base,
		store,
		claim.NewTable(t.TempDir()),
		telemetry.NewNoOpTracer(),
		log,
	)
	return &fixture{manager: manager, base: base, store: store}
}

func closureNames(closure map[string]*domain.Spec) []string {
	names := make([]string, 0, len(closure))
	for _, spec := range closure {
		names = append(names, spec.Name.String())
	}
	return names
}

func TestManager_Lifecycle(t *testing.T) {
	f := newFixture(t, nil)

	names, err := f.manager.List()
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = f.manager.Create("dev")
	require.NoError(t, err)
	_, err = f.manager.Create("ci")
	require.NoError(t, err)

	_, err = f.manager.Create("dev")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEnvironmentExists)

	names, err = f.manager.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"ci", "dev"}, names)

	_, err = f.manager.Open("nosuch")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownEnvironment)

	require.NoError(t, f.manager.Destroy("ci"))
	err = f.manager.Destroy("ci")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownEnvironment)

	_, err = f.manager.Create("../escape")
	require.Error(t, err)
}

func TestEnvironment_AddRemove(t *testing.T) {
	f := newFixture(t, nil)
	e, err := f.manager.Create("dev")
	require.NoError(t, err)

	_, err = e.Add("mpileaks@2.2")
	require.NoError(t, err)

	_, err = e.Add("mpileaks@2.3")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateSpec)

	_, err = e.Add("not a spec @@")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidSpecSyntax)

	err = e.Remove("zlib")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSpecNotFound)

	require.NoError(t, e.Remove("mpileaks"))
	assert.Empty(t, e.Roots())

	// Mutations persist: reopening sees the same roots.
	_, err = e.Add("zlib")
	require.NoError(t, err)
	reopened, err := f.manager.Open("dev")
	require.NoError(t, err)
	require.Len(t, reopened.Roots(), 1)
	assert.Equal(t, "zlib", reopened.Roots()[0].Name.String())
}

func TestEnvironment_ConcretizeIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	e, err := f.manager.Create("dev")
	require.NoError(t, err)

	_, err = e.Add("mpileaks")
	require.NoError(t, err)
	require.NoError(t, e.Concretize(context.Background(), false))

	first := e.RootHashes()
	require.Len(t, first, 1)
	assert.ElementsMatch(t,
		[]string{"mpileaks", "callpath", "dyninst", "libdwarf", "libelf"},
		closureNames(e.Closure()))

	require.NoError(t, e.Concretize(context.Background(), false))
	assert.Equal(t, first, e.RootHashes())
}

func TestEnvironment_LockfileRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	e, err := f.manager.Create("dev")
	require.NoError(t, err)

	_, err = e.Add("mpileaks@2.2")
	require.NoError(t, err)
	_, err = e.Add("zlib")
	require.NoError(t, err)
	require.NoError(t, e.Concretize(context.Background(), false))

	lf, err := e.ToLockfile()
	require.NoError(t, err)
	assert.Equal(t, domain.LockfileVersion, lf.Meta.Version)

	reopened, err := f.manager.Open("dev")
	require.NoError(t, err)
	assert.Equal(t, e.RootHashes(), reopened.RootHashes())
	assert.ElementsMatch(t, closureNames(e.Closure()), closureNames(reopened.Closure()))

	// Reopened environment concretizes to the identical closure.
	require.NoError(t, reopened.Concretize(context.Background(), false))
	assert.Equal(t, e.RootHashes(), reopened.RootHashes())
}

func TestEnvironment_RemoveDefersPurge(t *testing.T) {
	f := newFixture(t, nil)
	e, err := f.manager.Create("dev")
	require.NoError(t, err)

	_, err = e.Add("mpileaks")
	require.NoError(t, err)
	_, err = e.Add("libdwarf")
	require.NoError(t, err)
	require.NoError(t, e.Concretize(context.Background(), false))

	// Removal leaves the closure untouched until the next concretize.
	require.NoError(t, e.Remove("libdwarf"))
	assert.Contains(t, closureNames(e.Closure()), "libdwarf")

	// The removed root's hash is gone immediately, so the environment stays
	// usable without a re-concretize.
	require.Len(t, e.RootHashes(), 1)
	lf, err := e.ToLockfile()
	require.NoError(t, err)
	assert.Len(t, lf.Roots, 1)

	// libdwarf and libelf stay: mpileaks still needs them transitively.
	require.NoError(t, e.Concretize(context.Background(), false))
	names := closureNames(e.Closure())
	assert.Contains(t, names, "libdwarf")
	assert.Contains(t, names, "libelf")

	// Removing the last dependent purges the whole subtree.
	require.NoError(t, e.Remove("mpileaks"))
	require.NoError(t, e.Concretize(context.Background(), false))
	assert.Empty(t, e.Closure())
}

func TestEnvironment_UpgradeDependency(t *testing.T) {
	f := newFixture(t, nil)
	e, err := f.manager.Create("dev")
	require.NoError(t, err)

	_, err = e.Add("mpileaks ^libelf@0.8.12")
	require.NoError(t, err)
	require.NoError(t, e.Concretize(context.Background(), false))

	before := e.Closure()
	var dyninstBefore string
	for hash, spec := range before {
		if spec.Name.String() == "dyninst" {
			dyninstBefore = hash
		}
	}

	err = e.UpgradeDependency(context.Background(), "nosuch")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPackageNotFound)

	// A new callpath release appears. A plain concretize keeps the pinned
	// resolution; upgrading callpath re-resolves it to the newest version
	// and re-hashes its dependents only.
	f.base.Add(&domain.Recipe{
		Name:         domain.NewInternedString("callpath"),
		Versions:     []string{"0.9", "1.0"},
		Dependencies: recipeDeps(t, "dyninst", "libdwarf"),
	})
	require.NoError(t, e.Concretize(context.Background(), false))
	for _, spec := range e.Closure() {
		if spec.Name.String() == "callpath" {
			assert.Equal(t, "0.9", spec.Version)
		}
	}

	require.NoError(t, e.UpgradeDependency(context.Background(), "callpath"))
	after := e.Closure()
	for hash, spec := range after {
		switch spec.Name.String() {
		case "callpath":
			assert.Equal(t, "1.0", spec.Version)
		case "dyninst":
			assert.Equal(t, dyninstBefore, hash, "disjoint subtree keeps its hash")
		case "libelf":
			assert.Equal(t, "0.8.12", spec.Version, "pinned root constraint still applies")
		}
	}
}

func TestEnvironment_ResetOSAndCompiler(t *testing.T) {
	f := newFixture(t, nil)
	e, err := f.manager.Create("dev")
	require.NoError(t, err)

	_, err = e.Add("mpileaks@2.2")
	require.NoError(t, err)
	require.NoError(t, e.Concretize(context.Background(), false))

	require.NoError(t, e.ResetOSAndCompiler(context.Background(), "clang@17.0.1"))
	for _, spec := range e.Closure() {
		assert.Equal(t, domain.Compiler{Name: "clang", Version: "17.0.1"}, spec.Compiler)
	}
	// Versions survive the toolchain reset.
	for _, spec := range e.Closure() {
		if spec.Name.String() == "mpileaks" {
			assert.Equal(t, "2.2", spec.Version)
		}
	}

	// The preference persists in the manifest.
	reopened, err := f.manager.Open("dev")
	require.NoError(t, err)
	require.NoError(t, reopened.Concretize(context.Background(), false))
	for _, spec := range reopened.Closure() {
		assert.Equal(t, "clang", spec.Compiler.Name)
	}
}

func TestEnvironment_InstallAndLoads(t *testing.T) {
	f := newFixture(t, nil)
	e, err := f.manager.Create("dev")
	require.NoError(t, err)

	// Installing before concretizing fails cleanly.
	_, err = e.Add("mpileaks")
	require.NoError(t, err)
	err = e.Install(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIncompleteSpec)

	require.NoError(t, e.Concretize(context.Background(), false))
	require.NoError(t, e.Install(context.Background()))

	for _, spec := range e.Closure() {
		assert.True(t, f.store.IsInstalled(spec), spec.String())
	}

	var status strings.Builder
	require.NoError(t, e.Status(&status))
	assert.Contains(t, status.String(), "mpileaks")
	assert.Contains(t, status.String(), "[")
	assert.Contains(t, status.String(), "installed")

	var loads strings.Builder
	require.NoError(t, e.Loads(&loads))
	lines := strings.Split(strings.TrimSpace(loads.String()), "\n")
	assert.Len(t, lines, 5)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "module load "), line)
	}
	// Dependencies load before their dependents.
	libelfAt, libdwarfAt, mpileaksAt := -1, -1, -1
	for i, line := range lines {
		switch {
		case strings.Contains(line, "libelf"):
			libelfAt = i
		case strings.Contains(line, "libdwarf"):
			libdwarfAt = i
		case strings.Contains(line, "mpileaks"):
			mpileaksAt = i
		}
	}
	assert.Less(t, libelfAt, libdwarfAt)
	assert.Less(t, libdwarfAt, mpileaksAt)

	require.NoError(t, e.Uninstall(context.Background()))
	for _, spec := range e.Closure() {
		assert.False(t, f.store.IsInstalled(spec))
	}
}

func TestEnvironment_InstallFailureIsolation(t *testing.T) {
	buildErr := errors.New("dyninst is broken")
	f := newFixture(t, func(_ context.Context, spec *domain.Spec, _, _ string) error {
		if spec.Name.String() == "dyninst" {
			return buildErr
		}
		return nil
	})
	e, err := f.manager.Create("dev")
	require.NoError(t, err)

	_, err = e.Add("mpileaks")
	require.NoError(t, err)
	_, err = e.Add("zlib")
	require.NoError(t, err)
	require.NoError(t, e.Concretize(context.Background(), false))

	err = e.Install(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBuildFailure)

	installed := map[string]bool{}
	for _, spec := range e.Closure() {
		installed[spec.Name.String()] = f.store.IsInstalled(spec)
	}
	// The independent root and the unaffected subtree installed.
	assert.True(t, installed["zlib"])
	assert.True(t, installed["libelf"])
	assert.True(t, installed["libdwarf"])
	// The failing spec and its dependents did not.
	assert.False(t, installed["dyninst"])
	assert.False(t, installed["callpath"])
	assert.False(t, installed["mpileaks"])
}

func TestEnvironment_Stage(t *testing.T) {
	f := newFixture(t, nil)
	e, err := f.manager.Create("dev")
	require.NoError(t, err)

	_, err = e.Add("zlib")
	require.NoError(t, err)
	require.NoError(t, e.Concretize(context.Background(), false))
	require.NoError(t, e.Stage(context.Background()))

	for _, spec := range e.Closure() {
		assert.False(t, f.store.IsInstalled(spec), "stage must not install")
	}
}
