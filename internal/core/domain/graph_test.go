package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/cairn/internal/core/domain"
)

func concreteSpec(t *testing.T, name, version string, depHashes ...string) (*domain.Spec, string) {
	t.Helper()
	s := &domain.Spec{
		Name:             domain.NewInternedString(name),
		Concrete:         true,
		Version:          version,
		Compiler:         domain.Compiler{Name: "gcc", Version: "9.4.0"},
		Arch:             "linux-x86_64",
		DependencyHashes: depHashes,
	}
	h, err := s.ContentHash()
	require.NoError(t, err)
	return s, h
}

func TestGraph_WalkDependencyFirst(t *testing.T) {
	// mpileaks -> callpath -> dyninst, mpileaks -> mpi, callpath -> mpi
	mpi, mpiH := concreteSpec(t, "mpi", "3.1")
	dyninst, dyninstH := concreteSpec(t, "dyninst", "8.1")
	callpath, callpathH := concreteSpec(t, "callpath", "0.9", dyninstH, mpiH)
	mpileaks, mpileaksH := concreteSpec(t, "mpileaks", "2.3", callpathH, mpiH)

	g, err := domain.NewGraph(map[string]*domain.Spec{
		mpiH: mpi, dyninstH: dyninst, callpathH: callpath, mpileaksH: mpileaks,
	})
	require.NoError(t, err)

	position := make(map[string]int)
	i := 0
	for h := range g.Walk() {
		position[h] = i
		i++
	}

	assert.Len(t, position, 4)
	assert.Less(t, position[callpathH], position[mpileaksH])
	assert.Less(t, position[dyninstH], position[callpathH])
	assert.Less(t, position[mpiH], position[callpathH])

	assert.ElementsMatch(t, []string{callpathH, mpileaksH}, g.Dependents(mpiH))
}

func TestGraph_MissingDependency(t *testing.T) {
	_, orphanH := concreteSpec(t, "dyninst", "8.1")
	withDep, withDepH := concreteSpec(t, "callpath", "0.9", orphanH)

	_, err := domain.NewGraph(map[string]*domain.Spec{withDepH: withDep})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingDependency)
}

func TestGraph_DeterministicOrder(t *testing.T) {
	build := func() *domain.Graph {
		a, aH := concreteSpec(t, "libelf", "0.8.13")
		b, bH := concreteSpec(t, "libdwarf", "20130729", aH)
		c, cH := concreteSpec(t, "zlib", "1.2.11")
		g, err := domain.NewGraph(map[string]*domain.Spec{aH: a, bH: b, cH: c})
		require.NoError(t, err)
		return g
	}

	var first []string
	for h := range build().Walk() {
		first = append(first, h)
	}
	for range 10 {
		var again []string
		for h := range build().Walk() {
			again = append(again, h)
		}
		require.Equal(t, first, again)
	}
}
