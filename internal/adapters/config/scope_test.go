package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/cairn/internal/adapters/config"
)

func TestStack_MergePrecedence(t *testing.T) {
	tests := []struct {
		name   string
		low    map[string]any
		high   map[string]any
		expect func(t *testing.T, merged map[string]any)
	}{
		{
			name: "higher scope replaces conflicting leaf",
			low:  map[string]any{"packages": map[string]any{"mpileaks": map[string]any{"version": []any{"2.2"}}}},
			high: map[string]any{"packages": map[string]any{"mpileaks": map[string]any{"version": []any{"2.3"}}}},
			expect: func(t *testing.T, merged map[string]any) {
				pkgs := merged["packages"].(map[string]any)
				mpileaks := pkgs["mpileaks"].(map[string]any)
				assert.Equal(t, []any{"2.3"}, mpileaks["version"])
			},
		},
		{
			name: "disjoint sub-keys deep-merge",
			low:  map[string]any{"packages": map[string]any{"mpileaks": map[string]any{"version": []any{"2.2"}}}},
			high: map[string]any{"packages": map[string]any{"hypre": map[string]any{"version": []any{"2.15"}}}},
			expect: func(t *testing.T, merged map[string]any) {
				pkgs := merged["packages"].(map[string]any)
				assert.Contains(t, pkgs, "mpileaks")
				assert.Contains(t, pkgs, "hypre")
			},
		},
		{
			name: "list values do not deep-merge",
			low:  map[string]any{"packages": map[string]any{"all": map[string]any{"compiler": []any{"gcc@9"}}}},
			high: map[string]any{"packages": map[string]any{"all": map[string]any{"compiler": []any{"clang@14"}}}},
			expect: func(t *testing.T, merged map[string]any) {
				pkgs := merged["packages"].(map[string]any)
				all := pkgs["all"].(map[string]any)
				assert.Equal(t, []any{"clang@14"}, all["compiler"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stack := config.NewStack()
			stack.Push(&config.Scope{Name: "low", Data: tt.low})
			stack.Push(&config.Scope{Name: "high", Data: tt.high})
			tt.expect(t, stack.Merge())
		})
	}
}

func TestStack_FingerprintTracksContent(t *testing.T) {
	stack := config.NewStack()
	before := stack.Fingerprint()

	stack.Push(&config.Scope{
		Name: "site",
		Data: map[string]any{"packages": map[string]any{"mpileaks": map[string]any{"version": []any{"2.2"}}}},
	})
	after := stack.Fingerprint()
	assert.NotEqual(t, before, after)

	// Fingerprint depends on effective content, not on pointer identity.
	other := config.NewStack()
	other.Push(&config.Scope{
		Name: "different-name-same-content",
		Data: map[string]any{"packages": map[string]any{"mpileaks": map[string]any{"version": []any{"2.2"}}}},
	})
	assert.Equal(t, after, other.Fingerprint())
}

func TestPreferences_InvalidateOnScopeChange(t *testing.T) {
	stack := config.NewStack()
	prefs := config.NewPreferences(stack)

	pref, err := prefs.For("mpileaks")
	require.NoError(t, err)
	assert.Empty(t, pref.Versions)

	stack.Push(&config.Scope{
		Name: "site",
		Data: map[string]any{"packages": map[string]any{"mpileaks": map[string]any{"version": []any{"2.2"}}}},
	})
	prefs.Invalidate()

	pref, err = prefs.For("mpileaks")
	require.NoError(t, err)
	assert.Equal(t, []string{"2.2"}, pref.Versions)
}

func TestPreferences_AllPseudoPackageFallback(t *testing.T) {
	stack := config.NewStack()
	stack.Push(&config.Scope{
		Name: "site",
		Data: map[string]any{"packages": map[string]any{
			"all":      map[string]any{"compiler": []any{"gcc@9.4.0"}, "variants": map[string]any{"shared": "true"}},
			"mpileaks": map[string]any{"version": []any{"2.2"}, "variants": map[string]any{"debug": "true"}},
		}},
	})
	prefs := config.NewPreferences(stack)

	pref, err := prefs.For("mpileaks")
	require.NoError(t, err)
	assert.Equal(t, []string{"2.2"}, pref.Versions)
	assert.Equal(t, []string{"gcc@9.4.0"}, pref.Compilers)
	// Variant defaults merge key-wise: `all` contributes shared, the
	// package block contributes debug.
	assert.Equal(t, map[string]string{"shared": "true", "debug": "true"}, pref.Variants)

	other, err := prefs.For("libelf")
	require.NoError(t, err)
	assert.Empty(t, other.Versions)
	assert.Equal(t, []string{"gcc@9.4.0"}, other.Compilers)
}
