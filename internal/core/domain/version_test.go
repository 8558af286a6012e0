package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/cairn/internal/core/domain"
)

func TestVersionRange_Includes(t *testing.T) {
	tests := []struct {
		name    string
		rng     string
		version string
		want    bool
	}{
		{"exact match", "2.3", "2.3", true},
		{"exact with patch zero", "2.3", "2.3.0", true},
		{"exact mismatch", "2.3", "2.3.1", false},
		{"lower bound inclusive", "2.2:", "2.2", true},
		{"lower bound below", "2.2:", "2.1.9", false},
		{"upper bound inclusive", ":2.8", "2.8", true},
		{"upper bound above", ":2.8", "2.8.1", false},
		{"closed range inside", "2.2:2.8", "2.5", true},
		{"closed range outside", "2.2:2.8", "3.0", false},
		{"garbage version", "2.2:", "not-a-version", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := domain.ParseVersionRange(tt.rng)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Includes(tt.version))
		})
	}
}

func TestVersionRange_Intersect(t *testing.T) {
	tests := []struct {
		name   string
		a, b   string
		want   string
		wantOK bool
	}{
		{"narrowing", "2.2:", ":2.8", "2.2:2.8", true},
		{"nested", "2.0:3.0", "2.2:2.8", "2.2:2.8", true},
		{"exact inside range", "2.2:2.8", "2.5", "2.5", true},
		{"disjoint", "3.0:", ":2.8", "", false},
		{"disjoint exacts", "2.2", "2.3", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := domain.ParseVersionRange(tt.a)
			require.NoError(t, err)
			b, err := domain.ParseVersionRange(tt.b)
			require.NoError(t, err)

			got, ok := a.Intersect(b)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got.String())
			}
		})
	}
}

func TestVersionRange_ZeroMatchesAnything(t *testing.T) {
	var r domain.VersionRange
	assert.True(t, r.Any())
	assert.True(t, r.Includes("1.0"))
	assert.True(t, r.Includes("999"))

	bounded := domain.MustVersionRange("2.2:2.8")
	got, ok := r.Intersect(bounded)
	require.True(t, ok)
	assert.Equal(t, "2.2:2.8", got.String())
}

func TestCompareVersions(t *testing.T) {
	assert.Negative(t, domain.CompareVersions("2.2", "2.3"))
	assert.Positive(t, domain.CompareVersions("10.0", "9.9"))
	assert.Zero(t, domain.CompareVersions("2.3", "2.3.0"))
	assert.Negative(t, domain.CompareVersions("garbage", "1.0"))
}
