// Package domain contains the core domain models for package specs,
// environments and their resolved dependency closures.
package domain

import (
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// Compiler identifies an exact toolchain.
type Compiler struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// String renders the compiler in spec syntax (`gcc@13.2.0`).
func (c Compiler) String() string {
	if c.Version == "" {
		return c.Name
	}
	return c.Name + "@" + c.Version
}

// CompilerConstraint restricts the toolchain of an abstract spec. A zero
// Name means unconstrained.
type CompilerConstraint struct {
	Name    string
	Version VersionRange
}

// VariantConstraint restricts a variant to a set of allowed values. An
// empty set means any value is acceptable.
type VariantConstraint struct {
	Allowed []string
}

// Allows reports whether the constraint admits the given value.
func (vc VariantConstraint) Allows(v string) bool {
	return len(vc.Allowed) == 0 || slices.Contains(vc.Allowed, v)
}

// Intersect narrows the constraint by another. The second return is false
// when no value satisfies both.
func (vc VariantConstraint) Intersect(other VariantConstraint) (VariantConstraint, bool) {
	if len(vc.Allowed) == 0 {
		return other, true
	}
	if len(other.Allowed) == 0 {
		return vc, true
	}
	var out []string
	for _, v := range vc.Allowed {
		if slices.Contains(other.Allowed, v) {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return VariantConstraint{}, false
	}
	slices.Sort(out)
	return VariantConstraint{Allowed: out}, true
}

// Spec is a package request. It starts abstract, carrying only the
// constraints the user wrote, and becomes concrete through concretization.
// Concrete specs are never mutated; any change produces a new Spec with a
// new content hash.
type Spec struct {
	Name InternedString

	// Constraints. Zero values mean unconstrained.
	VersionConstraint  VersionRange
	CompilerConstraint CompilerConstraint
	VariantConstraints map[string]VariantConstraint
	ArchConstraint     string

	// Dependencies holds the abstract `^dep` edge constraints of a request.
	Dependencies []*Spec

	// Resolution, assigned exactly once by the concretizer.
	Concrete         bool
	Version          string
	Compiler         Compiler
	Variants         map[string]string
	Arch             string
	DependencyHashes []string

	hash string
}

// NewSpec returns an abstract spec constraining only the package name.
func NewSpec(name string) *Spec {
	return &Spec{Name: NewInternedString(name)}
}

// ContentHash returns the deterministic content hash of a concrete spec.
// The hash covers every concrete attribute plus the sorted dependency
// hashes, so it is stable under re-serialization and traversal order.
func (s *Spec) ContentHash() (string, error) {
	if !s.Concrete {
		return "", zerr.With(zerr.Wrap(ErrIncompleteSpec, "content hash requires a concrete spec"), "spec", s.String())
	}
	if s.hash == "" {
		s.hash = hashConcreteSpec(s)
	}
	return s.hash, nil
}

// Satisfies reports whether this spec is compatible with the given
// constraint spec. For a concrete receiver this checks that every resolved
// attribute lies within the constraint; for an abstract receiver it checks
// that the two constraint sets admit a common resolution. Dependency edges
// are matched at the environment level, not here.
func (s *Spec) Satisfies(constraint *Spec) bool {
	if constraint == nil {
		return true
	}
	if constraint.Name != (InternedString{}) && constraint.Name != s.Name {
		return false
	}

	if !s.satisfiesVersion(constraint) || !s.satisfiesCompiler(constraint) {
		return false
	}
	if constraint.ArchConstraint != "" {
		arch := s.ArchConstraint
		if s.Concrete {
			arch = s.Arch
		}
		if arch != "" && arch != constraint.ArchConstraint {
			return false
		}
		if s.Concrete && arch == "" {
			return false
		}
	}
	return s.satisfiesVariants(constraint)
}

func (s *Spec) satisfiesVersion(constraint *Spec) bool {
	if s.Concrete {
		return constraint.VersionConstraint.Includes(s.Version)
	}
	return s.VersionConstraint.Overlaps(constraint.VersionConstraint)
}

func (s *Spec) satisfiesCompiler(constraint *Spec) bool {
	cc := constraint.CompilerConstraint
	if cc.Name == "" {
		return true
	}
	if s.Concrete {
		return s.Compiler.Name == cc.Name && cc.Version.Includes(s.Compiler.Version)
	}
	if s.CompilerConstraint.Name == "" {
		return true
	}
	return s.CompilerConstraint.Name == cc.Name && s.CompilerConstraint.Version.Overlaps(cc.Version)
}

func (s *Spec) satisfiesVariants(constraint *Spec) bool {
	for name, vc := range constraint.VariantConstraints {
		if s.Concrete {
			value, ok := s.Variants[name]
			if !ok || !vc.Allows(value) {
				return false
			}
			continue
		}
		if own, ok := s.VariantConstraints[name]; ok {
			if _, compatible := own.Intersect(vc); !compatible {
				return false
			}
		}
	}
	return true
}

// Contains reports whether a package with the given name appears anywhere
// in the transitive closure of a concrete spec. The lookup resolves
// dependency hashes, typically against an environment's closure.
func (s *Spec) Contains(name string, lookup func(hash string) *Spec) bool {
	if s.Name.String() == name {
		return true
	}
	seen := make(map[string]bool)
	var walk func(hashes []string) bool
	walk = func(hashes []string) bool {
		for _, h := range hashes {
			if seen[h] {
				continue
			}
			seen[h] = true
			dep := lookup(h)
			if dep == nil {
				continue
			}
			if dep.Name.String() == name || walk(dep.DependencyHashes) {
				return true
			}
		}
		return false
	}
	return walk(s.DependencyHashes)
}

// Equal reports spec equality: hash-based for concrete specs, structural
// (canonical rendering) for abstract ones.
func (s *Spec) Equal(other *Spec) bool {
	if s.Concrete && other.Concrete {
		a, errA := s.ContentHash()
		b, errB := other.ContentHash()
		return errA == nil && errB == nil && a == b
	}
	if s.Concrete != other.Concrete {
		return false
	}
	return s.String() == other.String()
}

// String renders the spec in the same syntax Parse accepts. Variant keys
// are sorted, so the rendering is canonical.
func (s *Spec) String() string {
	var b strings.Builder
	b.WriteString(s.Name.String())

	if s.Concrete {
		b.WriteString("@" + s.Version)
		if s.Compiler.Name != "" {
			b.WriteString("%" + s.Compiler.String())
		}
		writeVariantValues(&b, s.Variants)
		if s.Arch != "" {
			b.WriteString(" arch=" + s.Arch)
		}
		return b.String()
	}

	if !s.VersionConstraint.Any() {
		b.WriteString("@" + s.VersionConstraint.String())
	}
	if s.CompilerConstraint.Name != "" {
		b.WriteString("%" + s.CompilerConstraint.Name)
		if !s.CompilerConstraint.Version.Any() {
			b.WriteString("@" + s.CompilerConstraint.Version.String())
		}
	}
	writeVariantConstraints(&b, s.VariantConstraints)
	if s.ArchConstraint != "" {
		b.WriteString(" arch=" + s.ArchConstraint)
	}
	for _, dep := range s.Dependencies {
		b.WriteString(" ^" + dep.String())
	}
	return b.String()
}

func writeVariantValues(b *strings.Builder, variants map[string]string) {
	for _, name := range sortedKeys(variants) {
		switch variants[name] {
		case "true":
			b.WriteString("+" + name)
		case "false":
			b.WriteString("~" + name)
		default:
			b.WriteString(" " + name + "=" + variants[name])
		}
	}
}

func writeVariantConstraints(b *strings.Builder, variants map[string]VariantConstraint) {
	for _, name := range sortedKeys(variants) {
		allowed := variants[name].Allowed
		switch {
		case len(allowed) == 1 && allowed[0] == "true":
			b.WriteString("+" + name)
		case len(allowed) == 1 && allowed[0] == "false":
			b.WriteString("~" + name)
		case len(allowed) >= 1:
			b.WriteString(" " + name + "=" + strings.Join(allowed, ","))
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
