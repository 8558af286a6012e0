package domain

// VariantDef declares a variant a package supports, with its default value.
type VariantDef struct {
	Default string
	Values  []string
}

// Recipe is the package metadata the concretizer resolves against. Build
// logic stays with the repository collaborator; the core only needs the
// candidate surface.
type Recipe struct {
	Name      InternedString
	Namespace string

	// Versions lists the available versions, unordered; the concretizer
	// ranks them by preference and recency.
	Versions []string

	Variants map[string]VariantDef

	// Dependencies holds the declared dependency constraints, parsed from
	// spec strings.
	Dependencies []*Spec

	// Compilers lists the supported compiler names. Empty means any.
	Compilers []string
}

// DefaultVariants returns the variant assignment a fresh resolution starts
// from.
func (r *Recipe) DefaultVariants() map[string]string {
	if len(r.Variants) == 0 {
		return nil
	}
	out := make(map[string]string, len(r.Variants))
	for name, def := range r.Variants {
		out[name] = def.Default
	}
	return out
}

// SupportsCompiler reports whether the recipe can build with the named
// compiler.
func (r *Recipe) SupportsCompiler(name string) bool {
	if len(r.Compilers) == 0 {
		return true
	}
	for _, c := range r.Compilers {
		if c == name {
			return true
		}
	}
	return false
}
