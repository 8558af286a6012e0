package config

// Manifest is the on-disk environment manifest (`cairn.yaml`).
type Manifest struct {
	Env EnvBlock `yaml:"env"`
}

// EnvBlock is the `env` key of the manifest.
type EnvBlock struct {
	// Specs is the ordered list of abstract spec strings (user intent).
	Specs []string `yaml:"specs"`
	// Packages is the inline preference block; it forms the
	// environment-local scope, pushed above every include.
	Packages map[string]PackagePrefs `yaml:"packages,omitempty"`
	// Include lists file or directory paths providing extra scopes, in
	// precedence order (later entries override earlier ones).
	Include []string `yaml:"include,omitempty"`
}

// PackagePrefs is the per-package preference block, also used for the
// `all` pseudo-package.
type PackagePrefs struct {
	Version  []string          `yaml:"version,omitempty"`
	Variants map[string]string `yaml:"variants,omitempty"`
	Compiler []string          `yaml:"compiler,omitempty"`
}
