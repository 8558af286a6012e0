package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/cairn/internal/core/domain"
	"go.trai.ch/cairn/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Loader reads environment manifests and assembles their scope stacks.
type Loader struct {
	logger ports.Logger
}

// NewLoader creates a new Loader.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{logger: logger}
}

var manifestEnvKeys = []string{"specs", "packages", "include"}

// LoadManifest reads and validates a manifest file. Unknown keys under
// `env` are a schema error reporting the offending file and line.
func (l *Loader) LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read manifest")
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, schemaError(path, 0, err.Error())
	}
	root := mappingNode(&doc)
	if root == nil {
		return nil, schemaError(path, 1, "manifest must be a mapping with a top-level 'env' key")
	}

	envNode := childNode(root, "env")
	if envNode == nil {
		return nil, schemaError(path, root.Line, "missing top-level 'env' key")
	}
	if err := checkKeys(path, envNode, manifestEnvKeys); err != nil {
		return nil, err
	}

	var m Manifest
	if err := doc.Decode(&m); err != nil {
		return nil, schemaError(path, envNode.Line, err.Error())
	}
	return &m, nil
}

// BuildStack assembles the scope stack for a manifest: builtin defaults,
// then each include in listed order, then the environment-local inline
// `packages` block last so it wins over every include.
func (l *Loader) BuildStack(manifestPath string, m *Manifest) (*Stack, error) {
	stack := NewStack()
	baseDir := filepath.Dir(manifestPath)

	for _, include := range m.Env.Include {
		path := include
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, include)
		}
		if err := l.pushInclude(stack, path); err != nil {
			return nil, err
		}
	}

	local, err := l.inlineScope(manifestPath, m)
	if err != nil {
		return nil, err
	}
	stack.Push(local)
	return stack, nil
}

func (l *Loader) pushInclude(stack *Stack, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return zerr.With(zerr.Wrap(domain.ErrConfigFormat, "unreadable include"), "path", path)
	}

	if !info.IsDir() {
		scope, err := l.loadScopeFile(path)
		if err != nil {
			return err
		}
		stack.Push(scope)
		return nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "unreadable include directory"), "path", path)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && (strings.HasSuffix(e.Name(), ".yaml") || strings.HasSuffix(e.Name(), ".yml")) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	for _, name := range names {
		scope, err := l.loadScopeFile(filepath.Join(path, name))
		if err != nil {
			return err
		}
		stack.Push(scope)
	}
	return nil
}

var scopeFileKeys = []string{"packages"}

func (l *Loader) loadScopeFile(path string) (*Scope, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the manifest include list
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read scope file")
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, schemaError(path, 0, err.Error())
	}
	root := mappingNode(&doc)
	if root == nil {
		return nil, schemaError(path, 1, "scope file must be a mapping")
	}
	if err := checkKeys(path, root, scopeFileKeys); err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := doc.Decode(&payload); err != nil {
		return nil, schemaError(path, root.Line, err.Error())
	}
	return &Scope{Name: filepath.Base(path), Path: path, Data: payload}, nil
}

// inlineScope converts the manifest's `packages` block into the
// environment-local scope.
func (l *Loader) inlineScope(manifestPath string, m *Manifest) (*Scope, error) {
	payload := map[string]any{}
	if len(m.Env.Packages) > 0 {
		raw, err := yaml.Marshal(m.Env.Packages)
		if err != nil {
			return nil, zerr.Wrap(err, "failed to normalize inline packages block")
		}
		var packages map[string]any
		if err := yaml.Unmarshal(raw, &packages); err != nil {
			return nil, zerr.Wrap(err, "failed to normalize inline packages block")
		}
		payload["packages"] = packages
	}
	return &Scope{Name: "env", Path: manifestPath, Data: payload}, nil
}

// ParseSpecs parses the manifest's spec strings in order.
func ParseSpecs(m *Manifest) ([]*domain.Spec, error) {
	specs := make([]*domain.Spec, 0, len(m.Env.Specs))
	for _, raw := range m.Env.Specs {
		spec, err := domain.ParseSpec(raw)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// mappingNode unwraps a document node to its mapping content.
func mappingNode(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return nil
	}
	return doc
}

// childNode returns the value node for a key in a mapping node.
func childNode(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// checkKeys rejects unknown keys in a mapping node, reporting the file and
// line of the first offender.
func checkKeys(path string, value *yaml.Node, allowed []string) error {
	mapping := value
	if mapping.Kind != yaml.MappingNode {
		return schemaError(path, value.Line, "expected a mapping")
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key := mapping.Content[i]
		if !slices.Contains(allowed, key.Value) {
			return schemaError(path, key.Line, "unknown key '"+key.Value+"'")
		}
	}
	return nil
}

func schemaError(path string, line int, msg string) error {
	err := zerr.Wrap(domain.ErrConfigFormat, msg)
	err = zerr.With(err, "file", path)
	if line > 0 {
		err = zerr.With(err, "line", line)
	}
	return err
}
