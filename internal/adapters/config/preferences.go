package config

import (
	"sync"

	"go.trai.ch/cairn/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Preference is the effective, merged preference for one package: ranked
// version list, variant defaults and ranked compiler list. Entries from the
// `all` pseudo-package apply wherever the package block is silent.
type Preference struct {
	Versions  []string
	Variants  map[string]string
	Compilers []string
}

// Preferences is a memoized read-through projection of the merged scope
// stack, keyed by package name. Every configuration mutator must call
// Invalidate; a stale cache would let two environments with different
// configuration share rankings, which is a correctness bug rather than a
// performance one. The stack fingerprint is kept alongside the cache so a
// missed invalidation is caught on the next read instead of serving stale
// data.
type Preferences struct {
	stack *Stack

	mu          sync.RWMutex
	valid       bool
	fingerprint uint64
	byPackage   map[string]Preference
}

// NewPreferences creates the preference projection for a stack.
func NewPreferences(stack *Stack) *Preferences {
	return &Preferences{stack: stack}
}

// Invalidate drops the memoized projection. Callers that push scopes or
// edit scope content must call this before the next read.
func (p *Preferences) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.valid = false
	p.byPackage = nil
}

// For returns the effective preference for a package name.
func (p *Preferences) For(name string) (Preference, error) {
	fp := p.stack.Fingerprint()

	p.mu.RLock()
	if p.valid && p.fingerprint == fp {
		pref, ok := p.byPackage[name]
		p.mu.RUnlock()
		if ok {
			return pref, nil
		}
		return p.project(name, fp)
	}
	p.mu.RUnlock()

	p.mu.Lock()
	p.valid = true
	p.fingerprint = fp
	p.byPackage = make(map[string]Preference)
	p.mu.Unlock()

	return p.project(name, fp)
}

func (p *Preferences) project(name string, fp uint64) (Preference, error) {
	packages, err := p.decodePackages()
	if err != nil {
		return Preference{}, err
	}

	pref := applyPrefs(Preference{}, packages["all"])
	pref = applyPrefs(pref, packages[name])

	p.mu.Lock()
	if p.valid && p.fingerprint == fp {
		p.byPackage[name] = pref
	}
	p.mu.Unlock()
	return pref, nil
}

func (p *Preferences) decodePackages() (map[string]PackagePrefs, error) {
	merged := p.stack.Merge()
	raw, ok := merged["packages"]
	if !ok {
		return nil, nil
	}

	// Round-trip through YAML to project the untyped merge result into the
	// typed preference schema.
	data, err := yaml.Marshal(raw)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to encode merged packages config")
	}
	var packages map[string]PackagePrefs
	if err := yaml.Unmarshal(data, &packages); err != nil {
		return nil, zerr.Wrap(domain.ErrConfigFormat, err.Error())
	}
	return packages, nil
}

// applyPrefs overlays a package block onto a base preference. Version and
// compiler lists replace wholesale; variant defaults merge key-wise.
func applyPrefs(base Preference, block PackagePrefs) Preference {
	if len(block.Version) > 0 {
		base.Versions = block.Version
	}
	if len(block.Compiler) > 0 {
		base.Compilers = block.Compiler
	}
	if len(block.Variants) > 0 {
		merged := make(map[string]string, len(base.Variants)+len(block.Variants))
		for k, v := range base.Variants {
			merged[k] = v
		}
		for k, v := range block.Variants {
			merged[k] = v
		}
		base.Variants = merged
	}
	return base
}
