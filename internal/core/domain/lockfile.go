package domain

import (
	"slices"

	"go.trai.ch/zerr"
)

// LockfileVersion is the current lockfile format version. Readers dispatch
// on the version recorded in `_meta`, so future formats stay readable.
const LockfileVersion = 1

// Lockfile is the persisted snapshot of an environment's resolved DAG:
// the root hashes in user-spec order plus every concrete spec in the
// closure, keyed by content hash. It is sufficient to reconstruct the DAG
// without re-running resolution.
type Lockfile struct {
	Meta          LockfileMeta          `json:"_meta"`
	Roots         []string              `json:"roots"`
	ConcreteSpecs map[string]LockedSpec `json:"concrete-specs"`
}

// LockfileMeta carries the format version.
type LockfileMeta struct {
	Version int `json:"lockfile-version"`
}

// LockedSpec is the serialized form of a concrete spec.
type LockedSpec struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Compiler     Compiler          `json:"compiler"`
	Variants     map[string]string `json:"variants,omitempty"`
	Arch         string            `json:"arch"`
	Dependencies []string          `json:"dependencies,omitempty"`
}

// NewLockfile snapshots a closure into a lockfile.
func NewLockfile(roots []string, specsByHash map[string]*Spec) *Lockfile {
	lf := &Lockfile{
		Meta:          LockfileMeta{Version: LockfileVersion},
		Roots:         slices.Clone(roots),
		ConcreteSpecs: make(map[string]LockedSpec, len(specsByHash)),
	}
	for hash, spec := range specsByHash {
		lf.ConcreteSpecs[hash] = LockedSpec{
			Name:         spec.Name.String(),
			Version:      spec.Version,
			Compiler:     spec.Compiler,
			Variants:     spec.Variants,
			Arch:         spec.Arch,
			Dependencies: spec.DependencyHashes,
		}
	}
	return lf
}

// Validate checks the lockfile invariants: a known format version, every
// root present in the closure, and closure completeness.
func (lf *Lockfile) Validate() error {
	if lf.Meta.Version != LockfileVersion {
		return zerr.With(zerr.Wrap(ErrLockfileVersion, "unknown format"), "version", lf.Meta.Version)
	}
	for _, root := range lf.Roots {
		if _, ok := lf.ConcreteSpecs[root]; !ok {
			return zerr.With(zerr.Wrap(ErrMissingDependency, "root hash not in closure"), "hash", root)
		}
	}
	for hash, spec := range lf.ConcreteSpecs {
		for _, dep := range spec.Dependencies {
			if _, ok := lf.ConcreteSpecs[dep]; !ok {
				err := zerr.With(zerr.Wrap(ErrMissingDependency, "dependency hash not in closure"), "hash", dep)
				return zerr.With(err, "dependent", hash)
			}
		}
	}
	return nil
}

// Specs reconstructs the concrete closure. Hashes are recomputed from the
// deserialized attributes; a mismatch against the stored key means the
// lockfile was corrupted and is reported as ErrMissingDependency-level
// corruption, not a user error.
func (lf *Lockfile) Specs() (map[string]*Spec, error) {
	out := make(map[string]*Spec, len(lf.ConcreteSpecs))
	for hash, locked := range lf.ConcreteSpecs {
		spec := &Spec{
			Name:             NewInternedString(locked.Name),
			Concrete:         true,
			Version:          locked.Version,
			Compiler:         locked.Compiler,
			Variants:         locked.Variants,
			Arch:             locked.Arch,
			DependencyHashes: slices.Clone(locked.Dependencies),
		}
		slices.Sort(spec.DependencyHashes)

		computed, err := spec.ContentHash()
		if err != nil {
			return nil, err
		}
		if computed != hash {
			err := zerr.Wrap(ErrInvalidLockfile, "hash mismatch")
			err = zerr.With(err, "recorded", hash)
			return nil, zerr.With(err, "computed", computed)
		}
		out[hash] = spec
	}
	return out, nil
}
