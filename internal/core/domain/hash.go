package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashLength is the length of a rendered content hash in hex characters.
const HashLength = 32

// hashConcreteSpec computes the content hash of a concrete spec from a
// canonical, NUL-separated byte stream of its resolved attributes and the
// sorted hashes of its direct dependencies. Dependencies are hashed before
// dependents, so a dependency's hash is an input to its dependent's.
func hashConcreteSpec(s *Spec) string {
	h := sha256.New()
	sep := []byte{0}

	write := func(field string) {
		_, _ = h.Write([]byte(field))
		_, _ = h.Write(sep)
	}

	write(s.Name.String())
	write(s.Version)
	write(s.Compiler.Name)
	write(s.Compiler.Version)
	write(s.Arch)

	for _, name := range sortedKeys(s.Variants) {
		write(name + "=" + s.Variants[name])
	}
	_, _ = h.Write(sep)

	for _, dep := range s.DependencyHashes {
		write(dep)
	}

	return hex.EncodeToString(h.Sum(nil))[:HashLength]
}
