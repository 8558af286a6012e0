// Package config implements the layered configuration model: manifest
// loading, the ordered scope stack and the package preference projection.
package config

import (
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// Scope is one named layer of configuration overrides, sourced from a
// file, a directory entry or the environment manifest's inline block.
type Scope struct {
	Name string
	// Path is the source file, empty for inline scopes.
	Path string
	Data map[string]any
}

// Stack is an ordered set of scopes. Later-pushed scopes take precedence:
// a higher scope's key fully replaces a lower scope's key at the same key
// path, while disjoint sub-keys deep-merge. The environment-local scope is
// always pushed last, so it overrides any included scope regardless of
// include order.
type Stack struct {
	scopes []*Scope
}

// NewStack creates a stack seeded with the builtin defaults scope.
func NewStack() *Stack {
	return &Stack{scopes: []*Scope{defaultsScope()}}
}

func defaultsScope() *Scope {
	return &Scope{
		Name: "defaults",
		Data: map[string]any{
			"packages": map[string]any{},
		},
	}
}

// Push appends a scope at the highest precedence position. Callers that
// mutate the stack are responsible for invalidating any preference cache
// derived from it.
func (st *Stack) Push(s *Scope) {
	st.scopes = append(st.scopes, s)
}

// Scopes returns the scopes from lowest to highest precedence.
func (st *Stack) Scopes() []*Scope {
	return st.scopes
}

// Merge overlays all scopes from lowest to highest precedence into a
// single effective configuration.
func (st *Stack) Merge() map[string]any {
	merged := make(map[string]any)
	for _, s := range st.scopes {
		merged = mergeMaps(merged, s.Data)
	}
	return merged
}

// mergeMaps overlays high onto low. Maps merge recursively; any other
// value in high replaces the value in low wholesale.
func mergeMaps(low, high map[string]any) map[string]any {
	out := make(map[string]any, len(low)+len(high))
	for k, v := range low {
		out[k] = v
	}
	for k, v := range high {
		hm, highIsMap := asMap(v)
		lm, lowIsMap := asMap(out[k])
		if highIsMap && lowIsMap {
			out[k] = mergeMaps(lm, hm)
			continue
		}
		out[k] = v
	}
	return out
}

// asMap normalizes the two map shapes yaml.v3 produces.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// Fingerprint digests the merged configuration. Two stacks with the same
// effective configuration share a fingerprint; any content or composition
// change produces a new one. Used to detect a preferences cache serving a
// stale merge.
func (st *Stack) Fingerprint() uint64 {
	h := xxhash.New()
	writeCanonical(h, st.Merge())
	return h.Sum64()
}

func writeCanonical(h *xxhash.Digest, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		_, _ = h.WriteString("{")
		for _, k := range keys {
			_, _ = h.WriteString(k)
			_, _ = h.WriteString("=")
			writeCanonical(h, val[k])
			_, _ = h.Write([]byte{0})
		}
		_, _ = h.WriteString("}")
	case map[any]any:
		m, _ := asMap(val)
		writeCanonical(h, m)
	case []any:
		_, _ = h.WriteString("[")
		for _, item := range val {
			writeCanonical(h, item)
			_, _ = h.Write([]byte{0})
		}
		_, _ = h.WriteString("]")
	default:
		_, _ = h.WriteString(fmt.Sprint(val))
	}
}
