package domain

import (
	"strings"

	goversion "github.com/hashicorp/go-version"
	"go.trai.ch/zerr"
)

// VersionRange is an inclusive version constraint. The zero value matches
// any version. Ranges use the `lo:hi` syntax from spec strings: `2.2` pins
// an exact version, `2.2:` is a lower bound, `:2.8` an upper bound and
// `2.2:2.8` both.
type VersionRange struct {
	lo, hi *goversion.Version
	raw    string
}

// ParseVersionRange parses the version part of a spec token (without the
// leading `@`).
func ParseVersionRange(s string) (VersionRange, error) {
	if s == "" {
		return VersionRange{}, zerr.Wrap(ErrInvalidSpecSyntax, "empty version constraint")
	}

	lo, hi, found := strings.Cut(s, ":")
	if !found {
		hi = lo
	}

	var r VersionRange
	r.raw = s

	var err error
	if lo != "" {
		if r.lo, err = goversion.NewVersion(lo); err != nil {
			return VersionRange{}, zerr.With(zerr.Wrap(err, "invalid version"), "version", lo)
		}
	}
	if hi != "" {
		if r.hi, err = goversion.NewVersion(hi); err != nil {
			return VersionRange{}, zerr.With(zerr.Wrap(err, "invalid version"), "version", hi)
		}
	}
	if r.lo != nil && r.hi != nil && r.hi.LessThan(r.lo) {
		return VersionRange{}, zerr.With(zerr.Wrap(ErrInvalidSpecSyntax, "empty version range"), "range", s)
	}
	return r, nil
}

// MustVersionRange is ParseVersionRange for statically known inputs.
func MustVersionRange(s string) VersionRange {
	r, err := ParseVersionRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Any reports whether the range matches every version.
func (r VersionRange) Any() bool {
	return r.lo == nil && r.hi == nil
}

// Exact returns the pinned version and true when the range admits exactly
// one version.
func (r VersionRange) Exact() (string, bool) {
	if r.lo != nil && r.hi != nil && r.lo.Equal(r.hi) {
		return r.lo.Original(), true
	}
	return "", false
}

// Includes reports whether the given version lies within the range.
// Unparseable versions never match a bounded range.
func (r VersionRange) Includes(v string) bool {
	if r.Any() {
		return true
	}
	ver, err := goversion.NewVersion(v)
	if err != nil {
		return false
	}
	if r.lo != nil && ver.LessThan(r.lo) {
		return false
	}
	if r.hi != nil && ver.GreaterThan(r.hi) {
		return false
	}
	return true
}

// Intersect narrows the range by another. The second return is false when
// the intersection is empty.
func (r VersionRange) Intersect(other VersionRange) (VersionRange, bool) {
	out := VersionRange{lo: r.lo, hi: r.hi}
	if other.lo != nil && (out.lo == nil || out.lo.LessThan(other.lo)) {
		out.lo = other.lo
	}
	if other.hi != nil && (out.hi == nil || other.hi.LessThan(out.hi)) {
		out.hi = other.hi
	}
	if out.lo != nil && out.hi != nil && out.hi.LessThan(out.lo) {
		return VersionRange{}, false
	}
	out.raw = out.render()
	return out, true
}

// Overlaps reports whether the two ranges admit at least one common version.
func (r VersionRange) Overlaps(other VersionRange) bool {
	_, ok := r.Intersect(other)
	return ok
}

func (r VersionRange) render() string {
	switch {
	case r.Any():
		return ""
	case r.lo != nil && r.hi != nil && r.lo.Equal(r.hi):
		return r.lo.Original()
	case r.lo == nil:
		return ":" + r.hi.Original()
	case r.hi == nil:
		return r.lo.Original() + ":"
	default:
		return r.lo.Original() + ":" + r.hi.Original()
	}
}

// String renders the range in spec syntax, without the leading `@`.
func (r VersionRange) String() string {
	if r.raw != "" {
		return r.raw
	}
	return r.render()
}

// CompareVersions orders two version strings, newest last. Unparseable
// versions sort before parseable ones so that a malformed recipe entry is
// never preferred.
func CompareVersions(a, b string) int {
	va, errA := goversion.NewVersion(a)
	vb, errB := goversion.NewVersion(b)
	switch {
	case errA != nil && errB != nil:
		return strings.Compare(a, b)
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	default:
		return va.Compare(vb)
	}
}
