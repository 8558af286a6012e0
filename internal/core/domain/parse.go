package domain

import (
	"strings"

	"go.trai.ch/zerr"
)

// ParseSpec parses a single spec string such as
// `mpileaks@2.3+debug%gcc@9 ^callpath@0.9`. Dependency constraints start
// with `^` and attach to the root spec.
func ParseSpec(input string) (*Spec, error) {
	p := &specParser{input: input}
	root, err := p.parse()
	if err != nil {
		return nil, zerr.With(err, "spec", input)
	}
	return root, nil
}

type specParser struct {
	input string
	pos   int

	// current receives the attributes being parsed: the root spec, or the
	// most recent `^` dependency.
	current *Spec
	// inCompiler routes a following `@` to the compiler constraint.
	inCompiler bool
}

func (p *specParser) parse() (*Spec, error) {
	root := &Spec{}
	p.current = root

	for {
		p.skipSpaces()
		if p.pos >= len(p.input) {
			break
		}

		var err error
		switch c := p.input[p.pos]; {
		case c == '^':
			p.pos++
			dep := &Spec{}
			root.Dependencies = append(root.Dependencies, dep)
			p.current = dep
			p.inCompiler = false
			err = p.parseName()
		case c == '@':
			p.pos++
			err = p.parseVersion()
		case c == '%':
			p.pos++
			err = p.parseCompiler()
		case c == '+':
			p.pos++
			err = p.parseBoolVariant("true")
		case c == '~':
			p.pos++
			err = p.parseBoolVariant("false")
		case isIdentChar(c):
			err = p.parseNameOrKeyValue()
		default:
			err = zerr.With(zerr.Wrap(ErrInvalidSpecSyntax, "unexpected character"), "offset", p.pos)
		}
		if err != nil {
			return nil, err
		}
	}

	if root.Name == (InternedString{}) {
		return nil, zerr.Wrap(ErrInvalidSpecSyntax, "missing package name")
	}
	for _, dep := range root.Dependencies {
		if dep.Name == (InternedString{}) {
			return nil, zerr.Wrap(ErrInvalidSpecSyntax, "dependency missing package name")
		}
	}
	return root, nil
}

func (p *specParser) skipSpaces() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *specParser) readWhile(pred func(byte) bool) string {
	start := p.pos
	for p.pos < len(p.input) && pred(p.input[p.pos]) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func isIdentChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' || c == '.' || c == '_' || c == '-'
}

func isVersionChar(c byte) bool {
	return isIdentChar(c) || c == ':'
}

func (p *specParser) parseName() error {
	name := p.readWhile(isIdentChar)
	if name == "" {
		return zerr.With(zerr.Wrap(ErrInvalidSpecSyntax, "expected package name"), "offset", p.pos)
	}
	p.current.Name = NewInternedString(name)
	return nil
}

func (p *specParser) parseVersion() error {
	raw := p.readWhile(isVersionChar)
	r, err := ParseVersionRange(raw)
	if err != nil {
		return err
	}
	if p.inCompiler {
		if !p.current.CompilerConstraint.Version.Any() {
			return zerr.Wrap(ErrInvalidSpecSyntax, "duplicate compiler version constraint")
		}
		p.current.CompilerConstraint.Version = r
		return nil
	}
	if !p.current.VersionConstraint.Any() {
		return zerr.Wrap(ErrInvalidSpecSyntax, "duplicate version constraint")
	}
	p.current.VersionConstraint = r
	return nil
}

func (p *specParser) parseCompiler() error {
	name := p.readWhile(isIdentChar)
	if name == "" {
		return zerr.With(zerr.Wrap(ErrInvalidSpecSyntax, "expected compiler name"), "offset", p.pos)
	}
	if p.current.CompilerConstraint.Name != "" {
		return zerr.Wrap(ErrInvalidSpecSyntax, "duplicate compiler constraint")
	}
	p.current.CompilerConstraint.Name = name
	p.inCompiler = true
	return nil
}

func (p *specParser) parseBoolVariant(value string) error {
	name := p.readWhile(isIdentChar)
	if name == "" {
		return zerr.With(zerr.Wrap(ErrInvalidSpecSyntax, "expected variant name"), "offset", p.pos)
	}
	p.inCompiler = false
	return p.setVariant(name, VariantConstraint{Allowed: []string{value}})
}

// parseNameOrKeyValue handles a bare identifier: either the package name or
// a `key=value` variant (including `arch=`).
func (p *specParser) parseNameOrKeyValue() error {
	word := p.readWhile(isIdentChar)
	p.inCompiler = false

	if p.pos < len(p.input) && p.input[p.pos] == '=' {
		p.pos++
		value := p.readWhile(func(c byte) bool { return isIdentChar(c) || c == ',' })
		if value == "" {
			return zerr.With(zerr.Wrap(ErrInvalidSpecSyntax, "missing value"), "key", word)
		}
		if word == "arch" {
			if p.current.ArchConstraint != "" {
				return zerr.Wrap(ErrInvalidSpecSyntax, "duplicate arch constraint")
			}
			p.current.ArchConstraint = value
			return nil
		}
		return p.setVariant(word, VariantConstraint{Allowed: strings.Split(value, ",")})
	}

	if p.current.Name != (InternedString{}) {
		return zerr.With(zerr.Wrap(ErrInvalidSpecSyntax, "unexpected token"), "token", word)
	}
	p.current.Name = NewInternedString(word)
	return nil
}

func (p *specParser) setVariant(name string, vc VariantConstraint) error {
	if p.current.VariantConstraints == nil {
		p.current.VariantConstraints = make(map[string]VariantConstraint)
	}
	if _, exists := p.current.VariantConstraints[name]; exists {
		return zerr.With(zerr.Wrap(ErrInvalidSpecSyntax, "duplicate variant constraint"), "variant", name)
	}
	p.current.VariantConstraints[name] = vc
	return nil
}
