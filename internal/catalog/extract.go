package catalog

import (
	"errors"
	"fmt"
	"regexp"
)

// The configuration call must appear as a top-level statement. The structural
// match anchors at the start of a line and tolerates an optional type
// argument, e.g. refacTools.config<Variants>({...}).
var configCallRe = regexp.MustCompile(`(?m)^[ \t]*refacTools\s*\.\s*config\s*(?:<[^>\n]*>)?\s*\(`)

// ErrNoConfig indicates a script source contains no recognizable
// configuration call.
var ErrNoConfig = errors.New("no refacTools.config(...) call found")

// ExtractConfigLiteral locates the configuration call in src and returns the
// object-literal substring passed as its argument. The surrounding script is
// never executed; the literal is isolated by a structural match plus a
// balanced scan that respects strings and comments.
func ExtractConfigLiteral(src string) (string, error) {
	loc := configCallRe.FindStringIndex(src)
	if loc == nil {
		return "", ErrNoConfig
	}
	p := &literalParser{src: src, pos: loc[1]}
	p.skipTrivia()
	if p.pos >= len(p.src) || p.src[p.pos] != '{' {
		return "", p.errf("configuration call must take an object literal")
	}
	start := p.pos
	if _, err := p.parseValue(); err != nil {
		return "", err
	}
	end := p.pos
	p.skipTrivia()
	if p.pos >= len(p.src) || p.src[p.pos] != ')' {
		return "", p.errf("unclosed configuration call")
	}
	return src[start:end], nil
}

// ExtractConfig extracts and decodes the configuration declared by src.
func ExtractConfig(src string) (*RefactorConfig, error) {
	lit, err := ExtractConfigLiteral(src)
	if err != nil {
		return nil, err
	}
	obj, err := ParseLiteral(lit)
	if err != nil {
		return nil, err
	}
	cfg, err := decodeConfig(obj)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
