package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// Object is a parsed object literal. Keys retain source order, which matters
// for variant presentation.
type Object struct {
	keys   []string
	values map[string]any
}

// Len returns the number of keys.
func (o *Object) Len() int { return len(o.keys) }

// Keys returns the keys in source order.
func (o *Object) Keys() []string { return append([]string(nil), o.keys...) }

// Get returns the value for key and whether it was present.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

func (o *Object) put(key string, v any) {
	if o.values == nil {
		o.values = make(map[string]any)
	}
	if _, dup := o.values[key]; !dup {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// ParseLiteral parses src, which must consist of exactly one object literal
// (comments and whitespace aside). Values are limited to literal forms:
// strings (single/double quoted, or template literals without substitutions),
// numbers, booleans, null/undefined, arrays, and nested object literals.
// Identifier references, calls, and computed expressions are rejected, so a
// config literal can never depend on the surrounding script's bindings.
func ParseLiteral(src string) (*Object, error) {
	p := &literalParser{src: src}
	p.skipTrivia()
	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("config literal must be an object, got %T", v)
	}
	p.skipTrivia()
	if p.pos != len(p.src) {
		return nil, p.errf("unexpected trailing content after literal")
	}
	return obj, nil
}

type literalParser struct {
	src string
	pos int
}

func (p *literalParser) errf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	rest := p.src[p.pos:]
	if len(rest) > 20 {
		rest = rest[:20] + "..."
	}
	return fmt.Errorf("config literal: %s at offset %d (near %q)", msg, p.pos, rest)
}

func (p *literalParser) skipTrivia() {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.pos++
		case strings.HasPrefix(p.src[p.pos:], "//"):
			if i := strings.IndexByte(p.src[p.pos:], '\n'); i >= 0 {
				p.pos += i + 1
			} else {
				p.pos = len(p.src)
			}
		case strings.HasPrefix(p.src[p.pos:], "/*"):
			if i := strings.Index(p.src[p.pos+2:], "*/"); i >= 0 {
				p.pos += i + 4
			} else {
				p.pos = len(p.src)
			}
		default:
			return
		}
	}
}

func (p *literalParser) parseValue() (any, error) {
	p.skipTrivia()
	if p.pos >= len(p.src) {
		return nil, p.errf("unexpected end of input")
	}
	switch c := p.src[p.pos]; {
	case c == '{':
		return p.parseObject()
	case c == '[':
		return p.parseArray()
	case c == '\'' || c == '"' || c == '`':
		return p.parseString()
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	default:
		return p.parseWord()
	}
}

func (p *literalParser) parseObject() (*Object, error) {
	p.pos++ // consume '{'
	obj := &Object{}
	for {
		p.skipTrivia()
		if p.pos >= len(p.src) {
			return nil, p.errf("unterminated object literal")
		}
		if p.src[p.pos] == '}' {
			p.pos++
			return obj, nil
		}
		key, err := p.parseKey()
		if err != nil {
			return nil, err
		}
		p.skipTrivia()
		if p.pos >= len(p.src) || p.src[p.pos] != ':' {
			return nil, p.errf("expected ':' after object key %q", key)
		}
		p.pos++
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		obj.put(key, v)
		p.skipTrivia()
		if p.pos >= len(p.src) {
			return nil, p.errf("unterminated object literal")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return obj, nil
		default:
			return nil, p.errf("expected ',' or '}' in object literal")
		}
	}
}

func (p *literalParser) parseKey() (string, error) {
	c := p.src[p.pos]
	switch {
	case c == '\'' || c == '"':
		return p.parseString()
	case c >= '0' && c <= '9':
		start := p.pos
		for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
			p.pos++
		}
		return p.src[start:p.pos], nil
	case isIdentStart(c):
		start := p.pos
		for p.pos < len(p.src) && isIdentPart(p.src[p.pos]) {
			p.pos++
		}
		return p.src[start:p.pos], nil
	default:
		return "", p.errf("invalid object key")
	}
}

func (p *literalParser) parseArray() ([]any, error) {
	p.pos++ // consume '['
	var arr []any
	for {
		p.skipTrivia()
		if p.pos >= len(p.src) {
			return nil, p.errf("unterminated array literal")
		}
		if p.src[p.pos] == ']' {
			p.pos++
			return arr, nil
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
		p.skipTrivia()
		if p.pos >= len(p.src) {
			return nil, p.errf("unterminated array literal")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return arr, nil
		default:
			return nil, p.errf("expected ',' or ']' in array literal")
		}
	}
}

func (p *literalParser) parseString() (string, error) {
	quote := p.src[p.pos]
	p.pos++
	var sb strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return sb.String(), nil
		case c == '\\':
			p.pos++
			if p.pos >= len(p.src) {
				return "", p.errf("unterminated escape sequence")
			}
			e := p.src[p.pos]
			p.pos++
			switch e {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case 'b':
				sb.WriteByte('\b')
			case 'f':
				sb.WriteByte('\f')
			case '0':
				sb.WriteByte(0)
			case 'u':
				r, err := p.parseUnicodeEscape()
				if err != nil {
					return "", err
				}
				sb.WriteRune(r)
			case 'x':
				if p.pos+2 > len(p.src) {
					return "", p.errf("unterminated hex escape")
				}
				n, err := strconv.ParseUint(p.src[p.pos:p.pos+2], 16, 8)
				if err != nil {
					return "", p.errf("invalid hex escape")
				}
				p.pos += 2
				sb.WriteByte(byte(n))
			default:
				sb.WriteByte(e)
			}
		case quote == '`' && strings.HasPrefix(p.src[p.pos:], "${"):
			return "", p.errf("template substitutions are not allowed in a config literal")
		case (quote == '\'' || quote == '"') && (c == '\n' || c == '\r'):
			return "", p.errf("unterminated string literal")
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errf("unterminated string literal")
}

func (p *literalParser) parseUnicodeEscape() (rune, error) {
	if p.pos < len(p.src) && p.src[p.pos] == '{' {
		end := strings.IndexByte(p.src[p.pos:], '}')
		if end < 0 {
			return 0, p.errf("unterminated unicode escape")
		}
		n, err := strconv.ParseUint(p.src[p.pos+1:p.pos+end], 16, 32)
		if err != nil {
			return 0, p.errf("invalid unicode escape")
		}
		p.pos += end + 1
		return rune(n), nil
	}
	if p.pos+4 > len(p.src) {
		return 0, p.errf("unterminated unicode escape")
	}
	n, err := strconv.ParseUint(p.src[p.pos:p.pos+4], 16, 32)
	if err != nil {
		return 0, p.errf("invalid unicode escape")
	}
	p.pos += 4
	return rune(n), nil
}

func (p *literalParser) parseNumber() (float64, error) {
	start := p.pos
	if c := p.src[p.pos]; c == '-' || c == '+' {
		p.pos++
	}
	if strings.HasPrefix(p.src[p.pos:], "0x") || strings.HasPrefix(p.src[p.pos:], "0X") {
		p.pos += 2
		hexStart := p.pos
		for p.pos < len(p.src) && isHexDigit(p.src[p.pos]) {
			p.pos++
		}
		if p.pos == hexStart {
			return 0, p.errf("invalid hex literal")
		}
		n, err := strconv.ParseUint(p.src[hexStart:p.pos], 16, 64)
		if err != nil {
			return 0, p.errf("invalid hex literal")
		}
		if p.src[start] == '-' {
			return -float64(n), nil
		}
		return float64(n), nil
	}
	sawDigit := false
	for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
		p.pos++
		sawDigit = true
	}
	if p.pos < len(p.src) && p.src[p.pos] == '.' {
		p.pos++
		for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
			p.pos++
			sawDigit = true
		}
	}
	if !sawDigit {
		return 0, p.errf("invalid number literal")
	}
	if p.pos < len(p.src) && (p.src[p.pos] == 'e' || p.src[p.pos] == 'E') {
		p.pos++
		if p.pos < len(p.src) && (p.src[p.pos] == '-' || p.src[p.pos] == '+') {
			p.pos++
		}
		expStart := p.pos
		for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
			p.pos++
		}
		if p.pos == expStart {
			return 0, p.errf("invalid number literal")
		}
	}
	f, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return 0, p.errf("invalid number literal")
	}
	return f, nil
}

func (p *literalParser) parseWord() (any, error) {
	if !isIdentStart(p.src[p.pos]) {
		return nil, p.errf("unexpected character %q", p.src[p.pos])
	}
	start := p.pos
	for p.pos < len(p.src) && isIdentPart(p.src[p.pos]) {
		p.pos++
	}
	switch word := p.src[start:p.pos]; word {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null", "undefined":
		return nil, nil
	default:
		p.pos = start
		return nil, p.errf("reference to identifier %q is not allowed in a config literal", word)
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
