// Package rules reads knowledge-base assertions from a compact text format.
//
// One assertion per line, # starts a comment:
//
//	eq(add(x, y), 10)
//	implies(rain, wet)
//	rel(fido, is, dog)        # or fido::is(dog)
//	prop(is(dog), legs, 4)    # default for everything that is(dog)
//	not(~lit)                 # ~name is the inverse symbol of name
//
// Unknown identifiers are registered as symbols on first use.
package rules

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/cognicore/kbs/pkg/kbs"
	"github.com/cognicore/kbs/pkg/kbs/internalerr"
)

// LoadRules parses every line of rules and asserts it into kb. When any line
// fails to parse, kb is left untouched: nothing is asserted and no symbol is
// registered.
func LoadRules(kb *kbs.KB, rules string) error {
	// Parsing interns names, so check the whole text against a scratch KB first.
	if _, err := ParseRules(kbs.New(kbs.Options{}), rules); err != nil {
		return err
	}
	fs, err := ParseRules(kb, rules)
	if err != nil {
		return err
	}
	return kb.AssertAll(fs...)
}

// ParseRules parses rules without asserting them. Symbols named before a
// failing line stay registered in kb.
func ParseRules(kb *kbs.KB, rules string) ([]kbs.Factor, error) {
	scanner := bufio.NewScanner(strings.NewReader(rules))
	lineNum := 0
	var out []kbs.Factor

	for scanner.Scan() {
		lineNum++
		line := stripComment(scanner.Text())
		if line == "" {
			continue
		}
		f, err := ParseExpr(kb, line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		out = append(out, f)
	}
	return out, scanner.Err()
}

// ParseExpr parses a single expression.
func ParseExpr(kb *kbs.KB, text string) (kbs.Factor, error) {
	p := &parser{kb: kb, src: text}
	f, err := p.expr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return f, nil
}

// stripComment drops a trailing # comment that is not inside a string literal.
func stripComment(line string) string {
	inString := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if inString {
				i++
			}
		case '"':
			inString = !inString
		case '#':
			if !inString {
				return strings.TrimSpace(line[:i])
			}
		}
	}
	return strings.TrimSpace(line)
}

type parser struct {
	kb  *kbs.KB
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: col %d: %s", internalerr.ErrParse, p.pos+1, fmt.Sprintf(format, args...))
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) expect(c byte) error {
	if p.peek() != c {
		if p.pos >= len(p.src) {
			return p.errorf("expected %q, got end of input", c)
		}
		return p.errorf("expected %q, got %q", c, p.src[p.pos])
	}
	p.pos++
	return nil
}

func (p *parser) expr() (kbs.Factor, error) {
	c := p.peek()
	switch {
	case c == 0:
		return nil, p.errorf("unexpected end of input")
	case c == '"':
		return p.text()
	case isDigit(c) || (c == '-' && p.pos+1 < len(p.src) && isDigit(p.src[p.pos+1])):
		return p.number()
	case isIdentStart(c):
	default:
		return nil, p.errorf("unexpected %q", c)
	}

	name := p.ident()
	switch name {
	case "true":
		return kbs.True, nil
	case "false":
		return kbs.False, nil
	case "null":
		return kbs.Null, nil
	}

	switch p.peek() {
	case '(':
		p.pos++
		args, err := p.args()
		if err != nil {
			return nil, err
		}
		return p.call(name, args)
	case ':':
		return p.classification(name)
	}
	return p.symbol(name)
}

// arg is a parsed argument together with the call shape it was written in,
// which prop needs to tell is(dog) targets from expressions.
type arg struct {
	factor kbs.Factor
	call   string
	inner  []arg
}

func (p *parser) args() ([]arg, error) {
	var out []arg
	if p.peek() == ')' {
		p.pos++
		return out, nil
	}
	for {
		a, err := p.arg()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return out, nil
		default:
			return nil, p.errorf("expected ',' or ')'")
		}
	}
}

func (p *parser) arg() (arg, error) {
	if c := p.peek(); isIdentStart(c) {
		save := p.pos
		name := p.ident()
		if p.peek() == '(' && !isBuiltin(name) {
			// class(to) style relation, only meaningful to prop.
			p.pos++
			inner, err := p.args()
			if err != nil {
				return arg{}, err
			}
			return arg{call: name, inner: inner}, nil
		}
		p.pos = save
	}
	f, err := p.expr()
	if err != nil {
		return arg{}, err
	}
	return arg{factor: f}, nil
}

func (p *parser) call(name string, args []arg) (kbs.Factor, error) {
	if name == "prop" {
		return p.property(args)
	}
	fs, err := p.factors(name, args)
	if err != nil {
		return nil, err
	}

	switch name {
	case "and":
		a, err := kbs.NewAnd(fs...)
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		return a, nil
	case "or":
		o, err := kbs.NewOr(fs...)
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		return o, nil
	case "not":
		if err := arity(p, name, fs, 1); err != nil {
			return nil, err
		}
		return kbs.NewNot(fs[0]), nil
	case "implies":
		if err := arity(p, name, fs, 2); err != nil {
			return nil, err
		}
		return kbs.NewImplies(fs[0], fs[1]), nil
	case "iff":
		if err := arity(p, name, fs, 2); err != nil {
			return nil, err
		}
		return kbs.NewIff(fs[0], fs[1]), nil
	case "disagree":
		if err := arity(p, name, fs, 2); err != nil {
			return nil, err
		}
		return kbs.NewDisagree(fs[0], fs[1]), nil
	case "eq":
		if err := arity(p, name, fs, 2); err != nil {
			return nil, err
		}
		return kbs.NewEquals(fs[0], fs[1]), nil
	case "ge":
		if err := arity(p, name, fs, 2); err != nil {
			return nil, err
		}
		return kbs.NewGreaterOrEqual(fs[0], fs[1]), nil
	case "le":
		if err := arity(p, name, fs, 2); err != nil {
			return nil, err
		}
		return kbs.NewLessOrEqual(fs[0], fs[1]), nil
	case "add":
		if len(fs) < 2 {
			return nil, p.errorf("add takes at least 2 arguments, got %d", len(fs))
		}
		sum := kbs.NewAdd(fs[0], fs[1])
		for _, f := range fs[2:] {
			sum = kbs.NewAdd(sum, f)
		}
		return sum, nil
	case "sub":
		if err := arity(p, name, fs, 2); err != nil {
			return nil, err
		}
		return kbs.NewSubtract(fs[0], fs[1]), nil
	case "neg":
		if err := arity(p, name, fs, 1); err != nil {
			return nil, err
		}
		return kbs.NewNegate(fs[0]), nil
	case "rel":
		if err := arity(p, name, fs, 3); err != nil {
			return nil, err
		}
		syms, err := p.symbols(name, fs)
		if err != nil {
			return nil, err
		}
		return kbs.NewSymbolRelation(syms[0], syms[1], syms[2]), nil
	}
	return nil, p.errorf("unknown function %q", name)
}

// factors flattens args for the connectives, rejecting relation-shaped ones.
func (p *parser) factors(name string, args []arg) ([]kbs.Factor, error) {
	fs := make([]kbs.Factor, len(args))
	for i, a := range args {
		if a.factor == nil {
			return nil, p.errorf("%s: %s(...) is only valid as a prop target", name, a.call)
		}
		fs[i] = a.factor
	}
	return fs, nil
}

func (p *parser) symbols(name string, fs []kbs.Factor) ([]kbs.SymbolRef, error) {
	out := make([]kbs.SymbolRef, len(fs))
	for i, f := range fs {
		s, ok := f.(kbs.SymbolRef)
		if !ok {
			return nil, p.errorf("%s: argument %d must be a symbol, got %s", name, i+1, f)
		}
		out[i] = s
	}
	return out, nil
}

// property parses prop(target, key, value) where target is a symbol or a
// class(to) relation.
func (p *parser) property(args []arg) (kbs.Factor, error) {
	if len(args) != 3 {
		return nil, p.errorf("prop takes 3 arguments, got %d", len(args))
	}
	var target kbs.PropertyTarget
	if t := args[0]; t.call != "" {
		if len(t.inner) != 1 {
			return nil, p.errorf("prop target %s(...) takes 1 argument", t.call)
		}
		inner, ok := t.inner[0].factor.(kbs.SymbolRef)
		if !ok {
			return nil, p.errorf("prop target %s(...) needs a symbol", t.call)
		}
		class, err := p.kb.Intern(t.call)
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		target = class.Of(inner)
	} else {
		s, ok := t.factor.(kbs.SymbolRef)
		if !ok {
			return nil, p.errorf("prop target must be a symbol or class(symbol), got %s", t.factor)
		}
		target = s
	}

	key, ok := args[1].factor.(kbs.SymbolRef)
	if !ok {
		return nil, p.errorf("prop key must be a symbol")
	}
	if args[2].factor == nil {
		return nil, p.errorf("prop value cannot be a relation")
	}
	return kbs.NewPropertyDeclaration(target, key, args[2].factor), nil
}

// classification parses the rendered form about::class(to).
func (p *parser) classification(about string) (kbs.Factor, error) {
	if !strings.HasPrefix(p.src[p.pos:], "::") {
		return nil, p.errorf("expected '::'")
	}
	p.pos += 2
	if !isIdentStart(p.peek()) {
		return nil, p.errorf("expected class name after '::'")
	}
	class := p.ident()
	if err := p.expect('('); err != nil {
		return nil, err
	}
	if !isIdentStart(p.peek()) {
		return nil, p.errorf("expected symbol in %s(...)", class)
	}
	to := p.ident()
	if err := p.expect(')'); err != nil {
		return nil, err
	}

	syms := make([]kbs.SymbolRef, 0, 3)
	for _, n := range []string{about, class, to} {
		s, err := p.symbol(n)
		if err != nil {
			return nil, err
		}
		syms = append(syms, s.(kbs.SymbolRef))
	}
	return kbs.NewSymbolRelation(syms[0], syms[1], syms[2]), nil
}

// symbol resolves name, registering it on first use. ~name is the inverse of
// name.
func (p *parser) symbol(name string) (kbs.Factor, error) {
	if base, ok := strings.CutPrefix(name, "~"); ok {
		s, err := p.kb.Intern(base)
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		inv, err := p.kb.InverseOf(s)
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		return inv, nil
	}
	s, err := p.kb.Intern(name)
	if err != nil {
		return nil, p.errorf("%v", err)
	}
	return s, nil
}

func (p *parser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && isIdentPart(p.src[p.pos], p.pos == start) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) number() (kbs.Factor, error) {
	start := p.pos
	if p.src[p.pos] == '-' {
		p.pos++
	}
	for p.pos < len(p.src) && (isDigit(p.src[p.pos]) || p.src[p.pos] == '.' || p.src[p.pos] == '/') {
		p.pos++
	}
	lit := p.src[start:p.pos]
	n, err := kbs.ParseNumber(lit)
	if err != nil {
		p.pos = start
		return nil, p.errorf("invalid number %q", lit)
	}
	return n, nil
}

func (p *parser) text() (kbs.Factor, error) {
	start := p.pos
	p.pos++
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '\\':
			p.pos += 2
			continue
		case '"':
			p.pos++
			s, err := strconv.Unquote(p.src[start:p.pos])
			if err != nil {
				return nil, p.errorf("invalid string %s", p.src[start:p.pos])
			}
			return kbs.NewText(s), nil
		}
		p.pos++
	}
	return nil, p.errorf("unterminated string")
}

func arity(p *parser, name string, fs []kbs.Factor, n int) error {
	if len(fs) != n {
		return p.errorf("%s takes %d argument(s), got %d", name, n, len(fs))
	}
	return nil
}

var builtins = map[string]bool{
	"and": true, "or": true, "not": true, "implies": true, "iff": true,
	"disagree": true, "eq": true, "ge": true, "le": true, "add": true,
	"sub": true, "neg": true, "rel": true, "prop": true,
}

func isBuiltin(name string) bool { return builtins[name] }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || c == '~' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte, first bool) bool {
	if first {
		return isIdentStart(c)
	}
	return isIdentStart(c) && c != '~' || isDigit(c) || c == '-' || c == '.'
}
