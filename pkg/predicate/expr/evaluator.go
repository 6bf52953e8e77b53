// Package expr is a small, dependency-free evaluator for requiredness and
// visibility rules.
//
// Supported forms:
//   - truthiness: `riskPresent`, `!ownsLand`
//   - comparisons: `riskPresent == "Yes"`, `landUse != "Leased"`
//   - composition: `a == "Yes" && b != "No"`, `(a || b) && !c`
//
// Truthiness follows the inspection domain's Yes/No vocabulary: the literal
// "No" is false, "Yes" is true, an empty or missing answer is false, and a
// non-empty multi-select is true.
package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Evaluator implements predicate.Evaluator over rule strings.
type Evaluator struct{}

// New returns a rule evaluator.
func New() *Evaluator { return &Evaluator{} }

// Eval parses and evaluates rule against values. An empty rule is
// vacuously true.
func (e *Evaluator) Eval(rule string, values map[string]any) (bool, error) {
	trimmed := strings.TrimSpace(rule)
	if trimmed == "" {
		return true, nil
	}
	tokens, err := scan(trimmed)
	if err != nil {
		return false, err
	}
	p := &parser{tokens: tokens}
	node, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if p.pos < len(p.tokens) {
		return false, fmt.Errorf("predicate/expr: unexpected token %q", p.tokens[p.pos].text)
	}
	return node.eval(values)
}

type kind int

const (
	kindIdent kind = iota
	kindString
	kindEq
	kindNeq
	kindAnd
	kindOr
	kindNot
	kindLParen
	kindRParen
)

type tok struct {
	kind kind
	text string
}

func scan(input string) ([]tok, error) {
	var out []tok
	i := 0
	for i < len(input) {
		ch := input[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '(':
			out = append(out, tok{kindLParen, "("})
			i++
		case ch == ')':
			out = append(out, tok{kindRParen, ")"})
			i++
		case ch == '!':
			if i+1 < len(input) && input[i+1] == '=' {
				out = append(out, tok{kindNeq, "!="})
				i += 2
			} else {
				out = append(out, tok{kindNot, "!"})
				i++
			}
		case ch == '=':
			if i+1 >= len(input) || input[i+1] != '=' {
				return nil, errors.New("predicate/expr: single '='; use '=='")
			}
			out = append(out, tok{kindEq, "=="})
			i += 2
		case ch == '&':
			if i+1 >= len(input) || input[i+1] != '&' {
				return nil, errors.New("predicate/expr: single '&'; use '&&'")
			}
			out = append(out, tok{kindAnd, "&&"})
			i += 2
		case ch == '|':
			if i+1 >= len(input) || input[i+1] != '|' {
				return nil, errors.New("predicate/expr: single '|'; use '||'")
			}
			out = append(out, tok{kindOr, "||"})
			i += 2
		case ch == '"' || ch == '\'':
			lit, rest, err := scanString(input[i:])
			if err != nil {
				return nil, err
			}
			out = append(out, tok{kindString, lit})
			i += rest
		default:
			start := i
			for i < len(input) && !strings.ContainsRune(" \t\n\r()!=&|'\"", rune(input[i])) {
				i++
			}
			out = append(out, tok{kindIdent, input[start:i]})
		}
	}
	return out, nil
}

func scanString(input string) (lit string, consumed int, err error) {
	quote := input[0]
	for j := 1; j < len(input); j++ {
		if input[j] == '\\' {
			j++
			continue
		}
		if input[j] == quote {
			raw := input[:j+1]
			if quote == '\'' {
				raw = `"` + strings.ReplaceAll(raw[1:j], `"`, `\"`) + `"`
			}
			unq, uerr := strconv.Unquote(raw)
			if uerr != nil {
				return "", 0, fmt.Errorf("predicate/expr: bad string literal: %w", uerr)
			}
			return unq, j + 1, nil
		}
	}
	return "", 0, errors.New("predicate/expr: unterminated string literal")
}

type node interface {
	eval(values map[string]any) (bool, error)
}

type orNode struct{ left, right node }

func (n orNode) eval(values map[string]any) (bool, error) {
	ok, err := n.left.eval(values)
	if err != nil || ok {
		return ok, err
	}
	return n.right.eval(values)
}

type andNode struct{ left, right node }

func (n andNode) eval(values map[string]any) (bool, error) {
	ok, err := n.left.eval(values)
	if err != nil || !ok {
		return ok, err
	}
	return n.right.eval(values)
}

type notNode struct{ inner node }

func (n notNode) eval(values map[string]any) (bool, error) {
	ok, err := n.inner.eval(values)
	return !ok, err
}

type compareNode struct {
	key    string
	negate bool
	want   string
}

func (n compareNode) eval(values map[string]any) (bool, error) {
	got := answerString(values[n.key])
	eq := strings.EqualFold(got, n.want)
	if n.negate {
		return !eq, nil
	}
	return eq, nil
}

type truthyNode struct{ key string }

func (n truthyNode) eval(values map[string]any) (bool, error) {
	return answered(values[n.key]), nil
}

type parser struct {
	tokens []tok
	pos    int
}

func (p *parser) match(k kind) bool {
	if p.pos < len(p.tokens) && p.tokens[p.pos].kind == k {
		p.pos++
		return true
	}
	return false
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.match(kindOr) {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left, right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.match(kindAnd) {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = andNode{left, right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.match(kindNot) {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	if p.match(kindLParen) {
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.match(kindRParen) {
			return nil, errors.New("predicate/expr: missing ')'")
		}
		return inner, nil
	}

	if p.pos >= len(p.tokens) {
		return nil, errors.New("predicate/expr: empty expression")
	}
	t := p.tokens[p.pos]
	if t.kind != kindIdent {
		return nil, fmt.Errorf("predicate/expr: expected field key, got %q", t.text)
	}
	p.pos++

	if p.match(kindEq) {
		return p.finishCompare(t.text, false)
	}
	if p.match(kindNeq) {
		return p.finishCompare(t.text, true)
	}
	return truthyNode{key: t.text}, nil
}

func (p *parser) finishCompare(key string, negate bool) (node, error) {
	if p.pos >= len(p.tokens) {
		return nil, errors.New("predicate/expr: missing literal after comparison")
	}
	lit := p.tokens[p.pos]
	if lit.kind != kindString && lit.kind != kindIdent {
		return nil, fmt.Errorf("predicate/expr: expected literal, got %q", lit.text)
	}
	p.pos++
	return compareNode{key: key, negate: negate, want: lit.text}, nil
}

// answerString flattens an in-memory draft value to its comparable form.
func answerString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// answered reports domain truthiness: "No", empty strings, empty slices,
// and missing values are all false.
func answered(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		s := strings.TrimSpace(t)
		return s != "" && !strings.EqualFold(s, "No")
	case bool:
		return t
	case []string:
		return len(t) > 0
	case []any:
		return len(t) > 0
	default:
		return answerString(v) != ""
	}
}
