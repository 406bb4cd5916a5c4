// Package query parses search expressions into automata.
//
//	expr    := and ( '|' and )*
//	and     := unary ( '&' unary )*
//	unary   := '!' unary | '^' unary | '(' expr ')' | term
//	term    := [mode ':'] text
//
// text is a bare word or a double-quoted string. mode is one of prefix,
// exact, subseq, re, fuzzy (distance 1) or fuzzyN for distance N. '|' is
// union, '&' intersection, '!' complement and '^' matches keys that start
// with a match of its operand.
package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jcdickinson/rsdocseek/internal/automaton"
)

const (
	ModePrefix      = "prefix"
	ModeExact       = "exact"
	ModeSubsequence = "subseq"
	ModeRegex       = "re"
	ModeFuzzy       = "fuzzy"
)

// Modes lists the term modes, for help text.
var Modes = []string{ModePrefix, ModeExact, ModeSubsequence, ModeRegex, ModeFuzzy, ModeFuzzy + "N"}

// SyntaxError reports a malformed expression. Pos is a byte offset.
type SyntaxError struct {
	Expr string
	Pos  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d in %q: %s", e.Pos, e.Expr, e.Msg)
}

// ValidMode returns an error if mode is not a term mode.
func ValidMode(mode string) error {
	if _, err := term(mode, "x"); err != nil {
		return err
	}
	return nil
}

// term builds the acceptor for text under mode.
func term(mode, text string) (automaton.Automaton, error) {
	switch mode {
	case ModePrefix:
		return automaton.Prefix(text), nil
	case ModeExact:
		return automaton.Exact(text), nil
	case ModeSubsequence:
		return automaton.Subsequence(text), nil
	case ModeRegex:
		return automaton.Regex(text)
	case ModeFuzzy:
		return automaton.Levenshtein(text, 1)
	}
	if n, ok := strings.CutPrefix(mode, ModeFuzzy); ok {
		d, err := strconv.Atoi(n)
		if err != nil {
			return nil, fmt.Errorf("unknown mode %q", mode)
		}
		return automaton.Levenshtein(text, d)
	}
	return nil, fmt.Errorf("unknown mode %q", mode)
}

func isMode(s string) bool {
	switch s {
	case ModePrefix, ModeExact, ModeSubsequence, ModeRegex, ModeFuzzy:
		return true
	}
	n, ok := strings.CutPrefix(s, ModeFuzzy)
	if !ok || n == "" {
		return false
	}
	_, err := strconv.Atoi(n)
	return err == nil
}

// Compile parses expr, using defaultMode for terms without an explicit mode.
func Compile(expr, defaultMode string) (automaton.Automaton, error) {
	if err := ValidMode(defaultMode); err != nil {
		return nil, err
	}
	p := &parser{src: expr, mode: defaultMode}
	p.skipSpace()
	if p.pos == len(p.src) {
		return nil, p.errorf("empty expression")
	}
	a, err := p.expr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos])
	}
	return a, nil
}

type parser struct {
	src  string
	pos  int
	mode string
}

func (p *parser) errorf(format string, args ...any) *SyntaxError {
	return &SyntaxError{Expr: p.src, Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n') {
		p.pos++
	}
}

// eat consumes c if it is the next non-space byte.
func (p *parser) eat(c byte) bool {
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expr() (automaton.Automaton, error) {
	a, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.eat('|') {
		b, err := p.and()
		if err != nil {
			return nil, err
		}
		a = automaton.Union(a, b)
	}
	return a, nil
}

func (p *parser) and() (automaton.Automaton, error) {
	a, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.eat('&') {
		b, err := p.unary()
		if err != nil {
			return nil, err
		}
		a = automaton.Intersection(a, b)
	}
	return a, nil
}

func (p *parser) unary() (automaton.Automaton, error) {
	switch {
	case p.eat('!'):
		a, err := p.unary()
		if err != nil {
			return nil, err
		}
		return automaton.Complement(a), nil
	case p.eat('^'):
		a, err := p.unary()
		if err != nil {
			return nil, err
		}
		return automaton.StartsWith(a), nil
	case p.eat('('):
		a, err := p.expr()
		if err != nil {
			return nil, err
		}
		if !p.eat(')') {
			return nil, p.errorf("expected ')'")
		}
		return a, nil
	}
	return p.term()
}

const special = "|&()\""

func (p *parser) term() (automaton.Automaton, error) {
	p.skipSpace()
	start := p.pos
	if p.pos == len(p.src) {
		return nil, p.errorf("expected term")
	}

	mode := p.mode
	word := p.word()
	if m, rest, ok := strings.Cut(word, ":"); ok && isMode(m) {
		mode, word = m, rest
	}
	text := word
	if word == "" {
		if p.pos == len(p.src) || p.src[p.pos] != '"' {
			return nil, p.errorf("expected term")
		}
		s, err := p.quoted()
		if err != nil {
			return nil, err
		}
		text = s
	}

	a, err := term(mode, text)
	if err != nil {
		var pe *automaton.PatternError
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, &SyntaxError{Expr: p.src, Pos: start, Msg: err.Error()}
	}
	return a, nil
}

// word scans a bare word up to whitespace or an operator.
func (p *parser) word() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == ' ' || c == '\t' || c == '\n' || strings.IndexByte(special, c) >= 0 {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) quoted() (string, error) {
	start := p.pos
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		p.pos++
		switch c {
		case '"':
			return b.String(), nil
		case '\\':
			if p.pos < len(p.src) && (p.src[p.pos] == '"' || p.src[p.pos] == '\\') {
				c = p.src[p.pos]
				p.pos++
			}
		}
		b.WriteByte(c)
	}
	return "", &SyntaxError{Expr: p.src, Pos: start, Msg: "unterminated string"}
}
