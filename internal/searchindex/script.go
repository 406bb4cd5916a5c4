package searchindex

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
)

// The search index ships as a small JavaScript program made of variable
// declarations and assignments of literal values. The program is parsed,
// never run: evalScript walks the top-level statements and evaluates
// literals, identifiers, R[n] style lookups, JSON.parse('...') and
// assignments. Other statements, such as calls into the rustdoc page script
// or if blocks, are skipped.

// evalScript returns the global variables the program defines.
func evalScript(src []byte) (map[string]any, error) {
	ast, err := js.Parse(parse.NewInputBytes(src), js.Options{})
	if err != nil {
		return nil, err
	}
	ev := &evaluator{env: make(map[string]any)}
	for _, stmt := range ast.List {
		if err := ev.statement(stmt); err != nil {
			return nil, err
		}
	}
	return ev.env, nil
}

type evaluator struct {
	env map[string]any
}

func (ev *evaluator) statement(stmt js.IStmt) error {
	switch s := stmt.(type) {
	case *js.VarDecl:
		for _, b := range s.List {
			v, ok := b.Binding.(*js.Var)
			if !ok {
				return fmt.Errorf("unsupported declaration %s", b)
			}
			var val any
			if b.Default != nil {
				var err error
				if val, err = ev.eval(b.Default); err != nil {
					return fmt.Errorf("%s: %w", v.Name(), err)
				}
			}
			ev.env[string(v.Name())] = val
		}
	case *js.ExprStmt:
		bin, ok := s.Value.(*js.BinaryExpr)
		if !ok || bin.Op != js.EqToken {
			return nil
		}
		val, err := ev.eval(bin.Y)
		if err != nil {
			return fmt.Errorf("assigning %s: %w", bin.X, err)
		}
		return ev.assign(bin.X, val)
	}
	return nil
}

func (ev *evaluator) eval(expr js.IExpr) (any, error) {
	switch n := expr.(type) {
	case *js.LiteralExpr:
		return literal(n)
	case *js.Var:
		name := string(n.Name())
		if name == "undefined" {
			return nil, nil
		}
		v, ok := ev.env[name]
		if !ok {
			return nil, fmt.Errorf("undefined variable %s", name)
		}
		return v, nil
	case *js.GroupExpr:
		return ev.eval(n.X)
	case *js.UnaryExpr:
		lit, ok := n.X.(*js.LiteralExpr)
		if !ok || !js.IsNumeric(lit.TokenType) || (n.Op != js.NegToken && n.Op != js.PosToken) {
			return nil, fmt.Errorf("unsupported expression %s", n)
		}
		v, err := literal(lit)
		if err != nil || n.Op == js.PosToken {
			return v, err
		}
		return json.Number("-" + v.(json.Number).String()), nil
	case *js.ArrayExpr:
		out := make([]any, len(n.List))
		for i, el := range n.List {
			if el.Spread {
				return nil, fmt.Errorf("unsupported spread element %s", el)
			}
			if el.Value == nil {
				continue
			}
			v, err := ev.eval(el.Value)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case *js.ObjectExpr:
		out := make(map[string]any, len(n.List))
		for _, prop := range n.List {
			if prop.Name == nil || prop.Init != nil {
				return nil, fmt.Errorf("unsupported property %s", prop)
			}
			key, err := ev.propertyKey(*prop.Name)
			if err != nil {
				return nil, err
			}
			v, err := ev.eval(prop.Value)
			if err != nil {
				return nil, fmt.Errorf("property %s: %w", key, err)
			}
			out[key] = v
		}
		return out, nil
	case *js.IndexExpr:
		obj, err := ev.eval(n.X)
		if err != nil {
			return nil, err
		}
		key, err := ev.eval(n.Y)
		if err != nil {
			return nil, err
		}
		return lookup(obj, key)
	case *js.DotExpr:
		obj, err := ev.eval(n.X)
		if err != nil {
			return nil, err
		}
		return lookup(obj, n.Y.String())
	case *js.CallExpr:
		return ev.call(n)
	}
	return nil, fmt.Errorf("unsupported expression %s", expr)
}

// call evaluates JSON.parse(str), the only function the payload may use.
func (ev *evaluator) call(n *js.CallExpr) (any, error) {
	dot, ok := n.X.(*js.DotExpr)
	if !ok || dot.Y.String() != "parse" || len(n.Args.List) != 1 || n.Args.List[0].Rest {
		return nil, fmt.Errorf("unsupported function call %s", n.X)
	}
	if v, ok := dot.X.(*js.Var); !ok || string(v.Name()) != "JSON" {
		return nil, fmt.Errorf("unsupported function call %s", n.X)
	}
	arg, err := ev.eval(n.Args.List[0].Value)
	if err != nil {
		return nil, err
	}
	s, ok := arg.(string)
	if !ok {
		return nil, fmt.Errorf("JSON.parse argument is %T, want string", arg)
	}
	return decodeJSON([]byte(s))
}

func (ev *evaluator) propertyKey(name js.PropertyName) (string, error) {
	if name.IsComputed() {
		key, err := ev.eval(name.Computed)
		if err != nil {
			return "", err
		}
		return keyString(key), nil
	}
	if name.Literal.TokenType == js.StringToken {
		return unquote(name.Literal.Data)
	}
	return string(name.Literal.Data), nil
}

func (ev *evaluator) assign(target js.IExpr, v any) error {
	var objExpr js.IExpr
	var key any
	switch t := target.(type) {
	case *js.Var:
		ev.env[string(t.Name())] = v
		return nil
	case *js.GroupExpr:
		return ev.assign(t.X, v)
	case *js.IndexExpr:
		k, err := ev.eval(t.Y)
		if err != nil {
			return err
		}
		objExpr, key = t.X, k
	case *js.DotExpr:
		objExpr, key = t.X, t.Y.String()
	default:
		return fmt.Errorf("invalid assignment target %s", target)
	}

	obj, err := ev.eval(objExpr)
	if err != nil {
		return err
	}
	switch o := obj.(type) {
	case map[string]any:
		o[keyString(key)] = v
		return nil
	case []any:
		i, err := arrayIndex(key)
		if err != nil {
			return err
		}
		if i < 0 || i >= int64(len(o)) {
			return fmt.Errorf("array index %d out of range", i)
		}
		o[i] = v
		return nil
	}
	return fmt.Errorf("cannot set property of %T", obj)
}

func literal(n *js.LiteralExpr) (any, error) {
	switch tt := n.TokenType; {
	case tt == js.StringToken:
		return unquote(n.Data)
	case tt == js.NullToken:
		return nil, nil
	case tt == js.TrueToken:
		return true, nil
	case tt == js.FalseToken:
		return false, nil
	case tt == js.DecimalToken:
		text := strings.ReplaceAll(string(n.Data), "_", "")
		if _, err := strconv.ParseFloat(text, 64); err != nil {
			return nil, fmt.Errorf("bad number %q", n.Data)
		}
		return json.Number(text), nil
	case js.IsNumeric(tt):
		// 0x, 0o and 0b literals.
		i, err := strconv.ParseInt(string(n.Data), 0, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", n.Data)
		}
		return json.Number(strconv.FormatInt(i, 10)), nil
	}
	return nil, fmt.Errorf("unsupported literal %s", n.Data)
}

// lookup mirrors JS property access: out of range and missing keys read as null.
func lookup(obj, key any) (any, error) {
	switch o := obj.(type) {
	case []any:
		i, err := arrayIndex(key)
		if err != nil {
			return nil, err
		}
		if i < 0 || i >= int64(len(o)) {
			return nil, nil
		}
		return o[i], nil
	case map[string]any:
		return o[keyString(key)], nil
	}
	return nil, fmt.Errorf("cannot read property of %T", obj)
}

func arrayIndex(key any) (int64, error) {
	num, ok := key.(json.Number)
	if !ok {
		return 0, fmt.Errorf("array index is %T, want number", key)
	}
	i, err := num.Int64()
	if err != nil {
		return 0, fmt.Errorf("array index %s: %w", num, err)
	}
	return i, nil
}

func keyString(key any) string {
	switch k := key.(type) {
	case string:
		return k
	case json.Number:
		return k.String()
	}
	return fmt.Sprint(key)
}

var errBadEscape = errors.New("bad escape sequence")

// unquote decodes a quoted JS string literal as the lexer returns it.
func unquote(lit []byte) (string, error) {
	if len(lit) < 2 {
		return "", fmt.Errorf("bad string literal %q", lit)
	}
	src := lit[1 : len(lit)-1]
	if bytes.IndexByte(src, '\\') < 0 {
		return string(src), nil
	}

	var b strings.Builder
	for i := 0; i < len(src); {
		c := src[i]
		if c != '\\' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 >= len(src) {
			return "", errBadEscape
		}
		esc := src[i+1]
		i += 2
		switch esc {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\n':
			// line continuation
		case '\r':
			if i < len(src) && src[i] == '\n' {
				i++
			}
		case 'x':
			if i+2 > len(src) {
				return "", errBadEscape
			}
			v, err := strconv.ParseUint(string(src[i:i+2]), 16, 8)
			if err != nil {
				return "", errBadEscape
			}
			b.WriteRune(rune(v))
			i += 2
		case 'u':
			r, n, err := unicodeEscape(src, i)
			if err != nil {
				return "", err
			}
			i = n
			if utf16.IsSurrogate(r) && i+6 <= len(src) && src[i] == '\\' && src[i+1] == 'u' {
				if r2, n2, err := unicodeEscape(src, i+2); err == nil {
					if d := utf16.DecodeRune(r, r2); d != utf8.RuneError {
						r, i = d, n2
					}
				}
			}
			b.WriteRune(r)
		default:
			b.WriteByte(esc)
		}
	}
	return b.String(), nil
}

func unicodeEscape(src []byte, i int) (rune, int, error) {
	if i < len(src) && src[i] == '{' {
		end := bytes.IndexByte(src[i:], '}')
		if end < 0 {
			return 0, 0, errBadEscape
		}
		v, err := strconv.ParseUint(string(src[i+1:i+end]), 16, 32)
		if err != nil {
			return 0, 0, errBadEscape
		}
		return rune(v), i + end + 1, nil
	}
	if i+4 > len(src) {
		return 0, 0, errBadEscape
	}
	v, err := strconv.ParseUint(string(src[i:i+4]), 16, 16)
	if err != nil {
		return 0, 0, errBadEscape
	}
	return rune(v), i + 4, nil
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding JSON: %w", err)
	}
	return v, nil
}
