package markdown

import (
	"strings"
	"unicode/utf8"

	gm "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	gmparser "github.com/gomarkdown/markdown/parser"
)

// PlainText renders an item description to a single line of plain text.
// Emphasis and link markup are dropped, code spans keep their content and
// inline HTML tags are removed.
func PlainText(src string) string {
	if src == "" {
		return ""
	}

	doc := gm.Parse([]byte(src), gmparser.NewWithExtensions(
		gmparser.CommonExtensions|gmparser.Autolink,
	))

	var b strings.Builder
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			if _, ok := node.(*ast.Paragraph); ok {
				b.WriteByte(' ')
			}
			return ast.GoToNext
		}
		switch n := node.(type) {
		case *ast.Text:
			b.Write(n.Literal)
		case *ast.Code:
			b.Write(n.Literal)
		case *ast.CodeBlock:
			b.Write(n.Literal)
			b.WriteByte(' ')
		case *ast.Softbreak, *ast.Hardbreak:
			b.WriteByte(' ')
		case *ast.HTMLSpan, *ast.HTMLBlock:
			return ast.SkipChildren
		}
		return ast.GoToNext
	})
	return strings.Join(strings.Fields(b.String()), " ")
}

// Truncate shortens s to at most max runes, ending in an ellipsis when cut.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	cut := 0
	for i := range s {
		if cut == max-1 {
			return strings.TrimRight(s[:i], " ") + "…"
		}
		cut++
	}
	return s
}
