package document

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Title возвращает текст первого заголовка верхнего уровня в документе.
// Заголовки внутри блоков кода goldmark не считает заголовками.
func Title(content []byte) string {
	doc := goldmark.New().Parser().Parse(text.NewReader(content))

	var title string
	best := 7
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok || heading.Level >= best {
			return ast.WalkContinue, nil
		}
		if t := strings.TrimSpace(extractText(heading, content)); t != "" {
			title = t
			best = heading.Level
		}
		return ast.WalkSkipChildren, nil
	})
	return title
}

// extractText извлекает текст из узла AST
func extractText(node ast.Node, source []byte) string {
	var buf strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch c := child.(type) {
		case *ast.Text:
			buf.Write(c.Segment.Value(source))
		case *ast.String:
			buf.Write(c.Value)
		default:
			buf.WriteString(extractText(child, source))
		}
	}
	return buf.String()
}
