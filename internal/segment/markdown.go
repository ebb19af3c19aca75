package segment

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// mdSection is one heading-delimited span of a markdown note.
type mdSection struct {
	HeaderPath string // "# Interview Prep > ## Questions"
	Content    string
}

// markdownSplitter splits markdown notes at H1/H2 boundaries while
// preserving the heading hierarchy for chunk metadata.
type markdownSplitter struct {
	parser goldmark.Markdown
}

func newMarkdownSplitter() *markdownSplitter {
	return &markdownSplitter{
		parser: goldmark.New(
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		),
	}
}

// split parses the source and returns one section per H1/H2 heading.
// A document without headings comes back as a single section with an
// empty header path.
func (m *markdownSplitter) split(source []byte) ([]mdSection, error) {
	doc := m.parser.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect toc: %w", err)
	}

	if len(tree.Items) == 0 {
		return []mdSection{{Content: string(source)}}, nil
	}

	var sections []mdSection
	m.collect(doc, source, tree.Items, nil, &sections)
	return sections, nil
}

// collect walks TOC items depth-first, slicing the source between each
// heading and the next heading at the same or a higher level.
func (m *markdownSplitter) collect(doc ast.Node, source []byte, items toc.Items, ancestors []string, out *[]mdSection) {
	for i, item := range items {
		path := append(ancestors, string(item.Title))

		heading := headingByID(doc, string(item.ID))
		if heading == nil {
			continue
		}

		start := heading.Lines().At(0)
		var end text.Segment
		if i+1 < len(items) {
			if next := headingByID(doc, string(items[i+1].ID)); next != nil {
				end = next.Lines().At(0)
			}
		} else {
			end = nextBoundary(doc, heading, heading.(*ast.Heading).Level)
		}

		*out = append(*out, mdSection{
			HeaderPath: joinHeaderPath(path),
			Content:    sliceContent(source, start, end),
		})

		if len(item.Items) > 0 {
			m.collect(doc, source, item.Items, path, out)
		}
	}
}

func joinHeaderPath(path []string) string {
	parts := make([]string, len(path))
	for i, title := range path {
		parts[i] = fmt.Sprintf("%s %s", strings.Repeat("#", i+1), title)
	}
	return strings.Join(parts, " > ")
}

// headingByID finds the heading node carrying the auto-generated ID.
func headingByID(node ast.Node, id string) ast.Node {
	var found ast.Node
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == ast.KindHeading {
			if attr, ok := n.AttributeString("id"); ok && string(attr.([]byte)) == id {
				found = n
				return ast.WalkStop, nil
			}
		}
		return ast.WalkContinue, nil
	})
	return found
}

// nextBoundary locates the first heading after current at the same or a
// higher level; the zero segment means the section runs to EOF.
func nextBoundary(root, current ast.Node, level int) text.Segment {
	var boundary ast.Node
	passed := false

	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindHeading {
			return ast.WalkContinue, nil
		}
		if !passed {
			if n == current {
				passed = true
			}
			return ast.WalkContinue, nil
		}
		if n.(*ast.Heading).Level <= level {
			boundary = n
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})

	if boundary != nil {
		return boundary.Lines().At(0)
	}
	return text.Segment{}
}

func sliceContent(source []byte, start, end text.Segment) string {
	if end.Start == 0 && end.Stop == 0 {
		return strings.TrimSpace(string(source[start.Start:]))
	}
	return strings.TrimSpace(string(source[start.Start:end.Start]))
}
