package render

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Structural verification of rendered documents. The renderer promises a
// fixed section order; Verify re-parses the markdown with goldmark and checks
// that promise, so callers (CLI --check, tests) can validate a document
// without string matching.

// Outline returns the text of every level-2 heading in document order.
// The frontmatter block is stripped first; goldmark would otherwise read
// "---" as a thematic break and swallow the first heading.
func Outline(markdown string) []string {
	body := stripFrontmatter(markdown)
	source := []byte(body)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var outline []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if heading, ok := n.(*ast.Heading); ok && heading.Level == 2 {
			var sb strings.Builder
			for c := heading.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					sb.Write(t.Segment.Value(source))
				}
			}
			outline = append(outline, sb.String())
		}
		return ast.WalkContinue, nil
	})
	return outline
}

// Verify checks that markdown carries exactly the fixed level-2 sections in
// the fixed order. It does not inspect section contents.
func Verify(markdown string) error {
	outline := Outline(markdown)
	if len(outline) != len(SectionOrder) {
		return fmt.Errorf("expected %d sections, found %d: %v", len(SectionOrder), len(outline), outline)
	}
	for i, want := range SectionOrder {
		if outline[i] != want {
			return fmt.Errorf("section %d is %q, expected %q", i+1, outline[i], want)
		}
	}
	return nil
}

// stripFrontmatter removes a leading --- ... --- block, if present.
func stripFrontmatter(markdown string) string {
	if !strings.HasPrefix(markdown, "---\n") {
		return markdown
	}
	rest := markdown[len("---\n"):]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		return markdown
	}
	return rest[end+len("\n---\n"):]
}
