// Package render serializes a normalized capture into the fixed-schema
// markdown document. The frontmatter key order and the body section order
// never change, whatever branch produced the capture, so downstream parsers
// never special-case failure output.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hpungsan/glance/internal/normalize"
	"github.com/hpungsan/glance/internal/protocol"
)

// SectionOrder is the fixed order of the level-2 body sections.
var SectionOrder = []string{
	"Summary",
	"Key Points",
	"Content Chunks",
	"Raw Excerpt",
	"Links & Metadata",
}

// Markdown renders the document for one normalized capture. Pure function:
// identical inputs produce byte-identical output. Links come from the raw
// payload; everything else comes from the normalized record.
func Markdown(ctx *normalize.Context, payload *protocol.BrowserContext) string {
	var b strings.Builder
	writeFrontmatter(&b, ctx)
	writeSummary(&b, ctx)
	writeKeyPoints(&b, ctx)
	writeChunks(&b, ctx)
	writeRawExcerpt(&b, ctx)
	writeLinksAndMetadata(&b, ctx, payload)
	return b.String()
}

// quote wraps a frontmatter string value in double quotes, escaping
// backslashes and embedded quotes. No other escaping happens anywhere in the
// document; body text is inserted verbatim after sanitization.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// writeFrontmatter emits the YAML-like header with its fixed key order.
// The warnings key is always present; with no warnings it carries a single
// empty-string entry so the key is never omitted.
func writeFrontmatter(b *strings.Builder, ctx *normalize.Context) {
	b.WriteString("---\n")
	fmt.Fprintf(b, "id: %s\n", quote(ctx.ID))
	fmt.Fprintf(b, "captured_at: %s\n", quote(ctx.CapturedAt))
	fmt.Fprintf(b, "source_type: %s\n", quote(ctx.SourceType))
	fmt.Fprintf(b, "origin: %s\n", quote(ctx.Origin))
	fmt.Fprintf(b, "title: %s\n", quote(ctx.Title))
	fmt.Fprintf(b, "app_or_site: %s\n", quote(ctx.AppOrSite))
	fmt.Fprintf(b, "extraction_method: %s\n", quote(string(ctx.ExtractionMethod)))
	fmt.Fprintf(b, "confidence: %s\n", strconv.FormatFloat(ctx.Confidence, 'f', 2, 64))
	fmt.Fprintf(b, "truncated: %t\n", ctx.Truncated)
	fmt.Fprintf(b, "token_estimate: %d\n", ctx.TokenEstimate)
	b.WriteString("warnings:\n")
	warnings := ctx.CaptureWarnings
	if len(warnings) == 0 {
		warnings = []string{""}
	}
	for _, w := range warnings {
		fmt.Fprintf(b, "  - %s\n", quote(w))
	}
	b.WriteString("---\n")
}

func writeSummary(b *strings.Builder, ctx *normalize.Context) {
	b.WriteString("\n## Summary\n\n")
	if ctx.Summary == "" {
		b.WriteString("\n")
		return
	}
	b.WriteString(ctx.Summary)
	b.WriteString("\n")
}

func writeKeyPoints(b *strings.Builder, ctx *normalize.Context) {
	b.WriteString("\n## Key Points\n\n")
	if len(ctx.KeyPoints) == 0 {
		b.WriteString("- (none)\n")
		return
	}
	for _, p := range ctx.KeyPoints {
		fmt.Fprintf(b, "- %s\n", p)
	}
}

func writeChunks(b *strings.Builder, ctx *normalize.Context) {
	b.WriteString("\n## Content Chunks\n")
	if len(ctx.Chunks) == 0 {
		b.WriteString("\n(none)\n")
		return
	}
	for _, chunk := range ctx.Chunks {
		fmt.Fprintf(b, "\n### %s (tokens: %d)\n\n", chunk.ChunkID, chunk.TokenEstimate)
		b.WriteString(chunk.Text)
		b.WriteString("\n")
	}
}

func writeRawExcerpt(b *strings.Builder, ctx *normalize.Context) {
	b.WriteString("\n## Raw Excerpt\n\n```\n")
	if ctx.RawExcerpt != "" {
		b.WriteString(ctx.RawExcerpt)
		b.WriteString("\n")
	}
	b.WriteString("```\n")
}

func writeLinksAndMetadata(b *strings.Builder, ctx *normalize.Context, payload *protocol.BrowserContext) {
	b.WriteString("\n## Links & Metadata\n\n### Links\n\n")
	if payload == nil || len(payload.Links) == 0 {
		b.WriteString("- (none)\n")
	} else {
		for _, link := range payload.Links {
			fmt.Fprintf(b, "- [%s](%s)\n", link.Text, link.Href)
		}
	}

	b.WriteString("\n### Metadata\n\n")
	if len(ctx.Metadata) == 0 {
		b.WriteString("- (none)\n")
		return
	}
	for _, key := range normalize.SortedMetadataKeys(ctx.Metadata) {
		fmt.Fprintf(b, "- %s: %s\n", key, ctx.Metadata[key])
	}
}
