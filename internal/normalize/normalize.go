// Package normalize turns a raw capture payload into the canonical
// NormalizedContext record: sanitized text, extractive summary and key
// points, bounded chunks, assembled metadata, and a fixed confidence score.
// Everything here is a pure function of its inputs: identical inputs
// produce byte-identical output.
package normalize

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hpungsan/glance/internal/protocol"
)

// ExtractionMethod says how content was obtained. It drives the fixed
// confidence score and nothing else.
type ExtractionMethod string

const (
	MethodBrowserExtension ExtractionMethod = "browser_extension"
	MethodAccessibility    ExtractionMethod = "accessibility"
	MethodOCR              ExtractionMethod = "ocr"
	MethodMetadataOnly     ExtractionMethod = "metadata_only"
)

// confidenceByMethod is a fixed lookup; confidence is never computed from
// content.
var confidenceByMethod = map[ExtractionMethod]float64{
	MethodBrowserExtension: 0.92,
	MethodAccessibility:    0.75,
	MethodOCR:              0.60,
	MethodMetadataOnly:     0.45,
}

// Confidence returns the fixed confidence for an extraction method.
// Unknown methods score as metadata_only.
func Confidence(method ExtractionMethod) float64 {
	if c, ok := confidenceByMethod[method]; ok {
		return c
	}
	return confidenceByMethod[MethodMetadataOnly]
}

// Chunk is one bounded slice of the normalized text.
type Chunk struct {
	ChunkID       string `json:"chunk_id"`
	TokenEstimate int    `json:"token_estimate"`
	Text          string `json:"text"`
}

// Context is the canonical normalized record produced once per capture.
// It is a value object: constructed here, read by the renderer, never
// mutated.
type Context struct {
	ID               string            `json:"id"`
	CapturedAt       string            `json:"captured_at"`
	SourceType       string            `json:"source_type"`
	Title            string            `json:"title"`
	Origin           string            `json:"origin"`
	AppOrSite        string            `json:"app_or_site"`
	ExtractionMethod ExtractionMethod  `json:"extraction_method"`
	Confidence       float64           `json:"confidence"`
	Truncated        bool              `json:"truncated"`
	TokenEstimate    int               `json:"token_estimate"`
	Metadata         map[string]string `json:"metadata"`
	CaptureWarnings  []string          `json:"capture_warnings"`
	Summary          string            `json:"summary"`
	KeyPoints        []string          `json:"key_points"`
	Chunks           []Chunk           `json:"chunks"`
	RawExcerpt       string            `json:"raw_excerpt"`
}

// Meta is the orchestrator-supplied context for one normalization:
// the request id, the capture timestamp, how the content was obtained, and
// any orchestrator-level warnings (ordered before payload warnings).
type Meta struct {
	ID         string
	CapturedAt string
	Method     ExtractionMethod
	Warnings   []string
}

var (
	trailingSpaceRegex = regexp.MustCompile(`[ \t]+\n`)
	manyNewlinesRegex  = regexp.MustCompile(`\n{3,}`)
)

// Sanitize normalizes line endings, strips trailing whitespace before
// newlines, collapses runs of 3+ newlines to exactly 2, and trims.
func Sanitize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = trailingSpaceRegex.ReplaceAllString(text, "\n")
	text = manyNewlinesRegex.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// EstimateTokens is the cheap LLM-token proxy used throughout:
// ceil(characterCount/4) of the trimmed text, 0 for empty text.
// Characters are runes.
func EstimateTokens(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	return int(math.Ceil(float64(utf8.RuneCountInString(trimmed)) / 4))
}

// truncate slices text to maxChars runes. The bool reports whether anything
// was cut. This is the only place in the system where content is truncated.
func truncate(text string, maxChars int) (string, bool) {
	if utf8.RuneCountInString(text) <= maxChars {
		return text, false
	}
	runes := []rune(text)
	return string(runes[:maxChars]), true
}

// firstRunes returns the first n runes of text.
func firstRunes(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n])
}

// mergeWarnings concatenates orchestrator warnings before payload warnings
// and deduplicates while preserving first-seen order.
func mergeWarnings(orchestrator, payload []string) []string {
	merged := make([]string, 0, len(orchestrator)+len(payload))
	seen := make(map[string]bool, len(orchestrator)+len(payload))
	for _, w := range append(append([]string{}, orchestrator...), payload...) {
		if seen[w] {
			continue
		}
		seen[w] = true
		merged = append(merged, w)
	}
	return merged
}

// assembleMetadata collects the payload's known metadata fields into a map.
// The url key is always present; optional keys appear only when non-empty.
// Keys are rendered in sorted order downstream.
func assembleMetadata(p *protocol.BrowserContext) map[string]string {
	md := map[string]string{"url": p.URL}
	if p.Browser != "" {
		md["browser"] = p.Browser
	}
	optional := map[string]string{
		"meta_description": p.MetaDescription,
		"site_name":        p.SiteName,
		"language":         p.Language,
		"author":           p.Author,
		"published_time":   p.PublishedTime,
	}
	for key, value := range optional {
		if value != "" {
			md[key] = value
		}
	}
	return md
}

// SortedMetadataKeys returns the metadata keys in ascending order. The
// renderer uses this so metadata output is deterministic.
func SortedMetadataKeys(md map[string]string) []string {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// appOrSite prefers the declared site name and falls back to the browser.
func appOrSite(p *protocol.BrowserContext) string {
	if p.SiteName != "" {
		return p.SiteName
	}
	return p.Browser
}

// Normalize builds the canonical Context from a raw payload and the
// orchestrator metadata. Deterministic: no clock, no randomness.
func Normalize(p *protocol.BrowserContext, meta Meta) *Context {
	warnings := meta.Warnings

	text := Sanitize(p.FullText)
	text, truncated := truncate(text, protocol.MaxFullTextChars)
	if truncated {
		warnings = append(append([]string{}, warnings...),
			fmt.Sprintf("full text exceeded %d characters and was truncated", protocol.MaxFullTextChars))
	}

	sentences := scoreSentences(text, p.Headings)
	summary := selectSummary(sentences, protocol.MaxSummarySentences)
	keyPoints := selectKeyPoints(sentences, protocol.MaxKeyPoints)

	return &Context{
		ID:               meta.ID,
		CapturedAt:       meta.CapturedAt,
		SourceType:       p.Source,
		Title:            p.Title,
		Origin:           p.URL,
		AppOrSite:        appOrSite(p),
		ExtractionMethod: meta.Method,
		Confidence:       Confidence(meta.Method),
		Truncated:        truncated,
		TokenEstimate:    EstimateTokens(text),
		Metadata:         assembleMetadata(p),
		CaptureWarnings:  mergeWarnings(warnings, p.ExtractionWarnings),
		Summary:          summary,
		KeyPoints:        keyPoints,
		Chunks:           ChunkText(text),
		RawExcerpt:       firstRunes(text, protocol.MaxRawExcerptChars),
	}
}
