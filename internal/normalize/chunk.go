package normalize

import (
	"fmt"
	"strings"

	"github.com/hpungsan/glance/internal/protocol"
)

// Chunking splits the normalized text into paragraph-aligned chunks whose
// token estimates stay under a soft target, with a hard ceiling that forces
// a flush. Oversized paragraphs fall back to sentence packing, and a single
// unbreakable run falls back to fixed-length character slices.

// chunker carries the monotonic counter and the output list while packing.
type chunker struct {
	chunks  []Chunk
	counter int
	current []string
}

// emit appends text as a finished chunk under the next chunk-NNN id.
func (c *chunker) emit(text string) {
	c.counter++
	c.chunks = append(c.chunks, Chunk{
		ChunkID:       fmt.Sprintf("chunk-%03d", c.counter),
		TokenEstimate: EstimateTokens(text),
		Text:          text,
	})
}

// flush emits the accumulated paragraphs as one chunk, if any.
func (c *chunker) flush() {
	if len(c.current) == 0 {
		return
	}
	c.emit(strings.Join(c.current, "\n\n"))
	c.current = nil
}

// ChunkText splits sanitized text into bounded chunks. Paragraphs are packed
// greedily while the running estimate stays at or under ChunkTargetTokens;
// the chunk is flushed when the next paragraph would push it past the target,
// or immediately once the running total reaches ChunkHardTokens.
func ChunkText(text string) []Chunk {
	c := &chunker{}
	for _, paragraph := range splitParagraphs(text) {
		if EstimateTokens(paragraph) > protocol.ChunkHardTokens {
			c.flush()
			c.emitOversized(paragraph)
			continue
		}

		candidate := strings.Join(append(append([]string{}, c.current...), paragraph), "\n\n")
		if len(c.current) > 0 && EstimateTokens(candidate) > protocol.ChunkTargetTokens {
			c.flush()
		}
		c.current = append(c.current, paragraph)
		if EstimateTokens(strings.Join(c.current, "\n\n")) >= protocol.ChunkHardTokens {
			c.flush()
		}
	}
	c.flush()
	return c.chunks
}

// emitOversized breaks a paragraph that exceeds the hard ceiling: first by
// sentence boundaries packed up to the ceiling, then by fixed character
// slices when a single "sentence" is itself too large (no sentence
// punctuation found).
func (c *chunker) emitOversized(paragraph string) {
	var packed []string
	for _, sentence := range SplitSentences(paragraph) {
		if EstimateTokens(sentence) > protocol.ChunkHardTokens {
			if len(packed) > 0 {
				c.emit(strings.Join(packed, " "))
				packed = nil
			}
			for _, slice := range sliceRunes(sentence, protocol.ChunkHardTokens*4) {
				c.emit(slice)
			}
			continue
		}
		candidate := strings.Join(append(append([]string{}, packed...), sentence), " ")
		if len(packed) > 0 && EstimateTokens(candidate) > protocol.ChunkHardTokens {
			c.emit(strings.Join(packed, " "))
			packed = nil
		}
		packed = append(packed, sentence)
	}
	if len(packed) > 0 {
		c.emit(strings.Join(packed, " "))
	}
}

// splitParagraphs splits sanitized text on blank lines, dropping empties.
func splitParagraphs(text string) []string {
	var paragraphs []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// sliceRunes splits text into consecutive slices of at most size runes.
func sliceRunes(text string, size int) []string {
	runes := []rune(text)
	var slices []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		slices = append(slices, string(runes[start:end]))
	}
	return slices
}
