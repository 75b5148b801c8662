package normalize

import (
	"strings"
	"testing"

	"github.com/hpungsan/glance/internal/protocol"
)

func TestChunkTextSmallInput(t *testing.T) {
	chunks := ChunkText("One short paragraph.\n\nAnd another.")
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	if chunks[0].ChunkID != "chunk-001" {
		t.Errorf("id = %q, want chunk-001", chunks[0].ChunkID)
	}
	if chunks[0].Text != "One short paragraph.\n\nAnd another." {
		t.Errorf("text = %q", chunks[0].Text)
	}
}

func TestChunkTextEmpty(t *testing.T) {
	if chunks := ChunkText(""); len(chunks) != 0 {
		t.Errorf("chunks = %v, want none", chunks)
	}
	if chunks := ChunkText("\n\n\n\n"); len(chunks) != 0 {
		t.Errorf("whitespace-only input produced chunks: %v", chunks)
	}
}

func TestChunkTextMonotonicIDs(t *testing.T) {
	// Each paragraph is large enough that no two fit under the target
	// together, so every paragraph becomes its own chunk.
	paragraph := strings.Repeat("a", (protocol.ChunkTargetTokens-300)*4)
	text := strings.Join([]string{paragraph, paragraph, paragraph}, "\n\n")

	chunks := ChunkText(text)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	want := []string{"chunk-001", "chunk-002", "chunk-003"}
	for i, w := range want {
		if chunks[i].ChunkID != w {
			t.Errorf("chunk[%d].ChunkID = %q, want %q", i, chunks[i].ChunkID, w)
		}
	}
}

func TestChunkTextCoverage(t *testing.T) {
	paragraphs := []string{
		"Intro paragraph with a couple of sentences. Nothing fancy.",
		strings.Repeat("b", 3000),
		"Middle paragraph.",
		strings.Repeat("c", 5000),
		"Closing remark.",
	}
	text := strings.Join(paragraphs, "\n\n")

	chunks := ChunkText(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	parts := make([]string, len(chunks))
	for i, ch := range chunks {
		parts[i] = ch.Text
	}
	if strings.Join(parts, "\n\n") != text {
		t.Error("concatenated chunks must reproduce the input text")
	}
}

func TestChunkTextTokenEstimates(t *testing.T) {
	text := strings.Repeat("word ", 2000) + "\n\n" + strings.Repeat("d", 4000)
	for _, ch := range ChunkText(Sanitize(text)) {
		if ch.TokenEstimate != EstimateTokens(ch.Text) {
			t.Errorf("%s: tokenEstimate = %d, want %d", ch.ChunkID, ch.TokenEstimate, EstimateTokens(ch.Text))
		}
		if ch.TokenEstimate > protocol.ChunkHardTokens {
			t.Errorf("%s: tokenEstimate %d exceeds hard ceiling", ch.ChunkID, ch.TokenEstimate)
		}
	}
}

func TestChunkTextOversizedParagraphSentenceSplit(t *testing.T) {
	// One paragraph well past the hard ceiling, but with sentence
	// boundaries to pack along.
	sentence := strings.Repeat("x", 399) + "."
	paragraph := strings.TrimSpace(strings.Repeat(sentence+" ", 30))

	chunks := ChunkText(paragraph)
	if len(chunks) < 2 {
		t.Fatalf("oversized paragraph must split, got %d chunks", len(chunks))
	}
	total := 0
	for _, ch := range chunks {
		if ch.TokenEstimate > protocol.ChunkHardTokens {
			t.Errorf("%s: tokenEstimate %d exceeds hard ceiling", ch.ChunkID, ch.TokenEstimate)
		}
		total += len([]rune(ch.Text))
	}
	// Sentence packing rejoins with single spaces, so rune totals match.
	if want := len([]rune(paragraph)); total+len(chunks)-1 != want {
		t.Errorf("rune coverage = %d joined, want %d", total+len(chunks)-1, want)
	}
}

func TestChunkTextUnbreakableRun(t *testing.T) {
	// No sentence punctuation at all: falls back to fixed rune slices.
	run := strings.Repeat("y", protocol.ChunkHardTokens*4+100)

	chunks := ChunkText(run)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if got := len([]rune(chunks[0].Text)); got != protocol.ChunkHardTokens*4 {
		t.Errorf("first slice = %d runes, want %d", got, protocol.ChunkHardTokens*4)
	}
	if got := len([]rune(chunks[1].Text)); got != 100 {
		t.Errorf("second slice = %d runes, want 100", got)
	}
}

func TestChunkTextHardCeilingFlush(t *testing.T) {
	// A paragraph exactly at the hard ceiling is emitted alone; the next
	// paragraph starts a new chunk.
	big := strings.Repeat("z", protocol.ChunkHardTokens*4)
	text := big + "\n\n" + "Short trailer."

	chunks := ChunkText(text)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if chunks[0].Text != big {
		t.Error("first chunk must hold the ceiling-sized paragraph alone")
	}
	if chunks[1].Text != "Short trailer." {
		t.Errorf("second chunk = %q", chunks[1].Text)
	}
}
