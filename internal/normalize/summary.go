package normalize

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/hpungsan/glance/internal/protocol"
)

// Extractive summarization: sentences are scored by length, overlap with
// heading words, document position, and a structural signal, then the top
// scorers are re-ordered back into document order. No ML anywhere.

// keyPointOverlapLimit suppresses a key-point candidate whose word set
// overlaps an already-admitted candidate by at least this share
// (intersection / min set size).
const keyPointOverlapLimit = 0.70

var wordRegex = regexp.MustCompile(`[a-z0-9]+`)

// words returns case-folded alphanumeric tokens.
func words(text string) []string {
	return wordRegex.FindAllString(strings.ToLower(text), -1)
}

// wordSet returns the distinct case-folded tokens of text.
func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range words(text) {
		set[w] = struct{}{}
	}
	return set
}

// scoredSentence keeps a sentence together with its document index, score,
// and word set for the near-duplicate check.
type scoredSentence struct {
	index int
	text  string
	score float64
	set   map[string]struct{}
}

// SplitSentences splits text on sentence-ending punctuation followed by
// whitespace. A trailing fragment without terminal punctuation counts as a
// sentence.
func SplitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			end := i + 1
			for end < len(runes) && (runes[end] == '.' || runes[end] == '!' || runes[end] == '?') {
				end++
			}
			if end < len(runes) && !unicode.IsSpace(runes[end]) {
				// Punctuation mid-token (e.g. "v1.2"); not a boundary.
				i = end - 1
				continue
			}
			if s := strings.TrimSpace(string(runes[start:end])); s != "" {
				out = append(out, s)
			}
			start = end
			i = end - 1
		}
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		out = append(out, tail)
	}
	return out
}

// scoreSentences splits text and scores every sentence:
// a length term (word count / 24, capped at 1), heading-word overlap
// (capped at 4, weighted 0.6), position decay (1/(index+1)), and a flat
// 0.2 bonus for sentences containing a colon.
func scoreSentences(text string, headings []protocol.Heading) []scoredSentence {
	headingWords := make(map[string]struct{})
	for _, h := range headings {
		for _, w := range words(h.Text) {
			headingWords[w] = struct{}{}
		}
	}

	split := SplitSentences(text)
	sentences := make([]scoredSentence, 0, len(split))
	for i, s := range split {
		set := wordSet(s)
		overlap := 0
		for w := range set {
			if _, ok := headingWords[w]; ok {
				overlap++
			}
		}

		score := math.Min(float64(len(words(s)))/24.0, 1.0)
		score += math.Min(float64(overlap), 4.0) * 0.6
		score += 1.0 / float64(i+1)
		if strings.Contains(s, ":") {
			score += 0.2
		}

		sentences = append(sentences, scoredSentence{index: i, text: s, score: score, set: set})
	}
	return sentences
}

// byScore returns the sentences ordered by descending score, ties broken by
// earlier document index.
func byScore(sentences []scoredSentence) []scoredSentence {
	ordered := make([]scoredSentence, len(sentences))
	copy(ordered, sentences)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].score != ordered[j].score {
			return ordered[i].score > ordered[j].score
		}
		return ordered[i].index < ordered[j].index
	})
	return ordered
}

// selectSummary takes the top maxSentences by score and joins them back in
// document order, so the summary reads top to bottom even though selection
// is score-order.
func selectSummary(sentences []scoredSentence, maxSentences int) string {
	picked := byScore(sentences)
	if len(picked) > maxSentences {
		picked = picked[:maxSentences]
	}
	sort.Slice(picked, func(i, j int) bool { return picked[i].index < picked[j].index })

	parts := make([]string, len(picked))
	for i, s := range picked {
		parts[i] = s.text
	}
	return strings.Join(parts, " ")
}

// selectKeyPoints walks candidates in score order and admits each unless its
// word set overlaps an already-admitted candidate by keyPointOverlapLimit or
// more. The final list is re-sorted into document order.
func selectKeyPoints(sentences []scoredSentence, maxPoints int) []string {
	var admitted []scoredSentence
	for _, candidate := range byScore(sentences) {
		if len(admitted) >= maxPoints {
			break
		}
		if len(candidate.set) == 0 {
			continue
		}
		duplicate := false
		for _, kept := range admitted {
			if setOverlap(candidate.set, kept.set) >= keyPointOverlapLimit {
				duplicate = true
				break
			}
		}
		if !duplicate {
			admitted = append(admitted, candidate)
		}
	}
	sort.Slice(admitted, func(i, j int) bool { return admitted[i].index < admitted[j].index })

	points := make([]string, len(admitted))
	for i, s := range admitted {
		points[i] = s.text
	}
	return points
}

// setOverlap is |a ∩ b| / min(|a|, |b|); 0 when either set is empty.
func setOverlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	shared := 0
	for w := range small {
		if _, ok := large[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(small))
}
