package document

import (
	"unicode"
)

// Chunker splits text into overlapping chunks. Breaks prefer sentence ends,
// then paragraph breaks, then word boundaries; a chunk never starts or ends
// mid-word unless the window contains no whitespace at all.
type Chunker struct {
	MaxSize int
	MinSize int
	Overlap int
}

// Span is one chunk window over the original text, in rune offsets.
type Span struct {
	Start int
	End   int
	Text  string
}

// NewChunker builds a chunker from validated limits.
func NewChunker(maxSize, minSize, overlap int) *Chunker {
	return &Chunker{MaxSize: maxSize, MinSize: minSize, Overlap: overlap}
}

// Split chunks the text. The final fragment is merged into its predecessor
// when it falls below MinSize.
func (c *Chunker) Split(text string) []Span {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var spans []Span
	start := skipSpace(runes, 0)

	for start < len(runes) {
		remaining := len(runes) - start
		if remaining <= c.MaxSize {
			if remaining < c.MinSize && len(spans) > 0 {
				// Too small to stand alone: fold into the previous chunk.
				prev := &spans[len(spans)-1]
				prev.End = len(runes)
				prev.Start, prev.End = trimBounds(runes, prev.Start, prev.End)
				prev.Text = string(runes[prev.Start:prev.End])
			} else {
				spans = appendSpan(spans, runes, start, len(runes))
			}
			break
		}

		cut := c.findCut(runes, start)
		spans = appendSpan(spans, runes, start, cut)

		next := cut - c.Overlap
		if next <= start {
			next = cut
		}
		next = wordStart(runes, next)
		if next <= start || next > cut {
			// No word boundary inside the overlap window; restart at the cut.
			next = skipSpace(runes, cut)
		}
		start = next
	}

	return spans
}

// findCut picks the break position for a chunk starting at start. The
// search floor keeps chunks at least MinSize long.
func (c *Chunker) findCut(runes []rune, start int) int {
	end := start + c.MaxSize
	floor := start + c.MinSize
	if floor <= start {
		floor = start + 1
	}

	// Sentence break: terminator followed by whitespace.
	for i := end - 1; i > floor; i-- {
		if isSentenceEnd(runes[i-1]) && unicode.IsSpace(runes[i]) {
			return i
		}
	}

	// Paragraph break.
	for i := end - 1; i > floor; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i
		}
	}

	// Word break.
	for i := end - 1; i > floor; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}

	// No whitespace in the window: hard cut.
	return end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// wordStart moves pos forward to the next word boundary, skipping leading
// whitespace, so no chunk starts mid-word.
func wordStart(runes []rune, pos int) int {
	if pos <= 0 {
		return skipSpace(runes, 0)
	}
	for pos < len(runes) && !unicode.IsSpace(runes[pos-1]) && !unicode.IsSpace(runes[pos]) {
		pos++
	}
	return skipSpace(runes, pos)
}

func skipSpace(runes []rune, pos int) int {
	for pos < len(runes) && unicode.IsSpace(runes[pos]) {
		pos++
	}
	return pos
}

// trimBounds shrinks [start, end) to exclude surrounding whitespace.
func trimBounds(runes []rune, start, end int) (int, int) {
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	return start, end
}

func appendSpan(spans []Span, runes []rune, start, end int) []Span {
	start, end = trimBounds(runes, start, end)
	if start >= end {
		return spans
	}
	return append(spans, Span{Start: start, End: end, Text: string(runes[start:end])})
}
