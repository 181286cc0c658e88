// Package splitter cuts page text into overlapping fixed-size segments.
package splitter

import (
	"strings"

	"worlds-rag/internal/document"
)

// separators is the cut-point priority order: paragraph break, line break,
// word boundary. A window that contains none of these is force-cut at the
// character boundary.
var separators = []string{"\n\n", "\n", " "}

// Segment is a contiguous span of page text used as a retrieval unit.
type Segment struct {
	// Content is the raw text of the window, never mutated after creation.
	Content string
	// Page is the 1-based source page number.
	Page int
	// Sequence is the global insertion position across the whole document.
	Sequence int
}

// Splitter produces deterministic overlapping windows of at most chunkSize
// characters. Consecutive windows on the same page share overlap characters;
// windows never span a page boundary.
type Splitter struct {
	chunkSize int
	overlap   int
}

// NewSplitter creates a splitter. overlap must be smaller than chunkSize;
// callers validate that at configuration time.
func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}
}

// Split segments every page in order. Sequence numbers are assigned globally
// in insertion order. Windows that contain only whitespace are dropped so no
// empty text reaches the embedder.
func (s *Splitter) Split(pages []document.Page) []Segment {
	var segments []Segment
	seq := 0
	for _, page := range pages {
		for _, content := range s.splitPage(page.Text) {
			segments = append(segments, Segment{
				Content:  content,
				Page:     page.Number,
				Sequence: seq,
			})
			seq++
		}
	}
	return segments
}

// splitPage slides a window over the page's runes. The end of each window is
// pulled back to the highest-priority separator found inside it; when none
// occurs the window is cut at exactly chunkSize characters. The next window
// starts overlap characters before the previous end.
func (s *Splitter) splitPage(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var out []string
	start := 0
	for start < len(runes) {
		end := start + s.chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = s.cutPoint(runes, start, end)
		}

		window := string(runes[start:end])
		if strings.TrimSpace(window) != "" {
			out = append(out, window)
		}

		if end == len(runes) {
			break
		}
		next := end - s.overlap
		if next <= start {
			// Overlap would stall the scan; move on without it.
			next = end
		}
		start = next
	}
	return out
}

// cutPoint returns the window end in (start, limit], preferring the largest
// separator closest to limit. The cut lands just after the separator so its
// characters stay attached to the earlier window.
func (s *Splitter) cutPoint(runes []rune, start, limit int) int {
	window := string(runes[start:limit])
	for _, sep := range separators {
		idx := strings.LastIndex(window, sep)
		if idx <= 0 {
			continue
		}
		cut := start + len([]rune(window[:idx])) + len([]rune(sep))
		if cut > start && cut <= limit {
			return cut
		}
	}
	return limit
}
