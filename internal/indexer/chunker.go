// Package indexer splits documents into chunks and coordinates their vectorization.
package indexer

import (
	"strings"
	"unicode/utf8"
)

const (
	defaultMaxChunkSize = 4000
	defaultBreakWindow  = 200
)

// ChunkerOptions configures the Chunker. Sizes are in characters (runes).
type ChunkerOptions struct {
	MaxChunkSize int
	MinChunkSize int
	Overlap      int
	BreakWindow  int
}

// Chunker splits plain text into paragraph-aligned chunks.
type Chunker struct {
	maxSize     int
	minSize     int
	overlap     int
	breakWindow int
}

// NewChunker creates a chunker. Zero values fall back to defaults.
func NewChunker(opts ChunkerOptions) *Chunker {
	c := &Chunker{
		maxSize:     opts.MaxChunkSize,
		minSize:     opts.MinChunkSize,
		overlap:     opts.Overlap,
		breakWindow: opts.BreakWindow,
	}
	if c.maxSize <= 0 {
		c.maxSize = defaultMaxChunkSize
	}
	if c.breakWindow <= 0 {
		c.breakWindow = defaultBreakWindow
	}
	if c.breakWindow > c.maxSize {
		c.breakWindow = c.maxSize
	}
	if c.minSize < 0 {
		c.minSize = 0
	}
	if c.overlap < 0 {
		c.overlap = 0
	}
	if c.overlap > c.maxSize/2 {
		c.overlap = c.maxSize / 2
	}
	return c
}

// Chunk splits text into chunks in document order. Empty input yields no chunks.
func (c *Chunker) Chunk(text string) []string {
	text = Preprocess(text)
	if text == "" {
		return nil
	}
	var chunks []string
	for _, para := range c.mergeShort(paragraphs(text)) {
		if utf8.RuneCountInString(para) <= c.maxSize {
			chunks = append(chunks, para)
			continue
		}
		chunks = append(chunks, c.splitLong(para)...)
	}
	return chunks
}

func paragraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// mergeShort joins paragraphs shorter than minSize with their successors
// while the result stays within maxSize.
func (c *Chunker) mergeShort(paras []string) []string {
	if c.minSize == 0 {
		return paras
	}
	var out []string
	cur := ""
	for _, p := range paras {
		if cur == "" {
			cur = p
			continue
		}
		curLen := utf8.RuneCountInString(cur)
		if curLen < c.minSize && curLen+2+utf8.RuneCountInString(p) <= c.maxSize {
			cur += "\n\n" + p
			continue
		}
		out = append(out, cur)
		cur = p
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

// splitLong cuts an oversized paragraph at sentence or word boundaries.
func (c *Chunker) splitLong(para string) []string {
	var pieces []string
	rest := []rune(para)
	prefix := ""
	for len(rest) > 0 {
		budget := c.maxSize
		if prefix != "" {
			budget -= utf8.RuneCountInString(prefix) + 1
		}
		if budget < 1 {
			prefix, budget = "", c.maxSize
		}
		if len(rest) <= budget {
			pieces = append(pieces, joinOverlap(prefix, string(rest)))
			break
		}
		cut := c.findBreak(rest[:budget])
		piece := strings.TrimSpace(string(rest[:cut]))
		rest = []rune(strings.TrimLeft(string(rest[cut:]), " \n\t"))
		if piece == "" {
			continue
		}
		pieces = append(pieces, joinOverlap(prefix, piece))
		prefix = overlapTail(piece, c.overlap)
	}
	return pieces
}

// findBreak returns the cut position within window, preferring the last sentence
// end, then the last space, inside the trailing breakWindow characters.
func (c *Chunker) findBreak(window []rune) int {
	n := len(window)
	start := n - c.breakWindow
	if start < 0 {
		start = 0
	}
	for i := n - 2; i >= start; i-- {
		switch window[i] {
		case '.', '!', '?':
			if next := window[i+1]; next == ' ' || next == '\n' {
				return i + 1
			}
		}
	}
	for i := n - 1; i > start; i-- {
		if window[i] == ' ' || window[i] == '\n' {
			return i
		}
	}
	return n
}

// overlapTail returns the last n characters of s, advanced to a word boundary.
func overlapTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return ""
	}
	tail := r[len(r)-n:]
	if r[len(r)-n-1] != ' ' && r[len(r)-n-1] != '\n' {
		idx := strings.IndexAny(string(tail), " \n")
		if idx < 0 {
			return ""
		}
		return strings.TrimSpace(string(tail)[idx:])
	}
	return strings.TrimSpace(string(tail))
}

func joinOverlap(prefix, piece string) string {
	if prefix == "" {
		return piece
	}
	return prefix + " " + piece
}
