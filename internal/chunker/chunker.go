// ABOUTME: Chunker splits parsed pages into overlapping word windows for embedding
// ABOUTME: Chunks keep their page and chapter and are numbered globally in page order
package chunker

import (
	"strings"

	"github.com/harper/bookbuddy/internal/models"
)

const (
	// DefaultWindowSize is the number of words per chunk
	DefaultWindowSize = 400
	// DefaultOverlapPercent is the share of each window repeated in the next
	DefaultOverlapPercent = 20
)

// Chunker handles sliding-window text chunking
type Chunker struct {
	windowSize     int
	overlapPercent int
}

// Option configures a Chunker
type Option func(*Chunker)

// WithWindowSize sets the window size in words; non-positive values are ignored
func WithWindowSize(words int) Option {
	return func(c *Chunker) {
		if words > 0 {
			c.windowSize = words
		}
	}
}

// WithOverlapPercent sets the overlap; values outside [0,100) are ignored
func WithOverlapPercent(pct int) Option {
	return func(c *Chunker) {
		if pct >= 0 && pct < 100 {
			c.overlapPercent = pct
		}
	}
}

// New creates a Chunker
func New(opts ...Option) *Chunker {
	c := &Chunker{
		windowSize:     DefaultWindowSize,
		overlapPercent: DefaultOverlapPercent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Overlap returns the number of words shared by consecutive windows
func (c *Chunker) Overlap() int {
	return c.windowSize * c.overlapPercent / 100
}

// Step returns how far each window advances, never less than one word
func (c *Chunker) Step() int {
	return max(c.windowSize-c.Overlap(), 1)
}

// Chunk splits every page and renumbers the result 0..N-1.
// ID and DocumentID are left for the caller to assign.
func (c *Chunker) Chunk(pages []models.Page) []models.Chunk {
	var chunks []models.Chunk
	for _, page := range pages {
		chunks = append(chunks, c.ChunkText(page.Text, page.Number, page.Chapter)...)
	}

	for i := range chunks {
		chunks[i].ChunkIndex = i
	}
	return chunks
}

// ChunkText splits one page of text into windows with page-local indices
func (c *Chunker) ChunkText(text string, page int, chapter string) []models.Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := c.Step()
	var chunks []models.Chunk
	for i := 0; i < len(words); i += step {
		end := min(i+c.windowSize, len(words))
		chunks = append(chunks, models.Chunk{
			ChunkIndex: len(chunks),
			Page:       page,
			Chapter:    chapter,
			Text:       strings.Join(words[i:end], " "),
		})

		// Stop once a window reaches the end
		if i+c.windowSize >= len(words) {
			break
		}
	}
	return chunks
}
