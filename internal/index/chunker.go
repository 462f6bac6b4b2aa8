// Package index builds and queries the semantic index over the
// extracted text corpus.
package index

// Default chunking policy: fixed-size rune windows with overlap so
// facts spanning a boundary stay retrievable.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunker splits text into fixed-size overlapping chunks.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a Chunker. Non-positive size falls back to the
// default; overlap is clamped below size so windows always advance.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split cuts text into chunks. Whitespace-only text yields no chunks.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	if !hasContent(runes) {
		return nil
	}

	var chunks []string
	step := c.size - c.overlap
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		piece := runes[start:end]
		if hasContent(piece) {
			chunks = append(chunks, string(piece))
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func hasContent(runes []rune) bool {
	for _, r := range runes {
		switch r {
		case ' ', '\t', '\n', '\r':
		default:
			return true
		}
	}
	return false
}
