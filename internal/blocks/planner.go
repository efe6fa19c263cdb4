package blocks

import (
	"strings"

	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/sanitize"
)

const (
	// MaxChunkBlocks is the most children sent in one append call.
	MaxChunkBlocks = 20
	// MaxChunkSize is the most serialized characters sent in one append call.
	MaxChunkSize = 50000
)

// Chunk is one append batch.
type Chunk []Block

// Size is the sum of the serialized sizes of the chunk's blocks.
func (c Chunk) Size() int {
	total := 0
	for _, b := range c {
		total += SerializedSize(b)
	}
	return total
}

// ThresholdFor returns the split length used at a fallback level: 800 at
// level 0, 600 at level 1 and 300 from level 2 on.
func ThresholdFor(level int) int {
	idx := level + 1
	if idx < 1 {
		idx = 1
	}
	if idx >= len(sanitize.Thresholds) {
		idx = len(sanitize.Thresholds) - 1
	}
	return sanitize.Thresholds[idx]
}

// Explode splits a text block into same-kind blocks of at most maxLen runes
// and validates each of them. Image blocks are returned as they are.
func Explode(b Block, maxLen int) []Block {
	if !b.IsText() {
		if v, ok := Validate(b); ok {
			return []Block{v}
		}
		return nil
	}
	var out []Block
	for _, piece := range sanitize.Split(b.Text, maxLen) {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		if v, ok := Validate(b.WithText(piece)); ok {
			out = append(out, v)
		}
	}
	return out
}

// Plan packs blocks into chunks of at most MaxChunkBlocks blocks and
// MaxChunkSize serialized characters. A text block whose serialized form is
// longer than the field ceiling is exploded at the threshold for level;
// blocks that validate to nothing are dropped. Empty chunks are never
// returned.
func Plan(blocks []Block, level int) []Chunk {
	var (
		chunks  []Chunk
		current Chunk
		size    int
	)
	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, current)
		}
		current, size = nil, 0
	}

	for _, b := range blocks {
		var pieces []Block
		if b.IsText() && SerializedSize(b) > sanitize.MaxFieldLen {
			pieces = Explode(b, ThresholdFor(level))
		} else if v, ok := Validate(b); ok {
			pieces = []Block{v}
		}

		for _, p := range pieces {
			pSize := SerializedSize(p)
			if len(current) >= MaxChunkBlocks || (len(current) > 0 && size+pSize > MaxChunkSize) {
				flush()
			}
			current = append(current, p)
			size += pSize
		}
	}
	flush()
	return chunks
}
