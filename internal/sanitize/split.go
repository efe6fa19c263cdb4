package sanitize

// Thresholds are the split lengths tried at successively deeper fallback
// levels. The first entry is the normal field limit; the last one is what a
// single rejected block is cut down to before it is given up on.
var Thresholds = []int{MaxFieldLen, 800, 600, 300}

// boundaryWindow is how far back from the cut point Split looks for a
// sentence or clause boundary.
const boundaryWindow = 100

// Split cuts text into pieces of at most maxLen runes. Each cut lands just
// after the latest boundary character within the last 100 runes before the
// limit, or exactly at the limit when there is none.
func Split(text string, maxLen int) []string {
	if maxLen <= 0 {
		return []string{text}
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return []string{text}
	}

	var pieces []string
	pos := 0
	for pos < len(runes) {
		end := pos + maxLen
		if end >= len(runes) {
			pieces = append(pieces, string(runes[pos:]))
			break
		}
		cut := end
		start := max(pos, end-boundaryWindow)
		for i := end - 1; i >= start; i-- {
			if isBoundary(runes[i]) {
				cut = i + 1
				break
			}
		}
		pieces = append(pieces, string(runes[pos:cut]))
		pos = cut
	}
	return pieces
}

func isBoundary(r rune) bool {
	switch r {
	case '.', '。', '\n', '!', '！', '?', '？':
		return true
	}
	return false
}
