package blocks

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/sanitize"
)

const (
	// ParagraphPlaceholder replaces paragraph text that still looks like a tool call.
	ParagraphPlaceholder = "Content contains special characters that might cause API errors, simplified processing applied."
	// CodePlaceholder replaces code that still looks like a tool call.
	CodePlaceholder = "# Code content contains function calls, simplified\n# Original code may contain API calls and other complex content"
	// codeURLNote replaces long code that links out to repositories or docs.
	codeURLNote = "# Code content contains complex URLs, simplified\n# Original content length: %d characters"
	// maxLinkedCodeLen is the longest code block allowed to keep a linked URL.
	maxLinkedCodeLen = 200
)

var (
	dangerousPatterns = []string{"[Function call cleaned]", "open_url", "search(", "1q43.blog"}
	linkedCodeMarkers = []string{"github.com", "docs."}
	plainCodeMarkers  = []string{"Function call", "open_url", "search(", "# ["}
)

// Validate re-sanitizes a block before it is sent. It reports false for
// blocks that end up empty. Text that still matches a known tool-call
// pattern is replaced by a fixed placeholder, and so is long code that links
// to repositories or documentation. Image blocks pass unchanged.
func Validate(b Block) (Block, bool) {
	switch b.Kind {
	case KindImage:
		return b, b.UploadID != ""
	case KindParagraph:
		content := sanitize.Clean(b.Text)
		if containsAny(content, dangerousPatterns) {
			content = ParagraphPlaceholder
		}
		if strings.TrimSpace(content) == "" {
			return Block{}, false
		}
		return Paragraph(content), true
	case KindCode:
		content := sanitize.Clean(b.Text)
		switch n := utf8.RuneCountInString(content); {
		case containsAny(content, dangerousPatterns):
			content = CodePlaceholder
		case n > maxLinkedCodeLen && containsAny(content, linkedCodeMarkers):
			content = fmt.Sprintf(codeURLNote, n)
		}
		if strings.TrimSpace(content) == "" {
			return Block{}, false
		}
		language := NormalizeLanguage(b.Language)
		if containsAny(content, plainCodeMarkers) {
			language = defaultLanguage
		}
		return Code(content, language), true
	default:
		return Block{}, false
	}
}

// ValidateAll validates blocks in order and drops the empty ones.
func ValidateAll(blocks []Block) []Block {
	out := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		if v, ok := Validate(b); ok {
			out = append(out, v)
		}
	}
	return out
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
