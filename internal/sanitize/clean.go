// Package sanitize normalizes exported chat text before it is sent to Notion.
//
// Notion rejects rich text that is too long or that trips its payload
// validation, and chat exports are full of pasted logs, search dumps and
// binary-looking escapes. Clean strips those down to something the API
// accepts while keeping the readable part of the message.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"
)

// MaxFieldLen is the longest rich text content Clean will return, in runes.
const MaxFieldLen = 1000

const (
	maxURLLen          = 100
	urlKeepLen         = 50
	maxUnicodeEscapes  = 10
	maxErrorLineLen    = 200
	errorLineKeepLen   = 100
	maxCleanPasses     = 4
	metadataTitleLimit = 5
)

const (
	markerPath        = "[Path cleaned]"
	markerDirectory   = "[Directory cleaned]"
	markerURL         = "...[URL truncated]"
	markerRepeated    = "[Repeated content cleaned]"
	markerSearch      = "[Repeated search results cleaned]"
	markerMetadata    = "Search result metadata simplified..."
	markerUnicode     = "[Unicode cleaned]"
	markerErrorLine   = "...[Error message truncated]"
	markerEllipsis    = "..."
	visibleMarker     = "Visible"
	metadataListToken = `"metadata_list":`
)

var (
	controlChars    = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F-\x9F]`)
	wpOpenComment   = regexp.MustCompile(`<!-- wp:[^>]+ -->`)
	wpCloseComment  = regexp.MustCompile(`<!-- /wp:[^>]+ -->`)
	tagAttributes   = regexp.MustCompile(`<([a-zA-Z]+)[^>]*>`)
	phpPath         = regexp.MustCompile(`/[a-zA-Z0-9_/.-]+\.php`)
	homePath        = regexp.MustCompile(`/home/[a-zA-Z0-9_/.-]+`)
	urlToken        = regexp.MustCompile(`https?://[^\s<>"]+`)
	searchHeader    = regexp.MustCompile(`# \[\d+\][^\n]*\n`)
	unicodeEscape   = regexp.MustCompile(`\\u[0-9a-fA-F]{4}`)
	daggerRun       = regexp.MustCompile(`\x{2020}+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
	spaceRun        = regexp.MustCompile(` {3,}`)
	phpErrorMarkers = []string{"PHP Fatal error:", "PHP Warning:", "PHP Notice:", "Stack trace:", "thrown in"}
	errorKeywords   = []string{"error", "warning", "exception", "failed", "uncaught", "require", "include"}
)

var punctuation = strings.NewReplacer(
	"’", "'",
	"“", `"`,
	"”", `"`,
	"🔍", "[Search]",
	"💬", "[Chat]",
	"📝", "[Note]",
)

var cjkQuotes = strings.NewReplacer(
	"。\"", ".",
	"\"。", ".",
)

// Clean applies the full cleaning pipeline and returns text that is at most
// MaxFieldLen runes long. A second call on its own output returns it unchanged.
func Clean(text string) string {
	out := cleanOnce(text)
	for i := 1; i < maxCleanPasses; i++ {
		next := cleanOnce(out)
		if next == out {
			return out
		}
		out = next
	}
	return out
}

// CleanAny cleans the string form of v.
func CleanAny(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return Clean(typed)
	default:
		return Clean(fmt.Sprint(typed))
	}
}

func cleanOnce(text string) string {
	s := strings.ToValidUTF8(text, "")

	// 1. control characters and line endings
	s = controlChars.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\u2028", "\n")
	s = strings.ReplaceAll(s, "\u2029", "\n\n")

	// 2. error logs
	s = collapseErrorBlocks(s)

	// 3. structural markup
	s = wpOpenComment.ReplaceAllString(s, "")
	s = wpCloseComment.ReplaceAllString(s, "")
	s = tagAttributes.ReplaceAllString(s, "<$1>")

	// 4. filesystem paths
	s = phpPath.ReplaceAllString(s, markerPath)
	s = homePath.ReplaceAllString(s, markerDirectory)

	// 5. long URLs
	s = urlToken.ReplaceAllStringFunc(s, truncateURL)

	// 6. repeated characters
	s = collapseRepeats(s)

	// 7. search result dumps
	s = searchHeader.ReplaceAllString(s, "")
	s = collapseMetadataList(s)
	if idx := strings.Index(s, visibleMarker); idx >= 0 {
		s = s[:idx] + "\n" + markerSearch
	}

	// 8. escaped binary payloads
	if len(unicodeEscape.FindAllStringIndex(s, maxUnicodeEscapes+1)) > maxUnicodeEscapes {
		s = unicodeEscape.ReplaceAllString(s, markerUnicode)
	}

	// 9. typographic punctuation
	s = daggerRun.ReplaceAllString(s, "|")
	s = punctuation.Replace(s)
	s = width.Fold.String(s)
	s = cjkQuotes.Replace(s)

	// 10. long error lines
	s = truncateErrorLines(s)

	// 11. whitespace runs
	s = blankLines.ReplaceAllString(s, "\n\n")
	s = spaceRun.ReplaceAllString(s, "  ")

	// 12. hard length limit
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > MaxFieldLen {
		s = truncateRunes(s, MaxFieldLen-len(markerEllipsis)) + markerEllipsis
	}
	return s
}

// collapseErrorBlocks keeps the first line of each PHP error block and drops
// the marker lines and stack frames that follow it.
func collapseErrorBlocks(s string) string {
	if !strings.Contains(s, "PHP Fatal error:") && !strings.Contains(s, "PHP Warning:") && !strings.Contains(s, "PHP Notice:") {
		return s
	}
	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	inBlock := false
	for _, line := range lines {
		if containsAny(line, phpErrorMarkers) {
			if !inBlock {
				kept = append(kept, line)
			}
			inBlock = true
			continue
		}
		if inBlock && (strings.HasPrefix(line, "#") || strings.HasPrefix(line, "  ")) {
			continue
		}
		inBlock = false
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func truncateURL(url string) string {
	if len(url) > maxURLLen {
		return truncateRunes(url, urlKeepLen) + markerURL
	}
	return url
}

// collapseRepeats replaces runs of more than 10 identical runes with three of
// them plus a marker. Go's regexp has no backreferences, so this walks the runes.
func collapseRepeats(s string) string {
	runes := []rune(s)
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(runes); {
		j := i + 1
		for j < len(runes) && runes[j] == runes[i] {
			j++
		}
		if j-i > 10 {
			sb.WriteString(strings.Repeat(string(runes[i]), 3))
			sb.WriteString(markerRepeated)
		} else {
			sb.WriteString(string(runes[i:j]))
		}
		i = j
	}
	return sb.String()
}

func collapseMetadataList(s string) string {
	if !strings.Contains(s, metadataListToken) || strings.Count(s, `"title":`) <= metadataTitleLimit {
		return s
	}
	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	inMetadata := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.Contains(line, metadataListToken):
			inMetadata = true
			kept = append(kept, markerMetadata)
		case inMetadata && (strings.HasPrefix(trimmed, "}") || trimmed == "]"):
			inMetadata = false
		case !inMetadata:
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func truncateErrorLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if utf8.RuneCountInString(line) > maxErrorLineLen && containsAny(strings.ToLower(line), errorKeywords) {
			lines[i] = truncateRunes(line, errorLineKeepLen) + markerErrorLine
		}
	}
	return strings.Join(lines, "\n")
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
