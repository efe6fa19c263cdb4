package delivery

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/jsonx"
)

const maxPayloadChars = 400000

var payloadPatterns = []struct {
	re   *regexp.Regexp
	desc string
}{
	{regexp.MustCompile(`open_url\(`), "open_url calls"},
	{regexp.MustCompile(`search\(`), "search calls"},
	{regexp.MustCompile(`https?://[^\s<>"]{50,}`), "long URLs"},
	{regexp.MustCompile(`\\u[0-9a-fA-F]{4}`), "unicode escapes"},
	{regexp.MustCompile(`\{[^}]{200,}\}`), "long JSON objects"},
	{regexp.MustCompile(`Fatal error:|Warning:|Exception:`), "error logs"},
}

// AnalyzePayload lists the traits of a request body that commonly get it
// rejected. It is only used for debug logging.
func AnalyzePayload(payload any) []string {
	data, err := jsonx.Marshal(payload)
	if err != nil {
		return []string{fmt.Sprintf("payload does not encode: %v", err)}
	}
	body := string(data)

	var issues []string
	if n := len([]rune(body)); n > maxPayloadChars {
		issues = append(issues, fmt.Sprintf("payload too large: %d characters", n))
	}
	for _, p := range payloadPatterns {
		if matches := p.re.FindAllStringIndex(body, -1); len(matches) > 0 {
			issues = append(issues, fmt.Sprintf("%s (%d)", p.desc, len(matches)))
		}
	}
	if n := strings.Count(body, "{"); n > 20 {
		issues = append(issues, fmt.Sprintf("deep nesting: %d objects", n))
	}
	return issues
}
