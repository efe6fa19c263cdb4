package blocks

import "strings"

const defaultLanguage = "text"

var supportedLanguages = map[string]bool{
	"javascript": true, "typescript": true, "python": true, "java": true,
	"c": true, "cpp": true, "c++": true, "c#": true, "csharp": true,
	"php": true, "ruby": true, "go": true, "rust": true, "swift": true,
	"kotlin": true, "scala": true, "r": true, "matlab": true,
	"sql": true, "html": true, "css": true, "scss": true, "sass": true,
	"xml": true, "json": true, "yaml": true, "yml": true,
	"markdown": true, "bash": true, "shell": true, "powershell": true,
	"dockerfile": true, "makefile": true,
	"text": true, "plain_text": true, "plaintext": true,
}

var languageAliases = map[string]string{
	"js":          "javascript",
	"ts":          "typescript",
	"py":          "python",
	"rb":          "ruby",
	"sh":          "bash",
	"ps1":         "powershell",
	"cs":          "csharp",
	"htm":         "html",
	"jsonl":       "json",
	"md":          "markdown",
	"txt":         "text",
	"objective-c": "c",
	"objc":        "c",
}

// notionNames maps normalized names onto the identifiers the Notion API
// accepts for code blocks. Names not listed are accepted as they are.
var notionNames = map[string]string{
	"text":       "plain text",
	"plain_text": "plain text",
	"plaintext":  "plain text",
	"cpp":        "c++",
	"csharp":     "c#",
	"yml":        "yaml",
	"dockerfile": "docker",
}

// NormalizeLanguage maps a code language tag onto the supported set:
// direct match, then alias, then "text".
func NormalizeLanguage(language string) string {
	lower := strings.ToLower(strings.TrimSpace(language))
	if lower == "" || lower == "unknown" {
		return defaultLanguage
	}
	if supportedLanguages[lower] {
		return lower
	}
	if alias, ok := languageAliases[lower]; ok {
		return alias
	}
	return defaultLanguage
}

func notionLanguage(language string) string {
	normalized := NormalizeLanguage(language)
	if name, ok := notionNames[normalized]; ok {
		return name
	}
	return normalized
}
