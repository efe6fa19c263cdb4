package delivery

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"

	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/notion"
	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/sanitize"
)

const (
	maxTitleLen     = 100
	titleKeepLen    = 97
	numericIDModulo = 10_000_000_000
	untitled        = "Untitled"
)

var unsafeTitleChars = regexp.MustCompile(`[^\p{L}\p{N}_\s\x{4E00}-\x{9FFF}-]`)

// PageTitle cuts a conversation title to the page title limit and cleans it.
func PageTitle(title string) string {
	if utf8.RuneCountInString(title) > maxTitleLen {
		title = string([]rune(title)[:titleKeepLen]) + "..."
	}
	title = sanitize.Clean(title)
	if strings.TrimSpace(title) == "" {
		return untitled
	}
	return title
}

// SimplifiedTitle keeps only letters, digits, underscores, whitespace and
// dashes. Titles that end up shorter than two characters are replaced by
// one derived from the conversation id.
func SimplifiedTitle(title, conversationID string) string {
	safe := strings.TrimSpace(unsafeTitleChars.ReplaceAllString(title, ""))
	if utf8.RuneCountInString(safe) >= 2 {
		return safe
	}
	prefix := conversationID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return "Conversation_" + prefix
}

// NumericID maps a conversation id onto a number property value: the id's
// digits when it is all digits apart from dashes, otherwise a stable hash
// reduced modulo 10^10.
func NumericID(id string) int64 {
	digits := strings.ReplaceAll(id, "-", "")
	if digits != "" && isDigits(digits) {
		if n, err := strconv.ParseInt(digits, 10, 64); err == nil {
			return n
		}
	}
	return int64(xxhash.Sum64String(id) % numericIDModulo)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func dateValue(t time.Time) *notion.DateValue {
	return &notion.DateValue{Start: t.UTC().Format(time.RFC3339)}
}

// pageProperties builds the full property set for a new page. Dates go only
// into writable date properties.
func pageProperties(schema notion.DatabaseSchema, conv Conversation, title string) notion.Properties {
	props := notion.Properties{
		schema.TitleProperty: {Title: notion.Text(title)},
	}
	if schema.IsDate(schema.CreatedProperty) && !conv.Created.IsZero() {
		props[schema.CreatedProperty] = notion.PropertyValue{Date: dateValue(conv.Created)}
	}
	if schema.IsDate(schema.UpdatedProperty) && !conv.Updated.IsZero() {
		props[schema.UpdatedProperty] = notion.PropertyValue{Date: dateValue(conv.Updated)}
	}
	if schema.ConversationIDProperty != "" {
		if schema.ConversationIDType == notion.PropNumber {
			n := NumericID(conv.ID)
			props[schema.ConversationIDProperty] = notion.PropertyValue{Number: &n}
		} else {
			props[schema.ConversationIDProperty] = notion.PropertyValue{RichText: notion.Text(conv.ID)}
		}
	}
	return props
}

// recoveryProperties is what the degraded path patches onto a title-only
// page: the created date and a numeric conversation id.
func recoveryProperties(schema notion.DatabaseSchema, conv Conversation) notion.Properties {
	props := notion.Properties{}
	if schema.IsDate(schema.CreatedProperty) && !conv.Created.IsZero() {
		props[schema.CreatedProperty] = notion.PropertyValue{Date: dateValue(conv.Created)}
	}
	if schema.ConversationIDProperty != "" && schema.ConversationIDType == notion.PropNumber {
		n := NumericID(conv.ID)
		props[schema.ConversationIDProperty] = notion.PropertyValue{Number: &n}
	}
	return props
}
