package notion

import (
	"sort"
	"strings"
)

// Property types the importer cares about.
const (
	PropTitle       = "title"
	PropDate        = "date"
	PropCreatedTime = "created_time"
	PropRichText    = "rich_text"
	PropNumber      = "number"
)

// DatabaseSchema is the subset of a database's properties the importer
// writes to. Empty names mean the database has no such property.
type DatabaseSchema struct {
	TitleProperty          string
	CreatedProperty        string
	UpdatedProperty        string
	ConversationIDProperty string
	ConversationIDType     string
	// Types maps every property name to its type.
	Types map[string]string
}

// DefaultSchema is used when the database cannot be retrieved.
func DefaultSchema() DatabaseSchema {
	return DatabaseSchema{TitleProperty: "Title", Types: map[string]string{}}
}

// IsDate reports whether name is a writable date property. Read-only
// created_time and last_edited_time properties are not.
func (s DatabaseSchema) IsDate(name string) bool {
	return name != "" && s.Types[name] == PropDate
}

// DiscoverSchema detects the title, created/updated date and conversation id
// properties by type and name. Properties are visited in name order, and the
// first match for each role wins.
func DiscoverSchema(db Database) DatabaseSchema {
	schema := DatabaseSchema{Types: make(map[string]string, len(db.Properties))}

	names := make([]string, 0, len(db.Properties))
	for key, prop := range db.Properties {
		name := prop.Name
		if name == "" {
			name = key
		}
		schema.Types[name] = prop.Type
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		lower := strings.ToLower(name)
		switch schema.Types[name] {
		case PropTitle:
			if schema.TitleProperty == "" {
				schema.TitleProperty = name
			}
		case PropDate, PropCreatedTime:
			switch {
			case strings.Contains(lower, "create"):
				if schema.CreatedProperty == "" {
					schema.CreatedProperty = name
				}
			case strings.Contains(lower, "update") || strings.Contains(lower, "modified"):
				if schema.UpdatedProperty == "" {
					schema.UpdatedProperty = name
				}
			}
		case PropRichText, PropNumber:
			if schema.ConversationIDProperty == "" && strings.Contains(lower, "conversation") && strings.Contains(lower, "id") {
				schema.ConversationIDProperty = name
				schema.ConversationIDType = schema.Types[name]
			}
		}
	}

	if schema.TitleProperty == "" {
		schema.TitleProperty = "Title"
	}
	return schema
}
