package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kaptinlin/jsonrepair"

	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/jsonx"
)

// FileName is the export file inside the export directory.
const FileName = "conversations.json"

// Export is the decoded contents of conversations.json.
type Export struct {
	Conversations []Conversation
	// Malformed counts entries that could not be decoded or carry no id or mapping.
	Malformed int
	// Repaired is set when the file was not valid JSON and had to be repaired.
	Repaired bool
}

// Path returns the conversations.json path inside dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Load reads and decodes an export file. Entries are decoded one at a time
// so a single malformed conversation does not reject the whole file.
func Load(path string) (*Export, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	return Decode(data)
}

// Decode parses export bytes. Invalid JSON is run through jsonrepair once
// before giving up.
func Decode(data []byte) (*Export, error) {
	out := &Export{}

	var raws []jsonx.RawMessage
	if err := jsonx.Unmarshal(data, &raws); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(string(data))
		if repairErr != nil {
			return nil, fmt.Errorf("decode export: %w", err)
		}
		if err := jsonx.Unmarshal([]byte(repaired), &raws); err != nil {
			return nil, fmt.Errorf("decode repaired export: %w", err)
		}
		out.Repaired = true
	}

	out.Conversations = make([]Conversation, 0, len(raws))
	for _, raw := range raws {
		var conv Conversation
		if err := jsonx.Unmarshal(raw, &conv); err != nil {
			out.Malformed++
			continue
		}
		if conv.ID == "" {
			conv.ID = conv.ConversationID
		}
		if conv.ID == "" || conv.Mapping == nil {
			out.Malformed++
			continue
		}
		out.Conversations = append(out.Conversations, conv)
	}
	return out, nil
}
