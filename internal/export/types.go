// Package export reads a chat export (conversations.json) and linearizes each
// conversation tree into an ordered list of message events.
package export

import (
	"strings"
	"time"

	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/jsonx"
)

// Content types found in exported messages.
const (
	ContentText        = "text"
	ContentMultimodal  = "multimodal_text"
	ContentCode        = "code"
	ContentSystemError = "system_error"
	partImagePointer   = "image_asset_pointer"
	imagePointerScheme = "file-service://"
)

// Conversation is one top-level entry of the export.
type Conversation struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Title          string          `json:"title"`
	CreateTime     *float64        `json:"create_time"`
	UpdateTime     *float64        `json:"update_time"`
	Mapping        map[string]Node `json:"mapping"`
}

// CreatedAt returns the conversation creation time, or now when the export has none.
func (c Conversation) CreatedAt(now time.Time) time.Time {
	return epochOr(c.CreateTime, now)
}

// UpdatedAt returns the last update time, or now when the export has none.
func (c Conversation) UpdatedAt(now time.Time) time.Time {
	return epochOr(c.UpdateTime, now)
}

// Node is a vertex of the conversation tree.
type Node struct {
	ID       string   `json:"id"`
	Parent   *string  `json:"parent"`
	Children []string `json:"children"`
	Message  *Message `json:"message"`
}

func (n Node) isRoot() bool {
	return n.Parent == nil || *n.Parent == ""
}

type Author struct {
	Role string `json:"role"`
	Name string `json:"name"`
}

type Message struct {
	ID         string   `json:"id"`
	Author     Author   `json:"author"`
	CreateTime *float64 `json:"create_time"`
	Content    *Content `json:"content"`
	Metadata   Metadata `json:"metadata"`
}

type Content struct {
	ContentType string             `json:"content_type"`
	Parts       []jsonx.RawMessage `json:"parts"`
	Text        string             `json:"text"`
	Language    string             `json:"language"`
}

type contentPart struct {
	ContentType  string `json:"content_type"`
	AssetPointer string `json:"asset_pointer"`
}

// JoinedText concatenates the string parts of the content.
func (c Content) JoinedText() string {
	var sb strings.Builder
	for _, raw := range c.Parts {
		var s string
		if err := jsonx.Unmarshal(raw, &s); err == nil {
			sb.WriteString(s)
		}
	}
	return sb.String()
}

// ImagePointers returns the file-service asset pointers among the parts.
func (c Content) ImagePointers() []string {
	var pointers []string
	for _, raw := range c.Parts {
		var part contentPart
		if err := jsonx.Unmarshal(raw, &part); err != nil {
			continue // plain string part
		}
		if part.ContentType == partImagePointer && strings.HasPrefix(part.AssetPointer, imagePointerScheme) {
			pointers = append(pointers, part.AssetPointer)
		}
	}
	return pointers
}

type Metadata struct {
	Canvas *Canvas `json:"canvas,omitempty"`
}

// Canvas describes a canvas document attached to a message.
type Canvas struct {
	TextdocID   string `json:"textdoc_id"`
	Title       string `json:"title"`
	TextdocType string `json:"textdoc_type"`
	Version     any    `json:"version"`
}

// Kind is the content variant of a MessageEvent.
type Kind int

const (
	KindText Kind = iota
	KindMultimodal
	KindCode
	KindSystemError
	KindCanvas
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindMultimodal:
		return "multimodal"
	case KindCode:
		return "code"
	case KindSystemError:
		return "system_error"
	case KindCanvas:
		return "canvas"
	default:
		return "unknown"
	}
}

// MessageEvent is one linearized message, ready for block building.
type MessageEvent struct {
	Role       string
	AuthorName string
	Kind       Kind
	Text       string
	Images     []string
	Language   string
	Canvas     *Canvas
	Timestamp  time.Time
}

func epochOr(v *float64, fallback time.Time) time.Time {
	if v == nil || *v <= 0 {
		return fallback
	}
	sec := int64(*v)
	nsec := int64((*v - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}
