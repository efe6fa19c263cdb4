package export

import (
	"math"
	"sort"
	"strings"
	"time"
)

// MaxTraverseDepth bounds Linearize on malformed trees.
const MaxTraverseDepth = 1000

// WalkState carries the per-conversation traversal sets. A fresh state must
// be used for every conversation.
type WalkState struct {
	Visited    map[string]bool
	SeenCanvas map[string]bool
}

func NewWalkState() *WalkState {
	return &WalkState{
		Visited:    make(map[string]bool),
		SeenCanvas: make(map[string]bool),
	}
}

// WalkResult summarizes one traversal.
type WalkResult struct {
	RootID    string
	Steps     int
	Truncated bool
}

// Linearize follows the primary path of the conversation tree, starting at
// the root and taking the first child at every step. Sibling branches are
// not visited. The walk stops at a visited node, a dangling child id, or
// after MaxTraverseDepth nodes; only the last case marks the result
// Truncated.
func Linearize(conv Conversation, state *WalkState) ([]MessageEvent, WalkResult) {
	if state == nil {
		state = NewWalkState()
	}
	var result WalkResult
	rootID, ok := FindRoot(conv.Mapping)
	if !ok {
		return nil, result
	}
	result.RootID = rootID

	var events []MessageEvent
	current := rootID
	for {
		node, ok := conv.Mapping[current]
		if !ok || state.Visited[current] {
			break
		}
		if result.Steps == MaxTraverseDepth {
			result.Truncated = true
			break
		}
		state.Visited[current] = true
		result.Steps++

		events = append(events, nodeEvents(node.Message, state)...)

		if len(node.Children) == 0 {
			break
		}
		current = node.Children[0]
	}
	return events, result
}

// FindRoot returns the parentless node, preferring the smallest id when
// there are several. Without one, the node whose message was created first
// is used; nodes without a timestamp sort last.
func FindRoot(mapping map[string]Node) (string, bool) {
	if len(mapping) == 0 {
		return "", false
	}
	ids := make([]string, 0, len(mapping))
	for id := range mapping {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if mapping[id].isRoot() {
			return id, true
		}
	}

	best, bestTime := "", math.Inf(1)
	for _, id := range ids {
		t := math.Inf(1)
		if msg := mapping[id].Message; msg != nil && msg.CreateTime != nil {
			t = *msg.CreateTime
		}
		if best == "" || t < bestTime {
			best, bestTime = id, t
		}
	}
	return best, true
}

func nodeEvents(msg *Message, state *WalkState) []MessageEvent {
	if msg == nil {
		return nil
	}
	ts := epochOr(msg.CreateTime, time.Time{})

	var events []MessageEvent
	if canvas := msg.Metadata.Canvas; canvas != nil && canvas.TextdocID != "" && !state.SeenCanvas[canvas.TextdocID] {
		state.SeenCanvas[canvas.TextdocID] = true
		events = append(events, MessageEvent{
			Role:       msg.Author.Role,
			AuthorName: msg.Author.Name,
			Kind:       KindCanvas,
			Canvas:     canvas,
			Timestamp:  ts,
		})
	}

	if msg.Content == nil {
		return events
	}
	content := msg.Content
	base := MessageEvent{Role: msg.Author.Role, AuthorName: msg.Author.Name, Timestamp: ts}

	switch content.ContentType {
	case ContentText:
		text := content.JoinedText()
		if strings.TrimSpace(text) == "" {
			return events
		}
		base.Kind, base.Text = KindText, text
	case ContentMultimodal:
		text := content.JoinedText()
		if strings.TrimSpace(text) == "" {
			text = ""
		}
		images := content.ImagePointers()
		if text == "" && len(images) == 0 {
			return events
		}
		base.Kind, base.Text, base.Images = KindMultimodal, text, images
	case ContentCode:
		if content.Text == "" {
			return events
		}
		base.Kind, base.Text, base.Language = KindCode, content.Text, content.Language
	case ContentSystemError:
		if content.Text == "" {
			return events
		}
		base.Kind, base.Text = KindSystemError, content.Text
	default:
		return events // unsupported content type
	}
	return append(events, base)
}
