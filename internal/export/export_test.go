package export

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/jsonx"
)

func ptr[T any](v T) *T { return &v }

func rawJSON(t *testing.T, v any) jsonx.RawMessage {
	t.Helper()
	b, err := jsonx.Marshal(v)
	require.NoError(t, err)
	return b
}

func textMsg(t *testing.T, role, text string, ts float64) *Message {
	return &Message{
		Author:     Author{Role: role},
		CreateTime: ptr(ts),
		Content:    &Content{ContentType: ContentText, Parts: []jsonx.RawMessage{rawJSON(t, text)}},
	}
}

// chain builds root -> n0001 -> n0002 ... with a text message on every node.
func chain(t *testing.T, n int) Conversation {
	mapping := make(map[string]Node, n+1)
	prev := "root"
	mapping["root"] = Node{ID: "root"}
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("n%04d", i)
		parent := prev
		mapping[id] = Node{ID: id, Parent: &parent, Message: textMsg(t, "user", "msg "+id, float64(i))}
		root := mapping[prev]
		root.Children = []string{id}
		mapping[prev] = root
		prev = id
	}
	return Conversation{ID: "c1", Mapping: mapping}
}

func TestLinearize_PrimaryPath(t *testing.T) {
	conv := Conversation{ID: "c", Mapping: map[string]Node{
		"root": {ID: "root", Children: []string{"a"}},
		"a":    {ID: "a", Parent: ptr("root"), Children: []string{"b", "x"}, Message: textMsg(t, "user", "hi", 1)},
		"b":    {ID: "b", Parent: ptr("a"), Message: textMsg(t, "assistant", "hello", 2)},
		"x":    {ID: "x", Parent: ptr("a"), Message: textMsg(t, "assistant", "other branch", 3)},
	}}

	events, res := Linearize(conv, NewWalkState())
	require.Len(t, events, 2)
	assert.Equal(t, "root", res.RootID)
	assert.Equal(t, 3, res.Steps)
	assert.False(t, res.Truncated)
	assert.Equal(t, "hi", events[0].Text)
	assert.Equal(t, "user", events[0].Role)
	assert.Equal(t, KindText, events[0].Kind)
	assert.Equal(t, "hello", events[1].Text)
	assert.Equal(t, time.Unix(2, 0).UTC(), events[1].Timestamp)
}

func TestLinearize_Cycle(t *testing.T) {
	conv := Conversation{ID: "c", Mapping: map[string]Node{
		"a": {ID: "a", Children: []string{"b"}, Message: textMsg(t, "user", "one", 1)},
		"b": {ID: "b", Parent: ptr("a"), Children: []string{"a"}, Message: textMsg(t, "assistant", "two", 2)},
	}}

	events, res := Linearize(conv, nil)
	assert.Len(t, events, 2)
	assert.Equal(t, 2, res.Steps)
	assert.False(t, res.Truncated)
}

func TestLinearize_DanglingChild(t *testing.T) {
	conv := Conversation{ID: "c", Mapping: map[string]Node{
		"a": {ID: "a", Children: []string{"missing"}, Message: textMsg(t, "user", "one", 1)},
	}}

	events, res := Linearize(conv, nil)
	assert.Len(t, events, 1)
	assert.Equal(t, 1, res.Steps)
}

func TestLinearize_DepthCap(t *testing.T) {
	conv := chain(t, 1500)

	events, res := Linearize(conv, NewWalkState())
	assert.True(t, res.Truncated)
	assert.Equal(t, MaxTraverseDepth, res.Steps)
	assert.Len(t, events, MaxTraverseDepth-1)
}

func TestLinearize_PathEndingAtCapIsNotTruncated(t *testing.T) {
	conv := chain(t, MaxTraverseDepth-1)

	events, res := Linearize(conv, NewWalkState())
	assert.False(t, res.Truncated)
	assert.Equal(t, MaxTraverseDepth, res.Steps)
	assert.Len(t, events, MaxTraverseDepth-1)

	_, res = Linearize(chain(t, MaxTraverseDepth), NewWalkState())
	assert.True(t, res.Truncated)
	assert.Equal(t, MaxTraverseDepth, res.Steps)
}

func TestLinearize_CanvasDedup(t *testing.T) {
	canvas := func(id string) *Message {
		m := textMsg(t, "assistant", "edit", 1)
		m.Metadata.Canvas = &Canvas{TextdocID: id, Title: "Plan", TextdocType: "document", Version: float64(2)}
		return m
	}
	conv := Conversation{ID: "c", Mapping: map[string]Node{
		"a": {ID: "a", Children: []string{"b"}, Message: canvas("doc-1")},
		"b": {ID: "b", Parent: ptr("a"), Children: []string{"c"}, Message: canvas("doc-1")},
		"c": {ID: "c", Parent: ptr("b"), Children: []string{"d"}, Message: canvas("doc-2")},
		"d": {ID: "d", Parent: ptr("c"), Message: canvas("doc-1")},
	}}

	events, _ := Linearize(conv, NewWalkState())
	var canvases []string
	for _, ev := range events {
		if ev.Kind == KindCanvas {
			canvases = append(canvases, ev.Canvas.TextdocID)
		}
	}
	assert.Equal(t, []string{"doc-1", "doc-2"}, canvases)
	assert.Len(t, events, 6)
}

func TestFindRoot(t *testing.T) {
	t.Run("several parentless nodes", func(t *testing.T) {
		id, ok := FindRoot(map[string]Node{"b": {}, "a": {}, "c": {Parent: ptr("a")}})
		require.True(t, ok)
		assert.Equal(t, "a", id)
	})

	t.Run("falls back to earliest message", func(t *testing.T) {
		id, ok := FindRoot(map[string]Node{
			"a": {Parent: ptr("zz"), Message: textMsg(t, "user", "late", 20)},
			"b": {Parent: ptr("zz"), Message: textMsg(t, "user", "early", 10)},
			"c": {Parent: ptr("zz")},
		})
		require.True(t, ok)
		assert.Equal(t, "b", id)
	})

	t.Run("empty mapping", func(t *testing.T) {
		_, ok := FindRoot(nil)
		assert.False(t, ok)
	})
}

func TestLinearize_ContentVariants(t *testing.T) {
	multimodal := &Message{
		Author: Author{Role: "user"},
		Content: &Content{ContentType: ContentMultimodal, Parts: []jsonx.RawMessage{
			rawJSON(t, "look at this"),
			rawJSON(t, map[string]any{"content_type": "image_asset_pointer", "asset_pointer": "file-service://file-abc123"}),
			rawJSON(t, map[string]any{"content_type": "image_asset_pointer", "asset_pointer": "sediment://file-ignored"}),
		}},
	}
	code := &Message{Author: Author{Role: "assistant"}, Content: &Content{ContentType: ContentCode, Text: "print(1)", Language: "python"}}
	sysErr := &Message{Author: Author{Role: "system"}, Content: &Content{ContentType: ContentSystemError, Text: "boom"}}
	tool := &Message{Author: Author{Role: "tool", Name: "browser"}, Content: &Content{ContentType: "tether_quote", Text: "quoted"}}
	blank := textMsg(t, "user", "   ", 1)

	conv := Conversation{ID: "c", Mapping: map[string]Node{
		"1": {Children: []string{"2"}, Message: multimodal},
		"2": {Parent: ptr("1"), Children: []string{"3"}, Message: code},
		"3": {Parent: ptr("2"), Children: []string{"4"}, Message: sysErr},
		"4": {Parent: ptr("3"), Children: []string{"5"}, Message: tool},
		"5": {Parent: ptr("4"), Message: blank},
	}}

	events, res := Linearize(conv, nil)
	assert.Equal(t, 5, res.Steps)
	require.Len(t, events, 3)

	assert.Equal(t, KindMultimodal, events[0].Kind)
	assert.Equal(t, "look at this", events[0].Text)
	assert.Equal(t, []string{"file-service://file-abc123"}, events[0].Images)

	assert.Equal(t, KindCode, events[1].Kind)
	assert.Equal(t, "python", events[1].Language)

	assert.Equal(t, KindSystemError, events[2].Kind)
	assert.Equal(t, "boom", events[2].Text)
}

func TestDecode(t *testing.T) {
	data := []byte(`[
		{"id": "c1", "title": "First", "create_time": 1700000000.5, "mapping": {"r": {"id": "r", "parent": null, "children": []}}},
		{"conversation_id": "c2", "title": "Second", "mapping": {}},
		{"title": "No id", "mapping": {}},
		{"id": "c4", "title": "No mapping"},
		{"id": 5, "mapping": "broken"}
	]`)

	out, err := Decode(data)
	require.NoError(t, err)
	assert.False(t, out.Repaired)
	assert.Equal(t, 3, out.Malformed)
	require.Len(t, out.Conversations, 2)
	assert.Equal(t, "c1", out.Conversations[0].ID)
	assert.Equal(t, "c2", out.Conversations[1].ID)

	created := out.Conversations[0].CreatedAt(time.Time{})
	assert.Equal(t, int64(1700000000), created.Unix())

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, now, out.Conversations[1].CreatedAt(now))
}

func TestDecode_Repair(t *testing.T) {
	out, err := Decode([]byte(`[{"id": "c1", "title": "t", "mapping": {}},]`))
	require.NoError(t, err)
	assert.True(t, out.Repaired)
	require.Len(t, out.Conversations, 1)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(Path(t.TempDir()))
	assert.Error(t, err)
}

func TestQuickSubset(t *testing.T) {
	withImage := func(id string) Conversation {
		return Conversation{ID: id, Mapping: map[string]Node{"r": {Message: &Message{Content: &Content{
			ContentType: ContentMultimodal,
			Parts:       []jsonx.RawMessage{rawJSON(t, map[string]any{"content_type": "image_asset_pointer", "asset_pointer": "file-service://x"})},
		}}}}}
	}
	withCanvas := func(id string) Conversation {
		return Conversation{ID: id, Mapping: map[string]Node{"r": {Message: &Message{Metadata: Metadata{Canvas: &Canvas{TextdocID: "d"}}}}}}
	}
	both := withImage("both")
	both.Mapping["s"] = withCanvas("ignored").Mapping["r"]
	plain := chain(t, 2)

	convs := []Conversation{plain, both, withImage("i1"), withImage("i2"), withCanvas("k1"), withCanvas("k2")}
	selected, images, canvases := QuickSubset(convs, 2)

	assert.Equal(t, 2, images)
	assert.Equal(t, 2, canvases)
	var ids []string
	for _, c := range selected {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"both", "i1", "k1"}, ids)
}
