package hermes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siston/ChatGPT-Chat-History-To-Notion/internal/jsonx"
)

func TestImportEvent_WireFormat(t *testing.T) {
	ev := NewImportEvent("run-1", "conv-1", "Hello", "done")
	ev.Appended = 3

	_, err := time.Parse(time.RFC3339, ev.Timestamp)
	require.NoError(t, err)

	data, err := jsonx.Marshal(ev)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, jsonx.Unmarshal(data, &raw))
	assert.Equal(t, "run-1", raw["run_id"])
	assert.Equal(t, "conv-1", raw["conversation_id"])
	assert.Equal(t, "done", raw["state"])
	assert.EqualValues(t, 3, raw["appended"])
	assert.EqualValues(t, 0, raw["dropped"])
	assert.NotContains(t, raw, "error")
	assert.NotContains(t, raw, "page_id")
}

func TestDecodeImportEvent(t *testing.T) {
	data, err := jsonx.Marshal(NewImportEvent("run-1", "conv-1", "Hello", "failed"))
	require.NoError(t, err)

	ev, err := DecodeImportEvent(data)
	require.NoError(t, err)
	assert.Equal(t, "conv-1", ev.ConversationID)
	assert.Equal(t, "failed", ev.State)

	_, err = DecodeImportEvent([]byte(`{"run_id":"r"}`))
	assert.ErrorContains(t, err, "missing conversation_id")

	_, err = DecodeImportEvent([]byte(`not json`))
	assert.Error(t, err)
}
