package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/glowly/internal/llm"
)

func TestHistoryAppendAndSnapshot(t *testing.T) {
	h := NewHistory(System("be brief"))
	h.Append(User("hi"), Assistant("hello"))

	snap := h.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, llm.RoleSystem, snap[0].Role)
	assert.Equal(t, "hello", snap[2].Content)

	h.Append(User("more"))
	assert.Len(t, snap, 3, "snapshots do not see later appends")
	assert.Equal(t, 4, h.Len())

	snap[0].Content = "changed"
	assert.Equal(t, "be brief", h.Snapshot()[0].Content)
}

func TestNewHistoryCopiesInput(t *testing.T) {
	turns := []Turn{User("a")}
	h := NewHistory(turns...)
	turns[0].Content = "b"
	assert.Equal(t, "a", h.Snapshot()[0].Content)
}

func TestMessages(t *testing.T) {
	msgs := Messages([]Turn{System("s"), User("u"), Assistant("a"), {Role: "tool", Content: "t"}})
	require.Len(t, msgs, 4)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, llm.RoleAssistant, msgs[2].Role)
	assert.Equal(t, llm.RoleUser, msgs[3].Role)
	assert.Equal(t, "t", msgs[3].Content)
}
