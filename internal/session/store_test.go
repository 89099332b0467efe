package session

import (
	"testing"

	"github.com/deepfinance/chat-client/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendOptimistic(t *testing.T) {
	s := NewMessageStore()

	msg := s.AppendOptimistic("t1", "hello")

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "t1", msg.ThreadID)
	assert.Equal(t, models.SenderUser, msg.Sender)
	assert.Equal(t, models.StatusPending, msg.Status)

	other := s.AppendOptimistic("t1", "world")
	assert.NotEqual(t, msg.ID, other.ID)

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "world", msgs[1].Content)
}

func TestLoadReplacesWholesale(t *testing.T) {
	s := NewMessageStore()
	s.AppendOptimistic("t1", "leftover")

	s.Load([]models.Message{
		{ID: "m1", Sender: models.SenderUser, Content: "hi"},
		{ID: "m2", Sender: models.SenderAssistant, Content: "hello"},
	})

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
	for _, msg := range msgs {
		assert.Equal(t, models.StatusConfirmed, msg.Status)
	}
}

func TestRemoveByIdentity(t *testing.T) {
	s := NewMessageStore()
	first := s.AppendOptimistic("t1", "one")
	s.AppendOptimistic("t1", "two")

	assert.True(t, s.Remove(first.ID))
	assert.False(t, s.Remove(first.ID))

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "two", msgs[0].Content)
}

func TestNoDeduplication(t *testing.T) {
	s := NewMessageStore()
	s.Append(models.Message{ID: "m1", Sender: models.SenderUser, Content: "same"})
	s.Append(models.Message{ID: "m1", Sender: models.SenderUser, Content: "same"})

	assert.Equal(t, 2, s.Len(), "the store never merges or deduplicates")
}
