package session

import (
	"github.com/deepfinance/chat-client/internal/models"
	"github.com/google/uuid"
)

// MessageStore holds the ordered message sequence for the active thread.
// Order is append order as observed by the synchronizer. The store never
// reorders, merges or deduplicates entries; in particular an optimistic
// entry and the later server echo of the same logical message both stay in
// the sequence.
//
// The store is confined to the synchronizer loop and needs no locking.
type MessageStore struct {
	messages []models.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

// Load replaces the store's contents wholesale with fetched history.
// Loaded entries are always confirmed.
func (s *MessageStore) Load(messages []models.Message) {
	replaced := make([]models.Message, len(messages))
	copy(replaced, messages)
	for i := range replaced {
		replaced[i].Status = models.StatusConfirmed
	}
	s.messages = replaced
}

// AppendOptimistic synthesizes a locally-identified pending user entry and
// appends it. The returned entry carries the identity needed to remove or
// update it later.
func (s *MessageStore) AppendOptimistic(threadID, content string) models.Message {
	msg := models.Message{
		ID:       uuid.New().String(),
		ThreadID: threadID,
		Sender:   models.SenderUser,
		Content:  content,
		Status:   models.StatusPending,
	}
	s.messages = append(s.messages, msg)
	return msg
}

// Append adds one message to the end of the sequence.
func (s *MessageStore) Append(msg models.Message) {
	s.messages = append(s.messages, msg)
}

// Remove deletes a single entry by identity. Used to roll back a failed
// optimistic send.
func (s *MessageStore) Remove(id string) bool {
	for i, msg := range s.messages {
		if msg.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return true
		}
	}
	return false
}

// Clear drops all entries. Called when the active thread switches.
func (s *MessageStore) Clear() {
	s.messages = nil
}

// Messages returns a copy of the current sequence.
func (s *MessageStore) Messages() []models.Message {
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *MessageStore) Len() int {
	return len(s.messages)
}
