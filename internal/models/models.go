package models

import "time"

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// MessageStatus is the client-side delivery state of a message. History and
// reconciled messages are always confirmed; only optimistic entries start out
// pending.
type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusConfirmed MessageStatus = "confirmed"
	StatusFailed    MessageStatus = "failed"
)

// Thread is one conversation as returned by the directory service.
type Thread struct {
	ID        string     `json:"_id"`
	Title     string     `json:"title,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Message is a single chat message. Status never goes over the wire; the
// server knows nothing about optimistic entries.
type Message struct {
	ID       string        `json:"_id"`
	ThreadID string        `json:"threadId,omitempty"`
	Sender   Sender        `json:"sender"`
	Content  string        `json:"content"`
	Status   MessageStatus `json:"-"`
}
