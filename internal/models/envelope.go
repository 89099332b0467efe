package models

// Event names understood by the backend on the duplex channel.
const (
	EventAuthenticate = "authenticate"
	EventMessageSend  = "message:send"
)

// Envelope frames every client-to-server payload on the duplex channel.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// AuthPayload authenticates the channel right after it opens.
type AuthPayload struct {
	Token string `json:"token"`
}

// SendPayload carries one user message to the backend.
type SendPayload struct {
	ThreadID string `json:"threadId"`
	Content  string `json:"content"`
}
