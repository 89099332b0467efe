package session

import (
	"encoding/json"

	"github.com/deepfinance/chat-client/internal/models"
	"github.com/google/uuid"
)

// Frame is the decode result of one inbound channel frame: either a
// ready-made message record, or raw text the backend streamed outside the
// JSON protocol. The two cases are handled exhaustively by the reconciler so
// no frame is ever dropped.
type Frame struct {
	Decoded bool
	Record  models.Message
	Raw     string
}

// DecodeFrame attempts to read a frame as a JSON message record. Anything
// that does not decode, plain text chunks of assistant output included,
// comes back as Raw.
func DecodeFrame(data []byte) Frame {
	var record models.Message
	if err := json.Unmarshal(data, &record); err != nil {
		return Frame{Raw: string(data)}
	}
	return Frame{Decoded: true, Record: record}
}

// applyFrame is the reconciler: it converts one inbound frame into a message
// and appends it. Decoded records are appended as-is; raw text is wrapped
// into a fresh assistant message so streamed plain-text output stays
// visible. Runs on the loop.
func (s *Synchronizer) applyFrame(data []byte) {
	frame := DecodeFrame(data)

	var msg models.Message
	if frame.Decoded {
		msg = frame.Record
		msg.Status = models.StatusConfirmed
	} else {
		msg = models.Message{
			ID:      uuid.New().String(),
			Sender:  models.SenderAssistant,
			Content: frame.Raw,
			Status:  models.StatusConfirmed,
		}
	}

	s.store.Append(msg)
	if s.onIncoming != nil {
		s.onIncoming(msg)
	}
}
