// Package relay decouples session event production from transport
// attachment. Domain events published here fan out to every attached
// real-time transport. The lone startup-ordering wrinkle, a QR code issued
// before any subscriber exists, is held as a single buffered event and
// handed to the first transport that attaches.
package relay

import (
	"time"

	"github.com/zapdesk/zapdesk/pkg/wa"
)

// Wire event names. These are the contract with web clients.
const (
	EventQRCode         = "qrCode"
	EventReady          = "whatsappReady"
	EventNewMessage     = "newMessage"
	EventDisconnected   = "whatsappDisconnected"
	EventMessageDeleted = "messageDeleted"
	EventMessageEdited  = "messageEdited"
)

// Event is the envelope every relay event travels in.
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// New creates a timestamped event.
func New(eventType string, data interface{}) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// QRCode is a pairing code issuance.
func QRCode(code string) Event { return New(EventQRCode, code) }

// Ready signals the session reached CONNECTED.
func Ready() Event { return New(EventReady, true) }

// NewMessage carries a canonical message, inbound or just-sent.
func NewMessage(msg wa.Message) Event { return New(EventNewMessage, msg) }

// Disconnected signals the session dropped.
func Disconnected() Event { return New(EventDisconnected, true) }

// DeletedPayload references a revoked message.
type DeletedPayload struct {
	MessageID string `json:"messageId"`
	To        string `json:"to"`
}

// MessageDeleted announces a revocation.
func MessageDeleted(messageID, to string) Event {
	return New(EventMessageDeleted, DeletedPayload{MessageID: messageID, To: to})
}

// EditedPayload references an edited message with its new content.
type EditedPayload struct {
	MessageID string    `json:"messageId"`
	To        string    `json:"to"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessageEdited announces an edit.
func MessageEdited(messageID, to, content string) Event {
	return New(EventMessageEdited, EditedPayload{
		MessageID: messageID,
		To:        to,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
}
