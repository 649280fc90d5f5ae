// Package wa defines the canonical, transport-agnostic shapes this process
// exposes for WhatsApp data, the normalization that produces them, and the
// contract the underlying automation client must satisfy.
package wa

import "time"

// SenderSelf marks messages sent by the authenticated account itself.
const SenderSelf = "self"

// Message is the canonical message record. Immutable once produced; edits
// and deletes are modeled as separate relay events referencing the ID.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	SenderID  string    `json:"senderId"`
	CreatedAt time.Time `json:"createdAt"`
}

// RawMessage is an upstream message as the automation client observed it,
// before normalization.
type RawMessage struct {
	ID        string
	ChatID    string
	From      string
	Body      string
	Timestamp int64 // epoch seconds; 0 when the upstream omitted it
	FromMe    bool
}

// NormalizeMessage produces the canonical record for a raw upstream message.
// The sender is tagged as self when the upstream marked it outgoing or its
// address equals ownID. A missing upstream timestamp falls back to capture
// time.
func NormalizeMessage(raw RawMessage, ownID string) Message {
	sender := raw.From
	if raw.FromMe || (ownID != "" && raw.From == ownID) {
		sender = SenderSelf
	}

	created := time.Now().UTC()
	if raw.Timestamp > 0 {
		created = time.Unix(raw.Timestamp, 0).UTC()
	}

	return Message{
		ID:        raw.ID,
		Content:   raw.Body,
		SenderID:  sender,
		CreatedAt: created,
	}
}
