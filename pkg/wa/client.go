package wa

import "context"

// EventKind tags events emitted by the underlying automation client.
type EventKind string

const (
	// EventQR carries a pairing code; issued until the account is linked.
	EventQR EventKind = "qr"
	// EventReady signals the client is authenticated and connected.
	EventReady EventKind = "ready"
	// EventMessage carries an observed inbound message.
	EventMessage EventKind = "message"
	// EventDisconnected signals the upstream dropped the session.
	EventDisconnected EventKind = "disconnected"
)

// Event is the tagged union delivered on the client's event channel. Exactly
// the fields for its Kind are populated.
type Event struct {
	Kind    EventKind
	QR      string     // EventQR
	OwnID   string     // EventReady: the authenticated account's own address
	Message RawMessage // EventMessage
	Reason  string     // EventDisconnected
}

// StateConnected is the upstream state string reported by a live session.
const StateConnected = "CONNECTED"

// Client is the underlying automation client. Implementations own the
// actual protocol session (including its authentication artifacts, which
// are opaque to this process) and deliver lifecycle signals one at a time
// on the Events channel.
//
// A Client is single-use: once destroyed it is never restarted, a fresh one
// is constructed instead.
type Client interface {
	// Start begins connecting. Events may be emitted immediately after.
	Start(ctx context.Context) error

	// Destroy tears the session down and closes the event channel.
	Destroy(ctx context.Context) error

	// Events returns the channel of upstream signals. Closed on Destroy.
	Events() <-chan Event

	// State reports the upstream connection state string.
	State(ctx context.Context) (string, error)

	// Contacts fetches the full upstream contact set.
	Contacts(ctx context.Context) ([]RawContact, error)

	// ProfilePictureURL resolves the remote profile image URL for a contact.
	// Empty without error when the contact has no picture.
	ProfilePictureURL(ctx context.Context, contactID string) (string, error)

	// SendText sends a text message and returns the upstream's record of it.
	SendText(ctx context.Context, chatID, content string) (RawMessage, error)

	// EditText replaces the content of a previously sent message.
	EditText(ctx context.Context, chatID, messageID, newContent string) error

	// RevokeMessage deletes a message for everyone in the chat.
	RevokeMessage(ctx context.Context, chatID, messageID string) error

	// ChatMessages fetches the most recent limit messages of a chat,
	// newest last.
	ChatMessages(ctx context.Context, chatID string, limit int) ([]RawMessage, error)
}

// Factory constructs a fresh Client. The session manager calls it on every
// (re-)initialization; clients are never reused across restarts.
type Factory func() (Client, error)
