// Package stubclient provides a loopback implementation of the automation
// client contract for development without a linked WhatsApp account. It
// walks the real pairing lifecycle (QR, then ready after a fixed delay) and
// keeps sent messages in memory so the send/edit/delete/history surface is
// fully exercisable.
package stubclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zapdesk/zapdesk/pkg/wa"
)

// Options seeds the stub.
type Options struct {
	// OwnID is the simulated account address.
	OwnID string

	// PairDelay is how long after the QR the stub reports ready.
	PairDelay time.Duration

	// Contacts seeds the upstream contact set.
	Contacts []wa.RawContact
}

// Client is a loopback wa.Client.
type Client struct {
	opts   Options
	events chan wa.Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	state     string
	chats     map[string][]wa.RawMessage
	destroyed bool
}

var _ wa.Client = (*Client)(nil)

// New creates a stub client.
func New(opts Options) *Client {
	if opts.OwnID == "" {
		opts.OwnID = "5511900000000@c.us"
	}
	if opts.PairDelay <= 0 {
		opts.PairDelay = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		opts:   opts,
		events: make(chan wa.Event, 16),
		ctx:    ctx,
		cancel: cancel,
		chats:  make(map[string][]wa.RawMessage),
	}
}

// Start begins the simulated pairing cycle.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return errors.New("stub client already destroyed")
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		if !c.sleep(500 * time.Millisecond) {
			return
		}
		c.emit(wa.Event{Kind: wa.EventQR, QR: "stub-pairing-" + uuid.NewString()})

		if !c.sleep(c.opts.PairDelay) {
			return
		}
		c.mu.Lock()
		c.state = wa.StateConnected
		c.mu.Unlock()
		c.emit(wa.Event{Kind: wa.EventReady, OwnID: c.opts.OwnID})
	}()
	return nil
}

func (c *Client) sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Client) emit(ev wa.Event) {
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	}
}

// Destroy tears the stub down and closes the event channel.
func (c *Client) Destroy(ctx context.Context) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	c.destroyed = true
	c.state = ""
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	close(c.events)
	return nil
}

// Events returns the lifecycle event channel.
func (c *Client) Events() <-chan wa.Event {
	return c.events
}

// State reports the simulated connection state.
func (c *Client) State(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return "", errors.New("stub client destroyed")
	}
	return c.state, nil
}

// Contacts returns the seeded contact set.
func (c *Client) Contacts(ctx context.Context) ([]wa.RawContact, error) {
	out := make([]wa.RawContact, len(c.opts.Contacts))
	copy(out, c.opts.Contacts)
	return out, nil
}

// ProfilePictureURL always reports no picture.
func (c *Client) ProfilePictureURL(ctx context.Context, contactID string) (string, error) {
	return "", nil
}

// SendText records the message in the chat's in-memory history.
func (c *Client) SendText(ctx context.Context, chatID, content string) (wa.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != wa.StateConnected {
		return wa.RawMessage{}, errors.New("stub client not connected")
	}

	raw := wa.RawMessage{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		From:      c.opts.OwnID,
		Body:      content,
		Timestamp: time.Now().Unix(),
		FromMe:    true,
	}
	c.chats[chatID] = append(c.chats[chatID], raw)
	return raw, nil
}

// EditText rewrites a stored message's body.
func (c *Client) EditText(ctx context.Context, chatID, messageID, newContent string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.chats[chatID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			msgs[i].Body = newContent
			return nil
		}
	}
	return fmt.Errorf("message %s not found in %s", messageID, chatID)
}

// RevokeMessage removes a stored message.
func (c *Client) RevokeMessage(ctx context.Context, chatID, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.chats[chatID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			c.chats[chatID] = append(msgs[:i], msgs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("message %s not found in %s", messageID, chatID)
}

// ChatMessages returns the most recent limit messages, oldest first.
func (c *Client) ChatMessages(ctx context.Context, chatID string, limit int) ([]wa.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.chats[chatID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]wa.RawMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Deliver injects a simulated inbound message, as if the counterpart had
// written. Useful from dev tooling and tests.
func (c *Client) Deliver(from, body string) {
	raw := wa.RawMessage{
		ID:        uuid.NewString(),
		ChatID:    wa.ChatID(from),
		From:      from,
		Body:      body,
		Timestamp: time.Now().Unix(),
	}
	c.mu.Lock()
	c.chats[raw.ChatID] = append(c.chats[raw.ChatID], raw)
	c.mu.Unlock()
	c.emit(wa.Event{Kind: wa.EventMessage, Message: raw})
}
