// Package session owns the lifecycle of the single WhatsApp automation
// session: the connection state machine, translation of raw client events
// into relay events, and the reconnect policy.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/zapdesk/zapdesk/pkg/logger"
	"github.com/zapdesk/zapdesk/pkg/relay"
	"github.com/zapdesk/zapdesk/pkg/wa"
)

// State is the session lifecycle state.
type State string

const (
	StateUninitialized State = "UNINITIALIZED"
	StateInitializing  State = "INITIALIZING"
	StateAwaitingQR    State = "AWAITING_QR"
	StateConnected     State = "CONNECTED"
	StateDisconnected  State = "DISCONNECTED"
)

var (
	// ErrNotInitialized is returned by actions requiring a connected session.
	ErrNotInitialized = errors.New("whatsapp client not initialized, generate a QR code first")

	// ErrMessageNotFound is returned when an edit/delete target is absent
	// from the recent history of its chat.
	ErrMessageNotFound = errors.New("message not found in recent chat history")

	// ErrAlreadyInitialized is returned by Initialize while a client is live.
	ErrAlreadyInitialized = errors.New("session already initialized")
)

// Options tunes the manager's policies.
type Options struct {
	// ReconnectOnDrop re-initializes after an unsolicited disconnect.
	ReconnectOnDrop bool

	// LookbackWindow bounds the history scan for edit/delete targets.
	LookbackWindow int
}

// Manager is the sole owner and writer of session state. HTTP-triggered
// actions and upstream client events are concurrent, so every state access
// is serialized through mu; upstream network calls are made outside the
// lock.
type Manager struct {
	factory wa.Factory
	bus     *relay.Bus
	opts    Options

	rootCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	state    State
	client   wa.Client
	ownID    string
	gen      int // client generation; stale event loops are ignored
	lastInit error
}

// NewManager creates a manager in the UNINITIALIZED state. No client is
// constructed until Initialize.
func NewManager(factory wa.Factory, bus *relay.Bus, opts Options) *Manager {
	if opts.LookbackWindow <= 0 {
		opts.LookbackWindow = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		factory: factory,
		bus:     bus,
		opts:    opts,
		rootCtx: ctx,
		cancel:  cancel,
		state:   StateUninitialized,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OwnID returns the authenticated account's address, empty until CONNECTED.
func (m *Manager) OwnID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ownID
}

// LastInitError returns the cause of the most recent failed Initialize.
func (m *Manager) LastInitError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastInit
}

// Initialize constructs and starts a fresh client. Valid from
// UNINITIALIZED or DISCONNECTED; a failure parks the state back at
// UNINITIALIZED with the cause recorded and is not retried automatically.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initializeLocked(ctx)
}

func (m *Manager) initializeLocked(ctx context.Context) error {
	if m.client != nil {
		return ErrAlreadyInitialized
	}

	m.state = StateInitializing
	logger.InfoC("session", "Initializing WhatsApp client")

	client, err := m.factory()
	if err != nil {
		m.state = StateUninitialized
		m.lastInit = err
		return fmt.Errorf("construct client: %w", err)
	}
	if err := client.Start(ctx); err != nil {
		m.state = StateUninitialized
		m.lastInit = err
		return fmt.Errorf("start client: %w", err)
	}

	m.client = client
	m.lastInit = nil
	m.gen++
	go m.consumeEvents(client, m.gen)
	return nil
}

// consumeEvents drains one client's event channel. The upstream delivers
// events one at a time; each is applied under the manager lock. The loop
// ends when the client is destroyed (channel close) or superseded.
func (m *Manager) consumeEvents(client wa.Client, gen int) {
	for ev := range client.Events() {
		m.handleEvent(gen, ev)
	}
}

func (m *Manager) handleEvent(gen int, ev wa.Event) {
	m.mu.Lock()

	if gen != m.gen {
		// Event from a torn-down client that raced its own destruction.
		m.mu.Unlock()
		return
	}

	switch ev.Kind {
	case wa.EventQR:
		m.state = StateAwaitingQR
		m.mu.Unlock()
		logger.InfoC("session", "QR code issued")
		m.bus.Publish(relay.QRCode(ev.QR))

	case wa.EventReady:
		// The stale pairing code must be gone before CONNECTED is
		// observable, or a transport attaching right after the transition
		// would receive it. Client events are sequential, so nothing can
		// re-buffer a QR in between.
		m.bus.ClearBufferedQR()
		m.state = StateConnected
		m.ownID = ev.OwnID
		m.mu.Unlock()
		logger.InfoCF("session", "WhatsApp client ready", map[string]interface{}{
			"own_id": ev.OwnID,
		})
		m.bus.Publish(relay.Ready())

	case wa.EventMessage:
		msg := wa.NormalizeMessage(ev.Message, m.ownID)
		m.mu.Unlock()
		logger.DebugCF("session", "Message received", map[string]interface{}{
			"id":     msg.ID,
			"sender": msg.SenderID,
		})
		m.bus.Publish(relay.NewMessage(msg))

	case wa.EventDisconnected:
		m.handleDisconnectLocked(ev.Reason)

	default:
		m.mu.Unlock()
		logger.WarnCF("session", "Unknown client event ignored", map[string]interface{}{
			"kind": string(ev.Kind),
		})
	}
}

// handleDisconnectLocked handles an unsolicited upstream drop. Called with
// the lock held; releases it. The disconnect event is always relayed before
// any reconnect begins, so subscribers can tell a blip from a teardown.
func (m *Manager) handleDisconnectLocked(reason string) {
	client := m.client
	m.client = nil
	m.ownID = ""
	m.state = StateDisconnected
	m.gen++
	m.mu.Unlock()

	logger.WarnCF("session", "WhatsApp client disconnected", map[string]interface{}{
		"reason": reason,
	})
	m.bus.ClearBufferedQR()
	m.bus.Publish(relay.Disconnected())

	if client != nil {
		ctx, cancel := context.WithTimeout(m.rootCtx, 10*time.Second)
		if err := client.Destroy(ctx); err != nil {
			logger.WarnCF("session", "Client teardown after drop failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		cancel()
	}

	if m.opts.ReconnectOnDrop {
		go m.reconnect()
	}
}

// reconnect re-initializes with capped exponential backoff. It gives up
// when an operator action changed the state underneath it.
func (m *Manager) reconnect() {
	backoff := retry.WithCappedDuration(30*time.Second,
		retry.WithMaxRetries(10, retry.NewExponential(time.Second)))

	err := retry.Do(m.rootCtx, backoff, func(ctx context.Context) error {
		if m.State() != StateDisconnected {
			return nil
		}
		if err := m.Initialize(ctx); err != nil {
			if errors.Is(err, ErrAlreadyInitialized) {
				return nil
			}
			logger.WarnCF("session", "Reconnect attempt failed", map[string]interface{}{
				"error": err.Error(),
			})
			return retry.RetryableError(err)
		}
		logger.InfoC("session", "Reconnect initialized new client")
		return nil
	})
	if err != nil {
		logger.ErrorCF("session", "Giving up on automatic reconnect", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// destroyLocked tears down the current client, if any. Called with the lock
// held; keeps it held. The generation bump makes trailing events from the
// old client no-ops.
func (m *Manager) destroyLocked(ctx context.Context) {
	client := m.client
	m.client = nil
	m.ownID = ""
	m.gen++
	if client == nil {
		return
	}
	if err := client.Destroy(ctx); err != nil {
		logger.WarnCF("session", "Client teardown failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Regenerate destroys any current client and initializes a fresh one,
// forcing a new QR pairing cycle.
func (m *Manager) Regenerate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	logger.InfoC("session", "Regenerating session")
	m.destroyLocked(ctx)
	m.bus.ClearBufferedQR()
	return m.initializeLocked(ctx)
}

// Disconnect destroys the client and leaves the session down until an
// explicit Regenerate. Relays whatsappDisconnected when a client was live.
func (m *Manager) Disconnect(ctx context.Context) {
	m.mu.Lock()
	hadClient := m.client != nil
	m.destroyLocked(ctx)
	m.state = StateDisconnected
	m.mu.Unlock()

	m.bus.ClearBufferedQR()
	if hadClient {
		logger.InfoC("session", "WhatsApp client disconnected by request")
		m.bus.Publish(relay.Disconnected())
	}
}

// Close tears the manager down for process shutdown.
func (m *Manager) Close() {
	m.cancel()
	m.mu.Lock()
	defer m.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m.destroyLocked(ctx)
	m.state = StateUninitialized
}

// connectedClient returns the live client for state-changing actions.
func (m *Manager) connectedClient() (wa.Client, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil || m.state != StateConnected {
		return nil, "", ErrNotInitialized
	}
	return m.client, m.ownID, nil
}

// ActiveClient returns the client for passive queries (contact listing,
// history). Any live client qualifies, connected or still pairing.
func (m *Manager) ActiveClient() (wa.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil, ErrNotInitialized
	}
	return m.client, nil
}

// IsConnected reports whether the upstream session is live. Side-effect
// free; upstream failures degrade to false rather than propagating.
func (m *Manager) IsConnected(ctx context.Context) bool {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client == nil {
		return false
	}
	state, err := client.State(ctx)
	if err != nil {
		logger.WarnCF("session", "Connection state query failed", map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}
	return state == wa.StateConnected
}

// SendMessage sends a text message and relays the canonical result.
func (m *Manager) SendMessage(ctx context.Context, to, content string) (wa.Message, error) {
	client, ownID, err := m.connectedClient()
	if err != nil {
		return wa.Message{}, err
	}

	chatID := wa.ChatID(to)
	raw, err := client.SendText(ctx, chatID, content)
	if err != nil {
		return wa.Message{}, fmt.Errorf("send message to %s: %w", chatID, err)
	}

	msg := wa.NormalizeMessage(raw, ownID)
	msg.SenderID = wa.SenderSelf
	m.bus.Publish(relay.NewMessage(msg))
	return msg, nil
}

// findRecent reports whether messageID appears in the lookback window of a
// chat's history. Bounded scan, never the full history.
func (m *Manager) findRecent(ctx context.Context, client wa.Client, chatID, messageID string) error {
	msgs, err := client.ChatMessages(ctx, chatID, m.opts.LookbackWindow)
	if err != nil {
		return fmt.Errorf("fetch chat history for %s: %w", chatID, err)
	}
	for _, raw := range msgs {
		if raw.ID == messageID {
			return nil
		}
	}
	return ErrMessageNotFound
}

// EditMessage replaces the content of a recently sent message and relays
// messageEdited.
func (m *Manager) EditMessage(ctx context.Context, messageID, newContent, to string) error {
	client, _, err := m.connectedClient()
	if err != nil {
		return err
	}

	chatID := wa.ChatID(to)
	if err := m.findRecent(ctx, client, chatID, messageID); err != nil {
		return err
	}
	if err := client.EditText(ctx, chatID, messageID, newContent); err != nil {
		return fmt.Errorf("edit message %s: %w", messageID, err)
	}

	m.bus.Publish(relay.MessageEdited(messageID, to, newContent))
	return nil
}

// DeleteMessage revokes a recently sent message and relays messageDeleted.
func (m *Manager) DeleteMessage(ctx context.Context, messageID, to string) error {
	client, _, err := m.connectedClient()
	if err != nil {
		return err
	}

	chatID := wa.ChatID(to)
	if err := m.findRecent(ctx, client, chatID, messageID); err != nil {
		return err
	}
	if err := client.RevokeMessage(ctx, chatID, messageID); err != nil {
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}

	m.bus.Publish(relay.MessageDeleted(messageID, to))
	return nil
}

// ChatMessages returns the most recent limit canonical messages of a chat.
func (m *Manager) ChatMessages(ctx context.Context, contactID string, limit int) ([]wa.Message, error) {
	client, err := m.ActiveClient()
	if err != nil {
		return nil, err
	}

	raws, err := client.ChatMessages(ctx, wa.ChatID(contactID), limit)
	if err != nil {
		return nil, fmt.Errorf("fetch chat history for %s: %w", contactID, err)
	}

	ownID := m.OwnID()
	msgs := make([]wa.Message, 0, len(raws))
	for _, raw := range raws {
		msgs = append(msgs, wa.NormalizeMessage(raw, ownID))
	}
	return msgs, nil
}
