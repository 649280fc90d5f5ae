package relay

import (
	"sync"

	"github.com/zapdesk/zapdesk/pkg/logger"
)

// Transport is a real-time push channel attached to the bus. Deliver must
// not block; slow transports are expected to drop internally.
type Transport interface {
	Name() string
	Deliver(Event)
}

// Bus broadcasts relay events to all attached transports.
//
// Delivery is at-least-once, best-effort: there is no persistence and no
// replay beyond one buffered QR code. Events published while no transport is
// attached are dropped, except a QR event, which is buffered (latest wins)
// and delivered to the next transport that attaches. The session client
// routinely starts emitting before any subscriber exists.
type Bus struct {
	mu         sync.Mutex
	transports []Transport
	bufferedQR *Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Attach registers a transport. A buffered QR, if any, is delivered to the
// newly attached transport only and the buffer is cleared.
func (b *Bus) Attach(t Transport) {
	b.mu.Lock()
	pending := b.bufferedQR
	b.bufferedQR = nil
	b.transports = append(b.transports, t)
	b.mu.Unlock()

	if pending != nil {
		logger.InfoCF("relay", "Delivering buffered QR to new transport", map[string]interface{}{
			"transport": t.Name(),
		})
		t.Deliver(*pending)
	}
}

// Detach removes a transport. Safe to call for a transport that was never
// attached.
func (b *Bus) Detach(t Transport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, reg := range b.transports {
		if reg == t {
			b.transports = append(b.transports[:i], b.transports[i+1:]...)
			return
		}
	}
}

// Publish forwards an event to all attached transports. With no transport
// attached, a QR event overwrites the buffer and anything else is dropped.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	if len(b.transports) == 0 {
		if e.Type == EventQRCode {
			b.bufferedQR = &e
			b.mu.Unlock()
			logger.DebugC("relay", "No transport attached, QR buffered")
			return
		}
		b.mu.Unlock()
		logger.DebugCF("relay", "No transport attached, event dropped", map[string]interface{}{
			"type": e.Type,
		})
		return
	}
	targets := make([]Transport, len(b.transports))
	copy(targets, b.transports)
	b.mu.Unlock()

	for _, t := range targets {
		t.Deliver(e)
	}
}

// ClearBufferedQR drops the buffered QR, if any. The session manager calls
// this on the transition that makes the code unnecessary (ready, teardown),
// keeping the buffer and a connected state from coexisting.
func (b *Bus) ClearBufferedQR() {
	b.mu.Lock()
	b.bufferedQR = nil
	b.mu.Unlock()
}
