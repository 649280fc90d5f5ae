package relay

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureTransport struct {
	name string

	mu     sync.Mutex
	events []Event
}

func (c *captureTransport) Name() string { return c.name }

func (c *captureTransport) Deliver(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureTransport) received() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

func TestQRBufferedUntilFirstAttach(t *testing.T) {
	bus := NewBus()
	bus.Publish(QRCode("XYZ123"))

	first := &captureTransport{name: "first"}
	bus.Attach(first)

	events := first.received()
	require.Len(t, events, 1)
	assert.Equal(t, EventQRCode, events[0].Type)
	assert.Equal(t, "XYZ123", events[0].Data)

	// Buffer is cleared by the first attach; later transports get nothing.
	second := &captureTransport{name: "second"}
	bus.Attach(second)
	assert.Empty(t, second.received())
}

func TestBufferedQRLatestWins(t *testing.T) {
	bus := NewBus()
	bus.Publish(QRCode("old"))
	bus.Publish(QRCode("new"))

	tr := &captureTransport{name: "tr"}
	bus.Attach(tr)

	events := tr.received()
	require.Len(t, events, 1)
	assert.Equal(t, "new", events[0].Data)
}

func TestNonQRDroppedWithoutTransport(t *testing.T) {
	bus := NewBus()
	bus.Publish(Ready())
	bus.Publish(Disconnected())

	tr := &captureTransport{name: "tr"}
	bus.Attach(tr)
	assert.Empty(t, tr.received())
}

func TestPublishFansOutToAllTransports(t *testing.T) {
	bus := NewBus()
	a := &captureTransport{name: "a"}
	b := &captureTransport{name: "b"}
	bus.Attach(a)
	bus.Attach(b)

	bus.Publish(Ready())

	require.Len(t, a.received(), 1)
	require.Len(t, b.received(), 1)
	assert.Equal(t, EventReady, a.received()[0].Type)
}

func TestQRDeliveredLiveWhenTransportAttached(t *testing.T) {
	bus := NewBus()
	tr := &captureTransport{name: "tr"}
	bus.Attach(tr)

	bus.Publish(QRCode("LIVE"))

	events := tr.received()
	require.Len(t, events, 1)
	assert.Equal(t, "LIVE", events[0].Data)

	// Delivered live, so nothing buffered for the next transport.
	late := &captureTransport{name: "late"}
	bus.Attach(late)
	assert.Empty(t, late.received())
}

func TestDetachStopsDelivery(t *testing.T) {
	bus := NewBus()
	tr := &captureTransport{name: "tr"}
	bus.Attach(tr)
	bus.Detach(tr)

	bus.Publish(Ready())
	assert.Empty(t, tr.received())

	// With no transports left, a QR buffers again.
	bus.Publish(QRCode("AGAIN"))
	next := &captureTransport{name: "next"}
	bus.Attach(next)
	require.Len(t, next.received(), 1)
}

func TestClearBufferedQR(t *testing.T) {
	bus := NewBus()
	bus.Publish(QRCode("stale"))
	bus.ClearBufferedQR()

	tr := &captureTransport{name: "tr"}
	bus.Attach(tr)
	assert.Empty(t, tr.received())
}
