package api

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zapdesk/zapdesk/pkg/relay"
)

func attachedClient(hub *WSHub, id string) *WSClient {
	client := &WSClient{
		id:   id,
		send: make(chan relay.Event, 4),
		hub:  hub,
	}
	hub.mu.Lock()
	hub.clients[client] = true
	hub.mu.Unlock()
	hub.bus.Attach(client)
	return client
}

// A broadcast snapshots the transport list outside the bus lock, so a
// Deliver can land on a client that was removed in between. It must be a
// no-op, never a send on a closed channel.
func TestDeliverAfterRemoveDoesNotPanic(t *testing.T) {
	bus := relay.NewBus()
	hub := NewWSHub(bus, nil, "")
	client := attachedClient(hub, "c1")

	hub.remove(client)

	require.NotPanics(t, func() {
		client.Deliver(relay.Ready())
	})
}

func TestRemoveIsIdempotent(t *testing.T) {
	bus := relay.NewBus()
	hub := NewWSHub(bus, nil, "")
	client := attachedClient(hub, "c1")

	require.NotPanics(t, func() {
		hub.remove(client)
		hub.remove(client)
	})
}

func TestBroadcastDuringDisconnects(t *testing.T) {
	bus := relay.NewBus()
	hub := NewWSHub(bus, nil, "")

	clients := make([]*WSClient, 0, 16)
	for i := 0; i < 16; i++ {
		clients = append(clients, attachedClient(hub, fmt.Sprintf("c%d", i)))
	}

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.remove(c)
		}()
	}
	for i := 0; i < 200; i++ {
		bus.Publish(relay.Ready())
	}
	wg.Wait()
}
