package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"hanotex/models"
	"hanotex/monitoring"
)

// Hub is the subscription registry for the realtime relay, keyed by auction
// id so clients only receive events for auctions they are viewing. Delivery
// is best effort: broadcasts never block and slow subscribers are evicted.
// The hub is not a system of record; clients reconcile against the read
// model.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]map[*Client]struct{}
	sendBuffer int
	monitor    *monitoring.Monitor
	closed     bool
}

// Client is one subscriber of a single auction's channel.
type Client struct {
	hub       *Hub
	auctionID string
	send      chan []byte
	closed    bool
}

func NewHub(sendBuffer int, monitor *monitoring.Monitor) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		sendBuffer: sendBuffer,
		monitor:    monitor,
	}
}

// Join subscribes a new client to an auction's channel.
func (h *Hub) Join(auctionID string) *Client {
	c := &Client{
		hub:       h,
		auctionID: auctionID,
		send:      make(chan []byte, h.sendBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		c.closed = true
		close(c.send)
		return c
	}

	room, ok := h.rooms[auctionID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[auctionID] = room
	}
	room[c] = struct{}{}
	h.monitor.TrackRelayClient(1)
	return c
}

// Leave unsubscribes the client and closes its send channel.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked detaches a client. Caller holds h.mu.
func (h *Hub) removeLocked(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)

	if room, ok := h.rooms[c.auctionID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.auctionID)
		}
	}
	h.monitor.TrackRelayClient(-1)
}

// Receive returns the client's outbound message stream. The channel is
// closed when the client leaves or is evicted.
func (c *Client) Receive() <-chan []byte {
	return c.send
}

// Broadcast pushes a relay message to every subscriber of the auction.
// Fire-and-forget: with no subscribers the message is silently dropped,
// and a subscriber whose buffer is full is evicted rather than awaited.
func (h *Hub) Broadcast(auctionID string, msg models.RelayMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("relay: marshal failed", "type", msg.Type, "error", err)
		return
	}
	h.broadcastRaw(auctionID, data, nil)
}

// BroadcastRaw rebroadcasts an opaque payload verbatim to the auction's
// subscribers, excluding the sender.
func (h *Hub) BroadcastRaw(auctionID string, data []byte, sender *Client) {
	h.broadcastRaw(auctionID, data, sender)
}

func (h *Hub) broadcastRaw(auctionID string, data []byte, exclude *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[auctionID]
	if !ok {
		return
	}

	for c := range room {
		if c == exclude {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Evict instead of blocking; the client resyncs on reconnect.
			h.monitor.TrackRelayDropped()
			h.removeLocked(c)
		}
	}
}

// ClientCount returns the number of subscribers for one auction.
func (h *Hub) ClientCount(auctionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[auctionID])
}

// Counts returns subscriber counts per auction.
func (h *Hub) Counts() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	counts := make(map[string]int, len(h.rooms))
	for id, room := range h.rooms {
		counts[id] = len(room)
	}
	return counts
}

// Close evicts all clients. Further joins get an already closed client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, room := range h.rooms {
		for c := range room {
			if !c.closed {
				c.closed = true
				close(c.send)
				h.monitor.TrackRelayClient(-1)
			}
		}
	}
	h.rooms = make(map[string]map[*Client]struct{})
}
