package realtime

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pocketbase/pocketbase/core"

	"hanotex/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSHandler upgrades relay connections and wires them into the hub. Whatever
// a connected client sends is rebroadcast verbatim to its room peers; the
// stream carries no delivery guarantee.
type WSHandler struct {
	hub    *Hub
	config *config.Config
}

func NewWSHandler(hub *Hub, cfg *config.Config) *WSHandler {
	return &WSHandler{hub: hub, config: cfg}
}

// Serve handles GET /api/v1/auctions/{auctionId}/live.
func (h *WSHandler) Serve(e *core.RequestEvent) error {
	auctionID := e.Request.PathValue("auctionId")
	if auctionID == "" {
		return e.BadRequestError("Missing auction id", nil)
	}

	conn, err := upgrader.Upgrade(e.Response, e.Request, nil)
	if err != nil {
		return e.BadRequestError("Upgrade failed", err)
	}

	client := h.hub.Join(auctionID)
	go h.writePump(conn, client)
	h.readPump(conn, client, auctionID)
	return nil
}

func (h *WSHandler) readPump(conn *websocket.Conn, client *Client, auctionID string) {
	defer func() {
		h.hub.Leave(client)
		conn.Close()
	}()

	pongWait := h.config.RelayPongWait
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("relay: read closed", "auctionId", auctionID, "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		h.hub.BroadcastRaw(auctionID, data, client)
	}
}

func (h *WSHandler) writePump(conn *websocket.Conn, client *Client) {
	pingInterval := h.config.RelayPongWait * 9 / 10
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.Receive():
			conn.SetWriteDeadline(time.Now().Add(h.config.RelayWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.config.RelayWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
