package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/itsDrac/e-auc-bidding/pkg/config"
	"github.com/itsDrac/e-auc-bidding/pkg/logger"
	"github.com/itsDrac/e-auc-bidding/pkg/validator"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Any origin; the access token authenticates the viewer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades an authenticated request and lets the viewer join lot
// and auction groups of its own tenant.
type WSHandler struct {
	hub *Hub
	log *logger.Logger
}

func NewWSHandler(hub *Hub, log *logger.Logger) *WSHandler {
	return &WSHandler{
		hub: hub,
		log: log.Component("ws"),
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(config.UserClaimKey).(*config.UserClaims)
	if !ok || claims == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	client := h.hub.Register(claims.TenantID, claims.UserID)
	defer h.hub.Unregister(client)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(conn, client)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		h.handleMessage(client, data)
	}

	h.hub.Unregister(client)
	<-writerDone
}

func (h *WSHandler) handleMessage(c *Client, data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.reply(c, Outbound{Type: MsgError, Data: ErrorPayload{Message: "malformed message"}})
		return
	}
	if err := validator.GetValidator().Struct(msg); err != nil {
		h.reply(c, Outbound{Type: MsgError, Data: ErrorPayload{Message: "expected join or leave with scope lot|auction and a uuid id"}})
		return
	}
	id := uuid.MustParse(msg.ID)

	switch msg.Type {
	case "join":
		h.hub.Join(c, msg.Scope, id)
		h.reply(c, Outbound{Type: MsgJoined, Data: GroupAck{Scope: msg.Scope, ID: msg.ID}})
	case "leave":
		h.hub.Leave(c, msg.Scope, id)
		h.reply(c, Outbound{Type: MsgLeft, Data: GroupAck{Scope: msg.Scope, ID: msg.ID}})
	}
}

func (h *WSHandler) reply(c *Client, msg Outbound) {
	if !h.hub.Enqueue(c, msg) {
		h.hub.Unregister(c)
	}
}

func (h *WSHandler) writeLoop(conn *websocket.Conn, c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.Send():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		case <-c.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			_ = conn.Close()
			return
		}
	}
}
