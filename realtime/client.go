package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scanradar/scanradar/auth"
	"github.com/scanradar/scanradar/httpx"
	"github.com/scanradar/scanradar/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// dashboards are served from a different origin than the API
	CheckOrigin: func(*http.Request) bool { return true },
}

// Client is one authenticated dashboard connection, bound to a user identity
// for its whole lifetime.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID int64
	send   chan Message
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debugf("realtime.read: %s", err)
			}
			return
		}

		switch msg.Event {
		case EventJoinCampaign:
			c.hub.joinRoom(context.Background(), c, msg.CampaignID)
		case EventLeaveCampaign:
			c.hub.leaveRoom(c, msg.CampaignID)
		default:
			log.Debugf("realtime.read: unknown event %q", msg.Event)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Handler upgrades dashboard connections. The handshake token is mandatory
// and verified before the upgrade; afterwards the connection can only join
// rooms its user owns.
func Handler(hub *Hub, tokens auth.Tokens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.URL.Query().Get("token")
		if tokenString == "" {
			header := r.Header.Get("Authorization")
			if len(header) > 7 && header[:7] == "Bearer " {
				tokenString = header[7:]
			}
		}
		if tokenString == "" {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "realtime.handshake.missing_token")
			return
		}

		claims, err := tokens.Verify(tokenString)
		if err != nil {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "realtime.handshake.invalid_token")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the error response
			log.Debugf("realtime.handshake.upgrade: %s", err)
			return
		}

		client := &Client{
			hub:    hub,
			conn:   conn,
			userID: claims.UserID,
			send:   make(chan Message, 64),
		}
		hub.register(client)

		go client.writePump()
		go client.readPump()
	}
}
