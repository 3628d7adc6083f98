package feed

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/MapLabeler/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one websocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// SecurityConfig limits who may connect and what they may send.
type SecurityConfig struct {
	// AllowedOrigins lists accepted Origin headers: exact origins, "*" or
	// "*.example.com". Requests without an Origin header are not from a
	// browser and are always accepted.
	AllowedOrigins []string
	// MaxMessageSize bounds a client command in bytes.
	MaxMessageSize int64
}

// DefaultSecurityConfig accepts local browser origins.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		AllowedOrigins: []string{"http://localhost", "http://127.0.0.1", "*.localhost"},
		MaxMessageSize: 64 * 1024,
	}
}

// isOriginAllowed checks the origin against the allowed list. Exact origins
// also match with any port.
func isOriginAllowed(origin string, allowedOrigins []string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" || origin == allowed || strings.HasPrefix(origin, allowed+":") {
			return true
		}
		if strings.HasPrefix(allowed, "*.") {
			host := origin
			if i := strings.Index(host, "://"); i >= 0 {
				host = host[i+3:]
			}
			if j := strings.LastIndex(host, ":"); j >= 0 {
				host = host[:j]
			}
			if strings.HasSuffix(host, allowed[1:]) || host == allowed[2:] {
				return true
			}
		}
	}
	return false
}

// ServeWS upgrades a request to a websocket client of h.
func ServeWS(h *Hub, cfg SecurityConfig) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if !isOriginAllowed(origin, cfg.AllowedOrigins) {
				logging.WarnContext(r.Context(), "websocket origin rejected", "origin", origin)
				return false
			}
			return true
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.ErrorContext(r.Context(), "websocket upgrade failed", "error", err)
			return
		}
		if cfg.MaxMessageSize > 0 {
			conn.SetReadLimit(cfg.MaxMessageSize)
		}

		client := &Client{
			hub:  h,
			conn: conn,
			send: make(chan []byte, 256),
		}

		select {
		case h.register <- client:
		case <-h.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

// readPump decodes commands from the connection and queues them on the hub.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error("websocket unexpected close", "error", err)
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.hub.sendTo(c, ErrorMessage{Type: TypeError, Message: "invalid command: " + err.Error(), Timestamp: timestamp()})
			continue
		}
		if !c.hub.enqueue(clientCommand{client: c, cmd: cmd}) {
			return
		}
	}
}

// writePump writes queued messages to the connection, one frame each, and
// keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
