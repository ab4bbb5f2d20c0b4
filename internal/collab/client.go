package collab

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024
	sendBufferSize = 256
)

// Client couples one websocket connection to its participant state. The conn
// is only touched by the read and write pumps; the hub communicates with the
// client solely through the send channel.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	participant *Participant
	logger      *zap.Logger

	// closed is set by the hub goroutine once the disconnect has been
	// processed and send has been closed. Frames from the connection can
	// still be queued behind the unregister; the hub drops them.
	closed bool
}

// Participant exposes the participant attached to this connection.
func (c *Client) Participant() *Participant {
	return c.participant
}

// deliver queues a frame without blocking. Frames to a saturated connection
// are dropped so one slow receiver cannot stall the room.
func (c *Client) deliver(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) close() {
	close(c.send)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read failed",
					zap.String("connection_id", c.participant.ConnectionID),
					zap.Error(err))
			}
			return
		}

		var envelope clientEnvelope
		if err := json.Unmarshal(message, &envelope); err != nil {
			c.logger.Debug("dropping malformed frame",
				zap.String("connection_id", c.participant.ConnectionID),
				zap.Error(err))
			continue
		}
		if envelope.Event == "" {
			continue
		}

		c.hub.inbound <- inboundFrame{sender: c, envelope: envelope}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
