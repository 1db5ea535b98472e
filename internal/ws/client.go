package ws

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"talking-pet/companion/internal/models"
	apperrors "talking-pet/companion/pkg/errors"
	wstypes "talking-pet/companion/pkg/ws"
)

// ServeWs upgrades the request and starts the client's pumps
func ServeWs(hub *Hub, c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.LogWarn(err, "Websocket upgrade failed")
		return
	}

	client := &Client{
		ID:   uuid.New().String(),
		Conn: conn,
		Send: make(chan []byte, sendBuffer),
		Hub:  hub,
	}

	hub.wg.Add(2)
	select {
	case hub.register <- client:
	case <-hub.ctx.Done():
		hub.wg.Add(-2)
		_ = conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// ReadPump decodes inbound frames until the connection closes
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.ctx.Done():
		}
		_ = c.Conn.Close()
		c.Hub.wg.Done()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.LogWarn(err, "Websocket read failed", "client", c.ID)
			}
			return
		}

		var message wstypes.InboundMessage
		if err := json.Unmarshal(data, &message); err != nil {
			c.reply(wstypes.TypeError, "malformed message")
			continue
		}
		c.handleMessage(message)
	}
}

func (c *Client) handleMessage(message wstypes.InboundMessage) {
	switch message.Type {
	case wstypes.TypePing:
		c.reply(wstypes.TypePong, nil)
	case wstypes.TypeChat:
		c.dispatch(func(ctx context.Context) error {
			return c.Hub.companion.SendMessage(ctx, message.Content)
		})
	case wstypes.TypeAction:
		action, ok := models.ParseAction(strings.TrimSpace(message.Content))
		if !ok {
			c.reply(wstypes.TypeError, "unknown action")
			return
		}
		c.dispatch(func(ctx context.Context) error {
			return c.Hub.companion.Action(ctx, action)
		})
	default:
		c.reply(wstypes.TypeError, "unknown message type")
	}
}

// dispatch runs a store command off the read loop. Its outcome reaches the
// client through the next state snapshot; failures are also echoed directly.
func (c *Client) dispatch(fn func(ctx context.Context) error) {
	c.Hub.wg.Add(1)
	go func() {
		defer c.Hub.wg.Done()
		if err := fn(c.Hub.ctx); err != nil {
			c.reply(wstypes.TypeError, apperrors.Message(err))
		}
	}()
}

// reply queues a direct message for this client. It is dropped if the
// client has been unregistered or its queue is full.
func (c *Client) reply(messageType string, content any) {
	frame, err := json.Marshal(wstypes.Message{Type: messageType, Content: content})
	if err != nil {
		return
	}
	c.enqueue(frame)
}

// enqueue offers frame without blocking and reports whether it was queued
func (c *Client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// WritePump drains the send queue and keeps the connection alive with pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
		c.Hub.wg.Done()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
