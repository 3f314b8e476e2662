package collaboration

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"docs-editor/internal/middleware"
	"docs-editor/internal/models"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second // must be less than pongWait
)

// Client is the websocket side of a gateway connection.
// Learning: One goroutine reads, one writes. gorilla/websocket allows at most
// one concurrent reader and one concurrent writer per connection.
type Client struct {
	conn    *websocket.Conn
	session *Connection

	send      chan []byte // Buffered channel for outbound messages
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, sendBuffer int) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// Deliver queues an event for the write pump.
// It never blocks: a full buffer means the client is too slow, so the
// message is dropped and the connection is torn down.
func (c *Client) Deliver(event *models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.deliverFrame(data)
}

// deliverFrame queues an already encoded event. Fan-out shares one frame
// across recipients, so data must not be modified afterwards.
func (c *Client) deliverFrame(data []byte) error {
	select {
	case <-c.done:
		return ErrSinkClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrSinkClosed
	default:
		log.Printf("⚠️  Connection %s buffer full, closing connection", c.id())
		c.Close()
		return ErrSlowConsumer
	}
}

// Close signals the write pump to send a close frame and hang up.
// The read pump then fails and runs the normal disconnect cleanup.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

func (c *Client) id() string {
	if c.session == nil {
		return "pending"
	}
	return c.session.ID()
}

// ReadPump reads events from the websocket until it fails or closes.
// Inbound events are handled one at a time, which gives per-sender FIFO.
func (c *Client) ReadPump(ctx context.Context, maxMessageBytes int64) {
	defer func() {
		c.session.Close(ctx)
		c.Close()
		c.conn.Close()
	}()

	if maxMessageBytes > 0 {
		c.conn.SetReadLimit(maxMessageBytes)
	}
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error on %s: %v", c.id(), err)
			}
			return
		}

		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.process(ctx, message)
	}
}

func (c *Client) process(ctx context.Context, message []byte) {
	msgCtx, span := middleware.StartSpan(ctx, "WebSocket.ProcessMessage",
		attribute.String("conn.id", c.id()),
		attribute.Int("message.size", len(message)),
	)
	defer span.End()

	var event models.Event
	if err := json.Unmarshal(message, &event); err != nil {
		middleware.AddSpanError(msgCtx, err)
		c.Deliver(models.NewErrorEvent("", err))
		return
	}
	span.SetAttributes(
		attribute.String("event.type", string(event.Type)),
		attribute.String("document.id", event.DocumentID),
	)

	if err := c.session.Handle(msgCtx, &event); err != nil {
		// Protocol violations only concern this connection
		middleware.AddSpanError(msgCtx, err)
		c.Deliver(models.NewErrorEvent(event.DocumentID, err))
	}
}

// WritePump drains the send queue onto the websocket and keeps it alive with pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			// One event per text frame; clients parse frames individually
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
