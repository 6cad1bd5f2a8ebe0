package wsclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"trivia-arena/internal/domain"
)

const bufferSize = 64

// Client is the player side of the room channel.
type Client struct {
	conn   *websocket.Conn
	events chan domain.Envelope
	send   chan domain.Event
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

// Dial connects to a trivia server websocket endpoint, e.g. ws://localhost:8080/ws.
func Dial(ctx context.Context, url string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransportUnavailable, err)
	}
	c := &Client{
		conn:   conn,
		events: make(chan domain.Envelope, bufferSize),
		send:   make(chan domain.Event, bufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go c.readLoop()
	go c.writeLoop()
	return c, nil
}

// Events delivers inbound envelopes in order. It is closed when the connection drops.
func (c *Client) Events() <-chan domain.Envelope { return c.events }

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

// Emit queues an outbound event. It fails with ErrTransportUnavailable when
// the connection is closed or backed up.
func (c *Client) Emit(eventType string, payload any) error {
	select {
	case <-c.done:
		return domain.ErrTransportUnavailable
	default:
	}
	select {
	case c.send <- domain.Event{Type: eventType, Payload: payload}:
		return nil
	default:
		return domain.ErrTransportUnavailable
	}
}

// SubmitAnswer reports a score delta without waiting for any acknowledgement.
// Submissions made while disconnected are dropped.
func (c *Client) SubmitAnswer(roomID string, pointsDelta int) {
	if err := c.Emit(domain.EventSubmitAnswer, domain.SubmitAnswerPayload{RoomID: roomID, PointsDelta: pointsDelta}); err != nil {
		c.logger.Debug("answer submission dropped", zap.String("room", roomID), zap.Int("delta", pointsDelta), zap.Error(err))
	}
}

func (c *Client) Close() error {
	c.shutdown()
	return c.conn.Close()
}

func (c *Client) shutdown() {
	c.once.Do(func() { close(c.done) })
}

func (c *Client) readLoop() {
	defer close(c.events)
	defer c.shutdown()
	for {
		var env domain.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			c.logger.Debug("connection closed", zap.Error(err))
			return
		}
		select {
		case c.events <- env:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case evt := <-c.send:
			if err := c.conn.WriteJSON(evt); err != nil {
				c.logger.Debug("write failed", zap.String("type", evt.Type), zap.Error(err))
				c.shutdown()
				_ = c.conn.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
