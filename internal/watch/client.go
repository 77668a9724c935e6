// Package watch is a read-only terminal spectator for a running table. It
// connects over the same WebSocket protocol players use, sends watch, and
// renders the public snapshots it receives.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/holdemtables/internal/game"
	"github.com/lox/holdemtables/internal/server"
)

// Event is one decoded server message.
type Event any

// SnapshotEvent carries a new public view of the table.
type SnapshotEvent struct{ Snapshot game.Snapshot }

// TickEvent carries the acting player's remaining time.
type TickEvent struct{ Tick server.TimerTickData }

// ResultEvent carries a finished hand.
type ResultEvent struct{ Result game.HandResult }

// ErrorEvent carries an error reported by the server.
type ErrorEvent struct{ Err server.ErrorData }

// Client is a watching connection.
type Client struct {
	conn   *websocket.Conn
	events chan Event
	logger *log.Logger

	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
	err       error
}

// Dial connects to the server at url (ws://host:port/ws) and starts watching
// tableID.
func Dial(ctx context.Context, url, tableID string, logger *log.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	msg, err := server.NewMessage(server.MessageTypeWatch, server.WatchData{TableID: tableID})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := conn.WriteJSON(msg); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send watch: %w", err)
	}

	c := &Client{
		conn:   conn,
		events: make(chan Event, 64),
		logger: logger.WithPrefix("watch"),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Events returns decoded server messages. It is closed when the connection
// ends; Err then reports why.
func (c *Client) Events() <-chan Event { return c.events }

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	<-c.done
	return c.err
}

// Close closes the connection.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		err = c.conn.Close()
	})
	return err
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.events)

	for {
		var msg server.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.err = err
			}
			return
		}
		ev, err := decode(&msg)
		if err != nil {
			c.logger.Warn("Dropping malformed message", "type", msg.Type, "error", err)
			continue
		}
		if ev == nil {
			continue
		}
		select {
		case c.events <- ev:
		case <-c.stop:
			return
		}
	}
}

func decode(msg *server.Message) (Event, error) {
	switch msg.Type {
	case server.MessageTypeTableSnapshot:
		var snap game.Snapshot
		if err := json.Unmarshal(msg.Data, &snap); err != nil {
			return nil, err
		}
		return SnapshotEvent{snap}, nil
	case server.MessageTypeTimerTick:
		var tick server.TimerTickData
		if err := json.Unmarshal(msg.Data, &tick); err != nil {
			return nil, err
		}
		return TickEvent{tick}, nil
	case server.MessageTypeHandResult:
		var res game.HandResult
		if err := json.Unmarshal(msg.Data, &res); err != nil {
			return nil, err
		}
		return ResultEvent{res}, nil
	case server.MessageTypeError:
		var e server.ErrorData
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			return nil, err
		}
		return ErrorEvent{e}, nil
	default:
		return nil, nil
	}
}
