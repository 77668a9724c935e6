package server

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lox/holdemtables/internal/game"
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	id        string
	conn      *websocket.Conn
	send      chan *Message
	server    *Server
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu       sync.RWMutex
	playerID string
	seated   map[string]bool
	watching map[string]bool
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, logger *log.Logger, server *Server) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.Must(uuid.NewV7()).String()

	return &Connection{
		id:       id,
		conn:     conn,
		send:     make(chan *Message, 256),
		server:   server,
		logger:   logger.WithPrefix("conn").With("conn", id),
		ctx:      ctx,
		cancel:   cancel,
		seated:   make(map[string]bool),
		watching: make(map[string]bool),
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// ID returns the connection id the tables bind seats to.
func (c *Connection) ID() string { return c.id }

// Done is closed when the connection ends.
func (c *Connection) Done() <-chan struct{} { return c.ctx.Done() }

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for the client. It never blocks: a client
// that cannot keep up is disconnected.
func (c *Connection) SendMessage(msg *Message) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		c.logger.Warn("Connection send buffer full, closing connection", "player", c.Player())
		_ = c.Close()
		return ErrConnectionClosed
	}
}

func (c *Connection) reply(msgType MessageType, data any) {
	msg, err := NewMessage(msgType, data)
	if err != nil {
		c.logger.Error("Failed to create message", "type", msgType, "error", err)
		return
	}
	_ = c.SendMessage(msg)
}

// Player returns the player this connection acts for, if any.
func (c *Connection) Player() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID
}

// Seated returns the tables this connection holds a seat at.
func (c *Connection) Seated() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.seated))
}

// viewerAt returns who this connection sees tableID as, and whether it
// follows that table at all. Watchers see the public view.
func (c *Connection) viewerAt(tableID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.seated[tableID] {
		return c.playerID, true
	}
	return "", c.watching[tableID]
}

func (c *Connection) bindPlayer(playerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playerID != "" && c.playerID != playerID {
		return false
	}
	c.playerID = playerID
	return true
}

func (c *Connection) setSeated(tableID string, seated bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seated {
		c.seated[tableID] = true
	} else {
		delete(c.seated, tableID)
	}
}

func (c *Connection) setWatching(tableID string, watching bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if watching {
		c.watching[tableID] = true
	} else {
		delete(c.watching, tableID)
	}
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Upper bound on a wallet round trip while joining
	requestTimeout = 5 * time.Second
)

var ErrConnectionClosed = errors.New("connection closed")

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}
		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "player", c.Player())

	switch msg.Type {
	case MessageTypeJoinTable:
		var data JoinTableData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse join data")
			return
		}
		c.handleJoinTable(data)

	case MessageTypeAction:
		var data ActionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse action data")
			return
		}
		c.handleAction(data)

	case MessageTypeLeaveTable:
		var data LeaveTableData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse leave data")
			return
		}
		c.handleLeaveTable(data)

	case MessageTypeListTables:
		c.reply(MessageTypeTableList, TableListData{Tables: c.server.registry.List()})

	case MessageTypeWatch, MessageTypeUnwatch:
		var data WatchData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse watch data")
			return
		}
		c.handleWatch(data, msg.Type == MessageTypeWatch)

	default:
		c.sendError("unknown_message_type", "Unknown message type: "+msg.Type.String())
	}
}

// sendError sends an error message to the client
func (c *Connection) sendError(code, message string) {
	c.reply(MessageTypeError, ErrorData{Code: code, Message: message})
}

func (c *Connection) handleJoinTable(data JoinTableData) {
	playerID := strings.TrimSpace(data.PlayerID)
	if playerID == "" {
		c.sendError("invalid_message", "Player id required")
		return
	}
	if !c.bindPlayer(playerID) {
		c.sendError("player_mismatch", "Connection already plays as "+c.Player())
		return
	}
	name := data.Name
	if name == "" {
		name = playerID
	}
	c.logger.Info("Join table request", "table", data.TableID, "player", playerID, "buy_in", data.BuyIn)

	ctx, cancel := context.WithTimeout(c.ctx, requestTimeout)
	defer cancel()
	snap, err := c.server.registry.Join(ctx, data.TableID, playerID, name, c.id, data.BuyIn)
	if err != nil {
		c.logger.Info("Join rejected", "table", data.TableID, "player", playerID, "error", err)
		c.sendError(errorCode(err), err.Error())
		return
	}

	c.setSeated(data.TableID, true)
	c.reply(MessageTypeTableSnapshot, snap)
}

func (c *Connection) handleAction(data ActionData) {
	playerID := c.Player()
	if playerID == "" {
		c.sendError("not_seated", "Join a table first")
		return
	}
	action, err := game.ParseAction(data.Action)
	if err != nil {
		c.sendError(errorCode(err), err.Error())
		return
	}

	// Accepted actions are answered by the table broadcast.
	if err := c.server.registry.Act(data.TableID, playerID, action, data.Amount); err != nil {
		c.logger.Debug("Action rejected", "table", data.TableID, "player", playerID, "action", action, "error", err)
		c.sendError(errorCode(err), err.Error())
	}
}

func (c *Connection) handleLeaveTable(data LeaveTableData) {
	playerID := c.Player()
	if playerID == "" {
		c.sendError("not_seated", "Join a table first")
		return
	}
	c.logger.Info("Leave table request", "table", data.TableID, "player", playerID)

	cashout, err := c.server.registry.Leave(data.TableID, playerID)
	if err != nil {
		c.sendError(errorCode(err), err.Error())
		return
	}
	c.setSeated(data.TableID, false)
	c.reply(MessageTypeTableLeft, TableLeftData{TableID: data.TableID, Cashout: cashout})
}

func (c *Connection) handleWatch(data WatchData, watch bool) {
	if !watch {
		c.setWatching(data.TableID, false)
		return
	}
	table, err := c.server.registry.Table(data.TableID)
	if err != nil {
		c.sendError(errorCode(err), err.Error())
		return
	}
	c.setWatching(data.TableID, true)
	c.reply(MessageTypeTableSnapshot, table.View(""))
}
