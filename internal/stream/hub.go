// Package stream pushes radar rows, status updates and events to websocket
// clients and turns their messages into user intents.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"arbradar/internal/arbitrage"
	"arbradar/internal/model"
	"arbradar/internal/radar"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufferSize = 256
	commandTimeout = 5 * time.Second
)

var errUnknownAction = errors.New("unknown action")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Commander executes user intents received from clients.
type Commander interface {
	Start(ctx context.Context) error
	Stop()
	RefreshPairs(ctx context.Context) error
	ApplyFilters(ctx context.Context, f model.FilterSettings) error
	ToggleFavorite(ctx context.Context, pair string) (bool, error)
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans radar output out to websocket clients. It is the controller's row
// sink, update listener and event sink.
type Hub struct {
	logger     *slog.Logger
	table      *radar.Table
	commander  Commander
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex
	ctx        context.Context
}

func NewHub(logger *slog.Logger, table *radar.Table, commander Commander) *Hub {
	return &Hub{
		logger:     logger.With("component", "ws_hub"),
		table:      table,
		commander:  commander,
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, sendBufferSize),
		register:   make(chan *client),
		unregister: make(chan *client),
		ctx:        context.Background(),
	}
}

// SetCommander sets the intent handler. Used when the commander is built
// after the hub.
func (h *Hub) SetCommander(c Commander) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commander = c
}

// Run serves registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	h.mu.Lock()
	h.ctx = ctx
	h.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("Client connected", "total_clients", total)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("Client disconnected", "total_clients", total)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.logger.Warn("Dropping message for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) publish(msg []byte, err error) {
	if err != nil {
		h.logger.Error("Failed to encode message", "error", err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("Broadcast queue full, dropping message")
	}
}

// UpdateRows stores the rows and broadcasts either the full table or only the
// rows that changed.
func (h *Hub) UpdateRows(rows []model.OpportunityRow) {
	change := h.table.Apply(rows)
	if !change.Reset && len(change.Changed) == 0 {
		return
	}
	h.publish(rowsMessage(rows, change))
}

func (h *Hub) OnUpdate(u arbitrage.Update) {
	h.publish(updateMessage(u))
}

func (h *Hub) Emit(e model.Event) {
	h.publish(eventMessage(e))
}

// HandleWS upgrades the request and registers the client.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Websocket upgrade failed", "error", err)
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}
	select {
	case h.register <- c:
	case <-h.baseContext().Done():
		conn.Close()
		return
	}

	if msg, err := rowsMessage(h.table.Rows(), radar.Change{Reset: true}); err == nil {
		c.trySend(msg)
	}

	go c.writePump()
	go c.readPump()
}

func (c *client) trySend(msg []byte) {
	defer func() {
		// send may already be closed by the hub.
		_ = recover()
	}()
	select {
	case c.send <- msg:
	default:
	}
}

func (h *Hub) baseContext() context.Context {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ctx
}

func (h *Hub) currentCommander() Commander {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.commander
}

// dispatch executes one client command.
func (h *Hub) dispatch(cmd command) error {
	commander := h.currentCommander()
	if commander == nil {
		return fmt.Errorf("%s: no command handler", cmd.Action)
	}
	base := h.baseContext()

	switch cmd.Action {
	case ActionStart:
		// The scan outlives the request, so it runs on the hub context.
		return commander.Start(base)
	case ActionStop:
		commander.Stop()
		return nil
	case ActionRefresh:
		ctx, cancel := context.WithTimeout(base, commandTimeout)
		defer cancel()
		return commander.RefreshPairs(ctx)
	case ActionFilters:
		if cmd.Filters == nil {
			return errors.New("filters: missing settings")
		}
		ctx, cancel := context.WithTimeout(base, commandTimeout)
		defer cancel()
		return commander.ApplyFilters(ctx, *cmd.Filters)
	case ActionFavorite:
		if cmd.Pair == "" {
			return errors.New("favorite: missing pair")
		}
		ctx, cancel := context.WithTimeout(base, commandTimeout)
		defer cancel()
		_, err := commander.ToggleFavorite(ctx, cmd.Pair)
		return err
	}
	return fmt.Errorf("%w: %q", errUnknownAction, cmd.Action)
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.baseContext().Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("Unexpected close error", "error", err)
			}
			return
		}

		var cmd command
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.reply(errorMessage("", fmt.Errorf("invalid command: %w", err)))
			continue
		}
		if err := c.hub.dispatch(cmd); err != nil {
			c.hub.logger.Warn("Command rejected", "action", cmd.Action, "error", err)
			c.reply(errorMessage(cmd.Action, err))
		}
	}
}

func (c *client) reply(msg []byte, err error) {
	if err != nil {
		return
	}
	c.trySend(msg)
}

func (c *client) writePump() {
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
