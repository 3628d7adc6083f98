// Package feed serves live label statuses over websockets.
//
// Clients receive a snapshot of every label when they connect and a status
// message whenever a label changes. They may send commands that edit the
// session; the hub applies them one at a time on its own goroutine and
// broadcasts the labels they changed.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	apperrors "github.com/FocuswithJustin/MapLabeler/core/errors"
	"github.com/FocuswithJustin/MapLabeler/core/template"
	"github.com/FocuswithJustin/MapLabeler/internal/logging"
	"github.com/FocuswithJustin/MapLabeler/internal/session"
)

// clientCommand is a command with the client that sent it.
type clientCommand struct {
	client *Client
	cmd    Command
}

// Hub maintains active websocket connections, applies client commands and
// broadcasts label changes.
type Hub struct {
	session    *session.Session
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	commands   chan clientCommand
	resolved   chan []session.LabelLocation
	done       chan struct{}
	// onChange runs on the hub goroutine after labels change.
	onChange   func()
	mu         sync.RWMutex
	wg         sync.WaitGroup
}

// NewHub creates a hub for s.
func NewHub(s *session.Session) *Hub {
	return &Hub{
		session:    s,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		commands:   make(chan clientCommand, 64),
		resolved:   make(chan []session.LabelLocation, 16),
		done:       make(chan struct{}),
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run is the hub's event loop. It returns when ctx is done, after closing
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			logging.FeedEvent("client_connected", n)
			h.sendTo(client, NewSnapshotMessage(h.session.Labels()))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			logging.FeedEvent("client_disconnected", n)

		case message := <-h.broadcast:
			h.fanOut(message)

		case cc := <-h.commands:
			h.handle(ctx, cc)

		case labels := <-h.resolved:
			h.broadcastLabels(labels)
		}
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	h.wg.Wait()
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

func (h *Hub) handle(ctx context.Context, cc clientCommand) {
	logging.FeedEvent("command", h.ClientCount(), "op", cc.cmd.Op)
	if err := cc.cmd.Validate(); err != nil {
		h.sendTo(cc.client, newError(cc.cmd, err))
		return
	}
	switch cc.cmd.Op {
	case OpSnapshot:
		h.sendTo(cc.client, NewSnapshotMessage(h.session.Labels()))
		return
	case OpResolve:
		// Resolution may wait on collaborators; the result comes back
		// through h.resolved so it is broadcast from this loop.
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			l, err := h.session.ResolveTemplate(ctx, cc.cmd.MergeKey)
			if errors.Is(err, template.ErrStale) {
				return
			}
			if err != nil {
				h.sendTo(cc.client, newError(cc.cmd, err))
				return
			}
			select {
			case h.resolved <- []session.LabelLocation{l}:
			case <-ctx.Done():
			}
		}()
		return
	}

	labels, err := Apply(h.session, cc.cmd)
	if err != nil {
		h.sendTo(cc.client, newError(cc.cmd, err))
		return
	}
	h.broadcastLabels(labels)
}

func newError(cmd Command, err error) ErrorMessage {
	return ErrorMessage{Type: TypeError, Command: cmd, Code: apperrors.Code(err), Message: err.Error(), Timestamp: timestamp()}
}

// Submit queues a command as if a client without a connection had sent it.
// It reports false once the hub has stopped.
func (h *Hub) Submit(cmd Command) bool {
	return h.enqueue(clientCommand{cmd: cmd})
}

func (h *Hub) enqueue(cc clientCommand) bool {
	select {
	case h.commands <- cc:
		return true
	case <-h.done:
		return false
	}
}

// Done is closed when Run returns.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Publish broadcasts the given labels to every client.
func (h *Hub) Publish(labels []session.LabelLocation) {
	for _, l := range labels {
		h.Broadcast(NewStatusMessage(l))
	}
}

func (h *Hub) broadcastLabels(labels []session.LabelLocation) {
	if h.onChange != nil && len(labels) > 0 {
		h.onChange()
	}
	for _, l := range labels {
		data, err := json.Marshal(NewStatusMessage(l))
		if err != nil {
			logging.Error("failed to marshal status message", "error", err)
			continue
		}
		h.fanOut(data)
	}
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Error("failed to marshal feed message", "error", err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		logging.Warn("broadcast channel full, dropping message")
	}
}

func (h *Hub) fanOut(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			// Client channel full, disconnect
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// sendTo sends a message to one client. A nil client is a Submit caller.
func (h *Hub) sendTo(client *Client, msg any) {
	if client == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Error("failed to marshal feed message", "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[client] {
		return
	}
	select {
	case client.send <- data:
	default:
		close(client.send)
		delete(h.clients, client)
	}
}
