// Package hub keeps the set of live websocket clients and the groups they are subscribed to, and
// fans out events to them.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cinestream/watchparty/internal/metrics"
	"golang.org/x/exp/maps"
)

var (
	ErrClientNotFound    = errors.New("client not found")
	ErrAlreadyRegistered = errors.New("client already registered")
)

// Event is anything that can be sent to a client. The wire form is {"type": ..., "payload": ...}.
type Event interface {
	EventType() string
}

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func Marshal(e Event) ([]byte, error) {
	return json.Marshal(Output{
		Type:    e.EventType(),
		Payload: e,
	})
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	groups  map[string]map[string]*Client
	logger  *slog.Logger
}

func New(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		groups:  make(map[string]map[string]*Client),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.id]; ok {
		return ErrAlreadyRegistered
	}

	h.clients[c.id] = c
	metrics.ActiveConnections.Inc()
	return nil
}

// Unregister drops the client from every group and closes it.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	if ok {
		delete(h.clients, connID)
		for name, members := range h.groups {
			delete(members, connID)
			if len(members) == 0 {
				delete(h.groups, name)
			}
		}
	}
	h.mu.Unlock()

	if ok {
		metrics.ActiveConnections.Dec()
		c.Close()
	}
}

// CloseAll closes every registered client. Their read loops then fail and run the usual
// disconnect path.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}

func (h *Hub) AddToGroup(group, connID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return ErrClientNotFound
	}

	members, ok := h.groups[group]
	if !ok {
		members = make(map[string]*Client)
		h.groups[group] = members
	}
	members[connID] = c

	return nil
}

func (h *Hub) RemoveFromGroup(group, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.groups[group]
	if !ok {
		return
	}

	delete(members, connID)
	if len(members) == 0 {
		delete(h.groups, group)
	}
}

func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.groups[group])
}

func (h *Hub) GroupMembers(group string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return maps.Keys(h.groups[group])
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

func (h *Hub) SendToConn(ctx context.Context, connID string, e Event) error {
	data, err := Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", e.EventType(), err)
	}

	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return ErrClientNotFound
	}

	h.deliver(ctx, e.EventType(), []*Client{c}, data)
	return nil
}

func (h *Hub) SendToGroup(ctx context.Context, group string, e Event) error {
	return h.SendToGroupExcept(ctx, group, "", e)
}

// SendToGroupExcept sends e to every member of group except exceptConnID. The payload is encoded
// once and recipients are snapshotted before any send, so no lock is held while enqueueing.
func (h *Hub) SendToGroupExcept(ctx context.Context, group, exceptConnID string, e Event) error {
	data, err := Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", e.EventType(), err)
	}

	h.mu.RLock()
	recipients := make([]*Client, 0, len(h.groups[group]))
	for id, c := range h.groups[group] {
		if id == exceptConnID {
			continue
		}
		recipients = append(recipients, c)
	}
	h.mu.RUnlock()

	h.deliver(ctx, e.EventType(), recipients, data)
	return nil
}

func (h *Hub) deliver(ctx context.Context, eventType string, recipients []*Client, data []byte) {
	for _, c := range recipients {
		if c.enqueue(data) {
			metrics.Events.WithLabelValues(eventType).Inc()
			continue
		}

		// Either already closed or too slow to keep up. Closing lets the read side notice and
		// run the normal disconnect path.
		metrics.DroppedMessages.Inc()
		h.logger.WarnContext(ctx, "dropping message for slow client",
			"conn_id", c.id,
			"type", eventType,
		)
		c.Close()
	}
}
