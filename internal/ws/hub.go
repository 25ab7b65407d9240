// Package ws pushes newly stored messages to the participants' open websocket
// connections, optionally relaying them between server instances.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pliu/pairchat/internal/metrics"
	"github.com/pliu/pairchat/internal/models"
)

const (
	EventMessage = "message"

	eventBuffer    = 256
	publishTimeout = 5 * time.Second
)

// Event is what the hub delivers and what the relay carries between
// instances.
type Event struct {
	Type       string          `json:"type"`
	Origin     string          `json:"origin,omitempty"`
	Recipients []string        `json:"recipients"`
	Message    *models.Message `json:"message,omitempty"`
}

// frame is the part of an event a client sees.
type frame struct {
	Type    string          `json:"type"`
	Message *models.Message `json:"message,omitempty"`
}

// Relay moves events between instances of the service.
type Relay interface {
	Publish(ctx context.Context, evt Event) error
	// Subscribe calls fn for every event until ctx is done.
	Subscribe(ctx context.Context, fn func(Event)) error
}

type Hub struct {
	// Connected clients by user id. Only Run writes it.
	clientsLock sync.RWMutex
	clients     map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	outgoing   chan Event
	done       chan struct{}

	relay      Relay
	instanceID string

	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewHub(log zerolog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, eventBuffer),
		outgoing:   make(chan Event, eventBuffer),
		done:       make(chan struct{}),
		instanceID: uuid.NewString(),
		log:        log.With().Str("component", "ws").Logger(),
		metrics:    m,
	}
}

// SetRelay must be called before Run.
func (h *Hub) SetRelay(relay Relay) {
	h.relay = relay
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	if h.relay != nil {
		go h.subscribe(ctx)
		go h.publish(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			h.clientsLock.Lock()
			for userID, conns := range h.clients {
				for c := range conns {
					close(c.send)
					h.metrics.ClientDisconnected()
				}
				delete(h.clients, userID)
			}
			h.clientsLock.Unlock()
			return
		case c := <-h.register:
			h.clientsLock.Lock()
			if _, ok := h.clients[c.userID]; !ok {
				h.clients[c.userID] = make(map[*Client]bool)
			}
			h.clients[c.userID][c] = true
			h.clientsLock.Unlock()
			h.metrics.ClientConnected()
			h.log.Debug().Str("user_id", c.userID).Msg("Client connected")
		case c := <-h.unregister:
			h.remove(c)
		case evt := <-h.broadcast:
			h.deliver(evt)
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()
	conns, ok := h.clients[c.userID]
	if !ok || !conns[c] {
		return
	}
	delete(conns, c)
	close(c.send)
	if len(conns) == 0 {
		delete(h.clients, c.userID)
	}
	h.metrics.ClientDisconnected()
	h.log.Debug().Str("user_id", c.userID).Msg("Client disconnected")
}

func (h *Hub) deliver(evt Event) {
	payload, err := json.Marshal(frame{Type: evt.Type, Message: evt.Message})
	if err != nil {
		h.log.Err(err).Msg("Failed to marshal live event")
		return
	}
	var slow []*Client
	h.clientsLock.RLock()
	for _, userID := range evt.Recipients {
		for c := range h.clients[userID] {
			select {
			case c.send <- payload:
			default:
				slow = append(slow, c)
			}
		}
	}
	h.clientsLock.RUnlock()
	for _, c := range slow {
		h.log.Warn().Str("user_id", c.userID).Msg("Dropping client with full send buffer")
		h.remove(c)
	}
}

// Connected returns the number of open connections of userID.
func (h *Hub) Connected(userID string) int {
	h.clientsLock.RLock()
	defer h.clientsLock.RUnlock()
	return len(h.clients[userID])
}

// MessageStored queues msg for the room's connected participants, here and on
// other instances. It never blocks; events are dropped when the hub is
// backed up.
func (h *Hub) MessageStored(msg models.Message, room models.Room) {
	evt := Event{
		Type:       EventMessage,
		Origin:     h.instanceID,
		Recipients: []string{room.Participants[0], room.Participants[1]},
		Message:    &msg,
	}
	h.enqueue(h.broadcast, evt)
	if h.relay != nil {
		h.enqueue(h.outgoing, evt)
	}
}

func (h *Hub) enqueue(ch chan Event, evt Event) {
	select {
	case ch <- evt:
	default:
		h.log.Warn().Str("message_id", evt.Message.ID).Msg("Live event queue full, dropping event")
	}
}

func (h *Hub) publish(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-h.outgoing:
			pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
			if err := h.relay.Publish(pubCtx, evt); err != nil {
				h.log.Err(err).Msg("Failed to publish live event")
			}
			cancel()
		}
	}
}

func (h *Hub) subscribe(ctx context.Context) {
	err := h.relay.Subscribe(ctx, func(evt Event) {
		if evt.Origin == h.instanceID || evt.Message == nil {
			return
		}
		h.enqueue(h.broadcast, evt)
	})
	if err != nil && ctx.Err() == nil {
		h.log.Err(err).Msg("Live event subscription ended")
	}
}
