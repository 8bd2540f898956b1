package ws

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
	"github.com/Vasu1712/scenyx-chatsync/internal/roomkey"
)

type membership struct {
	client *Client
	room   roomkey.Key
	join   bool
	done   chan struct{}
}

type broadcast struct {
	room  roomkey.Key
	frame models.Frame
}

// Hub tracks connected clients and the rooms they joined. All membership
// changes and fan-out happen on the Run goroutine.
type Hub struct {
	rooms   map[roomkey.Key]map[*Client]bool
	clients map[*Client]bool
	online  map[models.ParticipantID]int

	register   chan *Client
	unregister chan *Client
	membership chan membership
	broadcast  chan broadcast
	done       chan struct{}

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[roomkey.Key]map[*Client]bool),
		clients:    make(map[*Client]bool),
		online:     make(map[models.ParticipantID]int),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		membership: make(chan membership),
		broadcast:  make(chan broadcast),
		done:       make(chan struct{}),
	}
}

// Run processes hub events until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				h.removeLocked(c)
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.online[c.ID]++
			h.mu.Unlock()
			close(c.registered)
			log.Info().Str("participant", c.ID.String()).Msg("client connected")
		case c := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(c)
			h.mu.Unlock()
		case m := <-h.membership:
			h.mu.Lock()
			if h.clients[m.client] {
				if m.join {
					h.joinLocked(m.client, m.room)
				} else {
					h.leaveLocked(m.client, m.room)
				}
			}
			h.mu.Unlock()
			close(m.done)
		case b := <-h.broadcast:
			h.mu.Lock()
			for c := range h.rooms[b.room] {
				if !c.enqueue(b.frame) {
					log.Warn().Str("participant", c.ID.String()).Msg("dropping slow client")
					h.removeLocked(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) joinLocked(c *Client, room roomkey.Key) {
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][c] = true
	c.rooms[room] = true
}

func (h *Hub) leaveLocked(c *Client, room roomkey.Key) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

func (h *Hub) removeLocked(c *Client) {
	if !h.clients[c] {
		return
	}
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	delete(h.clients, c)
	if h.online[c.ID]--; h.online[c.ID] <= 0 {
		delete(h.online, c.ID)
	}
	c.close()
	log.Info().Str("participant", c.ID.String()).Msg("client disconnected")
}

// Register adds c to the hub and returns once it is counted as online.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		<-c.registered
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Join adds c to room and returns once the hub has applied it.
func (h *Hub) Join(c *Client, room roomkey.Key) {
	h.changeMembership(c, room, true)
}

func (h *Hub) Leave(c *Client, room roomkey.Key) {
	h.changeMembership(c, room, false)
}

func (h *Hub) changeMembership(c *Client, room roomkey.Key, join bool) {
	m := membership{client: c, room: room, join: join, done: make(chan struct{})}
	select {
	case h.membership <- m:
		<-m.done
	case <-h.done:
	}
}

// Broadcast sends f to every client in room.
func (h *Hub) Broadcast(room roomkey.Key, f models.Frame) {
	select {
	case h.broadcast <- broadcast{room: room, frame: f}:
	case <-h.done:
	}
}

func (h *Hub) IsOnline(id models.ParticipantID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.online[id] > 0
}

// RoomMembers returns the participants currently in room, sorted.
func (h *Hub) RoomMembers(room roomkey.Key) []models.ParticipantID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := map[models.ParticipantID]bool{}
	var out []models.ParticipantID
	for c := range h.rooms[room] {
		if !seen[c.ID] {
			seen[c.ID] = true
			out = append(out, c.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
