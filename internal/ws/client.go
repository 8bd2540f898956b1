package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Vasu1712/scenyx-chatsync/internal/chatsync"
	"github.com/Vasu1712/scenyx-chatsync/internal/models"
	"github.com/Vasu1712/scenyx-chatsync/internal/roomkey"
)

// Persister stores a relayed message and returns it with its server id.
type Persister interface {
	AddMessage(ctx context.Context, room roomkey.Key, m models.MessageRecord) (models.MessageRecord, error)
}

type Config struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	SendBuffer     int
	FrameRate      float64 // inbound message frames per second
	FrameBurst     int
}

func DefaultConfig() Config {
	return Config{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 16 << 10,
		SendBuffer:     256,
		FrameRate:      5,
		FrameBurst:     10,
	}
}

// Client is one websocket connection of an authenticated participant.
type Client struct {
	ID models.ParticipantID

	hub     *Hub
	conn    *websocket.Conn
	store   Persister
	limiter *rate.Limiter
	cfg     Config

	send       chan models.Frame
	rooms      map[roomkey.Key]bool // guarded by hub.mu
	registered chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewClient(id models.ParticipantID, hub *Hub, conn *websocket.Conn, store Persister, cfg Config) *Client {
	return &Client{
		ID:      id,
		hub:     hub,
		conn:    conn,
		store:   store,
		limiter: rate.NewLimiter(rate.Limit(cfg.FrameRate), cfg.FrameBurst),
		cfg:     cfg,
		send:    make(chan models.Frame, cfg.SendBuffer),
		rooms:   make(map[roomkey.Key]bool),

		registered: make(chan struct{}),
	}
}

// Serve runs the connection until it fails or the hub stops.
func (c *Client) Serve(ctx context.Context) {
	if !c.hub.Register(c) {
		c.conn.Close()
		return
	}
	c.enqueue(models.Frame{Type: models.FrameConnected, SenderID: c.ID})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	c.readPump(ctx)
	c.hub.Unregister(c)
	c.close()
	<-writerDone
}

func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		var f models.Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, models.ErrInvalidParticipant) {
				c.enqueue(models.ErrorFrame(models.CodeBadRequest, "", err.Error()))
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("participant", c.ID.String()).Msg("websocket read failed")
			}
			return
		}
		c.handle(ctx, f)
	}
}

func (c *Client) handle(ctx context.Context, f models.Frame) {
	room := roomkey.Key(f.Room)

	switch f.Type {
	case models.FrameJoin, models.FrameLeave:
		if !roomkey.Contains(room, c.ID) {
			c.enqueue(models.ErrorFrame(models.CodeForbidden, f.Room, "not a member of this room"))
			return
		}
		if f.Type == models.FrameJoin {
			c.hub.Join(c, room)
			c.enqueue(models.Frame{Type: models.FrameJoined, Room: f.Room})
		} else {
			c.hub.Leave(c, room)
			c.enqueue(models.Frame{Type: models.FrameLeft, Room: f.Room})
		}

	case models.FrameMessage:
		if !c.limiter.Allow() {
			c.enqueue(models.ErrorFrame(models.CodeRateLimited, f.Room, "too many messages"))
			return
		}
		if !roomkey.Contains(room, c.ID) {
			c.enqueue(models.ErrorFrame(models.CodeForbidden, f.Room, "not a member of this room"))
			return
		}
		if f.Message == nil {
			c.enqueue(models.ErrorFrame(models.CodeBadRequest, f.Room, "message frame without payload"))
			return
		}
		raw := *f.Message
		raw.SenderID = c.ID
		m, err := models.NewMessageRecord(raw, "")
		if err != nil {
			c.enqueue(models.ErrorFrame(models.CodeBadRequest, f.Room, err.Error()))
			return
		}
		stamp(&m, time.Now())

		saved, err := c.store.AddMessage(ctx, room, m)
		if err != nil {
			log.Error().Err(err).Str("room", f.Room).Msg("failed to store message")
			c.enqueue(models.ErrorFrame(models.CodeInternal, f.Room, "message not stored"))
			return
		}
		c.hub.Broadcast(room, models.Frame{Type: models.FrameMessage, Room: f.Room, SenderID: c.ID, Message: &saved})

	default:
		c.enqueue(models.ErrorFrame(models.CodeBadRequest, f.Room, "unknown frame type "+f.Type))
	}
}

// stamp fills a missing send date or time from the relay clock.
func stamp(m *models.MessageRecord, now time.Time) {
	if m.SendDate == "" {
		m.SendDate = now.Format(chatsync.DateLayout)
	}
	if m.SendTime == "" {
		m.SendTime = now.Format(chatsync.ClockLayout)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue queues f without blocking. It reports false if the client is closed
// or its buffer is full.
func (c *Client) enqueue(f models.Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- f:
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
		close(c.send)
	}
}
