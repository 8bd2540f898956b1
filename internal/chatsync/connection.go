package chatsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
	"github.com/Vasu1712/scenyx-chatsync/internal/retry"
	"github.com/Vasu1712/scenyx-chatsync/internal/roomkey"
)

// State is the lifecycle state of the persistent connection.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Conn is one established bidirectional connection carrying JSON frames.
// *websocket.Conn satisfies it.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

// Dialer opens a new Conn.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

type DialerFunc func(ctx context.Context) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context) (Conn, error) { return f(ctx) }

// FallbackDialer tries each dialer in order and returns the first connection
// that succeeds.
type FallbackDialer []Dialer

func (d FallbackDialer) Dial(ctx context.Context) (Conn, error) {
	var errs []error
	for _, dialer := range d {
		conn, err := dialer.Dial(ctx)
		if err == nil {
			return conn, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return nil, errors.New("no dialers configured")
	}
	return nil, errors.Join(errs...)
}

// ConnectionManager owns the single persistent connection of a session. It
// tracks the rooms the session wants to be in and replays them after every
// reconnect. Outbound frames go through an ordered outbox so callers never
// block on the transport.
type ConnectionManager struct {
	dialer  Dialer
	backoff retry.Backoff
	log     zerolog.Logger

	mu        sync.Mutex
	state     State
	rooms     map[roomkey.Key]struct{}
	outbox    []models.Frame
	onMessage []func(models.PushEvent)
	onState   []func(State)

	wake chan struct{}
}

func NewConnectionManager(dialer Dialer, backoff retry.Backoff, logger zerolog.Logger) *ConnectionManager {
	return &ConnectionManager{
		dialer:  dialer,
		backoff: backoff,
		log:     logger,
		rooms:   make(map[roomkey.Key]struct{}),
		wake:    make(chan struct{}, 1),
	}
}

// OnMessage registers a handler for inbound message frames. Handlers run on
// the read goroutine.
func (c *ConnectionManager) OnMessage(fn func(models.PushEvent)) {
	c.mu.Lock()
	c.onMessage = append(c.onMessage, fn)
	c.mu.Unlock()
}

func (c *ConnectionManager) OnStateChange(fn func(State)) {
	c.mu.Lock()
	c.onState = append(c.onState, fn)
	c.mu.Unlock()
}

func (c *ConnectionManager) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Rooms returns the rooms the session is joined to, sorted.
func (c *ConnectionManager) Rooms() []roomkey.Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]roomkey.Key, 0, len(c.rooms))
	for k := range c.rooms {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Pending is the number of frames waiting in the outbox.
func (c *ConnectionManager) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outbox)
}

// Join adds key to the joined rooms. Joining a room twice is a no-op. While
// disconnected no frame is queued; the join is issued on connect.
func (c *ConnectionManager) Join(key roomkey.Key) {
	c.mu.Lock()
	if _, ok := c.rooms[key]; ok {
		c.mu.Unlock()
		return
	}
	c.rooms[key] = struct{}{}
	connected := c.state == Connected
	if connected {
		c.outbox = append(c.outbox, models.Frame{Type: models.FrameJoin, Room: string(key)})
	}
	c.mu.Unlock()

	if connected {
		c.signal()
	}
}

func (c *ConnectionManager) Leave(key roomkey.Key) {
	c.mu.Lock()
	if _, ok := c.rooms[key]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.rooms, key)
	connected := c.state == Connected
	if connected {
		c.outbox = append(c.outbox, models.Frame{Type: models.FrameLeave, Room: string(key)})
	}
	c.mu.Unlock()

	if connected {
		c.signal()
	}
}

// Send queues m for the room. It never blocks and never fails; queued frames
// are flushed once a connection is up.
func (c *ConnectionManager) Send(key roomkey.Key, m models.MessageRecord) {
	msg := m
	c.mu.Lock()
	c.outbox = append(c.outbox, models.Frame{
		Type:     models.FrameMessage,
		Room:     string(key),
		SenderID: m.SenderID,
		Message:  &msg,
	})
	c.mu.Unlock()
	c.signal()
}

// Run connects and keeps the connection up until ctx is cancelled.
func (c *ConnectionManager) Run(ctx context.Context) error {
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			c.setState(Disconnected)
			return err
		}

		c.setState(Connecting)
		conn, err := c.dialer.Dial(ctx)
		if err != nil {
			c.setState(Disconnected)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn().Err(err).Int("attempt", attempt).Msg("dial failed")
		} else {
			attempt = 0
			err = c.serve(ctx, conn)
			c.setState(Disconnected)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn().Err(err).Msg("connection lost, reconnecting")
		}

		if err := c.backoff.Wait(ctx, attempt); err != nil {
			c.setState(Disconnected)
			return err
		}
		attempt++
	}
}

func (c *ConnectionManager) serve(ctx context.Context, conn Conn) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.attach()
	c.signal()

	errc := make(chan error, 2)
	go func() { errc <- c.readLoop(conn) }()
	go func() { errc <- c.writeLoop(connCtx, conn) }()

	err := <-errc
	cancel()
	conn.Close()
	<-errc
	return err
}

// attach marks the connection up and rebuilds the membership frames: any
// join/leave still queued from the previous connection is dropped and one join
// per joined room is put at the head of the outbox.
func (c *ConnectionManager) attach() {
	c.mu.Lock()
	rooms := make([]roomkey.Key, 0, len(c.rooms))
	for k := range c.rooms {
		rooms = append(rooms, k)
	}
	slices.Sort(rooms)

	outbox := make([]models.Frame, 0, len(rooms)+len(c.outbox))
	for _, k := range rooms {
		outbox = append(outbox, models.Frame{Type: models.FrameJoin, Room: string(k)})
	}
	for _, f := range c.outbox {
		if f.Type == models.FrameJoin || f.Type == models.FrameLeave {
			continue
		}
		outbox = append(outbox, f)
	}
	c.outbox = outbox
	handlers := c.transitionLocked(Connected)
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(Connected)
	}
	c.log.Info().Int("rooms", len(rooms)).Msg("connected")
}

func (c *ConnectionManager) writeLoop(ctx context.Context, conn Conn) error {
	for {
		frame, ok := c.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-c.wake:
				continue
			}
		}
		if err := conn.WriteJSON(frame); err != nil {
			c.requeue(frame)
			return fmt.Errorf("%w: write: %w", ErrTransportDisconnected, err)
		}
	}
}

func (c *ConnectionManager) readLoop(conn Conn) error {
	for {
		var f models.Frame
		if err := conn.ReadJSON(&f); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, models.ErrInvalidParticipant) {
				c.log.Warn().Err(err).Msg("skipping undecodable frame")
				continue
			}
			return fmt.Errorf("%w: read: %w", ErrTransportDisconnected, err)
		}
		c.dispatch(f)
	}
}

func (c *ConnectionManager) dispatch(f models.Frame) {
	switch f.Type {
	case models.FrameMessage:
		if f.Message == nil {
			c.log.Warn().Str("room", f.Room).Msg("message frame without payload")
			return
		}
		sender := f.SenderID
		if sender == "" {
			sender = f.Message.SenderID
		}
		ev := models.PushEvent{Room: f.Room, SenderID: sender, Message: *f.Message}

		c.mu.Lock()
		handlers := slices.Clone(c.onMessage)
		c.mu.Unlock()
		for _, fn := range handlers {
			fn(ev)
		}
	case models.FrameError:
		c.log.Warn().Str("code", f.Code).Str("room", f.Room).Msg(f.Error)
	case models.FrameJoined, models.FrameLeft, models.FrameConnected:
		c.log.Debug().Str("type", f.Type).Str("room", f.Room).Msg("ack")
	default:
		c.log.Debug().Str("type", f.Type).Msg("ignoring unknown frame")
	}
}

func (c *ConnectionManager) pop() (models.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.outbox) == 0 {
		return models.Frame{}, false
	}
	f := c.outbox[0]
	c.outbox = c.outbox[1:]
	return f, true
}

func (c *ConnectionManager) requeue(f models.Frame) {
	c.mu.Lock()
	c.outbox = append([]models.Frame{f}, c.outbox...)
	c.mu.Unlock()
}

func (c *ConnectionManager) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *ConnectionManager) setState(s State) {
	c.mu.Lock()
	handlers := c.transitionLocked(s)
	c.mu.Unlock()
	for _, fn := range handlers {
		fn(s)
	}
}

// transitionLocked returns the handlers to notify, or nil if s is unchanged.
func (c *ConnectionManager) transitionLocked(s State) []func(State) {
	if c.state == s {
		return nil
	}
	c.state = s
	return slices.Clone(c.onState)
}
