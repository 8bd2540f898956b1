package chatsync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
	"github.com/Vasu1712/scenyx-chatsync/internal/roomkey"
)

// fakeConn is an in-memory Conn. Frames written by the manager are recorded;
// frames pushed with deliver are returned by ReadJSON.
type fakeConn struct {
	inbound chan []byte

	mu      sync.Mutex
	written []models.Frame
	failOn  int // fail the n-th write (1-based) when > 0
	writes  int

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 64), closed: make(chan struct{})}
}

func (c *fakeConn) ReadJSON(v any) error {
	select {
	case data := <-c.inbound:
		return json.Unmarshal(data, v)
	case <-c.closed:
		return io.EOF
	}
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		return errors.New("use of closed connection")
	default:
	}
	c.writes++
	if c.failOn > 0 && c.writes == c.failOn {
		return errors.New("broken pipe")
	}
	c.written = append(c.written, v.(models.Frame))
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) deliver(f models.Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		panic(err)
	}
	c.inbound <- data
}

func (c *fakeConn) deliverRaw(data string) {
	c.inbound <- []byte(data)
}

func (c *fakeConn) frames() []models.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Frame, len(c.written))
	copy(out, c.written)
	return out
}

func (c *fakeConn) framesOfType(typ string) []models.Frame {
	var out []models.Frame
	for _, f := range c.frames() {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

// fakeDialer hands out queued connections in order, failing while none are
// queued.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	dials int
}

func (d *fakeDialer) add(c *fakeConn) {
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
}

func (d *fakeDialer) Dial(ctx context.Context) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.conns) == 0 {
		return nil, errors.New("connection refused")
	}
	c := d.conns[0]
	d.conns = d.conns[1:]
	return c, nil
}

// fakeRooms records Rooms calls without any transport.
type fakeRooms struct {
	mu       sync.Mutex
	joined   map[roomkey.Key]int
	left     []roomkey.Key
	sent     []models.MessageRecord
	handlers []func(models.PushEvent)
	onState  []func(State)
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{joined: make(map[roomkey.Key]int)}
}

func (r *fakeRooms) Join(key roomkey.Key) {
	r.mu.Lock()
	r.joined[key]++
	r.mu.Unlock()
}

func (r *fakeRooms) Leave(key roomkey.Key) {
	r.mu.Lock()
	r.left = append(r.left, key)
	r.mu.Unlock()
}

func (r *fakeRooms) Send(key roomkey.Key, m models.MessageRecord) {
	r.mu.Lock()
	r.sent = append(r.sent, m)
	r.mu.Unlock()
}

func (r *fakeRooms) OnMessage(fn func(models.PushEvent)) {
	r.mu.Lock()
	r.handlers = append(r.handlers, fn)
	r.mu.Unlock()
}

func (r *fakeRooms) push(ev models.PushEvent) {
	r.mu.Lock()
	handlers := append([]func(models.PushEvent){}, r.handlers...)
	r.mu.Unlock()
	for _, fn := range handlers {
		fn(ev)
	}
}

func (r *fakeRooms) OnStateChange(fn func(State)) {
	r.mu.Lock()
	r.onState = append(r.onState, fn)
	r.mu.Unlock()
}

func (r *fakeRooms) setState(st State) {
	r.mu.Lock()
	handlers := append([]func(State){}, r.onState...)
	r.mu.Unlock()
	for _, fn := range handlers {
		fn(st)
	}
}

func (r *fakeRooms) joins(key roomkey.Key) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.joined[key]
}

func (r *fakeRooms) leaves() []roomkey.Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]roomkey.Key(nil), r.left...)
}

// fakeHistory serves canned history per counterpart. A counterpart with a gate
// blocks until the gate is closed.
type fakeHistory struct {
	mu      sync.Mutex
	records map[models.ParticipantID][]models.MessageRecord
	errs    map[models.ParticipantID]error
	gates   map[models.ParticipantID]chan struct{}
	calls   int
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{
		records: make(map[models.ParticipantID][]models.MessageRecord),
		errs:    make(map[models.ParticipantID]error),
		gates:   make(map[models.ParticipantID]chan struct{}),
	}
}

func (h *fakeHistory) GetHistory(ctx context.Context, cp models.ParticipantID) ([]models.MessageRecord, error) {
	h.mu.Lock()
	h.calls++
	gate := h.gates[cp]
	h.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.errs[cp]; err != nil {
		return nil, err
	}
	return append([]models.MessageRecord(nil), h.records[cp]...), nil
}

func (h *fakeHistory) block(cp models.ParticipantID) chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	gate := make(chan struct{})
	h.gates[cp] = gate
	return gate
}

type fakeDirectory struct {
	dir models.Directory
	err error
}

func (d fakeDirectory) ListParticipants(context.Context) (models.Directory, error) {
	return d.dir, d.err
}

func msg(sender models.ParticipantID, text, date, clock string) models.MessageRecord {
	return models.MessageRecord{SenderID: sender, Text: text, SendDate: date, SendTime: clock}
}

func withID(m models.MessageRecord, id string) models.MessageRecord {
	m.ID = id
	return m
}
