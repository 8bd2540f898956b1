package chatsync

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
	"github.com/Vasu1712/scenyx-chatsync/internal/roomkey"
)

// ConversationState tracks one counterpart's conversation within a session.
type ConversationState int

const (
	Unselected ConversationState = iota
	HistoryLoading
	HistoryLoaded
	RoomJoining
	Live
)

func (s ConversationState) String() string {
	switch s {
	case Unselected:
		return "unselected"
	case HistoryLoading:
		return "history_loading"
	case HistoryLoaded:
		return "history_loaded"
	case RoomJoining:
		return "room_joining"
	case Live:
		return "live"
	}
	return fmt.Sprintf("conversation_state(%d)", int(s))
}

// Rooms is the part of the connection manager a session drives.
// *ConnectionManager implements it.
type Rooms interface {
	Transmitter
	Join(key roomkey.Key)
	Leave(key roomkey.Key)
	OnMessage(fn func(models.PushEvent))
	OnStateChange(fn func(State))
}

// Directory lists the participants visible to the authenticated user.
type Directory interface {
	ListParticipants(ctx context.Context) (models.Directory, error)
}

type SessionOptions struct {
	// KeepRoomsJoined keeps every room visited during the session joined
	// instead of leaving the previous one on switch.
	KeepRoomsJoined bool
	HistoryTimeout  time.Duration
	Logger          zerolog.Logger
}

// Session is the UI-facing controller: it selects conversations, loads their
// history, keeps the right rooms joined and sends messages.
type Session struct {
	self   *Identity
	store  *Store
	loader *HistoryLoader
	sender *Sender
	rooms  Rooms
	opts   SessionOptions
	log    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	active    models.ParticipantID
	states    map[models.ParticipantID]ConversationState
	directory models.Directory
	closed    bool
}

func NewSession(self *Identity, source HistorySource, rooms Rooms, opts SessionOptions) *Session {
	store := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		self:   self,
		store:  store,
		loader: NewHistoryLoader(source, self, opts.HistoryTimeout, opts.Logger),
		sender: NewSender(store, self, rooms),
		rooms:  rooms,
		opts:   opts,
		log:    opts.Logger,
		ctx:    ctx,
		cancel: cancel,
		states: make(map[models.ParticipantID]ConversationState),
	}
	ingest := NewIngestor(store, self, opts.Logger)
	rooms.OnMessage(ingest.OnPush)
	rooms.OnStateChange(s.connectionChanged)
	return s
}

// Bootstrap resolves the local identity and the directory listing.
func (s *Session) Bootstrap(ctx context.Context, dir Directory) (models.Directory, error) {
	d, err := dir.ListParticipants(ctx)
	if err != nil {
		return models.Directory{}, fmt.Errorf("list participants: %w", err)
	}
	self, err := models.ParseParticipantID(string(d.Self))
	if err != nil {
		return models.Directory{}, fmt.Errorf("directory self: %w", err)
	}
	s.self.Set(self)

	s.mu.Lock()
	s.directory = d
	s.mu.Unlock()
	return d, nil
}

func (s *Session) Directory() models.Directory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.directory
}

// SelectConversation makes counterpart the active conversation and starts
// loading its history in the background. Only an invalid counterpart is
// reported; history failures degrade to a live-only conversation.
func (s *Session) SelectConversation(counterpart models.ParticipantID) error {
	cp, err := models.ParseParticipantID(string(counterpart))
	if err != nil {
		return err
	}
	key, err := roomkey.Derive(s.self.ID(), cp)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	prev := s.active
	if prev == cp {
		return nil
	}
	s.active = cp
	if prev != "" && !s.opts.KeepRoomsJoined {
		s.leaveLocked(prev)
	}

	s.store.Get(cp)
	s.states[cp] = HistoryLoading
	s.wg.Add(1)
	go s.load(cp, key)
	return nil
}

func (s *Session) leaveLocked(cp models.ParticipantID) {
	key, err := roomkey.Derive(s.self.ID(), cp)
	if err != nil {
		return
	}
	s.rooms.Leave(key)
	if st := s.states[cp]; st == Live || st == RoomJoining {
		s.states[cp] = HistoryLoaded
	}
}

// load is bound to the counterpart selected at call time, so a late result
// lands in its own conversation whatever is active by then.
func (s *Session) load(cp models.ParticipantID, key roomkey.Key) {
	defer s.wg.Done()

	history, err := s.loader.Load(s.ctx, cp)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.log.Warn().Err(err).Str("counterpart", cp.String()).Msg("continuing without history")
	} else {
		s.store.Update(cp, func(existing []models.MessageRecord) []models.MessageRecord {
			return mergeHistory(history, existing)
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.states[cp] = HistoryLoaded
	if s.active != cp && !s.opts.KeepRoomsJoined {
		return
	}
	s.states[cp] = RoomJoining
	s.rooms.Join(key)
	s.states[cp] = Live
}

// connectionChanged reloads every live conversation after a (re)connect so
// messages relayed while the socket was down show up without a reselect.
func (s *Session) connectionChanged(st State) {
	if st != Connected {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for cp, cs := range s.states {
		if cs != Live {
			continue
		}
		s.wg.Add(1)
		go s.backfill(cp)
	}
}

func (s *Session) backfill(cp models.ParticipantID) {
	defer s.wg.Done()

	history, err := s.loader.Load(s.ctx, cp)
	if err != nil {
		if s.ctx.Err() == nil {
			s.log.Warn().Err(err).Str("counterpart", cp.String()).Msg("backfill after reconnect failed")
		}
		return
	}
	s.store.Update(cp, func(existing []models.MessageRecord) []models.MessageRecord {
		return mergeHistory(history, existing)
	})
}

// mergeHistory keeps history's order and adds messages that arrived live or
// were sent optimistically while the load was in flight.
func mergeHistory(history, existing []models.MessageRecord) []models.MessageRecord {
	if len(existing) == 0 {
		return slices.Clone(history)
	}
	merged := slices.Clone(history)
	for _, m := range existing {
		seen := slices.ContainsFunc(history, func(h models.MessageRecord) bool {
			return models.SameMessage(h, m)
		})
		if !seen {
			merged = append(merged, m)
		}
	}
	SortChronological(merged)
	return merged
}

// SendMessage sends text to the active conversation.
func (s *Session) SendMessage(text string) (models.MessageRecord, error) {
	s.mu.Lock()
	cp, closed := s.active, s.closed
	s.mu.Unlock()
	if closed {
		return models.MessageRecord{}, ErrSessionClosed
	}
	if cp == "" {
		return models.MessageRecord{}, fmt.Errorf("%w: no active conversation", models.ErrInvalidParticipant)
	}
	return s.sender.Send(cp, text)
}

// SendTo sends text to counterpart without changing the active conversation.
func (s *Session) SendTo(counterpart models.ParticipantID, text string) (models.MessageRecord, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return models.MessageRecord{}, ErrSessionClosed
	}
	return s.sender.Send(counterpart, text)
}

// Subscribe registers fn for changes to counterpart's conversation. fn may send
// or otherwise write to the same conversation. After Close it registers
// nothing.
func (s *Session) Subscribe(counterpart models.ParticipantID, fn func(Conversation)) (cancel func()) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return func() {}
	}
	return s.store.Subscribe(counterpart, fn)
}

func (s *Session) Conversation(counterpart models.ParticipantID) Conversation {
	return s.store.Get(counterpart)
}

// Conversations lists every counterpart with a conversation in this session.
func (s *Session) Conversations() []models.ParticipantID {
	return s.store.Counterparts()
}

func (s *Session) State(counterpart models.ParticipantID) ConversationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[counterpart]
}

func (s *Session) Active() models.ParticipantID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Wait blocks until every in-flight history load has finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close cancels pending loads, leaves the active room and drops all
// conversations. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.active != "" && !s.opts.KeepRoomsJoined {
		s.leaveLocked(s.active)
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.store.Reset()
	return nil
}

var _ Rooms = (*ConnectionManager)(nil)
