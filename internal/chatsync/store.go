package chatsync

import (
	"slices"
	"sync"

	"github.com/Vasu1712/scenyx-chatsync/internal/models"
)

// Conversation is a read-only snapshot of one counterpart's conversation.
type Conversation struct {
	Counterpart models.ParticipantID
	Messages    []models.MessageRecord
	Preview     string
}

// Store keeps one ordered message list per counterpart, independent of which
// conversation is on screen. Each entry has a single writer at a time and
// subscribers see snapshots in mutation order.
type Store struct {
	mu      sync.Mutex
	entries map[models.ParticipantID]*entry
}

type entry struct {
	counterpart models.ParticipantID

	mu       sync.Mutex
	messages []models.MessageRecord
	version  uint64

	// One goroutine at a time delivers. Snapshots produced meanwhile, including
	// from inside a callback, park in pending and the deliverer picks up the
	// newest one after its current round.
	notifyMu sync.Mutex
	notified uint64
	pending  *Conversation
	draining bool

	subsMu  sync.Mutex
	subs    map[int]func(Conversation)
	nextSub int
}

func NewStore() *Store {
	return &Store{entries: make(map[models.ParticipantID]*entry)}
}

func (s *Store) entry(counterpart models.ParticipantID) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[counterpart]
	if !ok {
		e = &entry{counterpart: counterpart, subs: make(map[int]func(Conversation))}
		s.entries[counterpart] = e
	}
	return e
}

// Get returns a snapshot of the counterpart's conversation, creating an empty
// entry on first use.
func (s *Store) Get(counterpart models.ParticipantID) Conversation {
	e := s.entry(counterpart)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Append adds m at the end of the counterpart's list.
func (s *Store) Append(counterpart models.ParticipantID, m models.MessageRecord) {
	s.Update(counterpart, func(msgs []models.MessageRecord) []models.MessageRecord {
		return append(msgs, m)
	})
}

// ReplaceAll swaps the counterpart's list for msgs.
func (s *Store) ReplaceAll(counterpart models.ParticipantID, msgs []models.MessageRecord) {
	s.Update(counterpart, func([]models.MessageRecord) []models.MessageRecord {
		return slices.Clone(msgs)
	})
}

// Update applies fn to a copy of the counterpart's list and stores the result.
// fn runs while the entry is locked and must not call back into the store.
func (s *Store) Update(counterpart models.ParticipantID, fn func([]models.MessageRecord) []models.MessageRecord) {
	e := s.entry(counterpart)

	e.mu.Lock()
	e.messages = fn(slices.Clone(e.messages))
	e.version++
	version := e.version
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.notify(version, snap)
}

// Preview is the text of the newest message, or "" for an empty conversation.
func (s *Store) Preview(counterpart models.ParticipantID) string {
	e := s.entry(counterpart)
	e.mu.Lock()
	defer e.mu.Unlock()
	return previewOf(e.messages)
}

// Subscribe registers fn for every change to the counterpart's conversation.
// Callbacks may write to the store; the resulting snapshot is delivered once
// the current round of callbacks returns.
func (s *Store) Subscribe(counterpart models.ParticipantID, fn func(Conversation)) (cancel func()) {
	e := s.entry(counterpart)
	e.subsMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.subsMu.Lock()
			delete(e.subs, id)
			e.subsMu.Unlock()
		})
	}
}

// Counterparts lists every counterpart with an entry, in id order.
func (s *Store) Counterparts() []models.ParticipantID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ParticipantID, 0, len(s.entries))
	for cp := range s.entries {
		out = append(out, cp)
	}
	slices.Sort(out)
	return out
}

// Reset drops every conversation and subscription (session teardown).
func (s *Store) Reset() {
	s.mu.Lock()
	old := s.entries
	s.entries = make(map[models.ParticipantID]*entry)
	s.mu.Unlock()

	for _, e := range old {
		e.subsMu.Lock()
		clear(e.subs)
		e.subsMu.Unlock()
	}
}

func (e *entry) snapshotLocked() Conversation {
	return Conversation{
		Counterpart: e.counterpart,
		Messages:    slices.Clone(e.messages),
		Preview:     previewOf(e.messages),
	}
}

func (e *entry) notify(version uint64, snap Conversation) {
	e.notifyMu.Lock()
	if version <= e.notified {
		e.notifyMu.Unlock()
		return // a newer snapshot was already queued
	}
	e.notified = version
	e.pending = &snap
	if e.draining {
		e.notifyMu.Unlock()
		return
	}
	e.draining = true

	for e.pending != nil {
		next := *e.pending
		e.pending = nil
		e.notifyMu.Unlock()

		for _, fn := range e.subscribers() {
			fn(next)
		}

		e.notifyMu.Lock()
	}
	e.draining = false
	e.notifyMu.Unlock()
}

func (e *entry) subscribers() []func(Conversation) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	subs := make([]func(Conversation), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	return subs
}

func previewOf(msgs []models.MessageRecord) string {
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Text
}
