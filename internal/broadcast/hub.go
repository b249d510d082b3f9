package broadcast

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"meownopoly/internal/models"
)

// DefaultBuffer is the number of snapshots a subscriber may lag behind before
// it is dropped.
const DefaultBuffer = 16

// Snapshot is one published version of a session. State is a private copy
// and must be treated as read-only; Data is its JSON encoding.
type Snapshot struct {
	SessionID string
	Version   int64
	State     *models.GameState
	Data      []byte
}

// NewSnapshot copies st and encodes it once for every subscriber.
func NewSnapshot(st *models.GameState) (Snapshot, error) {
	c := st.Clone()
	data, err := json.Marshal(c)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{SessionID: c.ID, Version: c.Version, State: c, Data: data}, nil
}

// Subscription receives the snapshots of one session. The channel is closed
// when the subscriber falls too far behind, the session is dropped from the
// hub, or Close is called.
type Subscription struct {
	sessionID string
	ch        chan Snapshot
	hub       *Hub
	closed    bool
}

// C returns the snapshot channel.
func (s *Subscription) C() <-chan Snapshot {
	return s.ch
}

// SessionID returns the session the subscription follows.
func (s *Subscription) SessionID() string {
	return s.sessionID
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.remove(s)
}

// Hub manages broadcasting session snapshots to WebSocket and SSE clients.
// Delivery never blocks the publisher: a subscriber whose buffer is full is
// dropped and its channel closed.
type Hub struct {
	subs   map[string]map[*Subscription]struct{}
	buffer int
	log    *zap.Logger
	mu     sync.RWMutex
}

// NewHub creates a new broadcast hub.
func NewHub(log *zap.Logger, buffer int) *Hub {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		log:    log,
	}
}

// Subscribe registers a subscriber for sessionID. When initial is non-nil it
// is queued ahead of any later publish.
func (h *Hub) Subscribe(sessionID string, initial *Snapshot) *Subscription {
	sub := &Subscription{
		sessionID: sessionID,
		ch:        make(chan Snapshot, h.buffer),
		hub:       h,
	}
	if initial != nil {
		sub.ch <- *initial
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*Subscription]struct{})
	}
	h.subs[sessionID][sub] = struct{}{}
	return sub
}

// Publish delivers snap to every subscriber of its session.
func (h *Hub) Publish(snap Snapshot) {
	var slow []*Subscription

	h.mu.RLock()
	for sub := range h.subs[snap.SessionID] {
		select {
		case sub.ch <- snap:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range slow {
		h.remove(sub)
	}
	h.log.Warn("dropped slow subscribers",
		zap.String("session", snap.SessionID),
		zap.Int("count", len(slow)),
		zap.Int64("version", snap.Version))
}

// Count returns the number of live subscribers for sessionID.
func (h *Hub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

// Drop closes every subscription of sessionID.
func (h *Hub) Drop(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[sessionID] {
		h.remove(sub)
	}
}

// remove must be called with h.mu held for writing.
func (h *Hub) remove(sub *Subscription) {
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)
	set := h.subs[sub.sessionID]
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.sessionID)
	}
}
