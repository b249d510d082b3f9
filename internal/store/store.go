// Package store defines the persistence collaborator of the session
// coordinator and an in-memory implementation.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"meownopoly/internal/models"
)

// ErrNotFound is returned when no session is stored under an id.
var ErrNotFound = errors.New("session not found")

// Store persists session states. Implementations must be safe for
// concurrent use.
type Store interface {
	SaveSession(ctx context.Context, st *models.GameState) error
	LoadSession(ctx context.Context, id string) (*models.GameState, error)
	CountByStatus(ctx context.Context, status models.Status) (int, error)
	Close() error
}

// Memory keeps encoded sessions in a map. Loaded states never alias the
// saved ones.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string][]byte
	statuses map[string]models.Status
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string][]byte),
		statuses: make(map[string]models.Status),
	}
}

// SaveSession stores st, replacing any older version.
func (m *Memory) SaveSession(ctx context.Context, st *models.GameState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", st.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[st.ID] = data
	m.statuses[st.ID] = st.Status
	return nil
}

// LoadSession decodes the session stored under id.
func (m *Memory) LoadSession(ctx context.Context, id string) (*models.GameState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	data, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return Decode(data)
}

// CountByStatus returns how many stored sessions have the given status.
func (m *Memory) CountByStatus(ctx context.Context, status models.Status) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.statuses {
		if s == status {
			n++
		}
	}
	return n, nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}

// Decode restores a state encoded with encoding/json, filling the maps a
// fresh state would carry.
func Decode(data []byte) (*models.GameState, error) {
	var st models.GameState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if st.Ownership == nil {
		st.Ownership = make(map[int]models.Ownership)
	}
	if st.CardDecks == nil {
		st.CardDecks = make(map[string][]int)
	}
	return &st, nil
}
