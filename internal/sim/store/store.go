// Package store tracks live game rooms by id and by join code.
package store

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/google/uuid"

	"kienquoc.game/internal/sim/room"
)

const (
	CodeLength  = 6
	CodeCharset = "0123456789"
)

var (
	ErrFull      = errors.New("store: room limit reached")
	ErrNotFound  = errors.New("store: room not found")
	ErrCodeSpace = errors.New("store: no free room code")
	ErrExists    = errors.New("store: room already exists")
)

// Store is the registry of running rooms. Implementations are safe for
// concurrent use.
type Store interface {
	// Create allocates a fresh game id and unused code and registers the
	// runtime returned by build.
	Create(build func(id, code string) (*room.Runtime, error)) (*room.Runtime, error)
	// Put registers an existing runtime (e.g. restored from a snapshot).
	Put(rt *room.Runtime) error
	Get(id string) (*room.Runtime, bool)
	ByCode(code string) (*room.Runtime, bool)
	Delete(id string) (*room.Runtime, bool)
	List() []*room.Runtime
	Len() int
}

type MemStore struct {
	mu     sync.RWMutex
	rng    *rand.Rand
	max    int
	byID   map[string]*room.Runtime
	byCode map[string]string
}

// NewMem returns an in-memory store holding at most limit rooms (0 = no
// limit). rng draws room codes and is only used under the store lock.
func NewMem(rng *rand.Rand, limit int) *MemStore {
	return &MemStore{
		rng:    rng,
		max:    limit,
		byID:   map[string]*room.Runtime{},
		byCode: map[string]string{},
	}
}

func (s *MemStore) Create(build func(id, code string) (*room.Runtime, error)) (*room.Runtime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.max > 0 && len(s.byID) >= s.max {
		return nil, ErrFull
	}
	code, err := s.freeCodeLocked()
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	rt, err := build(id, code)
	if err != nil {
		return nil, err
	}
	if rt.ID() != id || rt.Code() != code {
		return nil, fmt.Errorf("store: runtime built as %s/%s, want %s/%s", rt.ID(), rt.Code(), id, code)
	}
	s.byID[id] = rt
	s.byCode[code] = id
	return rt, nil
}

func (s *MemStore) Put(rt *room.Runtime) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[rt.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrExists, rt.ID())
	}
	if _, ok := s.byCode[rt.Code()]; ok {
		return fmt.Errorf("%w: code %s", ErrExists, rt.Code())
	}
	if s.max > 0 && len(s.byID) >= s.max {
		return ErrFull
	}
	s.byID[rt.ID()] = rt
	s.byCode[rt.Code()] = rt.ID()
	return nil
}

func (s *MemStore) freeCodeLocked() (string, error) {
	for attempt := 0; attempt < 64; attempt++ {
		b := make([]byte, CodeLength)
		for i := range b {
			b[i] = CodeCharset[s.rng.Intn(len(CodeCharset))]
		}
		code := string(b)
		if _, taken := s.byCode[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpace
}

func (s *MemStore) Get(id string) (*room.Runtime, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rt, ok := s.byID[id]
	return rt, ok
}

func (s *MemStore) ByCode(code string) (*room.Runtime, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[code]
	if !ok {
		return nil, false
	}
	rt, ok := s.byID[id]
	return rt, ok
}

func (s *MemStore) Delete(id string) (*room.Runtime, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	delete(s.byID, id)
	delete(s.byCode, rt.Code())
	return rt, true
}

// List returns rooms ordered by creation time, oldest first.
func (s *MemStore) List() []*room.Runtime {
	s.mu.RLock()
	out := make([]*room.Runtime, 0, len(s.byID))
	for _, rt := range s.byID {
		out = append(out, rt)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt().Equal(out[j].CreatedAt()) {
			return out[i].CreatedAt().Before(out[j].CreatedAt())
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
