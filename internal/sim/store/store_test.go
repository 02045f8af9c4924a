package store

import (
	"errors"
	"math/rand"
	"sync"
	"testing"

	"kienquoc.game/internal/sim/catalogs"
	"kienquoc.game/internal/sim/game"
	"kienquoc.game/internal/sim/room"
	"kienquoc.game/internal/sim/tuning"
)

func builder(t *testing.T) func(id, code string) (*room.Runtime, error) {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return func(id, code string) (*room.Runtime, error) {
		g := game.New(game.Config{ID: id, Code: code, Seed: 1}, tuning.Defaults(), cats)
		return room.New(g, room.Options{}), nil
	}
}

func TestMemStore_CreateLookupDelete(t *testing.T) {
	s := NewMem(rand.New(rand.NewSource(1)), 0)
	build := builder(t)

	rt, err := s.Create(build)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(rt.Code()) != CodeLength {
		t.Fatalf("code %q", rt.Code())
	}
	for _, c := range rt.Code() {
		if c < '0' || c > '9' {
			t.Fatalf("non-digit code %q", rt.Code())
		}
	}
	if got, ok := s.Get(rt.ID()); !ok || got != rt {
		t.Fatalf("get by id")
	}
	if got, ok := s.ByCode(rt.Code()); !ok || got != rt {
		t.Fatalf("get by code")
	}
	if err := s.Put(rt); !errors.Is(err, ErrExists) {
		t.Fatalf("duplicate put: %v", err)
	}
	if _, ok := s.Delete(rt.ID()); !ok {
		t.Fatalf("delete")
	}
	if _, ok := s.ByCode(rt.Code()); ok || s.Len() != 0 {
		t.Fatalf("room still present after delete")
	}
	if _, ok := s.Delete(rt.ID()); ok {
		t.Fatalf("second delete reported success")
	}
}

func TestMemStore_LimitAndUniqueCodes(t *testing.T) {
	s := NewMem(rand.New(rand.NewSource(2)), 50)
	build := builder(t)
	codes := map[string]bool{}
	for i := 0; i < 50; i++ {
		rt, err := s.Create(build)
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if codes[rt.Code()] {
			t.Fatalf("duplicate code %s", rt.Code())
		}
		codes[rt.Code()] = true
	}
	if _, err := s.Create(build); !errors.Is(err, ErrFull) {
		t.Fatalf("expected ErrFull, got %v", err)
	}
	if len(s.List()) != 50 {
		t.Fatalf("list=%d", len(s.List()))
	}
}

func TestMemStore_BuildErrorLeavesStoreEmpty(t *testing.T) {
	s := NewMem(rand.New(rand.NewSource(3)), 0)
	boom := errors.New("boom")
	if _, err := s.Create(func(string, string) (*room.Runtime, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("len=%d", s.Len())
	}
}

func TestMemStore_ConcurrentCreate(t *testing.T) {
	s := NewMem(rand.New(rand.NewSource(4)), 0)
	build := builder(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Create(build); err != nil {
				t.Errorf("create: %v", err)
			}
		}()
	}
	wg.Wait()
	seen := map[string]bool{}
	for _, rt := range s.List() {
		if seen[rt.Code()] {
			t.Fatalf("duplicate code %s", rt.Code())
		}
		seen[rt.Code()] = true
	}
	if len(seen) != 16 {
		t.Fatalf("rooms=%d", len(seen))
	}
}
