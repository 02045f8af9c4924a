package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"kienquoc.game/internal/persistence/archive"
	"kienquoc.game/internal/persistence/indexdb"
	persistlog "kienquoc.game/internal/persistence/log"
	"kienquoc.game/internal/persistence/r2s3"
	"kienquoc.game/internal/persistence/snapshot"
	"kienquoc.game/internal/sim/catalogs"
	"kienquoc.game/internal/sim/game"
	"kienquoc.game/internal/sim/room"
	"kienquoc.game/internal/sim/store"
	"kienquoc.game/internal/sim/tuning"
)

// gameHost owns every running room: it wires logs, the index and the
// snapshot writer into each one and restores unfinished games on boot.
type gameHost struct {
	ctx     context.Context
	dataDir string
	cats    *catalogs.Catalogs
	tune    tuning.Tuning
	games   store.Store
	idx     indexdb.Index // nil when indexing is off
	mirror  *r2s3.Mirror  // nil unless KQ_ARCHIVE_MIRROR
	opts    room.Options
	logger  *log.Logger

	wg sync.WaitGroup
}

func (h *gameHost) gameDir(id string) string {
	return filepath.Join(h.dataDir, "games", id)
}

// create registers a fresh lobby and starts its loop.
func (h *gameHost) create(seed int64) (*room.Runtime, error) {
	return h.games.Create(func(id, code string) (*room.Runtime, error) {
		g := game.New(game.Config{ID: id, Code: code, Seed: seed}, h.tune, h.cats)
		return h.launch(g, ""), nil
	})
}

func (h *gameHost) launch(g *game.Game, hostToken string) *room.Runtime {
	dir := h.gameDir(g.ID())
	_ = os.MkdirAll(dir, 0o755)

	rt := room.New(g, h.opts)
	rt.SetHostToken(hostToken)

	turnLog := persistlog.NewTurnLogger(dir)
	auditLog := persistlog.NewAuditLogger(dir)
	rt.SetTurnLogger(multiTurnLogger{a: turnLog, b: h.idx})
	rt.SetAuditLogger(multiAuditLogger{a: auditLog, b: h.idx})
	if h.idx != nil {
		rt.SetIndex(h.idx)
	}

	snapCh := make(chan snapshot.SnapshotV1, 4)
	rt.SetSnapshotSink(snapCh)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		if err := rt.Run(h.ctx); err != nil && !errors.Is(err, context.Canceled) {
			h.logger.Printf("game %s stopped: %v", rt.ID(), err)
		}
		_ = turnLog.Close()
		_ = auditLog.Close()
	}()
	go func() {
		defer h.wg.Done()
		h.writeSnapshots(rt, dir, snapCh)
	}()
	return rt
}

func (h *gameHost) writeSnapshots(rt *room.Runtime, dir string, ch <-chan snapshot.SnapshotV1) {
	for {
		select {
		case snap := <-ch:
			h.writeSnapshot(dir, snap)
		case <-rt.Done():
			for {
				select {
				case snap := <-ch:
					h.writeSnapshot(dir, snap)
				default:
					return
				}
			}
		}
	}
}

func (h *gameHost) writeSnapshot(dir string, snap snapshot.SnapshotV1) {
	// Mid-game autosaves favour speed; the final snapshot is archived and
	// favours size.
	ext := snapshot.ExtLZ4
	if snap.Game.Over != nil {
		ext = snapshot.ExtZstd
	}
	path := filepath.Join(dir, "snapshots", snapshot.FileName(snap.Header, ext))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		h.logger.Printf("game %s: snapshot write: %v", snap.Header.GameID, err)
		return
	}
	if h.idx != nil {
		h.idx.RecordSnapshot(path, snap)
	}
	if archived, ok, err := archive.ArchiveGame(h.dataDir, path, snap); err != nil {
		h.logger.Printf("game %s: archive: %v", snap.Header.GameID, err)
	} else if ok {
		h.logger.Printf("game %s: archived to %s", snap.Header.GameID, archived)
		h.mirror.Enqueue(snap.Header.GameID, archived, filepath.Join(filepath.Dir(archived), "meta.json"))
	}
}

// restoreAll resumes every game whose latest snapshot is not finished.
func (h *gameHost) restoreAll() (int, error) {
	ents, err := os.ReadDir(filepath.Join(h.dataDir, "games"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	n := 0
	for _, e := range ents {
		if !e.IsDir() {
			continue
		}
		if err := h.restore(e.Name()); err != nil {
			h.logger.Printf("restore %s: %v", e.Name(), err)
			continue
		}
		n++
	}
	return n, nil
}

var errNothingToRestore = errors.New("nothing to restore")

func (h *gameHost) restore(id string) error {
	path, err := snapshot.Latest(filepath.Join(h.gameDir(id), "snapshots"))
	if err != nil {
		return err
	}
	if path == "" {
		return errNothingToRestore
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return err
	}
	if snap.Game.Over != nil {
		return fmt.Errorf("%w: game finished", errNothingToRestore)
	}
	g, err := game.Restore(snap.Game, h.tune, h.cats)
	if err != nil {
		return err
	}
	rt := h.launch(g, snap.Header.HostToken)
	if err := h.games.Put(rt); err != nil {
		rt.Stop()
		return err
	}
	h.logger.Printf("resumed game=%s code=%s from %s", g.ID(), g.Code(), filepath.Base(path))
	return nil
}

// remove stops a room and forgets it. Its files stay on disk.
func (h *gameHost) remove(id string) bool {
	rt, ok := h.games.Delete(id)
	if ok {
		rt.Stop()
	}
	return ok
}

// wait blocks until every room loop and snapshot writer has returned. The
// host context must be cancelled first.
func (h *gameHost) wait() { h.wg.Wait() }

type multiTurnLogger struct {
	a room.TurnLogger
	b room.TurnLogger
}

func (m multiTurnLogger) WriteTurn(entry room.TurnLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTurn(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTurn(entry)
	}
	return nil
}

type multiAuditLogger struct {
	a room.AuditLogger
	b room.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry room.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
