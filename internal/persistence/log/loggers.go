package log

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"kienquoc.game/internal/sim/room"
)

// turnsPerFile is how many turns share one log file.
const turnsPerFile = 10

// segmentWriter appends JSON lines to zstd files under dir, one file per
// block of turns: <prefix>-<first turn>.jsonl.zst. Lines collect in an open
// zstd frame; only completed frames are visible to readers, so a crash loses
// at most the open frame.
type segmentWriter struct {
	dir    string
	prefix string

	mu        sync.Mutex
	seg       int
	f         *os.File
	enc       *zstd.Encoder
	pending   bool // enc holds an unfinished frame
	frameTurn int
}

func newSegmentWriter(dir, prefix string) *segmentWriter {
	return &segmentWriter{dir: dir, prefix: prefix, seg: -1}
}

func segmentFor(turn int) int {
	if turn < 0 {
		return 0
	}
	return turn - turn%turnsPerFile
}

func (w *segmentWriter) path(seg int) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%04d.jsonl.zst", w.prefix, seg))
}

// Write appends v to the file for turn. The open frame is completed first
// when turn differs from the frame's turn, and afterwards when endFrame is set.
func (w *segmentWriter) Write(turn int, v any, endFrame bool) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending && turn != w.frameTurn {
		if err := w.endFrameLocked(); err != nil {
			return err
		}
	}
	if seg := segmentFor(turn); w.f == nil || seg != w.seg {
		if err := w.openLocked(seg); err != nil {
			return err
		}
	}
	if !w.pending {
		w.enc.Reset(w.f)
		w.pending = true
		w.frameTurn = turn
	}
	if _, err := w.enc.Write(b); err != nil {
		return err
	}
	if endFrame {
		return w.endFrameLocked()
	}
	return nil
}

func (w *segmentWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *segmentWriter) openLocked(seg int) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path(seg), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if w.enc == nil {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			_ = f.Close()
			return err
		}
		w.enc = enc
	}
	w.f = f
	w.seg = seg
	return nil
}

func (w *segmentWriter) endFrameLocked() error {
	if !w.pending {
		return nil
	}
	w.pending = false
	return w.enc.Close()
}

func (w *segmentWriter) closeLocked() error {
	err := w.endFrameLocked()
	if w.f != nil {
		if cerr := w.f.Close(); err == nil {
			err = cerr
		}
		w.f = nil
	}
	w.seg = -1
	return err
}

// TurnLogger writes one entry per resolved turn. Each entry is its own
// frame, so replay can read a game that is still running.
type TurnLogger struct{ w *segmentWriter }

func NewTurnLogger(gameDir string) *TurnLogger {
	return &TurnLogger{w: newSegmentWriter(filepath.Join(gameDir, "turns"), "turns")}
}

func (l *TurnLogger) WriteTurn(e room.TurnLogEntry) error {
	return l.w.Write(e.History.Turn, e, true)
}
func (l *TurnLogger) Close() error { return l.w.Close() }

// AuditLogger batches a turn's audit entries into one frame, completed when
// an entry for another turn arrives or on Close.
type AuditLogger struct{ w *segmentWriter }

func NewAuditLogger(gameDir string) *AuditLogger {
	return &AuditLogger{w: newSegmentWriter(filepath.Join(gameDir, "audit"), "audit")}
}

func (l *AuditLogger) WriteAudit(e room.AuditEntry) error { return l.w.Write(e.Turn, e, false) }
func (l *AuditLogger) Close() error                       { return l.w.Close() }
