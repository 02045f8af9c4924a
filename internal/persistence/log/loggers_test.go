package log

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"kienquoc.game/internal/sim/engine/model"
	"kienquoc.game/internal/sim/room"
)

func TestTurnLogger_ReadableWhileOpenAndSplitByTurn(t *testing.T) {
	dir := t.TempDir()
	l := NewTurnLogger(dir)
	clock := time.Date(2026, 3, 1, 9, 59, 0, 0, time.UTC)

	for turn := 1; turn <= 12; turn++ {
		e := room.TurnLogEntry{
			GameID:  "g",
			Time:    clock.Add(time.Duration(turn) * time.Minute),
			History: model.HistoryEntry{Turn: turn, Digest: fmt.Sprintf("d%d", turn)},
			Result:  model.TurnResult{Turn: turn},
		}
		if err := l.WriteTurn(e); err != nil {
			t.Fatalf("write turn %d: %v", turn, err)
		}
	}

	// Every turn is a finished frame, so a running game can be replayed.
	got, err := ReadTurns(dir)
	if err != nil {
		t.Fatalf("read before close: %v", err)
	}
	if len(got) != 12 {
		t.Fatalf("entries before close=%d", len(got))
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := Files(filepath.Join(dir, "turns"), "turns")
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "turns-0000.jsonl.zst" || filepath.Base(files[1]) != "turns-0010.jsonl.zst" {
		t.Fatalf("files: %v", files)
	}
	got, err = ReadTurns(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for i, e := range got {
		if e.History.Turn != i+1 || e.Result.Turn != i+1 {
			t.Fatalf("entry %d out of order: %+v", i, e.History)
		}
	}
	if got[11].History.Digest != "d12" {
		t.Fatalf("digest=%q", got[11].History.Digest)
	}
}

func TestAuditLogger_AppendsAfterReopen(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		l := NewAuditLogger(dir)
		if err := l.WriteAudit(room.AuditEntry{GameID: "g", Turn: i, Actor: "host", Action: "ADVANCE"}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := l.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	got, err := ReadAudit(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 || got[0].Turn != 0 || got[1].Turn != 1 || got[1].Action != "ADVANCE" {
		t.Fatalf("audit entries: %+v", got)
	}
}

func TestAuditLogger_FramesPerTurn(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)
	for _, turn := range []int{0, 0, 1, 1, 2} {
		if err := l.WriteAudit(room.AuditEntry{GameID: "g", Turn: turn, Actor: "host", Action: "ADVANCE"}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	// Turns 0 and 1 are complete; turn 2 is still open.
	got, err := ReadAudit(dir)
	if err != nil {
		t.Fatalf("read while open: %v", err)
	}
	if len(got) != 4 || got[3].Turn != 1 {
		t.Fatalf("audit entries while open: %+v", got)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	got, err = ReadAudit(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 5 || got[4].Turn != 2 {
		t.Fatalf("audit entries: %+v", got)
	}
}
