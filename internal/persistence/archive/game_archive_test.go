package archive

import (
	"os"
	"path/filepath"
	"testing"

	"kienquoc.game/internal/persistence/snapshot"
	"kienquoc.game/internal/sim/engine/model"
	"kienquoc.game/internal/sim/game"
)

func TestArchiveGame_CopiesFinishedSnapshot(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "games", "g1", "snapshots", "00085.snap.zst")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(src, []byte("dummy"), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}

	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, GameID: "g1", Turn: 8, Phase: "finished"},
		Game: game.Snapshot{
			ID:      "g1",
			Code:    "424242",
			Seed:    42,
			History: []model.HistoryEntry{{Turn: 1, Digest: "a"}, {Turn: 2, Digest: "b"}},
			Over: &model.GameOverState{
				Reason:      model.ReasonCompleted,
				TurnsPlayed: 8,
				Ranking:     []model.RankEntry{{Rank: 1, TeamID: "tay-bac"}},
			},
		},
	}
	path, ok, err := ArchiveGame(dir, src, snap)
	if err != nil || !ok {
		t.Fatalf("archive: ok=%v err=%v", ok, err)
	}
	if got, err := os.ReadFile(path); err != nil || string(got) != "dummy" {
		t.Fatalf("archived copy: %q %v", got, err)
	}
	meta, err := ReadMeta(dir, "g1")
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.Winner != "tay-bac" || meta.Reason != "completed" || len(meta.Digests) != 2 || meta.Snapshot != "00085.snap.zst" {
		t.Fatalf("meta: %+v", meta)
	}
}

func TestArchiveGame_SkipsRunningGame(t *testing.T) {
	snap := snapshot.SnapshotV1{Header: snapshot.Header{GameID: "g1", Turn: 3, Phase: "action"}}
	if _, ok, err := ArchiveGame(t.TempDir(), "unused", snap); ok || err != nil {
		t.Fatalf("running game archived: ok=%v err=%v", ok, err)
	}
}
