package catalogs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kienquoc.game/internal/sim/engine/model"
)

func TestLoad_RepoConfigs(t *testing.T) {
	c, err := Load("../../../configs")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Board.Cells) != 16 {
		t.Fatalf("cells=%d want 16", len(c.Board.Cells))
	}
	if got := len(c.Board.ProjectCells()); got != 4 {
		t.Fatalf("project cells=%d want 4", got)
	}
	if c.Board.Cells[0].ID != "cell-0-0" || c.Board.Cells[15].ID != "cell-3-3" {
		t.Fatalf("cells not row-major: first=%s last=%s", c.Board.Cells[0].ID, c.Board.Cells[15].ID)
	}
	if m := c.Board.ByID["cell-0-3"].BaseMultiplier; m != 1.5 {
		t.Fatalf("competitive multiplier=%v want 1.5", m)
	}
	if c.Events.MaxTurn != 8 {
		t.Fatalf("max turn=%d want 8", c.Events.MaxTurn)
	}
	ev := c.Events.ByTurn[1]
	if ev.Year != 1986 || ev.MinTotal != 20 || ev.MinTeams != 3 || ev.SuccessReward.Points != 8 {
		t.Fatalf("turn 1 event mismatch: %+v", ev)
	}
	if ev.SuccessReward.Indices[model.Economy] != 4 || ev.FailurePenalty.Indices[model.Society] != -3 {
		t.Fatalf("turn 1 reward/penalty mismatch: %+v", ev)
	}
	if len(c.Modifiers.RandomIDs) < c.Events.MaxTurn {
		t.Fatalf("random modifier pool smaller than game length: %d", len(c.Modifiers.RandomIDs))
	}
	if len(c.Regions.List) != 6 {
		t.Fatalf("regions=%d want 6", len(c.Regions.List))
	}
	for _, d := range []string{c.Board.Digest, c.Events.Digest, c.Modifiers.Digest, c.Regions.Digest} {
		if len(d) != 64 {
			t.Fatalf("bad digest %q", d)
		}
	}
}

func TestLoad_EventReferencesUnknownModifier(t *testing.T) {
	dir := t.TempDir()
	copyConfig(t, dir, "board.json", "modifiers.json", "regions.json")
	ev := `[{"turn":1,"year":1986,"name":"x","project":"p","min_total":1,"min_teams":1,"success_reward":{"indices":{}},"failure_penalty":{"indices":{}},"modifier_id":"nope"}]`
	if err := os.WriteFile(filepath.Join(dir, "events.json"), []byte(ev), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "unknown modifier") {
		t.Fatalf("expected unknown modifier error, got %v", err)
	}
}

func copyConfig(t *testing.T, dst string, names ...string) {
	t.Helper()
	for _, n := range names {
		b, err := os.ReadFile(filepath.Join("../../../configs", n))
		if err != nil {
			t.Fatalf("read %s: %v", n, err)
		}
		if err := os.WriteFile(filepath.Join(dst, n), b, 0o644); err != nil {
			t.Fatalf("write %s: %v", n, err)
		}
	}
}
