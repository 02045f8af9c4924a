package turn

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"testing"

	"kienquoc.game/internal/sim/catalogs"
	"kienquoc.game/internal/sim/engine/gameover"
	"kienquoc.game/internal/sim/engine/model"
	"kienquoc.game/internal/sim/engine/modifier"
	"kienquoc.game/internal/sim/tuning"
)

func newProcessor(t *testing.T) *Processor {
	t.Helper()
	cats, err := catalogs.Load("../../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return New(tuning.Defaults(), cats)
}

func teams(ids ...string) []model.TeamMeta {
	out := make([]model.TeamMeta, len(ids))
	for i, id := range ids {
		out[i] = model.TeamMeta{ID: id, Name: "Team " + id, Owner: model.OwnerAI}
	}
	return out
}

// plainEvent returns the catalog event for turn with its fixed modifier removed.
func plainEvent(p *Processor, turn int) *model.TurnEvent {
	ev := p.cats.Events.ByTurn[turn]
	ev.ModifierID = ""
	return &ev
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestProcess_ThreeTeamProjectScenario(t *testing.T) {
	p := newProcessor(t)
	res, err := p.Process(Input{
		Turn:  1,
		Teams: teams("A", "B", "C"),
		Placements: map[string]model.Placements{
			"A": {"cell-1-1": 10},
			"B": {"cell-1-2": 5},
			"C": {"cell-1-0": 4},
		},
		Indices:     model.UniformIndices(10),
		ActiveTeams: 3,
		Event:       plainEvent(p, 1),
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	pr := res.Project
	if pr.ScaledMinTotal != 10 || pr.ScaledMinTeams != 1 {
		t.Fatalf("scaled requirement: %+v", pr)
	}
	if !pr.Success || pr.TotalRP != 15 || pr.ContributingTeams != 2 {
		t.Fatalf("project: %+v", pr)
	}
	tr := res.TurnResult
	// 8 points split 10/15 and 5/15, floored.
	if tr.PointsFor("A").Project != 5 || tr.PointsFor("B").Project != 2 {
		t.Fatalf("bonus: A=%+v B=%+v", tr.PointsFor("A"), tr.PointsFor("B"))
	}
	if c := tr.PointsFor("C"); c.Cell != 6 || c.Total != 6 || c.Project != 0 {
		t.Fatalf("independent cell: %+v", c)
	}
	want := model.UniformIndices(9)
	want[model.Economy] = 13
	want[model.Society] = 12
	if res.FinalIndices != want {
		t.Fatalf("indices: got %v want %v", res.FinalIndices, want)
	}
	if res.History.IndicesAfter != want || res.History.Digest == "" {
		t.Fatalf("history not filled: %+v", res.History)
	}
}

func TestProcess_MaintenanceDrivesIndexToZero(t *testing.T) {
	p := newProcessor(t)
	ix := model.UniformIndices(10)
	ix[model.Culture] = 1
	res, err := p.Process(Input{
		Turn:        1,
		Teams:       teams("A", "B"),
		Indices:     ix,
		ActiveTeams: 2,
		Event:       plainEvent(p, 1),
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.FinalIndices[model.Culture] != 0 {
		t.Fatalf("culture=%d want 0", res.FinalIndices[model.Culture])
	}
	st := gameover.Check(res.FinalIndices, p.tune.Indices.Min)
	if !st.GameOver || st.ZeroIndex != model.Culture {
		t.Fatalf("game over: %+v", st)
	}
}

func TestProcess_LastTurnSkipsMaintenance(t *testing.T) {
	p := newProcessor(t)
	ix := model.UniformIndices(10)
	ix[model.Culture] = 1
	res, err := p.Process(Input{
		Turn:        7,
		Teams:       teams("A", "B"),
		Indices:     ix,
		ActiveTeams: 2,
		Event:       plainEvent(p, 7),
		IsLastTurn:  true,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.FinalIndices[model.Culture] != 1 || !res.TurnResult.Maintenance.IsZero() {
		t.Fatalf("maintenance applied on last turn: %v", res.FinalIndices)
	}
}

func TestProcess_ZoneBoostUsesAdjustedDivisor(t *testing.T) {
	p := newProcessor(t)
	in := Input{
		Turn:        1,
		Teams:       teams("A"),
		Placements:  map[string]model.Placements{"A": {"cell-1-0": 15}},
		Indices:     model.UniformIndices(10),
		ActiveTeams: 2,
		Event:       plainEvent(p, 1),
	}
	res, err := p.Process(in)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if z := res.TurnResult.ZoneDeltas; z[model.Society] != 2 || z[model.Environment] != 2 || z[model.Economy] != 0 {
		t.Fatalf("zone deltas with divisor 6: %v", z)
	}

	in.RandomModifiers = []string{"admin_reform"}
	res, err = p.Process(in)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if z := res.TurnResult.ZoneDeltas; z[model.Society] != 3 {
		t.Fatalf("zone deltas with divisor 5: %v", z)
	}
	if res.History.RandomModifier != "admin_reform" {
		t.Fatalf("random modifier not recorded: %q", res.History.RandomModifier)
	}
}

func TestProcess_UnderdogAndModifierBonus(t *testing.T) {
	p := newProcessor(t)
	seq := make([]string, 8)
	seq[5] = "bumper_harvest"
	res, err := p.Process(Input{
		Turn:  6,
		Teams: teams("A", "B", "C", "D", "E"),
		Placements: map[string]model.Placements{
			"A": {"cell-1-0": 2},
			"B": {"cell-1-0": 2},
			"C": {"cell-1-0": 2},
			"D": {"cell-1-0": 2},
		},
		Indices:          model.UniformIndices(10),
		ActiveTeams:      5,
		CumulativePoints: map[string]float64{"A": 0, "B": 50, "C": 50, "D": 50, "E": 1},
		RandomModifiers:  seq,
		Event:            plainEvent(p, 6),
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	tr := res.TurnResult
	if len(tr.UnderdogTeams) != 2 || tr.UnderdogTeams[0] != "A" || tr.UnderdogTeams[1] != "E" {
		t.Fatalf("underdogs: %v", tr.UnderdogTeams)
	}
	// A: (3 cell + 2 flat) x 1.15 + 1 modifier.
	a := tr.PointsFor("A")
	if !near(a.Cell, 3) || !near(a.Underdog, 2.75) || !near(a.Modifier, 1) || !near(a.Total, 6.75) {
		t.Fatalf("A breakdown: %+v", a)
	}
	if b := tr.PointsFor("B"); !near(b.Total, 4) || b.Underdog != 0 {
		t.Fatalf("B breakdown: %+v", b)
	}
	// E is an underdog but placed nothing.
	if e := tr.PointsFor("E"); e.Total != 0 {
		t.Fatalf("E breakdown: %+v", e)
	}
	if z := tr.ZoneDeltas; z[model.Society] != 1 {
		t.Fatalf("zone: %v", z)
	}
}

func TestProcess_Conservation(t *testing.T) {
	p := newProcessor(t)
	rng := rand.New(rand.NewSource(3))
	seq := modifier.Sequence(p.cats.Modifiers.RandomIDs, rng)
	ids := []string{"A", "B", "C", "D", "E", "F"}
	cum := map[string]float64{}
	ix := p.tune.Indices.StartVector()
	for turn := 1; turn <= p.cats.Events.MaxTurn; turn++ {
		pl := randomPlacements(rng, p, ids)
		ev := p.cats.Events.ByTurn[turn]
		res, err := p.Process(Input{
			Turn: turn, Teams: teams(ids...), Placements: pl, Indices: ix,
			ActiveTeams: len(ids), CumulativePoints: cum, RandomModifiers: seq,
			Event: &ev, IsLastTurn: turn == p.cats.Events.MaxTurn,
		})
		if err != nil {
			t.Fatalf("turn %d: %v", turn, err)
		}
		awarded := map[string]float64{}
		for _, c := range res.TurnResult.CellResults {
			for _, a := range c.Awards {
				awarded[a.TeamID] += a.Points
			}
		}
		for _, bd := range res.TurnResult.TeamPoints {
			if bd.Total != model.Round2(bd.Cell+bd.Project+bd.Underdog+bd.Modifier) {
				t.Fatalf("turn %d %s: total %v != parts %+v", turn, bd.TeamID, bd.Total, bd)
			}
			if bd.Cell != model.Round2(awarded[bd.TeamID]) {
				t.Fatalf("turn %d %s: cell %v != awards %v", turn, bd.TeamID, bd.Cell, awarded[bd.TeamID])
			}
			if bd.Total != model.Round2(bd.Total) {
				t.Fatalf("turn %d %s: unrounded total %v", turn, bd.TeamID, bd.Total)
			}
			cum[bd.TeamID] = model.Round2(cum[bd.TeamID] + bd.Total)
		}
		ix = res.FinalIndices
	}
}

func randomPlacements(rng *rand.Rand, p *Processor, ids []string) map[string]model.Placements {
	out := map[string]model.Placements{}
	cells := p.cats.Board.Cells
	for _, id := range ids {
		pl := model.Placements{}
		budget := p.tune.Game.ResourcesPerTurn
		for budget > 0 {
			n := 1 + rng.Intn(budget)
			pl[cells[rng.Intn(len(cells))].ID] += n
			budget -= n
		}
		out[id] = pl
	}
	return out
}

func TestProcess_ClampUnderAdversarialInput(t *testing.T) {
	p := newProcessor(t)
	huge := model.Placements{}
	for _, c := range p.cats.Board.Cells {
		huge[c.ID] = 1 << 40
	}
	starts := []model.Indices{
		model.UniformIndices(0),
		model.UniformIndices(30),
		{-50, 99, 0, 30, 1, 29},
	}
	for turn := 1; turn <= p.cats.Events.MaxTurn; turn++ {
		for _, start := range starts {
			for _, last := range []bool{false, true} {
				ev := p.cats.Events.ByTurn[turn]
				res, err := p.Process(Input{
					Turn:  turn,
					Teams: teams("A", "B", "C"),
					Placements: map[string]model.Placements{
						"A": huge,
						"B": {"cell-0-0": -100, "nowhere": 5},
						"C": {},
					},
					Indices:         start,
					ActiveTeams:     3,
					RandomModifiers: p.cats.Modifiers.RandomIDs,
					Event:           &ev,
					IsLastTurn:      last,
				})
				if err != nil {
					t.Fatalf("turn %d: %v", turn, err)
				}
				for i, v := range res.FinalIndices {
					if v < p.tune.Indices.Min || v > p.tune.Indices.Max {
						t.Fatalf("turn %d start %v: index %s=%d out of range", turn, start, model.Index(i), v)
					}
				}
				if b := res.TurnResult.PointsFor("B"); b.Total != 0 {
					t.Fatalf("negative and unknown placements scored: %+v", b)
				}
			}
		}
	}
}

func TestProcess_Deterministic(t *testing.T) {
	p := newProcessor(t)
	ev := p.cats.Events.ByTurn[4]
	mk := func() Input {
		return Input{
			Turn:  4,
			Teams: teams("A", "B", "C", "D"),
			Placements: map[string]model.Placements{
				"A": {"cell-0-3": 6, "cell-1-1": 4, "cell-3-2": 4},
				"B": {"cell-0-3": 6, "cell-2-2": 8},
				"C": {"cell-0-1": 7, "cell-3-2": 7},
				"D": {"cell-0-3": -2, "cell-0-1": 3},
			},
			Indices:          model.UniformIndices(8),
			ActiveTeams:      4,
			CumulativePoints: map[string]float64{"A": 20.5, "B": 3, "C": 14.25, "D": 3},
			RandomModifiers:  []string{"calm_year", "bumper_harvest", "admin_reform", "emulation_movement"},
			Event:            &ev,
		}
	}
	in := mk()
	r1, err := p.Process(in)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	r2, err := p.Process(mk())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	b1, _ := json.Marshal(r1)
	b2, _ := json.Marshal(r2)
	if !bytes.Equal(b1, b2) {
		t.Fatalf("outputs differ:\n%s\n%s", b1, b2)
	}
	if r1.History.Digest != Digest(r2.History) {
		t.Fatalf("digest mismatch")
	}
	if in.Placements["D"]["cell-0-3"] != -2 {
		t.Fatalf("input placements mutated")
	}
}

func TestProcess_Errors(t *testing.T) {
	p := newProcessor(t)
	ev := p.cats.Events.ByTurn[2]
	base := Input{Turn: 2, Teams: teams("A", "B"), ActiveTeams: 2, Event: &ev, Indices: model.UniformIndices(10)}

	for _, turn := range []int{0, 9} {
		in := base
		in.Turn = turn
		if _, err := p.Process(in); !errors.Is(err, ErrInvalidTurnIndex) {
			t.Fatalf("turn %d: got %v", turn, err)
		}
	}

	cases := map[string]func(in *Input){
		"nil event":      func(in *Input) { in.Event = nil },
		"event mismatch": func(in *Input) { in.Turn = 3 },
		"no teams":       func(in *Input) { in.Teams = nil },
		"duplicate team": func(in *Input) { in.Teams = teams("A", "A") },
		"zero active":    func(in *Input) { in.ActiveTeams = 0 },
		"bad random":     func(in *Input) { in.RandomModifiers = []string{"x", "no_such_modifier"} },
	}
	for name, mutate := range cases {
		in := base
		mutate(&in)
		if _, err := p.Process(in); !errors.Is(err, ErrMalformedInput) {
			t.Fatalf("%s: got %v", name, err)
		}
	}
}

func TestPrepareNextTurn(t *testing.T) {
	p := newProcessor(t)
	ev, err := p.PrepareNextTurn(1, 3)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if ev.ScaledMinTotal != 10 || ev.ScaledMinTeams != 1 || ev.MinTotal != 20 {
		t.Fatalf("scaled event: %+v", ev)
	}
	if _, err := p.PrepareNextTurn(9, 3); !errors.Is(err, ErrInvalidTurnIndex) {
		t.Fatalf("turn 9: %v", err)
	}
}
