package scoring

import (
	"math"
	"testing"

	"kienquoc.game/internal/sim/engine/model"
	"kienquoc.game/internal/sim/tuning"
)

func newScorer() *Scorer { return New(tuning.Defaults().Scoring) }

func cell(t model.CellType, mult float64, idx ...model.Index) model.Cell {
	return model.Cell{ID: "c", Type: t, BaseMultiplier: mult, Indices: idx}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func pointsOf(awards []model.Award) map[string]float64 {
	m := map[string]float64{}
	for _, a := range awards {
		m[a.TeamID] = a.Points
	}
	return m
}

func TestCompetitive_SoloPenalty(t *testing.T) {
	got := newScorer().ScoreCell(cell(model.CellCompetitive, 1.5), []Bid{{TeamID: "A", RP: 8}}, model.Effect{})
	if len(got) != 1 || !near(got[0].Points, 8.4) {
		t.Fatalf("solo competitive: got %+v want 8.4", got)
	}
}

func TestCompetitive_WinnerAndConsolation(t *testing.T) {
	got := pointsOf(newScorer().ScoreCell(cell(model.CellCompetitive, 1.5), []Bid{
		{TeamID: "A", RP: 6},
		{TeamID: "B", RP: 4},
		{TeamID: "C", RP: 0},
	}, model.Effect{}))
	if !near(got["A"], 9) || !near(got["B"], 2) {
		t.Fatalf("got %v want A=9 B=2", got)
	}
	if _, ok := got["C"]; ok {
		t.Fatalf("zero bid must not participate")
	}
}

func TestCompetitive_TiesSplitPot(t *testing.T) {
	got := pointsOf(newScorer().ScoreCell(cell(model.CellCompetitive, 1.5), []Bid{
		{TeamID: "A", RP: 4},
		{TeamID: "B", RP: 4},
		{TeamID: "C", RP: 2},
	}, model.Effect{}))
	if !near(got["A"], 3) || !near(got["B"], 3) || !near(got["C"], 1) {
		t.Fatalf("got %v want A=3 B=3 C=1", got)
	}
}

func TestSynergy_ScalesWithParticipants(t *testing.T) {
	s := newScorer()
	three := pointsOf(s.ScoreCell(cell(model.CellSynergy, 1.8), []Bid{
		{TeamID: "A", RP: 2}, {TeamID: "B", RP: 2}, {TeamID: "C", RP: 2},
	}, model.Effect{}))
	// 2 * 1.8 * (1 + 2*0.25)
	if !near(three["A"], 5.4) {
		t.Fatalf("synergy x3: got %v want 5.4", three["A"])
	}
	solo := s.ScoreCell(cell(model.CellSynergy, 1.8), []Bid{{TeamID: "A", RP: 2}}, model.Effect{})
	if !near(solo[0].Points, 2*1.8*0.7) {
		t.Fatalf("synergy solo: got %v", solo[0].Points)
	}
}

func TestIndependent_IgnoresParticipantCount(t *testing.T) {
	got := pointsOf(newScorer().ScoreCell(cell(model.CellIndependent, 1.5), []Bid{
		{TeamID: "A", RP: 3}, {TeamID: "B", RP: 1},
	}, model.Effect{}))
	if !near(got["A"], 4.5) || !near(got["B"], 1.5) {
		t.Fatalf("got %v", got)
	}
}

func TestCooperation_ShortfallPenaltyIsPositiveAndBelowFull(t *testing.T) {
	s := newScorer()
	c := cell(model.CellCooperation, 2.5)
	for rp := 1; rp <= 20; rp++ {
		full := s.ScoreCell(c, []Bid{{TeamID: "A", RP: rp}, {TeamID: "B", RP: rp}}, model.Effect{})
		short := s.ScoreCell(c, []Bid{{TeamID: "A", RP: rp}}, model.Effect{})
		if short[0].Points <= 0 || short[0].Points >= full[0].Points {
			t.Fatalf("rp=%d: shortfall=%v full=%v", rp, short[0].Points, full[0].Points)
		}
	}

	// Raised minimum via modifier: two teams are now a shortfall.
	e := model.Effect{MinCoopTeams: 3}
	got := s.ScoreCell(c, []Bid{{TeamID: "A", RP: 4}, {TeamID: "B", RP: 4}}, e)
	if !near(got[0].Points, 4*2.5*0.7) {
		t.Fatalf("min coop override: got %v", got[0].Points)
	}
}

func TestModifierAndRegionBonus(t *testing.T) {
	e := model.Effect{GlobalMultiplier: 0.9, CellTypeMultipliers: map[model.CellType]float64{model.CellIndependent: 2}}
	c := cell(model.CellIndependent, 1.5, model.Economy, model.Society)
	got := pointsOf(newScorer().ScoreCell(c, []Bid{
		{TeamID: "A", RP: 2, Specialties: []model.Index{model.Society}},
		{TeamID: "B", RP: 2, Specialties: []model.Index{model.Culture}},
	}, e))
	// 2 * 1.5 * 0.9 * 2 = 5.4; region bonus 1.2 for A.
	if !near(got["B"], 5.4) || !near(got["A"], 5.4*1.2) {
		t.Fatalf("got %v", got)
	}
}

func TestProject_ScoresUnconditionally(t *testing.T) {
	got := newScorer().ScoreCell(cell(model.CellProject, 1.0), []Bid{{TeamID: "A", RP: 5}}, model.Effect{})
	if !near(got[0].Points, 5) {
		t.Fatalf("got %v want 5", got[0].Points)
	}
}
