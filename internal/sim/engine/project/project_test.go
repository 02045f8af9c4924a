package project

import (
	"testing"

	"kienquoc.game/internal/sim/engine/model"
	"kienquoc.game/internal/sim/tuning"
)

func firstEvent() model.TurnEvent {
	return model.TurnEvent{
		Turn:           1,
		Project:        "Nghị quyết Khoán 10",
		MinTotal:       20,
		MinTeams:       3,
		SuccessReward:  model.Reward{Points: 8, Indices: model.Indices{model.Economy: 4, model.Society: 3}},
		FailurePenalty: model.Reward{Indices: model.Indices{model.Economy: -4, model.Society: -3}},
	}
}

func TestScale_Monotonic(t *testing.T) {
	r := tuning.Defaults().Project
	for _, ev := range []model.TurnEvent{
		{MinTotal: 20, MinTeams: 3},
		{MinTotal: 28, MinTeams: 4},
		{MinTotal: 1, MinTeams: 6},
		{MinTotal: 0, MinTeams: 0},
	} {
		prevTotal, prevTeams := -1, -1
		for n := 0; n <= 8; n++ {
			s := Scale(ev, n, r)
			if s.ScaledMinTotal < prevTotal || s.ScaledMinTeams < prevTeams {
				t.Fatalf("not monotonic at n=%d for %+v: total %d->%d teams %d->%d",
					n, ev, prevTotal, s.ScaledMinTotal, prevTeams, s.ScaledMinTeams)
			}
			prevTotal, prevTeams = s.ScaledMinTotal, s.ScaledMinTeams
		}
	}
}

func TestScale_ReferenceCountIsUnscaled(t *testing.T) {
	s := Scale(firstEvent(), 6, tuning.Defaults().Project)
	if s.ScaledMinTotal != 20 || s.ScaledMinTeams != 3 {
		t.Fatalf("got total=%d teams=%d", s.ScaledMinTotal, s.ScaledMinTeams)
	}
}

func TestResolve_ThreeTeamScenario(t *testing.T) {
	out := Resolve(firstEvent(), []model.Contribution{
		{TeamID: "A", RP: 10},
		{TeamID: "B", RP: 5},
		{TeamID: "C", RP: 0},
	}, 3, model.Effect{}, tuning.Defaults().Project)

	if out.ScaledMinTotal != 10 || out.ScaledMinTeams != 1 {
		t.Fatalf("scaled total=%d teams=%d want 10/1", out.ScaledMinTotal, out.ScaledMinTeams)
	}
	if !out.Success || out.TotalRP != 15 || out.ContributingTeams != 2 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	// floor(8*10/15)=5, floor(8*5/15)=2
	if len(out.Contributions) != 2 || out.Contributions[0].Bonus != 5 || out.Contributions[1].Bonus != 2 {
		t.Fatalf("bonus split: %+v", out.Contributions)
	}
	if out.IndexDeltas[model.Economy] != 4 || out.IndexDeltas[model.Society] != 3 {
		t.Fatalf("success deltas: %v", out.IndexDeltas)
	}
}

func TestResolve_FailureAppliesPenalty(t *testing.T) {
	out := Resolve(firstEvent(), []model.Contribution{{TeamID: "A", RP: 5}, {TeamID: "B", RP: 5}},
		6, model.Effect{}, tuning.Defaults().Project)
	if out.Success {
		t.Fatalf("10 RP from 2 teams must fail a 20/3 requirement")
	}
	if out.IndexDeltas[model.Economy] != -4 || out.Contributions[0].Bonus != 0 {
		t.Fatalf("failure outcome: %+v", out)
	}
}

func TestResolve_ProjectMultiplierCountsTowardRequirement(t *testing.T) {
	ev := firstEvent()
	contrib := []model.Contribution{{TeamID: "A", RP: 6}, {TeamID: "B", RP: 6}, {TeamID: "C", RP: 5}}
	r := tuning.Defaults().Project
	if Resolve(ev, contrib, 6, model.Effect{}, r).Success {
		t.Fatalf("17 RP must fail without multiplier")
	}
	out := Resolve(ev, contrib, 6, model.Effect{ProjectRPMultiplier: 1.2}, r)
	if !out.Success || out.EffectiveRP < 20 {
		t.Fatalf("17*1.2 should pass: %+v", out)
	}
	// Bonus uses raw RP shares.
	if out.Contributions[0].Bonus != 8*6/17 {
		t.Fatalf("bonus=%d", out.Contributions[0].Bonus)
	}
}
