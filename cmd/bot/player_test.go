package main

import (
	"io"
	"log"
	"math/rand"
	"testing"

	"kienquoc.game/internal/protocol"
	"kienquoc.game/internal/sim/catalogs"
	"kienquoc.game/internal/sim/game"
	"kienquoc.game/internal/sim/tuning"
)

func TestPlayer_SubmitsOncePerTurn(t *testing.T) {
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	tune := tuning.Defaults()
	g := game.New(game.Config{ID: "bot", Code: "100200", Seed: 8}, tune, cats)
	if _, err := g.ClaimTeam("thu-do"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := g.Start(true); err != nil {
		t.Fatalf("start: %v", err)
	}

	p := &player{teamID: "thu-do", rng: rand.New(rand.NewSource(1)), cats: cats, tune: tune, log: log.New(io.Discard, "", 0)}
	if out := p.onState(g.View().For(game.RolePlayer, "thu-do")); out != nil {
		t.Fatalf("acted in event phase: %v", out)
	}
	if _, err := g.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}

	v := g.View().For(game.RolePlayer, "thu-do")
	out := p.onState(v)
	if len(out) != 2 {
		t.Fatalf("messages: %v", out)
	}
	set, ok := out[0].(protocol.SetPlacementsMsg)
	if !ok || set.Seq != 1 {
		t.Fatalf("first message: %#v", out[0])
	}
	if sub, ok := out[1].(protocol.SubmitMsg); !ok || sub.Seq != 2 {
		t.Fatalf("second message: %#v", out[1])
	}
	if total := set.Placements.Total(); total <= 0 || total > g.Budget("thu-do") {
		t.Fatalf("placement total %d, budget %d", total, g.Budget("thu-do"))
	}
	if err := g.SetPlacements("thu-do", set.Placements); err != nil {
		t.Fatalf("server would reject placements: %v", err)
	}

	if again := p.onState(v); again != nil {
		t.Fatalf("acted twice in turn %d", v.Turn)
	}
}

func TestDecisionContext_FromPlayerView(t *testing.T) {
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	g := game.New(game.Config{ID: "bot", Code: "100200", Seed: 8}, tuning.Defaults(), cats)
	if _, ok := decisionContext(g.View(), "thu-do"); ok {
		t.Fatalf("lobby view has no event")
	}
	if err := g.Start(true); err != nil {
		t.Fatalf("start: %v", err)
	}
	ctx, ok := decisionContext(g.View().For(game.RolePlayer, "thu-do"), "thu-do")
	if !ok {
		t.Fatalf("no context")
	}
	if ctx.Turn != 1 || ctx.ActiveTeams != g.ActiveTeams() || ctx.Budget != g.Budget("thu-do") {
		t.Fatalf("context: %+v", ctx)
	}
}
