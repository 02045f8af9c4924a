package main

import (
	"log"
	"math/rand"

	"kienquoc.game/internal/protocol"
	"kienquoc.game/internal/sim/agent"
	"kienquoc.game/internal/sim/catalogs"
	"kienquoc.game/internal/sim/game"
	"kienquoc.game/internal/sim/tuning"
)

// player drives one team with the same agent the server uses for AI seats.
type player struct {
	teamID string
	rng    *rand.Rand
	cats   *catalogs.Catalogs
	tune   tuning.Tuning
	style  agent.Personality
	log    *log.Logger

	ag     *agent.Agent
	played int // last turn we submitted for
	seq    int64
}

// onState returns the messages to send in reaction to a state update.
func (p *player) onState(v game.View) []any {
	if v.Phase != game.PhaseAction || v.Paused || v.Turn <= p.played {
		return nil
	}
	me, ok := findTeam(v, p.teamID)
	if !ok || me.Submitted {
		return nil
	}
	ctx, ok := decisionContext(v, p.teamID)
	if !ok {
		return nil
	}
	if p.ag == nil {
		if p.style.Valid() {
			p.ag = agent.NewWithPersonality(p.teamID, me.Specialties, p.cats.Board.Cells, p.tune.AI, p.style, p.rng)
		} else {
			p.ag = agent.New(p.teamID, me.Specialties, p.cats.Board.Cells, p.tune.AI, p.rng)
		}
		p.log.Printf("playing %s as %s", p.teamID, p.ag.Personality())
	}
	placements := p.ag.GeneratePlacements(ctx)
	p.played = v.Turn
	p.seq += 2
	return []any{
		protocol.SetPlacementsMsg{Type: protocol.TypeSetPlacements, ProtocolVersion: protocol.Version, Seq: p.seq - 1, Placements: placements},
		protocol.SubmitMsg{Type: protocol.TypeSubmit, ProtocolVersion: protocol.Version, Seq: p.seq},
	}
}

func findTeam(v game.View, teamID string) (game.TeamView, bool) {
	for _, t := range v.Teams {
		if t.ID == teamID {
			return t, true
		}
	}
	return game.TeamView{}, false
}

// decisionContext rebuilds what the agent needs from a player's view.
func decisionContext(v game.View, teamID string) (agent.DecisionContext, bool) {
	if v.Event == nil || v.Effect == nil {
		return agent.DecisionContext{}, false
	}
	me, ok := findTeam(v, teamID)
	if !ok {
		return agent.DecisionContext{}, false
	}
	active, sum := 0, 0.0
	for _, t := range v.Teams {
		if t.Active() {
			active++
			sum += t.Points
		}
	}
	avg := 0.0
	if active > 0 {
		avg = sum / float64(active)
	}
	return agent.DecisionContext{
		Turn:        v.Turn,
		MaxTurns:    v.MaxTurns,
		MyScore:     me.Points,
		AvgScore:    avg,
		Indices:     v.Indices,
		Event:       *v.Event,
		Effect:      *v.Effect,
		Budget:      me.Budget,
		ActiveTeams: active,
	}, true
}
