package game

import (
	"kienquoc.game/internal/sim/engine/model"
	"kienquoc.game/internal/sim/engine/modifier"
	"kienquoc.game/internal/sim/engine/underdog"
)

type Role string

const (
	RoleHost      Role = "host"
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

func (r Role) Valid() bool {
	switch r {
	case RoleHost, RolePlayer, RoleSpectator:
		return true
	}
	return false
}

type TeamView struct {
	model.Team
	Budget int           `json:"budget,omitempty"`
	Tier   underdog.Tier `json:"underdog_tier,omitempty"`
}

// View is an immutable copy of the game state. Nothing in it aliases the Game.
type View struct {
	GameID         string               `json:"game_id"`
	Code           string               `json:"code"`
	Phase          Phase                `json:"phase"`
	Paused         bool                 `json:"paused"`
	Turn           int                  `json:"turn"`
	MaxTurns       int                  `json:"max_turns"`
	Indices        model.Indices        `json:"indices"`
	Teams          []TeamView           `json:"teams"`
	Event          *model.TurnEvent     `json:"event,omitempty"`
	Effect         *model.Effect        `json:"effect,omitempty"`
	RandomModifier string               `json:"random_modifier,omitempty"`
	LastResult     *model.TurnResult    `json:"last_result,omitempty"`
	Project        *model.ProjectState  `json:"project,omitempty"`
	Ranking        []model.RankEntry    `json:"ranking,omitempty"`
	GameOver       *model.GameOverState `json:"game_over,omitempty"`
}

func (g *Game) View() View {
	v := View{
		GameID:   g.cfg.ID,
		Code:     g.cfg.Code,
		Phase:    g.phase,
		Paused:   g.paused,
		Turn:     g.turn,
		MaxTurns: g.MaxTurns(),
		Indices:  g.indices,
		Ranking:  g.Ranking(),
	}
	for _, t := range g.teams {
		tv := TeamView{Team: cloneTeam(*t)}
		if t.Active() && g.turn > 0 {
			tv.Budget = g.Budget(t.ID)
			tv.Tier = g.tiers[t.ID]
		}
		v.Teams = append(v.Teams, tv)
	}
	if g.turn > 0 {
		ev := g.event
		eff := g.effect.Clone()
		v.Event = &ev
		v.Effect = &eff
		v.RandomModifier = modifier.ForTurn(g.randomSeq, g.turn)
	}
	if g.last != nil {
		tr := g.last.TurnResult
		pr := g.last.Project
		v.LastResult = &tr
		v.Project = &pr
	}
	if g.over != nil {
		st := *g.over
		v.GameOver = &st
	}
	return v
}

// For filters the view for a connection. Hosts see everything. Players see
// only their own placements and budget. Spectators see no placements.
func (v View) For(role Role, teamID string) View {
	if role == RoleHost {
		return v
	}
	out := v
	out.Teams = make([]TeamView, len(v.Teams))
	for i, t := range v.Teams {
		if role == RolePlayer && t.ID == teamID {
			out.Teams[i] = t
			continue
		}
		t.Placements = nil
		t.AllTimePlacements = nil
		t.Budget = 0
		out.Teams[i] = t
	}
	return out
}

func cloneTeam(t model.Team) model.Team {
	t.Specialties = append([]model.Index(nil), t.Specialties...)
	t.Placements = t.Placements.Clone()
	t.AllTimePlacements = t.AllTimePlacements.Clone()
	return t
}
