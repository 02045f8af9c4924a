package game

import (
	"fmt"
	"math/rand"

	"kienquoc.game/internal/sim/agent"
	"kienquoc.game/internal/sim/catalogs"
	"kienquoc.game/internal/sim/engine/model"
	"kienquoc.game/internal/sim/engine/turn"
	"kienquoc.game/internal/sim/engine/underdog"
	"kienquoc.game/internal/sim/tuning"
)

// Snapshot is the full restorable state of a game. The scaled event and the
// effect are recomputed on restore. Tiers are stored because team points
// move at resolution while the turn keeps the tiers it was classified with.
type Snapshot struct {
	ID        string
	Code      string
	Seed      int64
	Phase     Phase
	Paused    bool
	Turn      int
	Indices   model.Indices
	Teams     []model.Team
	Tokens    map[string]string
	Agents    []agent.State
	RandomSeq []string
	Last      *turn.Result
	History   []model.HistoryEntry
	Over      *model.GameOverState
	Tiers     map[string]underdog.Tier
}

func (g *Game) Snapshot() Snapshot {
	s := Snapshot{
		ID:        g.cfg.ID,
		Code:      g.cfg.Code,
		Seed:      g.cfg.Seed,
		Phase:     g.phase,
		Paused:    g.paused,
		Turn:      g.turn,
		Indices:   g.indices,
		Tokens:    make(map[string]string, len(g.tokens)),
		RandomSeq: append([]string(nil), g.randomSeq...),
		History:   append([]model.HistoryEntry(nil), g.history...),
		Tiers:     make(map[string]underdog.Tier, len(g.tiers)),
	}
	for k, v := range g.tiers {
		s.Tiers[k] = v
	}
	for _, t := range g.teams {
		s.Teams = append(s.Teams, cloneTeam(*t))
		if a := g.agents[t.ID]; a != nil {
			s.Agents = append(s.Agents, a.State())
		}
	}
	for k, v := range g.tokens {
		s.Tokens[k] = v
	}
	if g.last != nil {
		r := *g.last
		s.Last = &r
	}
	if g.over != nil {
		o := *g.over
		s.Over = &o
	}
	return s
}

// Restore rebuilds a game from s against the given configuration.
func Restore(s Snapshot, tune tuning.Tuning, cats *catalogs.Catalogs) (*Game, error) {
	g := New(Config{ID: s.ID, Code: s.Code, Seed: s.Seed}, tune, cats)
	for _, st := range s.Teams {
		t, ok := g.byID[st.ID]
		if !ok {
			return nil, fmt.Errorf("restore %s: %w: %s", s.ID, ErrUnknownTeam, st.ID)
		}
		*t = cloneTeam(st)
		if t.Placements == nil {
			t.Placements = model.Placements{}
		}
	}
	for _, st := range s.Agents {
		t, ok := g.byID[st.TeamID]
		if !ok {
			return nil, fmt.Errorf("restore %s: %w: %s", s.ID, ErrUnknownTeam, st.TeamID)
		}
		rng := rand.New(rand.NewSource(g.agentSeed(st.TeamID, 0)))
		g.agentRNG[st.TeamID] = rng
		g.agents[st.TeamID] = agent.Restore(st, t.Specialties, cats.Board.Cells, tune.AI, rng)
	}
	for k, v := range s.Tokens {
		g.tokens[k] = v
	}
	if len(s.RandomSeq) > 0 {
		g.randomSeq = append([]string(nil), s.RandomSeq...)
	}
	g.phase = s.Phase
	g.paused = s.Paused
	g.turn = s.Turn
	g.indices = s.Indices
	g.history = append([]model.HistoryEntry(nil), s.History...)
	if s.Last != nil {
		r := *s.Last
		g.last = &r
	}
	if s.Over != nil {
		o := *s.Over
		g.over = &o
	}
	if g.turn > 0 {
		if err := g.prepare(g.turn); err != nil {
			return nil, fmt.Errorf("restore %s: %w", s.ID, err)
		}
		switch {
		case len(s.Tiers) > 0:
			g.tiers = make(map[string]underdog.Tier, len(s.Tiers))
			for k, v := range s.Tiers {
				g.tiers[k] = v
			}
		case g.phase != PhaseEvent && g.phase != PhaseAction && len(g.history) > 0 && g.history[len(g.history)-1].Turn == g.turn:
			// Snapshots without tiers: the turn was classified before its points landed.
			g.classify(g.turn, g.history[len(g.history)-1].PointsBefore)
		}
	}
	return g, nil
}
