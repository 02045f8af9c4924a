package game

import (
	"time"

	"kienquoc.game/internal/sim/engine/gameover"
	"kienquoc.game/internal/sim/engine/model"
	"kienquoc.game/internal/sim/engine/turn"
)

// Transition describes one call to Advance.
type Transition struct {
	From     Phase
	To       Phase
	Turn     int
	Result   *turn.Result         // set when leaving the action phase
	GameOver *model.GameOverState // set when entering the finished phase
}

// Advance moves to the next phase:
// event -> action -> resolution -> result -> event (next turn) or finished.
// Leaving the action phase fills AI placements and resolves the turn.
func (g *Game) Advance() (Transition, error) {
	tr := Transition{From: g.phase, Turn: g.turn}
	switch g.phase {
	case PhaseLobby:
		return tr, ErrWrongPhase
	case PhaseFinished:
		return tr, ErrFinished
	case PhaseEvent:
		g.phase = PhaseAction
	case PhaseAction:
		res, err := g.resolve()
		if err != nil {
			return tr, err
		}
		tr.Result = res
		g.phase = PhaseResolution
		zero := gameover.Check(g.indices, g.tune.Indices.Min)
		if zero.GameOver || gameover.IsComplete(g.turn, g.MaxTurns()) {
			st := gameover.Build(g.indices, g.tune.Indices.Min, g.turn, g.standings())
			g.over = &st
		}
	case PhaseResolution:
		g.phase = PhaseResult
	case PhaseResult:
		if g.over != nil {
			g.phase = PhaseFinished
			st := *g.over
			tr.GameOver = &st
			break
		}
		if err := g.beginTurn(g.turn + 1); err != nil {
			return tr, err
		}
	}
	tr.To = g.phase
	tr.Turn = g.turn
	return tr, nil
}

// PhaseDuration is how long the current phase runs before auto-advance.
// Zero means no timer.
func (g *Game) PhaseDuration() time.Duration {
	p := g.tune.Phases
	switch g.phase {
	case PhaseEvent:
		return p.Event()
	case PhaseAction:
		return p.Action()
	case PhaseResolution:
		return p.Resolution()
	case PhaseResult:
		return p.Result()
	}
	return 0
}

func (g *Game) standings() []gameover.Standing {
	var out []gameover.Standing
	for _, t := range g.teams {
		if t.Active() {
			out = append(out, gameover.Standing{TeamID: t.ID, Name: t.Name, Points: t.Points})
		}
	}
	return out
}

// Ranking is the current standing of active teams, best first.
func (g *Game) Ranking() []model.RankEntry {
	return gameover.FinalRanking(g.standings())
}
