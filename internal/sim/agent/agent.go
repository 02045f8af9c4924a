// Package agent plays a team: it splits the turn's RP budget across the
// project and the cell types, then concentrates each share on a few cells.
package agent

import (
	"math"
	"math/rand"
	"sort"

	"kienquoc.game/internal/sim/engine/model"
	"kienquoc.game/internal/sim/tuning"
)

type Personality string

const (
	Aggressive  Personality = "aggressive"
	Cooperative Personality = "cooperative"
	Balanced    Personality = "balanced"
	Opportunist Personality = "opportunist"
)

var Personalities = []Personality{Aggressive, Cooperative, Balanced, Opportunist}

func (p Personality) Valid() bool {
	_, ok := profiles[p]
	return ok
}

// profile biases the tendency (0 = competitive, 1 = cooperative).
type profile struct {
	tendency        float64
	drift           float64
	projectPriority float64
	endgameRoll     float64
	gapFactor       float64
}

var profiles = map[Personality]profile{
	Aggressive:  {tendency: 0.25, drift: -0.02, projectPriority: 0.2, endgameRoll: 0.6, gapFactor: 1},
	Cooperative: {tendency: 0.75, drift: 0.02, projectPriority: 0.4, endgameRoll: 0.15, gapFactor: 1},
	Balanced:    {tendency: 0.5, drift: 0, projectPriority: 0.3, endgameRoll: 0.3, gapFactor: 1},
	Opportunist: {tendency: 0.5, drift: 0, projectPriority: 0.25, endgameRoll: 0.5, gapFactor: 2},
}

const (
	minTendency = 0.05
	maxTendency = 0.95
	gapStep     = 0.05
	gapLow      = 0.85
	gapHigh     = 1.15
	earlyNoise  = 0.1
)

type Agent struct {
	teamID      string
	specialties []model.Index
	board       []model.Cell
	rules       tuning.AI
	rng         *rand.Rand

	personality Personality
	tendency    float64
}

// State is the part of an agent that survives a snapshot.
type State struct {
	TeamID      string      `json:"team_id"`
	Personality Personality `json:"personality"`
	Tendency    float64     `json:"tendency"`
}

// New draws a personality from rng. board is the full board in row-major order.
func New(teamID string, specialties []model.Index, board []model.Cell, rules tuning.AI, rng *rand.Rand) *Agent {
	p := Personalities[rng.Intn(len(Personalities))]
	return NewWithPersonality(teamID, specialties, board, rules, p, rng)
}

func NewWithPersonality(teamID string, specialties []model.Index, board []model.Cell, rules tuning.AI, p Personality, rng *rand.Rand) *Agent {
	if !p.Valid() {
		p = Balanced
	}
	return &Agent{
		teamID:      teamID,
		specialties: append([]model.Index(nil), specialties...),
		board:       board,
		rules:       rules,
		rng:         rng,
		personality: p,
		tendency:    profiles[p].tendency,
	}
}

// Restore rebuilds an agent from st with a fresh random source.
func Restore(st State, specialties []model.Index, board []model.Cell, rules tuning.AI, rng *rand.Rand) *Agent {
	a := NewWithPersonality(st.TeamID, specialties, board, rules, st.Personality, rng)
	a.tendency = clamp(st.Tendency, minTendency, maxTendency)
	return a
}

func (a *Agent) TeamID() string           { return a.teamID }
func (a *Agent) Personality() Personality { return a.personality }
func (a *Agent) Tendency() float64        { return a.tendency }

func (a *Agent) State() State {
	return State{TeamID: a.teamID, Personality: a.personality, Tendency: a.tendency}
}

// DecisionContext is what a human player would see at the start of the
// action phase.
type DecisionContext struct {
	Turn        int
	MaxTurns    int
	MyScore     float64
	AvgScore    float64
	Indices     model.Indices
	Event       model.TurnEvent // scaled
	Effect      model.Effect
	Budget      int
	ActiveTeams int
}

// Allocation is a fractional split of the budget; fields sum to 1.
type Allocation struct {
	Project     float64 `json:"project"`
	Competitive float64 `json:"competitive"`
	Pool        float64 `json:"pool"` // synergy + independent
	Cooperation float64 `json:"cooperation"`
}

func (a *Agent) survival(ix model.Indices) bool {
	_, low := ix.Lowest()
	return low < a.rules.DangerThreshold
}

// minProjectShare is the guaranteed fraction of the fair per-team share of
// the scaled project requirement.
func (a *Agent) minProjectShare(ctx DecisionContext) float64 {
	if ctx.Budget <= 0 || ctx.ActiveTeams <= 0 {
		return 0
	}
	fair := float64(ctx.Event.ScaledMinTotal) / float64(ctx.ActiveTeams)
	return math.Min(1, a.rules.MinProjectFraction*fair/float64(ctx.Budget))
}

// DecideAllocation updates the agent's tendency and returns the turn's split.
func (a *Agent) DecideAllocation(ctx DecisionContext) Allocation {
	prof := profiles[a.personality]

	a.tendency = clamp(a.tendency+prof.drift, minTendency, maxTendency)
	if ctx.Turn > 2 && ctx.AvgScore > 0 {
		switch {
		case ctx.MyScore < gapLow*ctx.AvgScore:
			a.tendency -= gapStep * prof.gapFactor
		case ctx.MyScore > gapHigh*ctx.AvgScore:
			a.tendency += gapStep * prof.gapFactor
		}
		a.tendency = clamp(a.tendency, minTendency, maxTendency)
	}

	share := prof.projectPriority
	if a.survival(ctx.Indices) {
		share += a.rules.SurvivalProjectBoost
	}
	if ctx.Turn <= 2 {
		share += (a.rng.Float64()*2 - 1) * earlyNoise
	}
	share = clamp(share, 0, a.rules.MaxProjectShare)
	if floor := a.minProjectShare(ctx); share < floor {
		share = floor
	}

	rest := 1 - share
	comp := rest * (1 - a.tendency)
	pool := rest * a.tendency / 2
	coop := rest * a.tendency / 2

	// Lean toward the types this turn's modifiers boost.
	e := ctx.Effect
	comp *= e.Global() * e.TypeMultiplier(model.CellCompetitive)
	pool *= e.Global() * (e.TypeMultiplier(model.CellSynergy) + e.TypeMultiplier(model.CellIndependent)) / 2
	coop *= e.Global() * e.TypeMultiplier(model.CellCooperation)
	if sum := comp + pool + coop; sum > 0 {
		comp, pool, coop = comp/sum*rest, pool/sum*rest, coop/sum*rest
	}

	if ctx.MaxTurns > 0 && ctx.Turn > ctx.MaxTurns-a.rules.EndgameTurns && a.rng.Float64() < prof.endgameRoll {
		moved := (pool + coop) / 2
		comp += moved
		pool /= 2
		coop /= 2
	}

	return Allocation{Project: share, Competitive: comp, Pool: pool, Cooperation: coop}
}

type candidate struct {
	cell  model.Cell
	order int
	score float64
}

// DistributeToCells turns an allocation into placements whose sum is exactly
// ctx.Budget. Each bucket goes to its best one or two cells.
func (a *Agent) DistributeToCells(alloc Allocation, ctx DecisionContext) model.Placements {
	out := model.Placements{}
	if ctx.Budget <= 0 {
		return out
	}
	b := float64(ctx.Budget)
	projectRP := int(math.Round(alloc.Project * b))
	if projectRP > ctx.Budget {
		projectRP = ctx.Budget
	}
	compRP := int(math.Floor(alloc.Competitive * b))
	poolRP := int(math.Floor(alloc.Pool * b))
	coopRP := int(math.Floor(alloc.Cooperation * b))

	var projectCell string
	for _, c := range a.board {
		if c.Type == model.CellProject {
			projectCell = c.ID
			break
		}
	}
	if projectCell == "" {
		poolRP += projectRP
		projectRP = 0
	}
	if projectRP > 0 {
		out[projectCell] = projectRP
	}

	weak := map[model.Index]bool{}
	if a.survival(ctx.Indices) {
		for i, v := range ctx.Indices {
			if v < a.rules.DangerThreshold {
				weak[model.Index(i)] = true
			}
		}
	}

	a.concentrate(out, compRP, a.candidates(ctx.Effect, weak, model.CellCompetitive))
	a.concentrate(out, poolRP, a.candidates(ctx.Effect, weak, model.CellSynergy, model.CellIndependent))
	a.concentrate(out, coopRP, a.candidates(ctx.Effect, weak, model.CellCooperation))

	a.correct(out, ctx.Budget, projectCell)
	return out
}

// GeneratePlacements is DecideAllocation followed by DistributeToCells.
func (a *Agent) GeneratePlacements(ctx DecisionContext) model.Placements {
	return a.DistributeToCells(a.DecideAllocation(ctx), ctx)
}

func (a *Agent) candidates(e model.Effect, weak map[model.Index]bool, types ...model.CellType) []candidate {
	var out []candidate
	for i, c := range a.board {
		match := false
		for _, t := range types {
			if c.Type == t {
				match = true
			}
		}
		if !match {
			continue
		}
		score := 1.0
		for _, idx := range c.Indices {
			if weak[idx] {
				score += 1
				break
			}
		}
		if c.Touches(a.specialties) {
			score += 0.3
		}
		if e.Boosts(c.Type) {
			score += 0.4
		}
		score += a.rules.Jitter * a.rng.Float64()
		out = append(out, candidate{cell: c, order: i, score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].order < out[j].order
	})
	return out
}

func (a *Agent) concentrate(out model.Placements, amount int, cands []candidate) {
	if amount <= 0 || len(cands) == 0 {
		return
	}
	if amount <= 3 || len(cands) == 1 {
		out[cands[0].cell.ID] += amount
		return
	}
	first := int(math.Ceil(float64(amount) * 0.6))
	out[cands[0].cell.ID] += first
	out[cands[1].cell.ID] += amount - first
}

// correct makes the placement sum equal budget. Shortfall goes to the
// project cell when used, else to the largest placement.
func (a *Agent) correct(out model.Placements, budget int, projectCell string) {
	diff := budget - out.Total()
	if diff > 0 {
		target := a.largest(out)
		if out[projectCell] > 0 {
			target = projectCell
		}
		if target == "" {
			for _, c := range a.board {
				if c.Type != model.CellProject {
					target = c.ID
					break
				}
			}
		}
		if target == "" {
			target = projectCell
		}
		out[target] += diff
	}
	for diff < 0 {
		id := a.largest(out)
		if id == "" {
			break
		}
		take := -diff
		if out[id] < take {
			take = out[id]
		}
		out[id] -= take
		if out[id] == 0 {
			delete(out, id)
		}
		diff += take
	}
}

// largest returns the cell with most RP; ties go to board order.
func (a *Agent) largest(out model.Placements) string {
	best, bestRP := "", 0
	for _, c := range a.board {
		if rp := out[c.ID]; rp > bestRP {
			best, bestRP = c.ID, rp
		}
	}
	return best
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
