// Package turn resolves one full turn: cell scoring, the national project,
// underdog bonuses, index boosts and maintenance.
package turn

import (
	"fmt"

	"kienquoc.game/internal/sim/catalogs"
	"kienquoc.game/internal/sim/engine/model"
	"kienquoc.game/internal/sim/engine/modifier"
	"kienquoc.game/internal/sim/engine/project"
	"kienquoc.game/internal/sim/engine/scoring"
	"kienquoc.game/internal/sim/engine/underdog"
	"kienquoc.game/internal/sim/tuning"
)

type Processor struct {
	tune   tuning.Tuning
	cats   *catalogs.Catalogs
	scorer *scoring.Scorer
}

func New(tune tuning.Tuning, cats *catalogs.Catalogs) *Processor {
	return &Processor{tune: tune, cats: cats, scorer: scoring.New(tune.Scoring)}
}

func (p *Processor) Tuning() tuning.Tuning        { return p.tune }
func (p *Processor) Catalogs() *catalogs.Catalogs { return p.cats }

// Input is everything one turn needs. Teams fixes the enumeration order used
// for every tie-break; placements of teams not listed are ignored.
type Input struct {
	Turn             int                         `json:"turn"`
	Teams            []model.TeamMeta            `json:"teams"`
	Placements       map[string]model.Placements `json:"placements"`
	Indices          model.Indices               `json:"indices"`
	ActiveTeams      int                         `json:"active_teams"`
	CumulativePoints map[string]float64          `json:"cumulative_points"`
	RandomModifiers  []string                    `json:"random_modifiers"`
	Event            *model.TurnEvent            `json:"event"`
	IsLastTurn       bool                        `json:"is_last_turn"`
}

type Result struct {
	FinalIndices model.Indices      `json:"final_indices"`
	TurnResult   model.TurnResult   `json:"turn_result"`
	Project      model.ProjectState `json:"project"`
	History      model.HistoryEntry `json:"history"`
}

// PrepareNextTurn returns the event for turn scaled to activeTeams.
func (p *Processor) PrepareNextTurn(turn, activeTeams int) (model.TurnEvent, error) {
	ev, ok := p.cats.Events.ByTurn[turn]
	if !ok {
		return model.TurnEvent{}, fmt.Errorf("%w: %d", ErrInvalidTurnIndex, turn)
	}
	return project.Scale(ev, activeTeams, p.tune.Project), nil
}

// Process resolves one turn. It reads no clock and no RNG; equal inputs give
// equal results. Placements are assumed to be within budget; negative values
// and unknown cells are dropped.
func (p *Processor) Process(in Input) (Result, error) {
	if err := p.validate(in); err != nil {
		return Result{}, err
	}
	fixed, random, err := p.modifiers(in)
	if err != nil {
		return Result{}, err
	}
	effect := modifier.Combine(fixed, random)
	ev := project.Scale(*in.Event, in.ActiveTeams, p.tune.Project)
	placements := p.sanitize(in)
	rules := p.tune.Scoring

	ids := make([]string, len(in.Teams))
	for i, t := range in.Teams {
		ids[i] = t.ID
	}

	// Cells.
	cellPts := make(map[string]float64, len(ids))
	var zone model.Indices
	var cells []model.CellResult
	divisor := effect.Divisor(rules.IndexBoostDivisor)
	for _, c := range p.cats.Board.Cells {
		if c.Type == model.CellProject {
			continue
		}
		bids := make([]scoring.Bid, 0, len(in.Teams))
		total := 0
		for _, t := range in.Teams {
			rp := placements[t.ID][c.ID]
			if rp <= 0 {
				continue
			}
			total += rp
			bids = append(bids, scoring.Bid{TeamID: t.ID, RP: rp, Specialties: t.Specialties})
		}
		if total == 0 {
			continue
		}
		awards := p.scorer.ScoreCell(c, bids, effect)
		for _, a := range awards {
			cellPts[a.TeamID] += a.Points
		}
		boost := total / divisor
		for _, idx := range c.Indices {
			zone[idx] += boost
		}
		cells = append(cells, model.CellResult{
			CellID:       c.ID,
			Type:         c.Type,
			TotalRP:      total,
			Participants: len(bids),
			Awards:       awards,
			ZoneBoost:    boost,
		})
	}

	// Project.
	projectCells := p.cats.Board.ProjectCells()
	contribs := make([]model.Contribution, 0, len(in.Teams))
	for _, t := range in.Teams {
		rp := 0
		for _, c := range projectCells {
			rp += placements[t.ID][c.ID]
		}
		contribs = append(contribs, model.Contribution{TeamID: t.ID, RP: rp})
	}
	outcome := project.Resolve(*in.Event, contribs, in.ActiveTeams, effect, p.tune.Project)
	projectPts := make(map[string]float64, len(outcome.Contributions))
	for _, c := range outcome.Contributions {
		projectPts[c.TeamID] = float64(c.Bonus)
	}

	// Underdogs, modifier bonus.
	standings := make([]underdog.Standing, len(in.Teams))
	for i, t := range in.Teams {
		standings[i] = underdog.Standing{TeamID: t.ID, Points: in.CumulativePoints[t.ID]}
	}
	tiers := underdog.Classify(standings, in.Turn, p.tune.Underdog)

	points := make([]model.PointBreakdown, 0, len(in.Teams))
	for _, t := range in.Teams {
		participating := placements[t.ID].Total() > 0
		cell := cellPts[t.ID]
		proj := projectPts[t.ID]
		flat := 0.0
		if participating {
			flat = underdog.PointBonus(tiers[t.ID], p.tune.Underdog)
		}
		boosted := (cell + proj + flat) * underdog.Multiplier(tiers[t.ID], p.tune.Underdog)
		bd := model.PointBreakdown{
			TeamID:   t.ID,
			Cell:     model.Round2(cell),
			Project:  model.Round2(proj),
			Underdog: model.Round2(boosted - cell - proj),
		}
		if participating {
			bd.Modifier = model.Round2(effect.RPBonus)
		}
		bd.Total = model.Round2(bd.Cell + bd.Project + bd.Underdog + bd.Modifier)
		points = append(points, bd)
	}

	// Indices.
	deltas := outcome.IndexDeltas.Add(zone)
	var maintenance model.Indices
	if !in.IsLastTurn {
		maintenance = p.tune.Indices.MaintenanceVector()
	}
	final := in.Indices.Add(deltas).Sub(maintenance).Clamp(p.tune.Indices.Min, p.tune.Indices.Max)

	tr := model.TurnResult{
		Turn:              in.Turn,
		ProjectSuccess:    outcome.Success,
		ProjectTotalRP:    outcome.TotalRP,
		ContributingTeams: outcome.ContributingTeams,
		ProjectDeltas:     outcome.IndexDeltas,
		ZoneDeltas:        zone,
		Maintenance:       maintenance,
		IndexDeltas:       deltas,
		TeamPoints:        points,
		UnderdogTeams:     underdog.Underdogs(tiers, ids),
		CellResults:       cells,
	}

	h := model.HistoryEntry{
		Turn:           in.Turn,
		Event:          ev,
		Effect:         effect.Clone(),
		Teams:          cloneTeams(in.Teams),
		ActiveTeams:    in.ActiveTeams,
		IsLastTurn:     in.IsLastTurn,
		Placements:     placements,
		PointsBefore:   clonePoints(in.CumulativePoints, ids),
		IndicesBefore:  in.Indices,
		IndicesAfter:   final,
		Points:         append([]model.PointBreakdown(nil), points...),
		ProjectSuccess: outcome.Success,
	}
	if fixed != nil {
		h.FixedModifier = fixed.ID
	}
	if random != nil {
		h.RandomModifier = random.ID
	}
	h.Digest = Digest(h)

	return Result{
		FinalIndices: final,
		TurnResult:   tr,
		Project:      outcome.ProjectState,
		History:      h,
	}, nil
}

func (p *Processor) validate(in Input) error {
	if in.Turn < 1 || in.Turn > p.cats.Events.MaxTurn {
		return fmt.Errorf("%w: %d", ErrInvalidTurnIndex, in.Turn)
	}
	if in.Event == nil {
		return fmt.Errorf("%w: missing event", ErrMalformedInput)
	}
	if in.Event.Turn != in.Turn {
		return fmt.Errorf("%w: event is for turn %d, not %d", ErrMalformedInput, in.Event.Turn, in.Turn)
	}
	if len(in.Teams) == 0 {
		return fmt.Errorf("%w: no teams", ErrMalformedInput)
	}
	if in.ActiveTeams < 1 {
		return fmt.Errorf("%w: active teams %d", ErrMalformedInput, in.ActiveTeams)
	}
	seen := make(map[string]bool, len(in.Teams))
	for _, t := range in.Teams {
		if t.ID == "" {
			return fmt.Errorf("%w: team without id", ErrMalformedInput)
		}
		if seen[t.ID] {
			return fmt.Errorf("%w: duplicate team %q", ErrMalformedInput, t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

func (p *Processor) modifiers(in Input) (fixed, random *model.Modifier, err error) {
	lookup := func(id string) (*model.Modifier, error) {
		if id == "" {
			return nil, nil
		}
		m, ok := p.cats.Modifiers.ByID[id]
		if !ok {
			return nil, fmt.Errorf("%w: unknown modifier %q", ErrMalformedInput, id)
		}
		return &m, nil
	}
	if fixed, err = lookup(in.Event.ModifierID); err != nil {
		return nil, nil, err
	}
	if random, err = lookup(modifier.ForTurn(in.RandomModifiers, in.Turn)); err != nil {
		return nil, nil, err
	}
	return fixed, random, nil
}

// sanitize copies placements of listed teams, keeping positive RP on board cells.
func (p *Processor) sanitize(in Input) map[string]model.Placements {
	out := make(map[string]model.Placements, len(in.Teams))
	for _, t := range in.Teams {
		clean := model.Placements{}
		for cellID, rp := range in.Placements[t.ID] {
			if rp <= 0 {
				continue
			}
			if _, ok := p.cats.Board.ByID[cellID]; !ok {
				continue
			}
			clean[cellID] = rp
		}
		out[t.ID] = clean
	}
	return out
}

func cloneTeams(in []model.TeamMeta) []model.TeamMeta {
	out := make([]model.TeamMeta, len(in))
	for i, t := range in {
		t.Specialties = append([]model.Index(nil), t.Specialties...)
		out[i] = t
	}
	return out
}

func clonePoints(in map[string]float64, ids []string) map[string]float64 {
	out := make(map[string]float64, len(ids))
	for _, id := range ids {
		out[id] = in[id]
	}
	return out
}
