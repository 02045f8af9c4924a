package project

import (
	"math"

	"kienquoc.game/internal/sim/engine/model"
	"kienquoc.game/internal/sim/tuning"
)

// ClampTeams bounds an active team count to the supported range.
func ClampTeams(active int, r tuning.Project) int {
	if active < r.MinTeams {
		return r.MinTeams
	}
	if active > r.MaxTeams {
		return r.MaxTeams
	}
	return active
}

// Scale returns ev with ScaledMinTotal/ScaledMinTeams set for active teams.
// Both values are non-decreasing in active.
func Scale(ev model.TurnEvent, active int, r tuning.Project) model.TurnEvent {
	n := ClampTeams(active, r)
	ev.ScaledMinTotal = int(math.Ceil(float64(ev.MinTotal*n) / float64(r.ReferenceTeams)))
	teams := ev.MinTeams - (r.ReferenceTeams - n)
	if teams < 1 {
		teams = 1
	}
	ev.ScaledMinTeams = teams
	return ev
}

// Outcome is the resolved national project for one turn.
type Outcome struct {
	model.ProjectState
	IndexDeltas model.Indices
}

// Resolve decides the project. contributions are per team in enumeration
// order; teams with RP <= 0 are not contributors and receive no bonus.
func Resolve(ev model.TurnEvent, contributions []model.Contribution, active int, e model.Effect, r tuning.Project) Outcome {
	scaled := Scale(ev, active, r)

	var out Outcome
	out.Name = ev.Project
	out.ScaledMinTotal = scaled.ScaledMinTotal
	out.ScaledMinTeams = scaled.ScaledMinTeams

	for _, c := range contributions {
		if c.RP <= 0 {
			continue
		}
		out.TotalRP += c.RP
		out.ContributingTeams++
		out.Contributions = append(out.Contributions, model.Contribution{TeamID: c.TeamID, RP: c.RP})
	}
	out.EffectiveRP = float64(out.TotalRP) * e.ProjectMultiplier()
	out.Success = out.EffectiveRP >= float64(out.ScaledMinTotal) &&
		out.ContributingTeams >= out.ScaledMinTeams

	if out.Success {
		out.IndexDeltas = ev.SuccessReward.Indices
		for i := range out.Contributions {
			c := &out.Contributions[i]
			c.Bonus = ev.SuccessReward.Points * c.RP / out.TotalRP
		}
	} else {
		out.IndexDeltas = ev.FailurePenalty.Indices
	}
	return out
}
