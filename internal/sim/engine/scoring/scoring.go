package scoring

import (
	"kienquoc.game/internal/sim/engine/model"
	"kienquoc.game/internal/sim/tuning"
)

// Bid is one team's RP on a cell, with the team's regional specialties.
type Bid struct {
	TeamID      string
	RP          int
	Specialties []model.Index
}

type Scorer struct {
	rules tuning.Scoring
}

func New(rules tuning.Scoring) *Scorer { return &Scorer{rules: rules} }

func (s *Scorer) Rules() tuning.Scoring { return s.rules }

// Multiplier is the effective multiplier for c under e.
func Multiplier(c model.Cell, e model.Effect) float64 {
	return c.BaseMultiplier * e.Global() * e.TypeMultiplier(c.Type)
}

// ScoreCell scores one cell. Bids with RP <= 0 do not participate. Awards are
// returned in bid order.
func (s *Scorer) ScoreCell(c model.Cell, bids []Bid, e model.Effect) []model.Award {
	parts := make([]Bid, 0, len(bids))
	for _, b := range bids {
		if b.RP > 0 {
			parts = append(parts, b)
		}
	}
	if len(parts) == 0 {
		return nil
	}

	mult := Multiplier(c, e)
	n := len(parts)
	base := make([]float64, n)

	switch c.Type {
	case model.CellCompetitive:
		if n == 1 {
			base[0] = float64(parts[0].RP) * mult * s.rules.SoloPenalty
			break
		}
		maxRP := 0
		for _, b := range parts {
			if b.RP > maxRP {
				maxRP = b.RP
			}
		}
		winners := 0
		for _, b := range parts {
			if b.RP == maxRP {
				winners++
			}
		}
		share := float64(maxRP) * mult / float64(winners)
		for i, b := range parts {
			if b.RP == maxRP {
				base[i] = share
			} else {
				base[i] = float64(b.RP) * s.rules.ConsolationRate
			}
		}

	case model.CellSynergy:
		factor := s.rules.SoloPenalty
		if n > 1 {
			factor = s.rules.SynergyBase + float64(n-s.rules.SynergyFreeParticipants)*s.rules.SynergyScaling
		}
		for i, b := range parts {
			base[i] = float64(b.RP) * mult * factor
		}

	case model.CellCooperation:
		factor := 1.0
		if n < e.CoopMinimum(s.rules.DefaultMinCoopTeams) {
			factor = s.rules.SoloPenalty
		}
		for i, b := range parts {
			base[i] = float64(b.RP) * mult * factor
		}

	default:
		// independent, project
		for i, b := range parts {
			base[i] = float64(b.RP) * mult
		}
	}

	out := make([]model.Award, n)
	for i, b := range parts {
		pts := base[i]
		if c.Touches(b.Specialties) {
			pts *= s.rules.RegionBonus
		}
		out[i] = model.Award{TeamID: b.TeamID, RP: b.RP, Points: pts}
	}
	return out
}
