package model

// Effect is the merged modifier descriptor for one turn.
//
// The zero value is the identity: unset (non-positive) multipliers read as 1,
// an unset MinCoopTeams defers to the caller's default, bonuses read as 0.
type Effect struct {
	GlobalMultiplier        float64              `json:"global_multiplier,omitempty"`
	CellTypeMultipliers     map[CellType]float64 `json:"cell_type_multipliers,omitempty"`
	RPBonus                 float64              `json:"rp_bonus,omitempty"`
	MinCoopTeams            int                  `json:"min_coop_teams,omitempty"`
	ProjectRPMultiplier     float64              `json:"project_rp_multiplier,omitempty"`
	IndexBoostDivisorAdjust int                  `json:"index_boost_divisor_adjust,omitempty"`
}

func (e Effect) Global() float64 { return orOne(e.GlobalMultiplier) }

func (e Effect) TypeMultiplier(t CellType) float64 {
	return orOne(e.CellTypeMultipliers[t])
}

func (e Effect) ProjectMultiplier() float64 { return orOne(e.ProjectRPMultiplier) }

func (e Effect) CoopMinimum(def int) int {
	if e.MinCoopTeams > 0 {
		return e.MinCoopTeams
	}
	return def
}

// Divisor applies the adjustment to base, never returning less than 1.
func (e Effect) Divisor(base int) int {
	d := base + e.IndexBoostDivisorAdjust
	if d < 1 {
		return 1
	}
	return d
}

// Boosts reports whether the effect raises scoring for cell type t.
func (e Effect) Boosts(t CellType) bool {
	return e.Global()*e.TypeMultiplier(t) > 1
}

func (e Effect) Clone() Effect {
	out := e
	if e.CellTypeMultipliers != nil {
		out.CellTypeMultipliers = make(map[CellType]float64, len(e.CellTypeMultipliers))
		for k, v := range e.CellTypeMultipliers {
			out.CellTypeMultipliers[k] = v
		}
	}
	return out
}

func orOne(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v
}
