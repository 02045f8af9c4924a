// Package modifier merges the fixed and random modifier of a turn into one
// effect descriptor.
package modifier

import (
	"math/rand"

	"kienquoc.game/internal/sim/engine/model"
)

// Combine merges the effects of the two (optional) modifiers.
func Combine(fixed, random *model.Modifier) model.Effect {
	var a, b model.Effect
	if fixed != nil {
		a = fixed.Effect
	}
	if random != nil {
		b = random.Effect
	}
	return Merge(a, b)
}

// Merge is commutative and associative, with the zero Effect as identity.
// Inputs are not modified.
func Merge(a, b model.Effect) model.Effect {
	out := model.Effect{
		GlobalMultiplier:        a.Global() * b.Global(),
		RPBonus:                 a.RPBonus + b.RPBonus,
		MinCoopTeams:            maxInt(a.MinCoopTeams, b.MinCoopTeams),
		ProjectRPMultiplier:     a.ProjectMultiplier() * b.ProjectMultiplier(),
		IndexBoostDivisorAdjust: a.IndexBoostDivisorAdjust + b.IndexBoostDivisorAdjust,
	}
	if len(a.CellTypeMultipliers)+len(b.CellTypeMultipliers) > 0 {
		out.CellTypeMultipliers = make(map[model.CellType]float64, len(a.CellTypeMultipliers)+len(b.CellTypeMultipliers))
		for t := range a.CellTypeMultipliers {
			out.CellTypeMultipliers[t] = a.TypeMultiplier(t) * b.TypeMultiplier(t)
		}
		for t := range b.CellTypeMultipliers {
			out.CellTypeMultipliers[t] = a.TypeMultiplier(t) * b.TypeMultiplier(t)
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Sequence returns a per-game shuffle of the random modifier ids. Turn t
// draws Sequence()[t-1]; turns past the end draw nothing.
func Sequence(ids []string, rng *rand.Rand) []string {
	out := append([]string(nil), ids...)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// ForTurn returns the random modifier id drawn for turn, or "".
func ForTurn(seq []string, turn int) string {
	if turn < 1 || turn > len(seq) {
		return ""
	}
	return seq[turn-1]
}
