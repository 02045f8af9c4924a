// Package underdog picks the trailing teams that receive catch-up bonuses.
package underdog

import (
	"math"
	"sort"

	"kienquoc.game/internal/sim/tuning"
)

type Tier int

const (
	TierNone Tier = 0
	Tier1    Tier = 1
	Tier2    Tier = 2
)

type Standing struct {
	TeamID string
	Points float64
}

// TierForTurn is the tier an underdog gets on turn.
func TierForTurn(turn int, r tuning.Underdog) Tier {
	switch {
	case turn < r.Tier1StartTurn:
		return TierNone
	case turn <= r.Tier2StartTurn:
		return Tier1
	default:
		return Tier2
	}
}

// Classify ranks standings ascending by points (ties keep input order) and
// assigns the turn's tier to the bottom floor(n*threshold) teams. Every input
// team appears in the result.
func Classify(standings []Standing, turn int, r tuning.Underdog) map[string]Tier {
	out := make(map[string]Tier, len(standings))
	for _, s := range standings {
		out[s.TeamID] = TierNone
	}
	tier := TierForTurn(turn, r)
	if tier == TierNone {
		return out
	}
	n := int(math.Floor(float64(len(standings)) * r.Threshold))
	if n <= 0 {
		return out
	}
	ranked := append([]Standing(nil), standings...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Points < ranked[j].Points })
	for _, s := range ranked[:n] {
		out[s.TeamID] = tier
	}
	return out
}

// Underdogs lists tiered teams in the order of ids.
func Underdogs(tiers map[string]Tier, ids []string) []string {
	var out []string
	for _, id := range ids {
		if tiers[id] > TierNone {
			out = append(out, id)
		}
	}
	return out
}

func BonusRP(t Tier, r tuning.Underdog) int {
	switch t {
	case Tier1:
		return r.Tier1BonusRP
	case Tier2:
		return r.Tier2BonusRP
	}
	return 0
}

func PointBonus(t Tier, r tuning.Underdog) float64 {
	switch t {
	case Tier1:
		return r.Tier1PointBonus
	case Tier2:
		return r.Tier2PointBonus
	}
	return 0
}

func Multiplier(t Tier, r tuning.Underdog) float64 {
	if t == Tier2 && r.Tier2Multiplier > 0 {
		return r.Tier2Multiplier
	}
	return 1
}
