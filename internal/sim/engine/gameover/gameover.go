package gameover

import (
	"sort"

	"kienquoc.game/internal/sim/engine/model"
)

type Status struct {
	GameOver  bool
	ZeroIndex model.Index
}

// Check reports whether any index is at or below min. ZeroIndex is the first
// such index in index order.
func Check(ix model.Indices, min int) Status {
	for _, i := range model.AllIndices() {
		if ix[i] <= min {
			return Status{GameOver: true, ZeroIndex: i}
		}
	}
	return Status{}
}

func IsComplete(turn, maxTurns int) bool { return turn >= maxTurns }

type Standing struct {
	TeamID string
	Name   string
	Points float64
}

// FinalRanking sorts descending by points; equal points keep input order.
func FinalRanking(standings []Standing) []model.RankEntry {
	sorted := append([]Standing(nil), standings...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Points > sorted[j].Points })
	out := make([]model.RankEntry, len(sorted))
	for i, s := range sorted {
		out[i] = model.RankEntry{Rank: i + 1, TeamID: s.TeamID, Name: s.Name, Points: s.Points}
	}
	return out
}

// Build assembles the terminal state from the final indices and standings.
func Build(ix model.Indices, min int, turnsPlayed int, standings []Standing) model.GameOverState {
	st := model.GameOverState{
		Reason:       model.ReasonCompleted,
		Ranking:      FinalRanking(standings),
		TurnsPlayed:  turnsPlayed,
		FinalIndices: ix,
	}
	if s := Check(ix, min); s.GameOver {
		st.Reason = model.ReasonIndexZero
		st.ZeroIndex = s.ZeroIndex.String()
	}
	return st
}
