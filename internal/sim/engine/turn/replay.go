package turn

import (
	"fmt"

	"kienquoc.game/internal/sim/engine/model"
)

// InputFromHistory rebuilds the input that produced h. Processing it must
// yield the same digest.
func InputFromHistory(h model.HistoryEntry) Input {
	ev := h.Event
	in := Input{
		Turn:             h.Turn,
		Teams:            cloneTeams(h.Teams),
		Placements:       make(map[string]model.Placements, len(h.Placements)),
		Indices:          h.IndicesBefore,
		ActiveTeams:      h.ActiveTeams,
		CumulativePoints: make(map[string]float64, len(h.PointsBefore)),
		Event:            &ev,
		IsLastTurn:       h.IsLastTurn,
	}
	for id, p := range h.Placements {
		in.Placements[id] = p.Clone()
	}
	for id, pts := range h.PointsBefore {
		in.CumulativePoints[id] = pts
	}
	if h.RandomModifier != "" && h.Turn >= 1 {
		in.RandomModifiers = make([]string, h.Turn)
		in.RandomModifiers[h.Turn-1] = h.RandomModifier
	}
	return in
}

// Verify re-runs h and compares digests.
func (p *Processor) Verify(h model.HistoryEntry) error {
	res, err := p.Process(InputFromHistory(h))
	if err != nil {
		return fmt.Errorf("turn %d: %w", h.Turn, err)
	}
	if res.History.Digest != h.Digest {
		return fmt.Errorf("turn %d: digest mismatch: got=%s want=%s", h.Turn, res.History.Digest, h.Digest)
	}
	return nil
}
