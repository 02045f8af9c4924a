package turn

import (
	"crypto/sha256"
	"encoding/hex"

	"kienquoc.game/internal/sim/digestcodec"
	"kienquoc.game/internal/sim/engine/model"
)

// Digest hashes the outcome of a history entry: indices, per-team points,
// placements and the project result. Replays compare it to detect drift.
func Digest(h model.HistoryEntry) string {
	d := sha256.New()
	var tmp [8]byte

	digestcodec.WriteI64(d, &tmp, int64(h.Turn))
	for _, v := range h.IndicesBefore {
		digestcodec.WriteI64(d, &tmp, int64(v))
	}
	for _, v := range h.IndicesAfter {
		digestcodec.WriteI64(d, &tmp, int64(v))
	}
	d.Write([]byte{digestcodec.BoolByte(h.ProjectSuccess), digestcodec.BoolByte(h.IsLastTurn)})
	digestcodec.WriteString(d, &tmp, h.FixedModifier)
	digestcodec.WriteString(d, &tmp, h.RandomModifier)

	digestcodec.WriteU64(d, &tmp, uint64(len(h.Points)))
	for _, p := range h.Points {
		digestcodec.WriteString(d, &tmp, p.TeamID)
		digestcodec.WriteF64(d, &tmp, p.Cell)
		digestcodec.WriteF64(d, &tmp, p.Project)
		digestcodec.WriteF64(d, &tmp, p.Underdog)
		digestcodec.WriteF64(d, &tmp, p.Modifier)
		digestcodec.WriteF64(d, &tmp, p.Total)
		digestcodec.WriteSortedNonZeroIntMap(d, &tmp, h.Placements[p.TeamID])
	}
	return hex.EncodeToString(d.Sum(nil))
}
