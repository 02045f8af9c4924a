package main

import (
	"flag"
	"fmt"
	"os"

	persistlog "kienquoc.game/internal/persistence/log"
	"kienquoc.game/internal/persistence/snapshot"
	"kienquoc.game/internal/sim/catalogs"
	"kienquoc.game/internal/sim/engine/model"
	"kienquoc.game/internal/sim/engine/turn"
	"kienquoc.game/internal/sim/tuning"
)

func main() {
	var (
		gameDir    = flag.String("game", "", "game data dir containing turns/turns-*.jsonl.zst")
		snapPath   = flag.String("snapshot", "", "verify the history stored in a snapshot instead (optional)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		fromTurn   = flag.Int("from_turn", 0, "start verifying from turn (inclusive, optional)")
		toTurn     = flag.Int("to_turn", 0, "stop at turn (inclusive, optional)")
	)
	flag.Parse()

	if *gameDir == "" && *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -game or -snapshot")
		os.Exit(2)
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	tp := *tuningPath
	if tp == "" {
		tp = *configDir + "/tuning.yaml"
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}

	var hist []model.HistoryEntry
	if *snapPath != "" {
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		fmt.Printf("snapshot v%d game=%s turn=%d phase=%s seed=%d history=%d\n",
			snap.Header.Version, snap.Header.GameID, snap.Header.Turn, snap.Header.Phase, snap.Game.Seed, len(snap.Game.History))
		hist = snap.Game.History
	} else {
		entries, err := persistlog.ReadTurns(*gameDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read turns:", err)
			os.Exit(1)
		}
		for _, e := range entries {
			hist = append(hist, e.History)
		}
	}
	if len(hist) == 0 {
		fmt.Fprintln(os.Stderr, "no recorded turns")
		os.Exit(1)
	}

	checked, err := verify(turn.New(tune, cats), hist, *fromTurn, *toTurn)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	last := hist[len(hist)-1]
	fmt.Printf("replay ok: checked=%d turns final_indices=%v\n", checked, last.IndicesAfter.Map())
}

// verify re-runs every turn in [from,to] and checks that indices chain from
// one turn to the next.
func verify(p *turn.Processor, hist []model.HistoryEntry, from, to int) (int, error) {
	checked := 0
	for i, h := range hist {
		if i > 0 {
			prev := hist[i-1]
			if h.Turn != prev.Turn+1 {
				return checked, fmt.Errorf("turn gap: %d after %d", h.Turn, prev.Turn)
			}
			if h.IndicesBefore != prev.IndicesAfter {
				return checked, fmt.Errorf("turn %d: indices do not chain from turn %d", h.Turn, prev.Turn)
			}
		}
		if h.Turn < from || (to != 0 && h.Turn > to) {
			continue
		}
		if err := p.Verify(h); err != nil {
			return checked, err
		}
		checked++
	}
	return checked, nil
}
