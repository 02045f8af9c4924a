package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"kienquoc.game/internal/sim/catalogs"
	"kienquoc.game/internal/sim/montecarlo"
	"kienquoc.game/internal/sim/tuning"
)

func main() {
	var (
		games      = flag.Int("games", 1000, "number of games to simulate")
		seed       = flag.Int64("seed", 1, "seed of the first game; game i uses seed+i")
		workers    = flag.Int("workers", 0, "parallel workers (0 = GOMAXPROCS)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		jsonOut    = flag.String("json", "", "write the report (and outcomes) as JSON to this path")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[sim] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}

	start := time.Now()
	rep, outcomes, err := montecarlo.Run(context.Background(), montecarlo.Config{
		Games:   *games,
		Seed:    *seed,
		Workers: *workers,
		Tuning:  tune,
		Cats:    cats,
	})
	if err != nil {
		logger.Fatalf("simulate: %v", err)
	}
	logger.Printf("%d games in %s", rep.Games, time.Since(start).Round(time.Millisecond))

	printReport(os.Stdout, rep)

	if *jsonOut != "" {
		b, err := json.MarshalIndent(struct {
			Report   montecarlo.Report    `json:"report"`
			Outcomes []montecarlo.Outcome `json:"outcomes"`
		}{rep, outcomes}, "", "  ")
		if err != nil {
			logger.Fatalf("encode: %v", err)
		}
		if err := os.WriteFile(*jsonOut, b, 0o644); err != nil {
			logger.Fatalf("write %s: %v", *jsonOut, err)
		}
	}
}

func printReport(w io.Writer, r montecarlo.Report) {
	fmt.Fprintf(w, "games:           %d\n", r.Games)
	fmt.Fprintf(w, "completed:       %d (%.1f%%)\n", r.Completed, r.CompletionRate)
	fmt.Fprintf(w, "ended early:     %d (%.1f%%)\n", r.EarlyEnd, r.EarlyEndRate)
	fmt.Fprintf(w, "survival mode:   %.1f%% of games, %.2f turns on average\n", r.SurvivalRate, r.AvgSurvivalTurns)

	if len(r.ZeroIndexCounts) > 0 {
		fmt.Fprintf(w, "\nindex that hit zero:\n")
		for _, k := range sortedKeys(r.ZeroIndexCounts) {
			fmt.Fprintf(w, "  %-12s %d\n", k, r.ZeroIndexCounts[k])
		}
	}

	fmt.Fprintf(w, "\nteam         win%%    mean     std      min      max\n")
	for _, team := range sortedKeys(r.Scores) {
		s := r.Scores[team]
		fmt.Fprintf(w, "%-12s %5.1f  %7.2f  %7.2f  %7.2f  %7.2f\n", team, r.WinRates[team], s.Mean, s.Std, s.Min, s.Max)
	}
	fmt.Fprintf(w, "chi-square vs uniform wins: %.2f\n", r.ChiSquare)

	fmt.Fprintf(w, "\nproject success by turn:\n")
	for i, rate := range r.ProjectSuccessRates {
		fmt.Fprintf(w, "  turn %d  %5.1f%%\n", i+1, rate)
	}

	fmt.Fprintf(w, "\nfinal indices   mean     std      min      max\n")
	for _, ix := range sortedKeys(r.FinalIndices) {
		s := r.FinalIndices[ix]
		fmt.Fprintf(w, "%-12s %7.2f  %7.2f  %7.2f  %7.2f\n", ix, s.Mean, s.Std, s.Min, s.Max)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
