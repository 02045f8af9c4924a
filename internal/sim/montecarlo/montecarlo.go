// Package montecarlo plays many all-AI games and aggregates balance metrics:
// completion rate, win rates, project success per turn, final indices and
// how often a game enters survival mode.
package montecarlo

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"kienquoc.game/internal/sim/catalogs"
	"kienquoc.game/internal/sim/engine/model"
	"kienquoc.game/internal/sim/game"
	"kienquoc.game/internal/sim/tuning"
)

type Config struct {
	Games   int
	Seed    int64
	Workers int // 0 means GOMAXPROCS
	Tuning  tuning.Tuning
	Cats    *catalogs.Catalogs
}

// Outcome is the result of one simulated game.
type Outcome struct {
	Seed           int64                `json:"seed"`
	Reason         model.GameOverReason `json:"reason"`
	ZeroIndex      string               `json:"zero_index,omitempty"`
	TurnsPlayed    int                  `json:"turns_played"`
	Winner         string               `json:"winner"`
	Points         map[string]float64   `json:"points"`
	ProjectSuccess []bool               `json:"project_success"`
	FinalIndices   model.Indices        `json:"final_indices"`
	// SurvivalTurns counts turns that started with an index at or below the
	// danger threshold.
	SurvivalTurns int `json:"survival_turns"`
}

// PlayGame runs one full game with every seat filled by an agent.
func PlayGame(seed int64, tune tuning.Tuning, cats *catalogs.Catalogs) (Outcome, error) {
	g := game.New(game.Config{ID: fmt.Sprintf("mc-%d", seed), Seed: seed}, tune, cats)
	if err := g.Start(true); err != nil {
		return Outcome{}, err
	}
	out := Outcome{Seed: seed, Points: map[string]float64{}}
	danger := tune.AI.DangerThreshold
	for g.Phase() != game.PhaseFinished {
		if g.Phase() == game.PhaseAction {
			if _, low := g.Indices().Lowest(); low <= danger {
				out.SurvivalTurns++
			}
		}
		tr, err := g.Advance()
		if err != nil {
			return out, fmt.Errorf("seed %d turn %d: %w", seed, g.Turn(), err)
		}
		if tr.Result != nil {
			out.ProjectSuccess = append(out.ProjectSuccess, tr.Result.Project.Success)
		}
	}
	st, _ := g.GameOver()
	out.Reason = st.Reason
	out.ZeroIndex = st.ZeroIndex
	out.TurnsPlayed = st.TurnsPlayed
	out.FinalIndices = st.FinalIndices
	if len(st.Ranking) > 0 {
		out.Winner = st.Ranking[0].TeamID
	}
	for _, r := range st.Ranking {
		out.Points[r.TeamID] = r.Points
	}
	return out, nil
}

type Stat struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

type Report struct {
	Games          int     `json:"games"`
	Completed      int     `json:"completed"`
	EarlyEnd       int     `json:"early_end"`
	CompletionRate float64 `json:"completion_rate"`
	EarlyEndRate   float64 `json:"early_end_rate"`

	// Win rates are over completed games only, in percent.
	WinRates  map[string]float64 `json:"win_rates"`
	ChiSquare float64            `json:"chi_square"`
	Scores    map[string]Stat    `json:"scores"`

	// ProjectSuccessRates[i] is the success rate of turn i+1 over all games.
	ProjectSuccessRates []float64       `json:"project_success_rates"`
	FinalIndices        map[string]Stat `json:"final_indices"`
	ZeroIndexCounts     map[string]int  `json:"zero_index_counts,omitempty"`
	SurvivalRate        float64         `json:"survival_rate"`
	AvgSurvivalTurns    float64         `json:"avg_survival_turns"`
}

// Run plays cfg.Games games on a worker pool. Game i uses seed cfg.Seed+i,
// so the report does not depend on scheduling.
func Run(ctx context.Context, cfg Config) (Report, []Outcome, error) {
	if cfg.Games <= 0 {
		return Report{}, nil, fmt.Errorf("montecarlo: games must be positive")
	}
	if cfg.Cats == nil {
		return Report{}, nil, fmt.Errorf("montecarlo: nil catalogs")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	outcomes := make([]Outcome, cfg.Games)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := 0; i < cfg.Games; i++ {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			o, err := PlayGame(cfg.Seed+int64(i), cfg.Tuning, cfg.Cats)
			if err != nil {
				return err
			}
			outcomes[i] = o
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Report{}, nil, err
	}
	if err := ctx.Err(); err != nil {
		return Report{}, nil, err
	}
	return Aggregate(outcomes, cfg.Tuning.Game.MaxTurns), outcomes, nil
}

// Aggregate summarizes outcomes.
func Aggregate(outcomes []Outcome, maxTurns int) Report {
	r := Report{
		Games:               len(outcomes),
		WinRates:            map[string]float64{},
		Scores:              map[string]Stat{},
		ProjectSuccessRates: make([]float64, maxTurns),
		FinalIndices:        map[string]Stat{},
		ZeroIndexCounts:     map[string]int{},
	}
	if len(outcomes) == 0 {
		return r
	}
	wins := map[string]int{}
	scores := map[string][]float64{}
	indices := map[string][]float64{}
	successes := make([]int, maxTurns)
	survivalGames, survivalTurns := 0, 0

	for _, o := range outcomes {
		if o.Reason == model.ReasonCompleted {
			r.Completed++
			wins[o.Winner]++
		} else {
			r.EarlyEnd++
			r.ZeroIndexCounts[o.ZeroIndex]++
		}
		for team, p := range o.Points {
			scores[team] = append(scores[team], p)
		}
		for t, ok := range o.ProjectSuccess {
			if ok && t < maxTurns {
				successes[t]++
			}
		}
		for _, ix := range model.AllIndices() {
			indices[ix.String()] = append(indices[ix.String()], float64(o.FinalIndices.Get(ix)))
		}
		if o.SurvivalTurns > 0 {
			survivalGames++
			survivalTurns += o.SurvivalTurns
		}
	}

	n := float64(len(outcomes))
	r.CompletionRate = 100 * float64(r.Completed) / n
	r.EarlyEndRate = 100 * float64(r.EarlyEnd) / n

	teams := make([]string, 0, len(scores))
	for team := range scores {
		teams = append(teams, team)
	}
	sort.Strings(teams)
	for _, team := range teams {
		r.Scores[team] = describe(scores[team])
		if r.Completed > 0 {
			r.WinRates[team] = 100 * float64(wins[team]) / float64(r.Completed)
		}
	}
	if r.Completed > 0 && len(teams) > 0 {
		expected := float64(r.Completed) / float64(len(teams))
		for _, team := range teams {
			d := float64(wins[team]) - expected
			r.ChiSquare += d * d / expected
		}
	}
	for t := range successes {
		r.ProjectSuccessRates[t] = 100 * float64(successes[t]) / n
	}
	for name, vals := range indices {
		r.FinalIndices[name] = describe(vals)
	}
	r.SurvivalRate = 100 * float64(survivalGames) / n
	if survivalGames > 0 {
		r.AvgSurvivalTurns = float64(survivalTurns) / float64(survivalGames)
	}
	return r
}

func describe(vals []float64) Stat {
	if len(vals) == 0 {
		return Stat{}
	}
	s := Stat{Min: vals[0], Max: vals[0]}
	sum := 0.0
	for _, v := range vals {
		sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Mean = sum / float64(len(vals))
	ss := 0.0
	for _, v := range vals {
		ss += (v - s.Mean) * (v - s.Mean)
	}
	s.Std = math.Sqrt(ss / float64(len(vals)))
	return s
}
