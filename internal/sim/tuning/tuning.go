package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"kienquoc.game/internal/sim/engine/model"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" json:"protocol_version"`

	Game     Game     `yaml:"game" json:"game"`
	Indices  Indices  `yaml:"indices" json:"indices"`
	Scoring  Scoring  `yaml:"scoring" json:"scoring"`
	Project  Project  `yaml:"project" json:"project"`
	Underdog Underdog `yaml:"underdog" json:"underdog"`
	AI       AI       `yaml:"ai" json:"ai"`
	Phases   Phases   `yaml:"phases" json:"phases"`
}

type Game struct {
	MaxTurns         int `yaml:"max_turns" json:"max_turns"`
	ResourcesPerTurn int `yaml:"resources_per_turn" json:"resources_per_turn"`
	MinTeams         int `yaml:"min_teams" json:"min_teams"`
	MaxTeams         int `yaml:"max_teams" json:"max_teams"`
}

type Indices struct {
	Min             int            `yaml:"min" json:"min"`
	Max             int            `yaml:"max" json:"max"`
	SurvivalWarning int            `yaml:"survival_warning" json:"survival_warning"`
	Starting        map[string]int `yaml:"starting" json:"starting"`
	Maintenance     map[string]int `yaml:"maintenance" json:"maintenance"`
}

func (ix Indices) StartVector() model.Indices {
	v, _ := model.IndicesFromMap(ix.Starting)
	return v
}

func (ix Indices) MaintenanceVector() model.Indices {
	v, _ := model.IndicesFromMap(ix.Maintenance)
	return v
}

type Scoring struct {
	ConsolationRate         float64 `yaml:"consolation_rate" json:"consolation_rate"`
	SoloPenalty             float64 `yaml:"solo_penalty" json:"solo_penalty"`
	SynergyBase             float64 `yaml:"synergy_base" json:"synergy_base"`
	SynergyScaling          float64 `yaml:"synergy_scaling" json:"synergy_scaling"`
	SynergyFreeParticipants int     `yaml:"synergy_free_participants" json:"synergy_free_participants"`
	RegionBonus             float64 `yaml:"region_bonus" json:"region_bonus"`
	DefaultMinCoopTeams     int     `yaml:"default_min_coop_teams" json:"default_min_coop_teams"`
	IndexBoostDivisor       int     `yaml:"index_boost_divisor" json:"index_boost_divisor"`
}

type Project struct {
	ReferenceTeams int `yaml:"reference_teams" json:"reference_teams"`
	MinTeams       int `yaml:"min_teams" json:"min_teams"`
	MaxTeams       int `yaml:"max_teams" json:"max_teams"`
}

type Underdog struct {
	Threshold       float64 `yaml:"threshold" json:"threshold"`
	Tier1StartTurn  int     `yaml:"tier1_start_turn" json:"tier1_start_turn"`
	Tier2StartTurn  int     `yaml:"tier2_start_turn" json:"tier2_start_turn"`
	Tier1BonusRP    int     `yaml:"tier1_bonus_rp" json:"tier1_bonus_rp"`
	Tier2BonusRP    int     `yaml:"tier2_bonus_rp" json:"tier2_bonus_rp"`
	Tier1PointBonus float64 `yaml:"tier1_point_bonus" json:"tier1_point_bonus"`
	Tier2PointBonus float64 `yaml:"tier2_point_bonus" json:"tier2_point_bonus"`
	Tier2Multiplier float64 `yaml:"tier2_multiplier" json:"tier2_multiplier"`
}

type AI struct {
	DangerThreshold      int     `yaml:"danger_threshold" json:"danger_threshold"`
	MinProjectFraction   float64 `yaml:"min_project_fraction" json:"min_project_fraction"`
	EndgameTurns         int     `yaml:"endgame_turns" json:"endgame_turns"`
	SurvivalProjectBoost float64 `yaml:"survival_project_boost" json:"survival_project_boost"`
	MaxProjectShare      float64 `yaml:"max_project_share" json:"max_project_share"`
	Jitter               float64 `yaml:"jitter" json:"jitter"`
}

type Phases struct {
	EventSeconds      int `yaml:"event_seconds" json:"event_seconds"`
	ActionSeconds     int `yaml:"action_seconds" json:"action_seconds"`
	ResolutionSeconds int `yaml:"resolution_seconds" json:"resolution_seconds"`
	ResultSeconds     int `yaml:"result_seconds" json:"result_seconds"`
}

func (p Phases) Event() time.Duration      { return seconds(p.EventSeconds) }
func (p Phases) Action() time.Duration     { return seconds(p.ActionSeconds) }
func (p Phases) Resolution() time.Duration { return seconds(p.ResolutionSeconds) }
func (p Phases) Result() time.Duration     { return seconds(p.ResultSeconds) }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Defaults mirrors configs/tuning.yaml.
func Defaults() Tuning {
	six := func(v int) map[string]int {
		return model.UniformIndices(v).Map()
	}
	return Tuning{
		ProtocolVersion: "1.0",
		Game: Game{
			MaxTurns:         8,
			ResourcesPerTurn: 14,
			MinTeams:         2,
			MaxTeams:         6,
		},
		Indices: Indices{
			Min:             0,
			Max:             30,
			SurvivalWarning: 6,
			Starting:        six(10),
			Maintenance:     six(1),
		},
		Scoring: Scoring{
			ConsolationRate:         0.5,
			SoloPenalty:             0.7,
			SynergyBase:             1.0,
			SynergyScaling:          0.25,
			SynergyFreeParticipants: 1,
			RegionBonus:             1.2,
			DefaultMinCoopTeams:     2,
			IndexBoostDivisor:       6,
		},
		Project: Project{ReferenceTeams: 6, MinTeams: 2, MaxTeams: 6},
		Underdog: Underdog{
			Threshold:       0.4,
			Tier1StartTurn:  3,
			Tier2StartTurn:  5,
			Tier1BonusRP:    2,
			Tier2BonusRP:    4,
			Tier1PointBonus: 1,
			Tier2PointBonus: 2,
			Tier2Multiplier: 1.15,
		},
		AI: AI{
			DangerThreshold:      6,
			MinProjectFraction:   0.5,
			EndgameTurns:         2,
			SurvivalProjectBoost: 0.15,
			MaxProjectShare:      0.6,
			Jitter:               0.3,
		},
		Phases: Phases{
			EventSeconds:      15,
			ActionSeconds:     60,
			ResolutionSeconds: 3,
			ResultSeconds:     15,
		},
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Digest is the sha256 of the tuning as JSON. Clients compare it to detect a
// server running different balance numbers.
func (t Tuning) Digest() string {
	b, err := json.Marshal(t)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (t Tuning) Validate() error {
	if t.Game.MaxTurns <= 0 {
		return errors.New("game.max_turns must be > 0")
	}
	if t.Game.ResourcesPerTurn <= 0 {
		return errors.New("game.resources_per_turn must be > 0")
	}
	if t.Game.MinTeams < 1 || t.Game.MaxTeams < t.Game.MinTeams {
		return fmt.Errorf("game team range invalid: [%d,%d]", t.Game.MinTeams, t.Game.MaxTeams)
	}
	if t.Indices.Max <= t.Indices.Min {
		return fmt.Errorf("indices range invalid: [%d,%d]", t.Indices.Min, t.Indices.Max)
	}
	if _, err := model.IndicesFromMap(t.Indices.Starting); err != nil {
		return fmt.Errorf("indices.starting: %w", err)
	}
	if _, err := model.IndicesFromMap(t.Indices.Maintenance); err != nil {
		return fmt.Errorf("indices.maintenance: %w", err)
	}
	s := t.Scoring
	if s.ConsolationRate < 0 || s.ConsolationRate >= 1 {
		return errors.New("scoring.consolation_rate must be in [0,1)")
	}
	if s.SoloPenalty <= 0 || s.SoloPenalty >= 1 {
		return errors.New("scoring.solo_penalty must be in (0,1)")
	}
	if s.RegionBonus < 1 {
		return errors.New("scoring.region_bonus must be >= 1")
	}
	if s.IndexBoostDivisor <= 0 {
		return errors.New("scoring.index_boost_divisor must be > 0")
	}
	p := t.Project
	if p.ReferenceTeams <= 0 || p.MinTeams <= 0 || p.MaxTeams < p.MinTeams {
		return errors.New("project team range invalid")
	}
	u := t.Underdog
	if u.Threshold < 0 || u.Threshold > 1 {
		return errors.New("underdog.threshold must be in [0,1]")
	}
	if u.Tier2StartTurn < u.Tier1StartTurn {
		return errors.New("underdog.tier2_start_turn must be >= tier1_start_turn")
	}
	if u.Tier2Multiplier < 1 {
		return errors.New("underdog.tier2_multiplier must be >= 1")
	}
	return nil
}
