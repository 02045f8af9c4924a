package model

// PointBreakdown splits a team's earned points for one turn. Every field is
// rounded to 2 decimals and Total is the sum of the other four.
type PointBreakdown struct {
	TeamID   string  `json:"team_id"`
	Cell     float64 `json:"cell"`
	Project  float64 `json:"project"`
	Underdog float64 `json:"underdog"`
	Modifier float64 `json:"modifier"`
	Total    float64 `json:"total"`
}

type Award struct {
	TeamID string  `json:"team_id"`
	RP     int     `json:"rp"`
	Points float64 `json:"points"`
}

type CellResult struct {
	CellID       string   `json:"cell_id"`
	Type         CellType `json:"type"`
	TotalRP      int      `json:"total_rp"`
	Participants int      `json:"participants"`
	Awards       []Award  `json:"awards,omitempty"`
	ZoneBoost    int      `json:"zone_boost,omitempty"`
}

type TurnResult struct {
	Turn              int              `json:"turn"`
	ProjectSuccess    bool             `json:"project_success"`
	ProjectTotalRP    int              `json:"project_total_rp"`
	ContributingTeams int              `json:"contributing_teams"`
	ProjectDeltas     Indices          `json:"project_deltas"`
	ZoneDeltas        Indices          `json:"zone_deltas"`
	Maintenance       Indices          `json:"maintenance"`
	IndexDeltas       Indices          `json:"index_deltas"`
	TeamPoints        []PointBreakdown `json:"team_points"`
	UnderdogTeams     []string         `json:"underdog_teams,omitempty"`
	CellResults       []CellResult     `json:"cell_results,omitempty"`
}

// PointsFor returns the breakdown for teamID, or a zero value.
func (r TurnResult) PointsFor(teamID string) PointBreakdown {
	for _, p := range r.TeamPoints {
		if p.TeamID == teamID {
			return p
		}
	}
	return PointBreakdown{TeamID: teamID}
}

type Contribution struct {
	TeamID string `json:"team_id"`
	RP     int    `json:"rp"`
	Bonus  int    `json:"bonus"`
}

type ProjectState struct {
	Name              string         `json:"name"`
	ScaledMinTotal    int            `json:"scaled_min_total"`
	ScaledMinTeams    int            `json:"scaled_min_teams"`
	TotalRP           int            `json:"total_rp"`
	EffectiveRP       float64        `json:"effective_rp"`
	ContributingTeams int            `json:"contributing_teams"`
	Success           bool           `json:"success"`
	Contributions     []Contribution `json:"contributions,omitempty"`
}

// HistoryEntry is the audit record of one resolved turn. It carries enough
// input to re-run the turn and compare digests.
type HistoryEntry struct {
	Turn           int                   `json:"turn"`
	Event          TurnEvent             `json:"event"`
	FixedModifier  string                `json:"fixed_modifier,omitempty"`
	RandomModifier string                `json:"random_modifier,omitempty"`
	Effect         Effect                `json:"effect"`
	Teams          []TeamMeta            `json:"teams"`
	ActiveTeams    int                   `json:"active_teams"`
	IsLastTurn     bool                  `json:"is_last_turn,omitempty"`
	Placements     map[string]Placements `json:"placements"`
	PointsBefore   map[string]float64    `json:"points_before"`
	IndicesBefore  Indices               `json:"indices_before"`
	IndicesAfter   Indices               `json:"indices_after"`
	Points         []PointBreakdown      `json:"points"`
	ProjectSuccess bool                  `json:"project_success"`
	Digest         string                `json:"digest"`
}

type GameOverReason string

const (
	ReasonCompleted GameOverReason = "completed"
	ReasonIndexZero GameOverReason = "index_zero"
)

type RankEntry struct {
	Rank   int     `json:"rank"`
	TeamID string  `json:"team_id"`
	Name   string  `json:"name"`
	Points float64 `json:"points"`
}

type GameOverState struct {
	Reason       GameOverReason `json:"reason"`
	ZeroIndex    string         `json:"zero_index,omitempty"`
	Ranking      []RankEntry    `json:"ranking"`
	TurnsPlayed  int            `json:"turns_played"`
	FinalIndices Indices        `json:"final_indices"`
}
