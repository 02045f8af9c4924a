package model

type Reward struct {
	Points  int     `json:"points,omitempty"`
	Indices Indices `json:"indices"`
}

// TurnEvent is the scenario for one turn. ScaledMinTotal and ScaledMinTeams
// are zero until the event is scaled for an active team count.
type TurnEvent struct {
	Turn           int    `json:"turn"`
	Year           int    `json:"year"`
	Name           string `json:"name"`
	Project        string `json:"project"`
	MinTotal       int    `json:"min_total"`
	MinTeams       int    `json:"min_teams"`
	SuccessReward  Reward `json:"success_reward"`
	FailurePenalty Reward `json:"failure_penalty"`
	ModifierID     string `json:"modifier_id,omitempty"`

	ScaledMinTotal int `json:"scaled_min_total,omitempty"`
	ScaledMinTeams int `json:"scaled_min_teams,omitempty"`
}

type ModifierKind string

const (
	ModifierFixed  ModifierKind = "fixed"
	ModifierRandom ModifierKind = "random"
)

type Modifier struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Kind        ModifierKind `json:"kind"`
	Effect      Effect       `json:"effect"`
}
