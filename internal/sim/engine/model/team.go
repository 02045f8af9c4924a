package model

type OwnerKind string

const (
	OwnerHuman      OwnerKind = "human"
	OwnerAI         OwnerKind = "ai"
	OwnerUnassigned OwnerKind = "unassigned"
)

// TeamMeta is the part of a team the turn engine reads.
type TeamMeta struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Owner       OwnerKind `json:"owner"`
	Specialties []Index   `json:"specialties,omitempty"`
}

type Team struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Region      string    `json:"region"`
	Owner       OwnerKind `json:"owner"`
	Specialties []Index   `json:"specialties,omitempty"`

	Points            float64    `json:"points"`
	Placements        Placements `json:"placements"`
	AllTimePlacements Placements `json:"all_time_placements,omitempty"`
	Submitted         bool       `json:"submitted"`
	Connected         bool       `json:"connected"`
}

func (t *Team) Meta() TeamMeta {
	return TeamMeta{
		ID:          t.ID,
		Name:        t.Name,
		Owner:       t.Owner,
		Specialties: append([]Index(nil), t.Specialties...),
	}
}

// Active teams take part in resolution; unassigned seats do not.
func (t *Team) Active() bool { return t.Owner != OwnerUnassigned }
