package model

import "fmt"

type CellType string

const (
	CellCompetitive CellType = "competitive"
	CellSynergy     CellType = "synergy"
	CellIndependent CellType = "independent"
	CellCooperation CellType = "cooperation"
	CellProject     CellType = "project"
)

func (t CellType) Valid() bool {
	switch t {
	case CellCompetitive, CellSynergy, CellIndependent, CellCooperation, CellProject:
		return true
	}
	return false
}

type Cell struct {
	ID             string   `json:"id"`
	Row            int      `json:"row"`
	Col            int      `json:"col"`
	Name           string   `json:"name"`
	Type           CellType `json:"type"`
	Indices        []Index  `json:"indices"`
	BaseMultiplier float64  `json:"base_multiplier"`
}

func CellID(row, col int) string { return fmt.Sprintf("cell-%d-%d", row, col) }

func (c Cell) Touches(set []Index) bool {
	for _, a := range c.Indices {
		for _, b := range set {
			if a == b {
				return true
			}
		}
	}
	return false
}

// Placements maps cell id to RP placed this turn.
type Placements map[string]int

func (p Placements) Total() int {
	n := 0
	for _, v := range p {
		if v > 0 {
			n += v
		}
	}
	return n
}

func (p Placements) Clone() Placements {
	if p == nil {
		return nil
	}
	out := make(Placements, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
