package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"kienquoc.game/internal/sim/engine/model"
)

type Catalogs struct {
	Board     BoardCatalog
	Events    EventCatalog
	Modifiers ModifierCatalog
	Regions   RegionCatalog
}

type BoardCatalog struct {
	// Cells in row-major order. Resolution iterates in this order.
	Cells       []model.Cell
	ByID        map[string]model.Cell
	Multipliers map[model.CellType]float64
	Digest      string
}

type cellDef struct {
	Row     int            `json:"row"`
	Col     int            `json:"col"`
	Name    string         `json:"name"`
	Type    model.CellType `json:"type"`
	Indices []model.Index  `json:"indices"`
}

type boardFile struct {
	Multipliers map[model.CellType]float64 `json:"multipliers"`
	Cells       []cellDef                  `json:"cells"`
}

func (b BoardCatalog) ProjectCells() []model.Cell {
	var out []model.Cell
	for _, c := range b.Cells {
		if c.Type == model.CellProject {
			out = append(out, c)
		}
	}
	return out
}

type EventCatalog struct {
	ByTurn map[int]model.TurnEvent
	// MaxTurn is the last turn with an event; turns are 1..MaxTurn without gaps.
	MaxTurn int
	Digest  string
}

type ModifierCatalog struct {
	ByID      map[string]model.Modifier
	RandomIDs []string
	Digest    string
}

type modifierFile struct {
	Fixed  []model.Modifier `json:"fixed"`
	Random []model.Modifier `json:"random"`
}

type Region struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Specialties []model.Index `json:"specialties"`
}

type RegionCatalog struct {
	List   []Region
	ByID   map[string]Region
	Digest string
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadBoard(filepath.Join(configDir, "board.json"), &c.Board); err != nil {
		return nil, err
	}
	if err := loadModifiers(filepath.Join(configDir, "modifiers.json"), &c.Modifiers); err != nil {
		return nil, err
	}
	if err := loadEvents(filepath.Join(configDir, "events.json"), &c.Events, &c.Modifiers); err != nil {
		return nil, err
	}
	if err := loadRegions(filepath.Join(configDir, "regions.json"), &c.Regions); err != nil {
		return nil, err
	}

	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBoard(path string, out *BoardCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var f boardFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("board.json: %w", err)
	}
	out.Multipliers = map[model.CellType]float64{}
	for t, m := range f.Multipliers {
		if !t.Valid() {
			return fmt.Errorf("board.json: unknown cell type %q", t)
		}
		out.Multipliers[t] = m
	}

	out.ByID = map[string]model.Cell{}
	out.Cells = make([]model.Cell, 0, len(f.Cells))
	for _, d := range f.Cells {
		if !d.Type.Valid() {
			return fmt.Errorf("board.json: cell %d,%d: unknown type %q", d.Row, d.Col, d.Type)
		}
		id := model.CellID(d.Row, d.Col)
		if _, dup := out.ByID[id]; dup {
			return fmt.Errorf("board.json: duplicate cell %s", id)
		}
		mult, ok := out.Multipliers[d.Type]
		if !ok {
			mult = 1
		}
		c := model.Cell{
			ID:             id,
			Row:            d.Row,
			Col:            d.Col,
			Name:           d.Name,
			Type:           d.Type,
			Indices:        d.Indices,
			BaseMultiplier: mult,
		}
		out.Cells = append(out.Cells, c)
		out.ByID[id] = c
	}
	sort.SliceStable(out.Cells, func(i, j int) bool {
		if out.Cells[i].Row != out.Cells[j].Row {
			return out.Cells[i].Row < out.Cells[j].Row
		}
		return out.Cells[i].Col < out.Cells[j].Col
	})
	if len(out.ProjectCells()) == 0 {
		return fmt.Errorf("board.json: no project cells")
	}
	return nil
}

func loadModifiers(path string, out *ModifierCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var f modifierFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("modifiers.json: %w", err)
	}
	out.ByID = map[string]model.Modifier{}
	add := func(m model.Modifier, kind model.ModifierKind) error {
		if m.ID == "" {
			return fmt.Errorf("modifiers.json: empty id")
		}
		if _, dup := out.ByID[m.ID]; dup {
			return fmt.Errorf("modifiers.json: duplicate id %s", m.ID)
		}
		m.Kind = kind
		out.ByID[m.ID] = m
		return nil
	}
	for _, m := range f.Fixed {
		if err := add(m, model.ModifierFixed); err != nil {
			return err
		}
	}
	for _, m := range f.Random {
		if err := add(m, model.ModifierRandom); err != nil {
			return err
		}
		out.RandomIDs = append(out.RandomIDs, m.ID)
	}
	sort.Strings(out.RandomIDs)
	return nil
}

func loadEvents(path string, out *EventCatalog, mods *ModifierCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []model.TurnEvent
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("events.json: %w", err)
	}
	out.ByTurn = map[int]model.TurnEvent{}
	for _, ev := range defs {
		if ev.Turn <= 0 {
			return fmt.Errorf("events.json: bad turn %d", ev.Turn)
		}
		if _, dup := out.ByTurn[ev.Turn]; dup {
			return fmt.Errorf("events.json: duplicate turn %d", ev.Turn)
		}
		if ev.MinTotal < 0 || ev.MinTeams < 0 {
			return fmt.Errorf("events.json: turn %d: negative requirement", ev.Turn)
		}
		if ev.ModifierID != "" {
			m, ok := mods.ByID[ev.ModifierID]
			if !ok {
				return fmt.Errorf("events.json: turn %d: unknown modifier %s", ev.Turn, ev.ModifierID)
			}
			if m.Kind != model.ModifierFixed {
				return fmt.Errorf("events.json: turn %d: modifier %s is not fixed", ev.Turn, ev.ModifierID)
			}
		}
		out.ByTurn[ev.Turn] = ev
		if ev.Turn > out.MaxTurn {
			out.MaxTurn = ev.Turn
		}
	}
	for t := 1; t <= out.MaxTurn; t++ {
		if _, ok := out.ByTurn[t]; !ok {
			return fmt.Errorf("events.json: missing turn %d", t)
		}
	}
	return nil
}

func loadRegions(path string, out *RegionCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	if err := json.Unmarshal(raw, &out.List); err != nil {
		return fmt.Errorf("regions.json: %w", err)
	}
	out.ByID = map[string]Region{}
	for _, r := range out.List {
		if r.ID == "" {
			return fmt.Errorf("regions.json: empty id")
		}
		out.ByID[r.ID] = r
	}
	return nil
}
