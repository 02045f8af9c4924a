package protocol

import (
	"kienquoc.game/internal/sim/catalogs"
	"kienquoc.game/internal/sim/engine/model"
	"kienquoc.game/internal/sim/game"
	"kienquoc.game/internal/sim/tuning"
)

// HELLO (client -> server). Players either claim a free team (no token) or
// resume one with the session token from an earlier WELCOME. The host
// authenticates with the host token returned when the game was created.
type HelloMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	GameCode        string    `json:"game_code"`
	Role            game.Role `json:"role"`
	TeamID          string    `json:"team_id,omitempty"`
	Token           string    `json:"token,omitempty"`
	ClientName      string    `json:"client_name,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	GameID          string         `json:"game_id"`
	GameCode        string         `json:"game_code"`
	Role            game.Role      `json:"role"`
	TeamID          string         `json:"team_id,omitempty"`
	SessionToken    string         `json:"session_token,omitempty"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type CatalogDigests struct {
	Board     string `json:"board"`
	Events    string `json:"events"`
	Modifiers string `json:"modifiers"`
	Regions   string `json:"regions"`
	Tuning    string `json:"tuning,omitempty"`
}

func DigestsOf(cats *catalogs.Catalogs, tune tuning.Tuning) CatalogDigests {
	d := CatalogDigests{Tuning: tune.Digest()}
	if cats != nil {
		d.Board = cats.Board.Digest
		d.Events = cats.Events.Digest
		d.Modifiers = cats.Modifiers.Digest
		d.Regions = cats.Regions.Digest
	}
	return d
}

// PLACE sets the RP on one cell; 0 removes the placement.
type PlaceMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             int64  `json:"seq,omitempty"`
	CellID          string `json:"cell_id"`
	RP              int    `json:"rp"`
}

// SET_PLACEMENTS replaces the team's whole placement map.
type SetPlacementsMsg struct {
	Type            string           `json:"type"`
	ProtocolVersion string           `json:"protocol_version"`
	Seq             int64            `json:"seq,omitempty"`
	Placements      model.Placements `json:"placements"`
}

type SubmitMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             int64  `json:"seq,omitempty"`
}

// HostMsg carries every HOST_* command. FillAI applies to HOST_START,
// TeamID to HOST_ASSIGN_AI and HOST_RELEASE.
type HostMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seq             int64  `json:"seq,omitempty"`
	FillAI          bool   `json:"fill_ai,omitempty"`
	TeamID          string `json:"team_id,omitempty"`
}

// STATE (server -> client): the full role-filtered view.
type StateMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Seq             uint64    `json:"seq"`
	DeadlineUnixMs  int64     `json:"deadline_unix_ms,omitempty"`
	State           game.View `json:"state"`
}

type TurnResultMsg struct {
	Type            string             `json:"type"`
	ProtocolVersion string             `json:"protocol_version"`
	Turn            int                `json:"turn"`
	Result          model.TurnResult   `json:"result"`
	Project         model.ProjectState `json:"project"`
}

type GameOverMsg struct {
	Type            string              `json:"type"`
	ProtocolVersion string              `json:"protocol_version"`
	GameOver        model.GameOverState `json:"game_over"`
}

// ACK answers a client request that carried a seq.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          int64  `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: msg}
}
