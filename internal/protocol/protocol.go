package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	// client -> server
	TypeHello         = "HELLO"
	TypePlace         = "PLACE"
	TypeSetPlacements = "SET_PLACEMENTS"
	TypeSubmit        = "SUBMIT"
	TypeHostStart     = "HOST_START"
	TypeHostAdvance   = "HOST_ADVANCE"
	TypeHostPause     = "HOST_PAUSE"
	TypeHostResume    = "HOST_RESUME"
	TypeHostAssignAI  = "HOST_ASSIGN_AI"
	TypeHostRelease   = "HOST_RELEASE"

	// server -> client
	TypeWelcome    = "WELCOME"
	TypeState      = "STATE"
	TypeTurnResult = "TURN_RESULT"
	TypeGameOver   = "GAME_OVER"
	TypeAck        = "ACK"
	TypeError      = "ERROR"
)

// IsHostCommand reports whether t is reserved for the host connection.
func IsHostCommand(t string) bool {
	switch t {
	case TypeHostStart, TypeHostAdvance, TypeHostPause, TypeHostResume, TypeHostAssignAI, TypeHostRelease:
		return true
	}
	return false
}

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	Seq             int64  `json:"seq,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
