package protocol

import (
	"context"
	"errors"

	"kienquoc.game/internal/sim/game"
	"kienquoc.game/internal/sim/room"
)

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Routing/session.
	ErrGameNotFound = "E_GAME_NOT_FOUND"
	ErrGameStopped  = "E_GAME_STOPPED"
	ErrBadToken     = "E_BAD_TOKEN"
	ErrTeamTaken    = "E_TEAM_TAKEN"
	ErrUnknownTeam  = "E_UNKNOWN_TEAM"

	// Rule layer.
	ErrBadRequest       = "E_BAD_REQUEST"
	ErrNoPermission     = "E_NO_PERMISSION"
	ErrWrongPhase       = "E_WRONG_PHASE"
	ErrPaused           = "E_PAUSED"
	ErrFinished         = "E_FINISHED"
	ErrUnknownCell      = "E_UNKNOWN_CELL"
	ErrNegativeRP       = "E_NEGATIVE_RP"
	ErrOverBudget       = "E_OVER_BUDGET"
	ErrAlreadySubmitted = "E_ALREADY_SUBMITTED"
	ErrNotEnoughTeams   = "E_NOT_ENOUGH_TEAMS"
	ErrRateLimit        = "E_RATE_LIMIT"
	ErrTimeout          = "E_TIMEOUT"
	ErrInternal         = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:  {},
	ErrProtoVersion:     {},
	ErrGameNotFound:     {},
	ErrGameStopped:      {},
	ErrBadToken:         {},
	ErrTeamTaken:        {},
	ErrUnknownTeam:      {},
	ErrBadRequest:       {},
	ErrNoPermission:     {},
	ErrWrongPhase:       {},
	ErrPaused:           {},
	ErrFinished:         {},
	ErrUnknownCell:      {},
	ErrNegativeRP:       {},
	ErrOverBudget:       {},
	ErrAlreadySubmitted: {},
	ErrNotEnoughTeams:   {},
	ErrRateLimit:        {},
	ErrTimeout:          {},
	ErrInternal:         {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

var gameCodes = []struct {
	err  error
	code string
}{
	{game.ErrWrongPhase, ErrWrongPhase},
	{game.ErrPaused, ErrPaused},
	{game.ErrFinished, ErrFinished},
	{game.ErrUnknownTeam, ErrUnknownTeam},
	{game.ErrUnknownCell, ErrUnknownCell},
	{game.ErrTeamTaken, ErrTeamTaken},
	{game.ErrTeamInactive, ErrNoPermission},
	{game.ErrBadToken, ErrBadToken},
	{game.ErrNegativeRP, ErrNegativeRP},
	{game.ErrOverBudget, ErrOverBudget},
	{game.ErrAlreadySubmitted, ErrAlreadySubmitted},
	{game.ErrNotEnoughTeams, ErrNotEnoughTeams},
	{room.ErrStopped, ErrGameStopped},
	{context.DeadlineExceeded, ErrTimeout},
}

// CodeFor maps an error from the game layer to a wire code.
func CodeFor(err error) string {
	if err == nil {
		return ""
	}
	for _, gc := range gameCodes {
		if errors.Is(err, gc.err) {
			return gc.code
		}
	}
	return ErrInternal
}
