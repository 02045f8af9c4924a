package game

import "errors"

var (
	ErrWrongPhase       = errors.New("action not allowed in this phase")
	ErrPaused           = errors.New("game is paused")
	ErrFinished         = errors.New("game is finished")
	ErrUnknownTeam      = errors.New("unknown team")
	ErrUnknownCell      = errors.New("unknown cell")
	ErrTeamTaken        = errors.New("team already taken")
	ErrTeamInactive     = errors.New("team is not playing")
	ErrBadToken         = errors.New("invalid session token")
	ErrNegativeRP       = errors.New("rp must not be negative")
	ErrOverBudget       = errors.New("placements exceed budget")
	ErrAlreadySubmitted = errors.New("placements already submitted")
	ErrNotEnoughTeams   = errors.New("not enough active teams")
)
