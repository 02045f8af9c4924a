package room

import (
	"context"

	"kienquoc.game/internal/sim/engine/model"
	"kienquoc.game/internal/sim/game"
)

func (r *Runtime) Claim(ctx context.Context, teamID string) (token string, err error) {
	err = r.do(ctx, func() error {
		var e error
		token, e = r.g.ClaimTeam(teamID)
		if e == nil {
			r.audit("team:"+teamID, "CLAIM", nil)
		}
		return e
	})
	return token, err
}

func (r *Runtime) ResumeTeam(ctx context.Context, teamID, token string) error {
	return r.do(ctx, func() error { return r.g.ResumeTeam(teamID, token) })
}

func (r *Runtime) SetConnected(ctx context.Context, teamID string, connected bool) error {
	return r.do(ctx, func() error { return r.g.SetConnected(teamID, connected) })
}

func (r *Runtime) AssignAI(ctx context.Context, teamID string) error {
	return r.do(ctx, func() error {
		err := r.g.AssignAI(teamID)
		if err == nil {
			r.audit("host", "ASSIGN_AI", map[string]any{"team_id": teamID})
		}
		return err
	})
}

func (r *Runtime) Release(ctx context.Context, teamID string) error {
	return r.do(ctx, func() error { return r.g.ReleaseTeam(teamID) })
}

func (r *Runtime) Start(ctx context.Context, fillAI bool) error {
	return r.do(ctx, func() error {
		if err := r.g.Start(fillAI); err != nil {
			return err
		}
		r.audit("host", "START", map[string]any{"fill_ai": fillAI, "active_teams": r.g.ActiveTeams()})
		if r.index != nil {
			var teams []model.TeamMeta
			for _, t := range r.g.View().Teams {
				if t.Active() {
					teams = append(teams, t.Meta())
				}
			}
			r.index.RecordGame(GameMeta{
				ID:        r.g.ID(),
				Code:      r.g.Code(),
				Seed:      r.g.Seed(),
				CreatedAt: r.createdAt,
				Teams:     teams,
			})
		}
		return nil
	})
}

func (r *Runtime) Place(ctx context.Context, teamID, cellID string, rp int) error {
	return r.do(ctx, func() error { return r.g.Place(teamID, cellID, rp) })
}

func (r *Runtime) SetPlacements(ctx context.Context, teamID string, p model.Placements) error {
	return r.do(ctx, func() error { return r.g.SetPlacements(teamID, p) })
}

func (r *Runtime) Submit(ctx context.Context, teamID string) error {
	return r.do(ctx, func() error {
		err := r.g.Submit(teamID)
		if err == nil {
			r.audit("team:"+teamID, "SUBMIT", nil)
		}
		return err
	})
}

// Advance moves the game one phase forward on the host's behalf.
func (r *Runtime) Advance(ctx context.Context) (game.Transition, error) {
	var tr game.Transition
	err := r.do(ctx, func() error {
		var e error
		tr, e = r.g.Advance()
		if e != nil {
			return e
		}
		r.onTransition("host", tr)
		r.pending = &tr
		return nil
	})
	return tr, err
}

func (r *Runtime) Pause(ctx context.Context) error {
	return r.do(ctx, func() error {
		r.g.SetPaused(true)
		r.audit("host", "PAUSE", nil)
		return nil
	})
}

func (r *Runtime) Unpause(ctx context.Context) error {
	return r.do(ctx, func() error {
		r.g.SetPaused(false)
		r.audit("host", "RESUME", nil)
		return nil
	})
}

// View returns the current state filtered for role.
func (r *Runtime) View(ctx context.Context, role game.Role, teamID string) (game.View, error) {
	var v game.View
	err := r.do(ctx, func() error {
		v = r.g.View().For(role, teamID)
		return nil
	})
	return v, err
}

func (r *Runtime) History(ctx context.Context) ([]model.HistoryEntry, error) {
	var h []model.HistoryEntry
	err := r.do(ctx, func() error {
		h = r.g.History()
		return nil
	})
	return h, err
}

func (r *Runtime) Snapshot(ctx context.Context) (game.Snapshot, error) {
	var s game.Snapshot
	err := r.do(ctx, func() error {
		s = r.g.Snapshot()
		return nil
	})
	return s, err
}

// RequestSnapshot asks the loop to push a snapshot to the sink.
func (r *Runtime) RequestSnapshot(ctx context.Context) error {
	return r.do(ctx, func() error {
		r.emitSnapshot()
		return nil
	})
}
