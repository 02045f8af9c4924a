// Package game holds one session: teams, phases, budgets and the turn
// history. A Game is not safe for concurrent use; room.Runtime owns it.
package game

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"kienquoc.game/internal/sim/agent"
	"kienquoc.game/internal/sim/catalogs"
	"kienquoc.game/internal/sim/engine/model"
	"kienquoc.game/internal/sim/engine/modifier"
	"kienquoc.game/internal/sim/engine/turn"
	"kienquoc.game/internal/sim/engine/underdog"
	"kienquoc.game/internal/sim/tuning"
)

type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseEvent      Phase = "event"
	PhaseAction     Phase = "action"
	PhaseResolution Phase = "resolution"
	PhaseResult     Phase = "result"
	PhaseFinished   Phase = "finished"
)

type Config struct {
	ID   string
	Code string
	Seed int64
}

type Game struct {
	cfg  Config
	tune tuning.Tuning
	cats *catalogs.Catalogs
	proc *turn.Processor

	phase   Phase
	paused  bool
	turn    int
	indices model.Indices

	teams  []*model.Team // region order
	byID   map[string]*model.Team
	tokens map[string]string

	agents   map[string]*agent.Agent
	agentRNG map[string]*rand.Rand

	randomSeq []string
	event     model.TurnEvent // scaled for the current turn
	effect    model.Effect
	tiers     map[string]underdog.Tier

	last    *turn.Result
	history []model.HistoryEntry
	over    *model.GameOverState
}

func New(cfg Config, tune tuning.Tuning, cats *catalogs.Catalogs) *Game {
	g := &Game{
		cfg:      cfg,
		tune:     tune,
		cats:     cats,
		proc:     turn.New(tune, cats),
		phase:    PhaseLobby,
		indices:  tune.Indices.StartVector(),
		byID:     map[string]*model.Team{},
		tokens:   map[string]string{},
		agents:   map[string]*agent.Agent{},
		agentRNG: map[string]*rand.Rand{},
		tiers:    map[string]underdog.Tier{},
	}
	regions := cats.Regions.List
	if n := tune.Game.MaxTeams; n > 0 && len(regions) > n {
		regions = regions[:n]
	}
	for _, r := range regions {
		t := &model.Team{
			ID:          r.ID,
			Name:        r.Name,
			Region:      r.ID,
			Owner:       model.OwnerUnassigned,
			Specialties: append([]model.Index(nil), r.Specialties...),
			Placements:  model.Placements{},
		}
		g.teams = append(g.teams, t)
		g.byID[t.ID] = t
	}
	g.randomSeq = modifier.Sequence(cats.Modifiers.RandomIDs, rand.New(rand.NewSource(cfg.Seed)))
	return g
}

func (g *Game) ID() string   { return g.cfg.ID }
func (g *Game) Code() string { return g.cfg.Code }
func (g *Game) Seed() int64  { return g.cfg.Seed }
func (g *Game) Phase() Phase { return g.phase }
func (g *Game) Turn() int    { return g.turn }
func (g *Game) Paused() bool { return g.paused }

// SetPaused stops placements and, in room.Runtime, the phase timer.
func (g *Game) SetPaused(p bool) { g.paused = p }

func (g *Game) Tuning() tuning.Tuning        { return g.tune }
func (g *Game) Catalogs() *catalogs.Catalogs { return g.cats }

// MaxTurns is the configured game length, bounded by the event table.
func (g *Game) MaxTurns() int {
	n := g.tune.Game.MaxTurns
	if n <= 0 || n > g.cats.Events.MaxTurn {
		n = g.cats.Events.MaxTurn
	}
	return n
}

func (g *Game) Indices() model.Indices { return g.indices }

func (g *Game) GameOver() (model.GameOverState, bool) {
	if g.over == nil {
		return model.GameOverState{}, false
	}
	return *g.over, true
}

func (g *Game) LastResult() (turn.Result, bool) {
	if g.last == nil {
		return turn.Result{}, false
	}
	return *g.last, true
}

// History returns the resolved turns. Entries are not shared with the game.
func (g *Game) History() []model.HistoryEntry {
	return append([]model.HistoryEntry(nil), g.history...)
}

func (g *Game) team(id string) (*model.Team, error) {
	t, ok := g.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTeam, id)
	}
	return t, nil
}

func (g *Game) ActiveTeams() int {
	n := 0
	for _, t := range g.teams {
		if t.Active() {
			n++
		}
	}
	return n
}

// ClaimTeam seats a human on an unassigned team and returns its session token.
func (g *Game) ClaimTeam(teamID string) (string, error) {
	if g.phase != PhaseLobby {
		return "", ErrWrongPhase
	}
	t, err := g.team(teamID)
	if err != nil {
		return "", err
	}
	if t.Owner != model.OwnerUnassigned {
		return "", ErrTeamTaken
	}
	t.Owner = model.OwnerHuman
	t.Connected = true
	tok := uuid.NewString()
	g.tokens[teamID] = tok
	return tok, nil
}

// ResumeTeam reconnects a human team by token.
func (g *Game) ResumeTeam(teamID, token string) error {
	t, err := g.team(teamID)
	if err != nil {
		return err
	}
	if t.Owner != model.OwnerHuman || token == "" || g.tokens[teamID] != token {
		return ErrBadToken
	}
	t.Connected = true
	return nil
}

// ReleaseTeam returns a lobby seat to unassigned.
func (g *Game) ReleaseTeam(teamID string) error {
	if g.phase != PhaseLobby {
		return ErrWrongPhase
	}
	t, err := g.team(teamID)
	if err != nil {
		return err
	}
	t.Owner = model.OwnerUnassigned
	t.Connected = false
	delete(g.tokens, teamID)
	delete(g.agents, teamID)
	delete(g.agentRNG, teamID)
	return nil
}

// AssignAI hands a seat to an AI agent. In the lobby any open seat can be
// given away; during the event and action phases the host can only take
// over a human team, so the active team count stays fixed for the turn.
// Placements the human already submitted are kept for this turn.
func (g *Game) AssignAI(teamID string) error {
	t, err := g.team(teamID)
	if err != nil {
		return err
	}
	switch g.phase {
	case PhaseLobby:
		if t.Owner == model.OwnerHuman {
			return ErrTeamTaken
		}
	case PhaseEvent, PhaseAction:
		if t.Owner != model.OwnerHuman {
			return ErrWrongPhase
		}
		delete(g.tokens, teamID)
	default:
		return ErrWrongPhase
	}
	t.Owner = model.OwnerAI
	t.Connected = true
	rng := rand.New(rand.NewSource(g.agentSeed(teamID, 0)))
	g.agentRNG[teamID] = rng
	g.agents[teamID] = agent.New(teamID, t.Specialties, g.cats.Board.Cells, g.tune.AI, rng)
	return nil
}

func (g *Game) SetConnected(teamID string, connected bool) error {
	t, err := g.team(teamID)
	if err != nil {
		return err
	}
	if t.Owner == model.OwnerAI {
		return nil
	}
	t.Connected = connected
	return nil
}

// agentSeed derives a per-team, per-turn seed so AI play is reproducible
// from the game seed alone.
func (g *Game) agentSeed(teamID string, turn int) int64 {
	idx := 0
	for i, t := range g.teams {
		if t.ID == teamID {
			idx = i
		}
	}
	return g.cfg.Seed*1_000_003 + int64(idx+1)*7_919 + int64(turn)*104_729
}

// Start leaves the lobby. With fillAI every unassigned team is given to an AI.
func (g *Game) Start(fillAI bool) error {
	if g.phase != PhaseLobby {
		return ErrWrongPhase
	}
	if fillAI {
		for _, t := range g.teams {
			if t.Owner == model.OwnerUnassigned {
				if err := g.AssignAI(t.ID); err != nil {
					return err
				}
			}
		}
	}
	if g.ActiveTeams() < g.tune.Game.MinTeams {
		return fmt.Errorf("%w: have %d, need %d", ErrNotEnoughTeams, g.ActiveTeams(), g.tune.Game.MinTeams)
	}
	return g.beginTurn(1)
}

func (g *Game) beginTurn(n int) error {
	if err := g.prepare(n); err != nil {
		return err
	}
	g.turn = n
	g.phase = PhaseEvent
	for _, t := range g.teams {
		t.Placements = model.Placements{}
		t.Submitted = false
	}
	return nil
}

// prepare loads the scaled event, the merged modifier effect and the
// underdog tiers for turn n from the current standings.
func (g *Game) prepare(n int) error {
	ev, err := g.proc.PrepareNextTurn(n, g.ActiveTeams())
	if err != nil {
		return err
	}
	g.event = ev
	var fixed, random *model.Modifier
	if m, ok := g.cats.Modifiers.ByID[ev.ModifierID]; ok {
		fixed = &m
	}
	if m, ok := g.cats.Modifiers.ByID[modifier.ForTurn(g.randomSeq, n)]; ok {
		random = &m
	}
	g.effect = modifier.Combine(fixed, random)

	points := make(map[string]float64, len(g.teams))
	for _, t := range g.teams {
		points[t.ID] = t.Points
	}
	g.classify(n, points)
	return nil
}

// classify sets the underdog tiers for turn n from the given standings.
func (g *Game) classify(n int, points map[string]float64) {
	var standings []underdog.Standing
	for _, t := range g.teams {
		if t.Active() {
			standings = append(standings, underdog.Standing{TeamID: t.ID, Points: points[t.ID]})
		}
	}
	g.tiers = underdog.Classify(standings, n, g.tune.Underdog)
}

// Budget is the team's RP for the current turn, including underdog bonus RP.
func (g *Game) Budget(teamID string) int {
	return g.tune.Game.ResourcesPerTurn + underdog.BonusRP(g.tiers[teamID], g.tune.Underdog)
}

func (g *Game) checkPlacing(teamID string) (*model.Team, error) {
	switch {
	case g.phase == PhaseFinished:
		return nil, ErrFinished
	case g.phase != PhaseAction:
		return nil, ErrWrongPhase
	case g.paused:
		return nil, ErrPaused
	}
	t, err := g.team(teamID)
	if err != nil {
		return nil, err
	}
	if !t.Active() {
		return nil, ErrTeamInactive
	}
	if t.Submitted {
		return nil, ErrAlreadySubmitted
	}
	return t, nil
}

// Place sets the RP on one cell; 0 clears it.
func (g *Game) Place(teamID, cellID string, rp int) error {
	t, err := g.checkPlacing(teamID)
	if err != nil {
		return err
	}
	if _, ok := g.cats.Board.ByID[cellID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCell, cellID)
	}
	if rp < 0 {
		return ErrNegativeRP
	}
	next := t.Placements.Clone()
	if rp == 0 {
		delete(next, cellID)
	} else {
		next[cellID] = rp
	}
	if next.Total() > g.Budget(teamID) {
		return fmt.Errorf("%w: %d > %d", ErrOverBudget, next.Total(), g.Budget(teamID))
	}
	t.Placements = next
	return nil
}

// SetPlacements replaces the team's placements for this turn.
func (g *Game) SetPlacements(teamID string, p model.Placements) error {
	t, err := g.checkPlacing(teamID)
	if err != nil {
		return err
	}
	next := model.Placements{}
	for cellID, rp := range p {
		if _, ok := g.cats.Board.ByID[cellID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCell, cellID)
		}
		if rp < 0 {
			return ErrNegativeRP
		}
		if rp > 0 {
			next[cellID] = rp
		}
	}
	if next.Total() > g.Budget(teamID) {
		return fmt.Errorf("%w: %d > %d", ErrOverBudget, next.Total(), g.Budget(teamID))
	}
	t.Placements = next
	return nil
}

func (g *Game) Submit(teamID string) error {
	t, err := g.checkPlacing(teamID)
	if err != nil {
		return err
	}
	t.Submitted = true
	return nil
}

// AllSubmitted reports whether every connected human team has submitted.
// AI teams place at resolution.
func (g *Game) AllSubmitted() bool {
	if g.phase != PhaseAction {
		return false
	}
	for _, t := range g.teams {
		if t.Owner == model.OwnerHuman && t.Connected && !t.Submitted {
			return false
		}
	}
	return true
}

func (g *Game) avgScore() float64 {
	sum, n := 0.0, 0
	for _, t := range g.teams {
		if t.Active() {
			sum += t.Points
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// fillAI writes placements for every AI team that has not submitted. A team
// taken over after its human submitted keeps those placements.
func (g *Game) fillAI() {
	avg := g.avgScore()
	for _, t := range g.teams {
		a := g.agents[t.ID]
		if t.Owner != model.OwnerAI || a == nil || t.Submitted {
			continue
		}
		g.agentRNG[t.ID].Seed(g.agentSeed(t.ID, g.turn))
		t.Placements = a.GeneratePlacements(agent.DecisionContext{
			Turn:        g.turn,
			MaxTurns:    g.MaxTurns(),
			MyScore:     t.Points,
			AvgScore:    avg,
			Indices:     g.indices,
			Event:       g.event,
			Effect:      g.effect,
			Budget:      g.Budget(t.ID),
			ActiveTeams: g.ActiveTeams(),
		})
		t.Submitted = true
	}
}

// TurnInput builds the processor input from the current state.
func (g *Game) TurnInput() turn.Input {
	raw := g.cats.Events.ByTurn[g.turn]
	in := turn.Input{
		Turn:             g.turn,
		Placements:       map[string]model.Placements{},
		Indices:          g.indices,
		ActiveTeams:      g.ActiveTeams(),
		CumulativePoints: map[string]float64{},
		RandomModifiers:  append([]string(nil), g.randomSeq...),
		Event:            &raw,
		IsLastTurn:       g.turn >= g.MaxTurns(),
	}
	for _, t := range g.teams {
		if !t.Active() {
			continue
		}
		in.Teams = append(in.Teams, t.Meta())
		in.Placements[t.ID] = t.Placements.Clone()
		in.CumulativePoints[t.ID] = t.Points
	}
	return in
}

func (g *Game) resolve() (*turn.Result, error) {
	g.fillAI()
	res, err := g.proc.Process(g.TurnInput())
	if err != nil {
		return nil, err
	}
	for _, bd := range res.TurnResult.TeamPoints {
		t := g.byID[bd.TeamID]
		t.Points = model.Round2(t.Points + bd.Total)
		if t.AllTimePlacements == nil {
			t.AllTimePlacements = model.Placements{}
		}
		for cellID, rp := range t.Placements {
			t.AllTimePlacements[cellID] += rp
		}
	}
	g.indices = res.FinalIndices
	g.history = append(g.history, res.History)
	g.last = &res
	return &res, nil
}
