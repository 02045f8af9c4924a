// Package room runs one game on its own goroutine: it serializes requests,
// drives the phase timer and fans state out to subscribers.
package room

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"kienquoc.game/internal/persistence/snapshot"
	"kienquoc.game/internal/sim/catalogs"
	"kienquoc.game/internal/sim/engine/model"
	"kienquoc.game/internal/sim/game"
	"kienquoc.game/internal/sim/tuning"
)

var ErrStopped = errors.New("room stopped")

type TurnLogger interface {
	WriteTurn(entry TurnLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// GameIndex is the read-model sink (e.g. sqlite). Calls must not block.
type GameIndex interface {
	RecordGame(meta GameMeta)
	RecordGameOver(gameID string, st model.GameOverState)
}

type TurnLogEntry struct {
	GameID  string             `json:"game_id"`
	Time    time.Time          `json:"time"`
	History model.HistoryEntry `json:"history"`
	Result  model.TurnResult   `json:"result"`
	Project model.ProjectState `json:"project"`
}

type AuditEntry struct {
	Time    time.Time      `json:"time"`
	GameID  string         `json:"game_id"`
	Turn    int            `json:"turn"`
	Actor   string         `json:"actor"`
	Action  string         `json:"action"` // e.g. "ADVANCE"
	Details map[string]any `json:"details,omitempty"`
}

type GameMeta struct {
	ID        string
	Code      string
	Seed      int64
	CreatedAt time.Time
	Teams     []model.TeamMeta
}

type Options struct {
	// AutoAdvance runs the phase timer and ends the action phase once every
	// human team has submitted.
	AutoAdvance bool
	// DurationScale multiplies phase durations; 0 means 1.
	DurationScale float64
	// SubscriberBuffer is the per-subscriber queue length (default 8).
	SubscriberBuffer int
	Logger           *log.Logger
}

// Update is one state broadcast, already filtered for the subscriber.
type Update struct {
	Seq        uint64
	View       game.View
	Transition *game.Transition
	Deadline   time.Time // zero when no phase timer runs
}

type Subscription struct {
	ID uint64
	C  <-chan Update
}

type subscriber struct {
	role   game.Role
	teamID string
	ch     chan Update
}

type request struct {
	fn   func() error
	resp chan error
}

type subscribeReq struct {
	role   game.Role
	teamID string
	resp   chan Subscription
}

// Runtime owns a Game. All Game access happens on the Run goroutine.
type Runtime struct {
	g         *game.Game
	hostToken string
	createdAt time.Time
	opts      Options
	logger    *log.Logger

	reqs        chan request
	subscribe   chan subscribeReq
	unsubscribe chan uint64
	stop        chan struct{}
	stopOnce    sync.Once
	done        chan struct{}

	subs    map[uint64]*subscriber
	nextSub uint64
	seq     uint64

	timer      *time.Timer
	armedPhase game.Phase
	armedTurn  int
	deadline   time.Time

	turnLogger   TurnLogger
	auditLogger  AuditLogger
	index        GameIndex
	snapshotSink chan<- snapshot.SnapshotV1

	pending *game.Transition // set by a request that advanced the game
	latest  atomic.Pointer[game.View]
}

func New(g *game.Game, opts Options) *Runtime {
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = 8
	}
	if opts.DurationScale <= 0 {
		opts.DurationScale = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[room] ", log.LstdFlags|log.Lmicroseconds)
	}
	r := &Runtime{
		g:           g,
		hostToken:   uuid.NewString(),
		createdAt:   time.Now().UTC(),
		opts:        opts,
		logger:      logger,
		reqs:        make(chan request, 64),
		subscribe:   make(chan subscribeReq, 16),
		unsubscribe: make(chan uint64, 16),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		subs:        map[uint64]*subscriber{},
	}
	v := g.View()
	r.latest.Store(&v)
	return r
}

func (r *Runtime) SetTurnLogger(l TurnLogger)   { r.turnLogger = l }
func (r *Runtime) SetAuditLogger(l AuditLogger) { r.auditLogger = l }
func (r *Runtime) SetIndex(idx GameIndex)       { r.index = idx }
func (r *Runtime) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) {
	r.snapshotSink = ch
}

func (r *Runtime) ID() string           { return r.g.ID() }
func (r *Runtime) Code() string         { return r.g.Code() }
func (r *Runtime) HostToken() string    { return r.hostToken }
func (r *Runtime) CreatedAt() time.Time { return r.createdAt }

// Catalogs and Tuning never change after New and are safe from any goroutine.
func (r *Runtime) Catalogs() *catalogs.Catalogs { return r.g.Catalogs() }
func (r *Runtime) Tuning() tuning.Tuning        { return r.g.Tuning() }

// SetHostToken replaces the generated token, e.g. when resuming a snapshot.
// Call before Run.
func (r *Runtime) SetHostToken(tok string) {
	if tok != "" {
		r.hostToken = tok
	}
}

func (r *Runtime) CheckHost(token string) bool { return token != "" && token == r.hostToken }

// Latest is the most recent unfiltered view. Safe from any goroutine.
func (r *Runtime) Latest() game.View { return *r.latest.Load() }

// Done is closed when Run returns.
func (r *Runtime) Done() <-chan struct{} { return r.done }

func (r *Runtime) Stop() { r.stopOnce.Do(func() { close(r.stop) }) }

func (r *Runtime) Run(ctx context.Context) error {
	defer close(r.done)
	defer r.closeSubscribers()
	r.rearm()

	for {
		var timerC <-chan time.Time
		if r.timer != nil {
			timerC = r.timer.C
		}
		select {
		case <-ctx.Done():
			r.disarm()
			return ctx.Err()
		case <-r.stop:
			r.disarm()
			return nil
		case req := <-r.reqs:
			err := req.fn()
			req.resp <- err
			tr := r.pending
			r.pending = nil
			if err == nil {
				r.afterChange(tr)
			}
		case sr := <-r.subscribe:
			r.nextSub++
			s := &subscriber{role: sr.role, teamID: sr.teamID, ch: make(chan Update, r.opts.SubscriberBuffer)}
			r.subs[r.nextSub] = s
			sr.resp <- Subscription{ID: r.nextSub, C: s.ch}
			r.send(s, Update{Seq: r.seq, View: r.g.View().For(s.role, s.teamID), Deadline: r.deadline})
		case id := <-r.unsubscribe:
			if s, ok := r.subs[id]; ok {
				delete(r.subs, id)
				close(s.ch)
			}
		case <-timerC:
			r.timer = nil
			r.armedPhase = ""
			if !r.g.Paused() {
				r.advance("timer")
			}
		}
	}
}

// do runs fn on the loop goroutine and waits for its result.
func (r *Runtime) do(ctx context.Context, fn func() error) error {
	resp := make(chan error, 1)
	select {
	case r.reqs <- request{fn: fn, resp: resp}:
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resp:
		return err
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers for filtered updates. The current state is sent
// immediately. Slow subscribers lose their oldest queued update.
func (r *Runtime) Subscribe(ctx context.Context, role game.Role, teamID string) (Subscription, error) {
	resp := make(chan Subscription, 1)
	select {
	case r.subscribe <- subscribeReq{role: role, teamID: teamID, resp: resp}:
	case <-r.done:
		return Subscription{}, ErrStopped
	case <-ctx.Done():
		return Subscription{}, ctx.Err()
	}
	select {
	case s := <-resp:
		return s, nil
	case <-r.done:
		return Subscription{}, ErrStopped
	case <-ctx.Done():
		return Subscription{}, ctx.Err()
	}
}

func (r *Runtime) Unsubscribe(id uint64) {
	select {
	case r.unsubscribe <- id:
	case <-r.done:
	}
}

func (r *Runtime) send(s *subscriber, u Update) {
	select {
	case s.ch <- u:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- u:
	default:
	}
}

func (r *Runtime) closeSubscribers() {
	for id, s := range r.subs {
		delete(r.subs, id)
		close(s.ch)
	}
}

func (r *Runtime) afterChange(tr *game.Transition) {
	if r.opts.AutoAdvance && r.g.Phase() == game.PhaseAction && !r.g.Paused() && r.g.AllSubmitted() {
		r.publish(tr)
		r.advance("all_submitted")
		return
	}
	r.rearm()
	r.publish(tr)
}

func (r *Runtime) publish(tr *game.Transition) {
	r.seq++
	v := r.g.View()
	r.latest.Store(&v)
	for _, s := range r.subs {
		r.send(s, Update{Seq: r.seq, View: v.For(s.role, s.teamID), Transition: tr, Deadline: r.deadline})
	}
}

func (r *Runtime) advance(actor string) {
	tr, err := r.g.Advance()
	if err != nil {
		r.logger.Printf("game %s: advance from %s: %v", r.g.ID(), tr.From, err)
		return
	}
	r.onTransition(actor, tr)
	r.afterChange(&tr)
}

func (r *Runtime) onTransition(actor string, tr game.Transition) {
	now := time.Now().UTC()
	r.audit(actor, "ADVANCE", map[string]any{"from": tr.From, "to": tr.To})

	if tr.Result != nil {
		res := tr.Result
		if r.turnLogger != nil {
			if err := r.turnLogger.WriteTurn(TurnLogEntry{
				GameID:  r.g.ID(),
				Time:    now,
				History: res.History,
				Result:  res.TurnResult,
				Project: res.Project,
			}); err != nil {
				r.logger.Printf("game %s: turn log: %v", r.g.ID(), err)
			}
		}
		r.logger.Printf("game %s: turn %d resolved project=%v indices=%v", r.g.ID(), tr.Turn, res.Project.Success, res.FinalIndices.Map())
		r.emitSnapshot()
	}
	if tr.GameOver != nil {
		if r.index != nil {
			r.index.RecordGameOver(r.g.ID(), *tr.GameOver)
		}
		r.logger.Printf("game %s: finished reason=%s turns=%d", r.g.ID(), tr.GameOver.Reason, tr.GameOver.TurnsPlayed)
		r.emitSnapshot()
	}
}

func (r *Runtime) emitSnapshot() {
	if r.snapshotSink == nil {
		return
	}
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version:   snapshot.Version,
			GameID:    r.g.ID(),
			Turn:      r.g.Turn(),
			Phase:     string(r.g.Phase()),
			HostToken: r.hostToken,
		},
		Game: r.g.Snapshot(),
	}
	select {
	case r.snapshotSink <- snap:
	default:
		r.logger.Printf("game %s: snapshot sink backpressure", r.g.ID())
	}
}

func (r *Runtime) audit(actor, action string, details map[string]any) {
	if r.auditLogger == nil {
		return
	}
	if err := r.auditLogger.WriteAudit(AuditEntry{
		Time:    time.Now().UTC(),
		GameID:  r.g.ID(),
		Turn:    r.g.Turn(),
		Actor:   actor,
		Action:  action,
		Details: details,
	}); err != nil {
		r.logger.Printf("game %s: audit log %s: %v", r.g.ID(), action, err)
	}
}

// rearm starts the timer for the current phase unless one is already running
// for it.
func (r *Runtime) rearm() {
	ph, turn := r.g.Phase(), r.g.Turn()
	d := r.g.PhaseDuration()
	if !r.opts.AutoAdvance || r.g.Paused() || d <= 0 {
		r.disarm()
		return
	}
	if r.timer != nil && r.armedPhase == ph && r.armedTurn == turn {
		return
	}
	r.disarm()
	d = time.Duration(float64(d) * r.opts.DurationScale)
	r.timer = time.NewTimer(d)
	r.armedPhase, r.armedTurn = ph, turn
	r.deadline = time.Now().Add(d)
}

func (r *Runtime) disarm() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.armedPhase = ""
	r.deadline = time.Time{}
}
