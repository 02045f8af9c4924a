package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"kienquoc.game/internal/protocol"
	"kienquoc.game/internal/sim/game"
	"kienquoc.game/internal/sim/room"
	"kienquoc.game/internal/sim/store"
)

const (
	handshakeTimeout = 5 * time.Second
	readTimeout      = 60 * time.Second
	writeTimeout     = 5 * time.Second
	pingInterval     = 20 * time.Second
	requestTimeout   = 5 * time.Second
	outQueue         = 32
)

type Options struct {
	// MessagesPerSecond and Burst bound each connection's inbound rate.
	MessagesPerSecond float64
	Burst             int
	Logger            *log.Logger
}

type Stats struct {
	Connections uint64 `json:"connections"`
	Open        int64  `json:"open"`
	Messages    uint64 `json:"messages"`
	RateLimited uint64 `json:"rate_limited"`
	Dropped     uint64 `json:"dropped"`
}

type Server struct {
	games store.Store
	opts  Options
	log   *log.Logger

	upgrader websocket.Upgrader

	connections atomic.Uint64
	open        atomic.Int64
	messages    atomic.Uint64
	rateLimited atomic.Uint64
	dropped     atomic.Uint64
}

func NewServer(games store.Store, opts Options) *Server {
	if opts.MessagesPerSecond <= 0 {
		opts.MessagesPerSecond = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 20
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		games: games,
		opts:  opts,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Stats() Stats {
	return Stats{
		Connections: s.connections.Load(),
		Open:        s.open.Load(),
		Messages:    s.messages.Load(),
		RateLimited: s.rateLimited.Load(),
		Dropped:     s.dropped.Load(),
	}
}

// session is one authenticated connection.
type session struct {
	srv    *Server
	rt     *room.Runtime
	role   game.Role
	teamID string
	out    chan []byte
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		s.connections.Add(1)
		s.open.Add(1)
		defer s.open.Add(-1)

		sess := s.handshake(conn)
		if sess == nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sub, err := sess.rt.Subscribe(ctx, sess.role, sess.teamID)
		if err != nil {
			closeWith(conn, websocket.CloseGoingAway, "game stopped")
			return
		}
		defer sess.rt.Unsubscribe(sub.ID)
		if sess.role == game.RolePlayer {
			defer func() {
				dctx, dcancel := context.WithTimeout(context.Background(), requestTimeout)
				defer dcancel()
				_ = sess.rt.SetConnected(dctx, sess.teamID, false)
			}()
		}

		// Writer goroutine.
		go func() {
			ping := time.NewTicker(pingInterval)
			defer ping.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						_ = conn.Close()
						return
					}
				case <-ping.C:
					if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
						cancel()
						_ = conn.Close()
						return
					}
				}
			}
		}()

		// Room updates.
		go func() {
			for u := range sub.C {
				sess.deliver(u)
			}
			// The room stopped: unblock the reader.
			cancel()
			closeWith(conn, websocket.CloseGoingAway, "game closed")
			_ = conn.Close()
		}()

		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(readTimeout))
		})
		limiter := rate.NewLimiter(rate.Limit(s.opts.MessagesPerSecond), s.opts.Burst)

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.messages.Add(1)
			if !limiter.Allow() {
				s.rateLimited.Add(1)
				sess.reply(seqOf(msg), protocol.ErrRateLimit, "too many messages")
				continue
			}
			sess.handle(ctx, msg)
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		refuse(conn, protocol.ErrProtoBadRequest, "expected HELLO")
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		refuse(conn, protocol.ErrProtoBadRequest, "malformed HELLO")
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		refuse(conn, protocol.ErrProtoVersion, "bad protocol_version")
		return nil
	}
	if !hello.Role.Valid() {
		refuse(conn, protocol.ErrProtoBadRequest, "bad role")
		return nil
	}

	rt, ok := s.games.ByCode(strings.TrimSpace(hello.GameCode))
	if !ok {
		refuse(conn, protocol.ErrGameNotFound, "no game with that code")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	sess := &session{srv: s, rt: rt, role: hello.Role, out: make(chan []byte, outQueue)}
	token := ""
	switch hello.Role {
	case game.RoleHost:
		if !rt.CheckHost(hello.Token) {
			refuse(conn, protocol.ErrBadToken, "bad host token")
			return nil
		}
	case game.RolePlayer:
		sess.teamID = strings.TrimSpace(hello.TeamID)
		if hello.Token == "" {
			token, err = rt.Claim(ctx, sess.teamID)
		} else {
			token = hello.Token
			err = rt.ResumeTeam(ctx, sess.teamID, hello.Token)
		}
		if err == nil {
			err = rt.SetConnected(ctx, sess.teamID, true)
		}
		if err != nil {
			refuse(conn, protocol.CodeFor(err), err.Error())
			return nil
		}
	}

	s.log.Printf("game=%s role=%s team=%s client=%q joined", rt.ID(), sess.role, sess.teamID, hello.ClientName)
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		GameID:          rt.ID(),
		GameCode:        rt.Code(),
		Role:            sess.role,
		TeamID:          sess.teamID,
		SessionToken:    token,
		Catalogs:        protocol.DigestsOf(rt.Catalogs(), rt.Tuning()),
	}
	b, _ := json.Marshal(welcome)
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return nil
	}
	return sess
}

// deliver turns one room update into wire messages.
func (c *session) deliver(u room.Update) {
	st := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Seq:             u.Seq,
		State:           u.View,
	}
	if !u.Deadline.IsZero() {
		st.DeadlineUnixMs = u.Deadline.UnixMilli()
	}
	c.send(st)

	tr := u.Transition
	if tr == nil {
		return
	}
	if tr.Result != nil {
		c.send(protocol.TurnResultMsg{
			Type:            protocol.TypeTurnResult,
			ProtocolVersion: protocol.Version,
			Turn:            tr.Turn,
			Result:          tr.Result.TurnResult,
			Project:         tr.Result.Project,
		})
	}
	if tr.GameOver != nil {
		c.send(protocol.GameOverMsg{
			Type:            protocol.TypeGameOver,
			ProtocolVersion: protocol.Version,
			GameOver:        *tr.GameOver,
		})
	}
}

func (c *session) handle(ctx context.Context, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type == "" {
		c.reply(0, protocol.ErrProtoBadRequest, "malformed message")
		return
	}
	if base.ProtocolVersion != "" && base.ProtocolVersion != protocol.Version {
		c.reply(base.Seq, protocol.ErrProtoVersion, "bad protocol_version")
		return
	}

	if protocol.IsHostCommand(base.Type) {
		if c.role != game.RoleHost {
			c.reply(base.Seq, protocol.ErrNoPermission, "host only")
			return
		}
	} else if c.role != game.RolePlayer {
		c.reply(base.Seq, protocol.ErrNoPermission, "players only")
		return
	}

	rctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	switch base.Type {
	case protocol.TypePlace:
		var m protocol.PlaceMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			c.reply(base.Seq, protocol.ErrProtoBadRequest, err.Error())
			return
		}
		err = c.rt.Place(rctx, c.teamID, m.CellID, m.RP)
	case protocol.TypeSetPlacements:
		var m protocol.SetPlacementsMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			c.reply(base.Seq, protocol.ErrProtoBadRequest, err.Error())
			return
		}
		err = c.rt.SetPlacements(rctx, c.teamID, m.Placements)
	case protocol.TypeSubmit:
		err = c.rt.Submit(rctx, c.teamID)
	case protocol.TypeHostStart, protocol.TypeHostAssignAI, protocol.TypeHostRelease:
		var m protocol.HostMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			c.reply(base.Seq, protocol.ErrProtoBadRequest, err.Error())
			return
		}
		switch base.Type {
		case protocol.TypeHostStart:
			err = c.rt.Start(rctx, m.FillAI)
		case protocol.TypeHostAssignAI:
			err = c.rt.AssignAI(rctx, m.TeamID)
		default:
			err = c.rt.Release(rctx, m.TeamID)
		}
	case protocol.TypeHostAdvance:
		_, err = c.rt.Advance(rctx)
	case protocol.TypeHostPause:
		err = c.rt.Pause(rctx)
	case protocol.TypeHostResume:
		err = c.rt.Unpause(rctx)
	default:
		c.reply(base.Seq, protocol.ErrProtoBadRequest, fmt.Sprintf("unknown type %q", base.Type))
		return
	}

	if err != nil {
		if !errors.Is(err, room.ErrStopped) {
			c.srv.log.Printf("game=%s team=%s %s rejected: %v", c.rt.ID(), c.teamID, base.Type, err)
		}
		c.reply(base.Seq, protocol.CodeFor(err), err.Error())
		return
	}
	if base.Seq > 0 {
		c.send(protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, AckFor: base.Seq, Accepted: true})
	}
}

// reply reports a rejection: as an ACK when the client numbered the
// request, as an ERROR otherwise.
func (c *session) reply(seq int64, code, message string) {
	if seq > 0 {
		c.send(protocol.AckMsg{
			Type:            protocol.TypeAck,
			ProtocolVersion: protocol.Version,
			AckFor:          seq,
			Accepted:        false,
			Code:            code,
			Message:         message,
		})
		return
	}
	c.send(protocol.NewError(code, message))
}

// send never blocks the caller. A full queue drops the message; the next
// STATE carries the full view again.
func (c *session) send(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		c.srv.log.Printf("marshal: %v", err)
		return
	}
	select {
	case c.out <- b:
	default:
		c.srv.dropped.Add(1)
	}
}

func seqOf(msg []byte) int64 {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return 0
	}
	return base.Seq
}

func refuse(conn *websocket.Conn, code, message string) {
	b, _ := json.Marshal(protocol.NewError(code, message))
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = conn.WriteMessage(websocket.TextMessage, b)
	closeWith(conn, websocket.ClosePolicyViolation, code)
}

func closeWith(conn *websocket.Conn, status int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(status, reason), time.Now().Add(time.Second))
}
