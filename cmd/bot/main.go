package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"kienquoc.game/internal/protocol"
	"kienquoc.game/internal/sim/agent"
	"kienquoc.game/internal/sim/catalogs"
	"kienquoc.game/internal/sim/game"
	"kienquoc.game/internal/sim/tuning"
)

func main() {
	var (
		url         = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		code        = flag.String("code", "", "game join code")
		team        = flag.String("team", "", "team id to claim")
		token       = flag.String("token", "", "session token to resume a claimed team")
		name        = flag.String("name", "bot", "client name")
		configDir   = flag.String("configs", "./configs", "config directory (board layout for the agent)")
		personality = flag.String("personality", "", "agent personality (empty = random)")
		seed        = flag.Int64("seed", 0, "agent seed (0 = time based)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	if *code == "" || *team == "" {
		logger.Fatalf("-code and -team are required")
	}
	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	tune, err := tuning.Load(*configDir + "/tuning.yaml")
	if err != nil {
		tune = tuning.Defaults()
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		GameCode:        *code,
		Role:            game.RolePlayer,
		TeamID:          *team,
		Token:           *token,
		ClientName:      *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	p := &player{
		teamID: *team,
		rng:    rand.New(rand.NewSource(*seed)),
		cats:   cats,
		tune:   tune,
		style:  agent.Personality(*personality),
		log:    logger,
	}
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME game=%s team=%s token=%s", w.GameID, w.TeamID, w.SessionToken)
			if local := protocol.DigestsOf(cats, tune); local.Board != w.Catalogs.Board {
				logger.Printf("warning: board digest differs from server (%s != %s)", local.Board, w.Catalogs.Board)
			}

		case protocol.TypeState:
			var st protocol.StateMsg
			if err := json.Unmarshal(msg, &st); err != nil {
				continue
			}
			for _, out := range p.onState(st.State) {
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			}

		case protocol.TypeTurnResult:
			var tr protocol.TurnResultMsg
			if err := json.Unmarshal(msg, &tr); err != nil {
				continue
			}
			pts := tr.Result.PointsFor(p.teamID)
			logger.Printf("turn %d: project=%v points=%.1f", tr.Turn, tr.Project.Success, pts.Total)

		case protocol.TypeGameOver:
			var over protocol.GameOverMsg
			if err := json.Unmarshal(msg, &over); err != nil {
				continue
			}
			logger.Printf("GAME_OVER reason=%s turns=%d", over.GameOver.Reason, over.GameOver.TurnsPlayed)
			for _, r := range over.GameOver.Ranking {
				logger.Printf("  #%d %s %.1f", r.Rank, r.TeamID, r.Points)
			}
			return

		case protocol.TypeAck:
			var a protocol.AckMsg
			if err := json.Unmarshal(msg, &a); err == nil && !a.Accepted {
				logger.Printf("rejected seq=%d code=%s %s", a.AckFor, a.Code, a.Message)
			}

		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err == nil {
				logger.Printf("ERROR %s: %s", e.Code, e.Message)
			}
		}
	}
}
