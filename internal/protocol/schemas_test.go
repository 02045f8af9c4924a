package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"kienquoc.game/internal/protocol"
	"kienquoc.game/internal/sim/catalogs"
	"kienquoc.game/internal/sim/engine/model"
	"kienquoc.game/internal/sim/game"
	"kienquoc.game/internal/sim/tuning"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// validate round-trips v through JSON so the schema sees exactly what goes
// over the wire.
func validate(t *testing.T, s *jsonschema.Schema, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := s.Validate(doc); err != nil {
		t.Fatalf("validate %s: %v", b, err)
	}
}

func rejects(t *testing.T, s *jsonschema.Schema, raw string) {
	t.Helper()
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := s.Validate(doc); err == nil {
		t.Fatalf("expected schema to reject %s", raw)
	}
}

func TestSchemas_ClientMessages(t *testing.T) {
	hello := compile(t, "hello.schema.json")
	validate(t, hello, protocol.HelloMsg{
		Type: protocol.TypeHello, ProtocolVersion: protocol.Version,
		GameCode: "042917", Role: game.RolePlayer, TeamID: "thu-do", ClientName: "bot1",
	})
	validate(t, hello, protocol.HelloMsg{
		Type: protocol.TypeHello, ProtocolVersion: protocol.Version,
		GameCode: "042917", Role: game.RoleSpectator,
	})
	rejects(t, hello, `{"type":"HELLO","protocol_version":"1.0","game_code":"042917","role":"player"}`)
	rejects(t, hello, `{"type":"HELLO","protocol_version":"1.0","game_code":"042917","role":"host"}`)
	rejects(t, hello, `{"type":"HELLO","protocol_version":"1.0","game_code":"42","role":"spectator"}`)

	place := compile(t, "place.schema.json")
	validate(t, place, protocol.PlaceMsg{Type: protocol.TypePlace, ProtocolVersion: protocol.Version, Seq: 3, CellID: "cell-1-2", RP: 5})
	rejects(t, place, `{"type":"PLACE","protocol_version":"1.0","cell_id":"cell-1-2","rp":-1}`)

	set := compile(t, "set_placements.schema.json")
	validate(t, set, protocol.SetPlacementsMsg{
		Type: protocol.TypeSetPlacements, ProtocolVersion: protocol.Version,
		Placements: model.Placements{"cell-0-0": 4, "cell-2-3": 10},
	})
	rejects(t, set, `{"type":"SET_PLACEMENTS","protocol_version":"1.0","placements":{"x":1}}`)

	validate(t, compile(t, "submit.schema.json"), protocol.SubmitMsg{Type: protocol.TypeSubmit, ProtocolVersion: protocol.Version, Seq: 9})

	host := compile(t, "host.schema.json")
	validate(t, host, protocol.HostMsg{Type: protocol.TypeHostStart, ProtocolVersion: protocol.Version, FillAI: true})
	validate(t, host, protocol.HostMsg{Type: protocol.TypeHostAssignAI, ProtocolVersion: protocol.Version, TeamID: "tay-bac"})
	rejects(t, host, `{"type":"HOST_ASSIGN_AI","protocol_version":"1.0"}`)
	rejects(t, host, `{"type":"HOST_DELETE","protocol_version":"1.0"}`)
}

func TestSchemas_ServerMessagesFromPlayedGame(t *testing.T) {
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	tune := tuning.Defaults()
	g := game.New(game.Config{ID: "g1", Code: "042917", Seed: 5}, tune, cats)

	validate(t, compile(t, "welcome.schema.json"), protocol.WelcomeMsg{
		Type: protocol.TypeWelcome, ProtocolVersion: protocol.Version,
		GameID: g.ID(), GameCode: g.Code(), Role: game.RolePlayer, TeamID: "thu-do",
		SessionToken: "tok", Catalogs: protocol.DigestsOf(cats, tune),
	})

	state := compile(t, "state.schema.json")
	validate(t, state, protocol.StateMsg{Type: protocol.TypeState, ProtocolVersion: protocol.Version, Seq: 1, State: g.View()})

	if err := g.Start(true); err != nil {
		t.Fatalf("start: %v", err)
	}
	turnResult := compile(t, "turn_result.schema.json")
	gameOver := compile(t, "game_over.schema.json")
	results := 0
	for i := 0; i < 200 && g.Phase() != game.PhaseFinished; i++ {
		tr, err := g.Advance()
		if err != nil {
			t.Fatalf("advance: %v", err)
		}
		validate(t, state, protocol.StateMsg{
			Type: protocol.TypeState, ProtocolVersion: protocol.Version, Seq: uint64(i + 2),
			DeadlineUnixMs: 1700000000000, State: g.View().For(game.RolePlayer, "thu-do"),
		})
		if tr.Result != nil {
			results++
			validate(t, turnResult, protocol.TurnResultMsg{
				Type: protocol.TypeTurnResult, ProtocolVersion: protocol.Version,
				Turn: tr.Turn, Result: tr.Result.TurnResult, Project: tr.Result.Project,
			})
		}
		if tr.GameOver != nil {
			validate(t, gameOver, protocol.GameOverMsg{Type: protocol.TypeGameOver, ProtocolVersion: protocol.Version, GameOver: *tr.GameOver})
		}
	}
	if g.Phase() != game.PhaseFinished || results == 0 {
		t.Fatalf("game not played out: phase=%s results=%d", g.Phase(), results)
	}
}

func TestSchemas_AckAndError(t *testing.T) {
	ack := compile(t, "ack.schema.json")
	validate(t, ack, protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, AckFor: 4, Accepted: true})
	validate(t, ack, protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version, AckFor: 5, Code: protocol.ErrOverBudget, Message: "over"})
	rejects(t, ack, `{"type":"ACK","protocol_version":"1.0","ack_for":1,"accepted":false,"code":"bad"}`)

	validate(t, compile(t, "error.schema.json"), protocol.NewError(protocol.ErrRateLimit, "slow down"))
}
