package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"trivia-arena/internal/app"
	"trivia-arena/internal/domain"
	"trivia-arena/internal/infra/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(nil)
	registry := app.NewRegistry(ctx, hub, memory.NewRoomIndex(), nil)
	server := httptest.NewServer(NewRouter(NewWSHandler(registry, hub, nil), registry))
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, eventType string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(domain.Event{Type: eventType, Payload: payload}); err != nil {
		t.Fatalf("write %s: %v", eventType, err)
	}
}

func readNext(t *testing.T, conn *websocket.Conn, expect string) json.RawMessage {
	t.Helper()
	var env domain.Envelope
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && env.Type != expect {
		t.Fatalf("expected type %s, got %s (%s)", expect, env.Type, env.Payload)
	}
	return env.Payload
}

func readRoster(t *testing.T, conn *websocket.Conn) []domain.Participant {
	t.Helper()
	var roster []domain.Participant
	if err := json.Unmarshal(readNext(t, conn, domain.EventUpdatePlayers), &roster); err != nil {
		t.Fatalf("decode roster: %v", err)
	}
	return roster
}

func TestRoomFlowOverWebSocket(t *testing.T) {
	server := newTestServer(t)
	alice := dial(t, server)
	bob := dial(t, server)

	send(t, alice, domain.EventCreateRoom, domain.CreateRoomPayload{
		Participant: domain.Participant{StableID: "h1", DisplayName: "alice"},
		Config:      domain.GameConfig{Topic: "Space", Rounds: 2},
	})
	var created domain.RoomCreatedPayload
	if err := json.Unmarshal(readNext(t, alice, domain.EventRoomCreated), &created); err != nil || created.RoomID == "" {
		t.Fatalf("bad room_created payload: %v", err)
	}
	roomID := created.RoomID
	readRoster(t, alice)
	readNext(t, alice, domain.EventRoomConfigUpdated)

	send(t, bob, domain.EventJoinRoom, domain.JoinRoomPayload{
		RoomID:      roomID,
		Participant: domain.Participant{StableID: "p2", DisplayName: "bob"},
	})
	if roster := readRoster(t, bob); len(roster) != 2 {
		t.Fatalf("expected 2 seats, got %+v", roster)
	}
	var cfg domain.GameConfig
	_ = json.Unmarshal(readNext(t, bob, domain.EventRoomConfigUpdated), &cfg)
	if cfg.Topic != "Space" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	readRoster(t, alice)

	// only the host may start
	send(t, bob, domain.EventStartGame, domain.StartGamePayload{RoomID: roomID})
	var errPayload domain.ErrorPayload
	_ = json.Unmarshal(readNext(t, bob, domain.EventError), &errPayload)
	if !strings.Contains(errPayload.Message, domain.ErrUnauthorized.Error()) {
		t.Fatalf("unexpected error message %q", errPayload.Message)
	}

	questions := []domain.Question{{ID: "q1", Text: "One?", Options: []string{"a", "b", "c", "d"}}}
	send(t, alice, domain.EventStartGame, domain.StartGamePayload{RoomID: roomID, Questions: questions})
	for _, conn := range []*websocket.Conn{alice, bob} {
		var started domain.GameStartedPayload
		_ = json.Unmarshal(readNext(t, conn, domain.EventGameStarted), &started)
		if started.RoomID != roomID || len(started.Questions) != 1 || len(started.Players) != 2 {
			t.Fatalf("unexpected game_started %+v", started)
		}
	}

	send(t, alice, domain.EventSubmitAnswer, domain.SubmitAnswerPayload{RoomID: roomID, PointsDelta: 120})
	readRoster(t, alice)
	roster := readRoster(t, bob)
	if roster[0].Score != 120 || roster[0].Streak != 1 {
		t.Fatalf("unexpected host seat %+v", roster[0])
	}

	// mid-game reconnect on a new socket
	alice.Close()
	alice2 := dial(t, server)
	send(t, alice2, domain.EventJoinRoom, domain.JoinRoomPayload{
		RoomID:      roomID,
		Participant: domain.Participant{StableID: "h1", DisplayName: "alice"},
	})
	if roster := readRoster(t, alice2); roster[0].Score != 120 {
		t.Fatalf("score lost on reconnect: %+v", roster[0])
	}
	readNext(t, alice2, domain.EventRoomConfigUpdated)
	readNext(t, alice2, domain.EventGameStarted)

	resp, err := http.Get(server.URL + "/rooms/" + roomID)
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var snap domain.RoomSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Phase != domain.PhasePlaying || len(snap.Players) != 2 || snap.Players[0].TransportID != snap.HostTransportID {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestUnknownMessageAndRoom(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server)

	send(t, conn, "dance", map[string]any{})
	readNext(t, conn, domain.EventError)

	send(t, conn, domain.EventJoinRoom, domain.JoinRoomPayload{
		RoomID:      "NOPE1",
		Participant: domain.Participant{StableID: "p1", DisplayName: "zed"},
	})
	var errPayload domain.ErrorPayload
	_ = json.Unmarshal(readNext(t, conn, domain.EventError), &errPayload)
	if errPayload.Message != domain.ErrRoomNotFound.Error() {
		t.Fatalf("unexpected error %q", errPayload.Message)
	}

	resp, err := http.Get(server.URL + "/rooms/NOPE1")
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t)
	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestHubClosesLaggingConnection(t *testing.T) {
	hub := NewHub(nil)
	outbox := hub.register("c1")
	hub.Publish("c1", domain.Event{Type: domain.EventRoomCreated, Payload: 0})
	for i := 1; i <= outboxSize; i++ {
		hub.Publish("c1", domain.Event{Type: domain.EventUpdatePlayers, Payload: i})
	}
	if hub.Connections() != 0 {
		t.Fatalf("expected the lagging connection to be closed")
	}

	var got []domain.Event
	for evt := range outbox {
		got = append(got, evt)
	}
	if len(got) != outboxSize {
		t.Fatalf("expected %d queued events, got %d", outboxSize, len(got))
	}
	if got[0].Type != domain.EventRoomCreated {
		t.Fatalf("expected room_created kept at the head, got %s", got[0].Type)
	}

	// later events for the closed connection are ignored
	hub.Publish("c1", domain.Event{Type: domain.EventGameStarted})
	hub.Publish("ghost", domain.Event{Type: "n"})
	hub.unregister("c1")
}

func TestClosedOutboxDisconnectsSocket(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub(nil)
	registry := app.NewRegistry(ctx, hub, memory.NewRoomIndex(), nil)
	server := httptest.NewServer(NewRouter(NewWSHandler(registry, hub, nil), registry))
	t.Cleanup(server.Close)

	alice := dial(t, server)
	send(t, alice, domain.EventCreateRoom, domain.CreateRoomPayload{
		Participant: domain.Participant{StableID: "h1", DisplayName: "alice"},
	})
	var created domain.RoomCreatedPayload
	if err := json.Unmarshal(readNext(t, alice, domain.EventRoomCreated), &created); err != nil {
		t.Fatalf("bad room_created payload: %v", err)
	}
	readRoster(t, alice)
	readNext(t, alice, domain.EventRoomConfigUpdated)

	hub.mu.Lock()
	var transportID string
	for id := range hub.conns {
		transportID = id
	}
	hub.mu.Unlock()
	// what Publish does to a full outbox
	hub.unregister(transportID)

	_ = alice.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := alice.ReadMessage(); err == nil {
		t.Fatalf("expected the server to close the socket")
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok := registry.Room(ctx, created.RoomID); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected the lobby to close after its only seat disconnected")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
