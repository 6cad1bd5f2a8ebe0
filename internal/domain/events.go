package domain

import "encoding/json"

// Event names exchanged over the room channel.
const (
	EventCreateRoom        = "create_room"
	EventRoomCreated       = "room_created"
	EventJoinRoom          = "join_room"
	EventUpdateConfig      = "update_config"
	EventStartGame         = "start_game"
	EventGameStarted       = "game_started"
	EventSubmitAnswer      = "submit_answer"
	EventUpdatePlayers     = "update_players"
	EventRoomConfigUpdated = "room_config_updated"
	EventError             = "error"
)

// Envelope is the frame every message travels in.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is an outbound message before encoding.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type CreateRoomPayload struct {
	Participant Participant `json:"participant"`
	Config      GameConfig  `json:"config"`
}

type RoomCreatedPayload struct {
	RoomID string `json:"roomId"`
}

type JoinRoomPayload struct {
	RoomID      string      `json:"roomId"`
	Participant Participant `json:"participant"`
}

type UpdateConfigPayload struct {
	RoomID string     `json:"roomId"`
	Config GameConfig `json:"config"`
}

type StartGamePayload struct {
	RoomID    string     `json:"roomId"`
	Questions []Question `json:"questions"`
}

// GameStartedPayload is broadcast on start and replayed to reconnecting clients.
type GameStartedPayload struct {
	RoomID    string        `json:"roomId"`
	Questions []Question    `json:"questions"`
	Players   []Participant `json:"players"`
	Config    GameConfig    `json:"config"`
}

type SubmitAnswerPayload struct {
	RoomID      string `json:"roomId"`
	PointsDelta int    `json:"pointsDelta"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
