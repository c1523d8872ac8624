package server

import (
	"encoding/json"

	"rummy-server/internal/rummy"
)

type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type ServerMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// EventType is the closed set of push event kinds. Consumers switch on it
// exhaustively; an unknown kind is a protocol error, not a soft field miss.
type EventType string

const (
	EventConnected        EventType = "connected"
	EventPlayerJoined     EventType = "player_joined"
	EventMoveMade         EventType = "move_made"
	EventGameStateUpdated EventType = "game_state_updated"
	EventTurnChanged      EventType = "turn_changed"
	EventRoundEnded       EventType = "round_ended"
	EventGameEnded        EventType = "game_ended"
	EventPing             EventType = "ping"
)

// GameEvent is a tagged union: Type selects exactly one populated variant
// field. State payloads are built per recipient through the projector, so a
// recipient never sees another participant's hand.
type GameEvent struct {
	Type EventType `json:"type"`

	Connected    *ConnectedEvent    `json:"connected,omitempty"`
	PlayerJoined *PlayerJoinedEvent `json:"playerJoined,omitempty"`
	MoveMade     *MoveMadeEvent     `json:"moveMade,omitempty"`
	GameState    *GameStateEvent    `json:"gameState,omitempty"`
	TurnChanged  *TurnChangedEvent  `json:"turnChanged,omitempty"`
	RoundEnded   *RoundEndedEvent   `json:"roundEnded,omitempty"`
	GameEnded    *GameEndedEvent    `json:"gameEnded,omitempty"`
}

type ConnectedEvent struct {
	UserID string `json:"userId"`
}

type PlayerJoinedEvent struct {
	GameID string `json:"gameId"`
	UserID string `json:"userId"`
}

type MoveMadeEvent struct {
	GameID   string         `json:"gameId"`
	Actor    string         `json:"actor"`
	MoveType rummy.MoveType `json:"moveType"`
	Version  int64          `json:"version"`
}

// GameStateEvent carries a viewer-specific projection: exactly one of State
// (participant) or Spectator is set.
type GameStateEvent struct {
	GameID    string                `json:"gameId"`
	Version   int64                 `json:"version"`
	State     *rummy.ClientState    `json:"state,omitempty"`
	Spectator *rummy.SpectatorState `json:"spectator,omitempty"`
}

type TurnChangedEvent struct {
	GameID       string `json:"gameId"`
	ActivePlayer string `json:"activePlayer"`
	Version      int64  `json:"version"`
}

type RoundEndedEvent struct {
	GameID string             `json:"gameId"`
	Result *rummy.RoundResult `json:"result"`
}

type GameEndedEvent struct {
	GameID      string         `json:"gameId"`
	Winner      string         `json:"winner"`
	Scores      [2]int         `json:"scores"`
	RatingDelta map[string]int `json:"ratingDelta,omitempty"`
}

func pingEvent() GameEvent {
	return GameEvent{Type: EventPing}
}
