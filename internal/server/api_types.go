package server

import "rummy-server/internal/rummy"

// ============================================================================
// ERROR RESPONSES
// ============================================================================
// tygo:generate
type ErrorMessage struct {
	Message       string `json:"message"`
	Code          string `json:"code,omitempty"`
	ServerVersion *int64 `json:"serverVersion,omitempty"` // Set for VERSION_CONFLICT so clients can resync
}

// ============================================================================
// CREATE GAME (create_game)
// ============================================================================
// tygo:generate
type CreateGameRequest struct {
	VsAI      bool `json:"vsAi"`
	IsPrivate bool `json:"isPrivate"`
}

// tygo:generate
type CreateGameResponse struct {
	GameID  string `json:"gameId"`
	Version int64  `json:"version"`
	Started bool   `json:"started"` // True for AI games, which begin immediately
}

// ============================================================================
// JOIN GAME (join_game)
// ============================================================================
// tygo:generate
type JoinGameRequest struct {
	GameID          string `json:"gameId"`
	RequestID       string `json:"requestId"`
	ExpectedVersion int64  `json:"expectedVersion"`
}

// tygo:generate
type JoinGameResponse struct {
	GameID  string `json:"gameId"`
	Version int64  `json:"version"`
	Started bool   `json:"started"`
}

// ============================================================================
// LIST GAMES (list_games)
// ============================================================================
// tygo:generate
type OpenGame struct {
	GameID  string `json:"gameId"`
	Creator string `json:"creator"`
	Version int64  `json:"version"`
}

// tygo:generate
type ListGamesResponse struct {
	Games []OpenGame `json:"games"`
}

// ============================================================================
// SUBMIT MOVE (submit_move)
// ============================================================================
// tygo:generate
type SubmitMoveRequest struct {
	GameID          string         `json:"gameId"`
	Type            rummy.MoveType `json:"type"`
	CardID          *int           `json:"cardId,omitempty"`
	RequestID       string         `json:"requestId"`
	ExpectedVersion int64          `json:"expectedVersion"`
}

// tygo:generate
type SubmitMoveResponse struct {
	GameID    string             `json:"gameId"`
	Version   int64              `json:"version"`
	Duplicate bool               `json:"duplicate"` // True when an idempotent replay returned the original outcome
	State     *rummy.ClientState `json:"state"`
}

// ============================================================================
// FETCH STATE (fetch_state) / SPECTATE (spectate)
// ============================================================================
// tygo:generate
type FetchStateRequest struct {
	GameID string `json:"gameId"`
}

// tygo:generate
type SpectateRequest struct {
	GameID string `json:"gameId"`
}

// ============================================================================
// LEAVE GAME (leave_game)
// ============================================================================
// tygo:generate
type LeaveGameRequest struct {
	GameID string `json:"gameId"`
}

// tygo:generate
type LeaveGameResponse struct {
	GameID string `json:"gameId"`
}
