package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// User is the slice of the external user record the core needs: identity and
// rating. Registration and profiles live outside this service.
type User struct {
	ID       string
	Username string
	Rating   int
}

// MatchResult is the durable record of a finished game.
type MatchResult struct {
	GameID      string
	WinnerID    string
	LoserID     string
	WinnerScore int
	LoserScore  int
	WinnerDelta int
	LoserDelta  int
	VsAI        bool
	FinishedAt  time.Time
}

// PersistenceManager is the boundary to the durable store: fetch users,
// resolve bearer tokens, append event records and persist final results.
// In-progress game state is never written here.
type PersistenceManager struct {
	db *sql.DB
}

func NewPersistenceManager(db *sql.DB) *PersistenceManager {
	return &PersistenceManager{
		db: db,
	}
}

func (pm *PersistenceManager) GetUser(userID string) (*User, error) {
	query := `
		SELECT id, username, rating FROM users WHERE id = $1
	`

	var user User
	err := pm.db.QueryRow(query, userID).Scan(&user.ID, &user.Username, &user.Rating)

	if err == sql.ErrNoRows {
		return nil, errors.New("USER_NOT_FOUND: Unknown user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}

	return &user, nil
}

// GetUserByToken resolves a bearer credential to its user.
func (pm *PersistenceManager) GetUserByToken(token string) (*User, error) {
	query := `
		SELECT u.id, u.username, u.rating
		FROM auth_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token = $1
	`

	var user User
	err := pm.db.QueryRow(query, token).Scan(&user.ID, &user.Username, &user.Rating)

	if err == sql.ErrNoRows {
		return nil, errors.New("TOKEN_NOT_FOUND: Invalid bearer token")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token: %w", err)
	}

	return &user, nil
}

func (pm *PersistenceManager) UpdateRating(userID string, rating int) error {
	query := `UPDATE users SET rating = $1 WHERE id = $2`

	if _, err := pm.db.Exec(query, rating, userID); err != nil {
		return fmt.Errorf("failed to update rating for %s: %w", userID, err)
	}
	return nil
}

// RecordResult persists the final outcome of a game. The primary key on
// game_id makes a second finalization attempt fail loudly instead of
// double-counting.
func (pm *PersistenceManager) RecordResult(result MatchResult) error {
	query := `
		INSERT INTO match_results
			(game_id, winner_id, loser_id, winner_score, loser_score,
			 winner_delta, loser_delta, vs_ai, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := pm.db.Exec(
		query,
		result.GameID,
		result.WinnerID,
		result.LoserID,
		result.WinnerScore,
		result.LoserScore,
		result.WinnerDelta,
		result.LoserDelta,
		result.VsAI,
		result.FinishedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to record result for game %s: %w", result.GameID, err)
	}

	return nil
}

// AppendEvent adds one record to the game's event log.
func (pm *PersistenceManager) AppendEvent(gameID string, eventType EventType, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize %s event: %w", eventType, err)
	}

	query := `
		INSERT INTO game_events (game_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := pm.db.Exec(query, gameID, string(eventType), data, time.Now()); err != nil {
		return fmt.Errorf("failed to append %s event for game %s: %w", eventType, gameID, err)
	}

	return nil
}
