package server

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	// eloK is the rating K-factor per finished game.
	eloK = 32

	// aiRating is the fixed strength the embedded opponent is rated at; the
	// AI's own rating is never stored or updated.
	aiRating = 1200
)

// eloDelta is the rating the winner gains (and the loser loses).
func eloDelta(winnerRating, loserRating int) int {
	expected := 1.0 / (1.0 + math.Pow(10, float64(loserRating-winnerRating)/400.0))
	return int(math.Round(eloK * (1.0 - expected)))
}

// resultStore is the slice of PersistenceManager the lifecycle needs,
// narrowed so tests can substitute a fake.
type resultStore interface {
	GetUser(userID string) (*User, error)
	UpdateRating(userID string, rating int) error
	RecordResult(result MatchResult) error
	AppendEvent(gameID string, eventType EventType, payload interface{}) error
}

// SessionLifecycle creates sessions when games start and finalizes them when
// they end: final scores, rating deltas, terminal event record, removal from
// the registry.
type SessionLifecycle struct {
	registry *SessionRegistry
	store    resultStore
}

func NewSessionLifecycle(registry *SessionRegistry, store resultStore) *SessionLifecycle {
	return &SessionLifecycle{
		registry: registry,
		store:    store,
	}
}

// StartAIGame creates and registers a session against the embedded opponent.
// The AI takes the dealer seat, so the human acts first in round one.
func (l *SessionLifecycle) StartAIGame(humanID string) *GameSession {
	sess := newGameSession(uuid.New().String(), [2]string{AIUserID, humanID}, true, false)
	l.registry.Insert(sess)
	return sess
}

// StartFromWaiting turns a claimed waiting record into a live session. The
// game id carries over, so clients keep one id from creation to play.
func (l *SessionLifecycle) StartFromWaiting(wg *WaitingGame, joiner string) *GameSession {
	sess := newGameSession(wg.ID, [2]string{wg.Creator, joiner}, false, wg.IsPrivate)
	l.registry.Insert(sess)
	return sess
}

// Finish finalizes a completed game: computes rating deltas, persists the
// result and terminal event, and removes the session from the registry.
// Idempotent at the orchestration level: a second call after a successful
// finalization is a no-op; after a failed one it retries persistence rather
// than silently dropping the result.
func (l *SessionLifecycle) Finish(sess *GameSession) (*GameEndedEvent, error) {
	sess.mu.Lock()
	if sess.finalized {
		sess.mu.Unlock()
		return nil, nil
	}
	winnerID, over := sess.Game.Winner()
	if !over {
		sess.mu.Unlock()
		return nil, fmt.Errorf("GAME_NOT_OVER: Game %s is still in progress", sess.ID)
	}
	// Block further moves immediately; finalized flips only once persistence
	// succeeds so a failed attempt can be retried.
	sess.Status = StatusCompleted

	winnerSeat := sess.Game.Seat(winnerID)
	loserID := sess.Participants[1-winnerSeat]
	winnerScore := sess.Game.Scores[winnerSeat]
	loserScore := sess.Game.Scores[1-winnerSeat]
	scores := sess.Game.Scores
	vsAI := sess.VsAI
	sess.mu.Unlock()

	winnerRating, err := l.ratingOf(winnerID)
	if err != nil {
		return nil, err
	}
	loserRating, err := l.ratingOf(loserID)
	if err != nil {
		return nil, err
	}

	delta := eloDelta(winnerRating, loserRating)
	if winnerID != AIUserID {
		if err := l.store.UpdateRating(winnerID, winnerRating+delta); err != nil {
			return nil, err
		}
	}
	if loserID != AIUserID {
		if err := l.store.UpdateRating(loserID, loserRating-delta); err != nil {
			return nil, err
		}
	}

	result := MatchResult{
		GameID:      sess.ID,
		WinnerID:    winnerID,
		LoserID:     loserID,
		WinnerScore: winnerScore,
		LoserScore:  loserScore,
		WinnerDelta: delta,
		LoserDelta:  -delta,
		VsAI:        vsAI,
		FinishedAt:  time.Now(),
	}
	if err := l.store.RecordResult(result); err != nil {
		return nil, err
	}

	event := &GameEndedEvent{
		GameID: sess.ID,
		Winner: winnerID,
		Scores: scores,
		RatingDelta: map[string]int{
			winnerID: delta,
			loserID:  -delta,
		},
	}
	delete(event.RatingDelta, AIUserID)

	if err := l.store.AppendEvent(sess.ID, EventGameEnded, event); err != nil {
		// The result itself is recorded; losing the log entry is not worth
		// failing finalization over.
		log.Printf("Failed to append terminal event for %s: %v", sess.ID, err)
	}

	sess.mu.Lock()
	sess.finalized = true
	sess.mu.Unlock()

	l.registry.Remove(sess.ID)
	log.Printf("Game %s finished: %s beat %s %d-%d (Elo %+d)",
		sess.ID, winnerID, loserID, winnerScore, loserScore, delta)

	return event, nil
}

func (l *SessionLifecycle) ratingOf(userID string) (int, error) {
	if userID == AIUserID {
		return aiRating, nil
	}
	user, err := l.store.GetUser(userID)
	if err != nil {
		return 0, err
	}
	return user.Rating, nil
}
