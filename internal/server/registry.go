package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// waitingLobbyTTL is how long a PvP game waits for a second participant
// before the sweep reclaims it.
const waitingLobbyTTL = 10 * time.Minute

// SessionRegistry is the single cross-request shared structure in the core:
// game id -> live session, plus the pre-session waiting records for PvP
// games. It owns insert-on-start and remove-on-finish; per-session mutation
// locking lives inside GameSession, nested under a short-held registry
// lookup.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*GameSession
	waiting  map[string]*WaitingGame
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*GameSession),
		waiting:  make(map[string]*WaitingGame),
	}
}

func (r *SessionRegistry) Insert(sess *GameSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess.ID] = sess
	// A claimed waiting record with this id is now superseded by the session
	delete(r.waiting, sess.ID)
}

func (r *SessionRegistry) Get(gameID string) (*GameSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, exists := r.sessions[gameID]
	if !exists {
		return nil, errors.New("GAME_NOT_FOUND: Game not found")
	}
	return sess, nil
}

func (r *SessionRegistry) Remove(gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, gameID)
}

// CreateWaiting registers a PvP game with one open seat and returns its
// record. The waiting record has its own version, independent of any future
// session's move version.
func (r *SessionRegistry) CreateWaiting(creator string, isPrivate bool) *WaitingGame {
	now := time.Now()
	wg := &WaitingGame{
		ID:        uuid.New().String(),
		Creator:   creator,
		IsPrivate: isPrivate,
		Version:   0,
		CreatedAt: now,
		Expiry:    now.Add(waitingLobbyTTL),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.waiting[wg.ID] = wg
	return wg
}

// ClaimSeat atomically takes the open seat of a waiting game. Of two
// concurrent claims, exactly one wins; the loser sees GAME_FULL. The winner's
// record stays behind, marked claimed, until Insert registers the session, so
// a join landing in that window also sees GAME_FULL.
func (r *SessionRegistry) ClaimSeat(gameID, joiner string, expectedVersion int64) (*WaitingGame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wg, exists := r.waiting[gameID]
	if !exists {
		if _, started := r.sessions[gameID]; started {
			return nil, errors.New("GAME_FULL: Game already has two participants")
		}
		return nil, errors.New("GAME_NOT_FOUND: Game not found")
	}
	if wg.Creator == joiner {
		return nil, errors.New("ALREADY_JOINED: You created this game")
	}
	if wg.claimed {
		return nil, errors.New("GAME_FULL: Game already has two participants")
	}
	if wg.Version != expectedVersion {
		return nil, errors.New("VERSION_CONFLICT: Waiting record changed, refetch and retry")
	}

	wg.claimed = true
	return wg, nil
}

// AbandonWaiting removes an unstarted game; only its creator may do so.
func (r *SessionRegistry) AbandonWaiting(gameID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	wg, exists := r.waiting[gameID]
	if !exists {
		return errors.New("GAME_NOT_FOUND: Game not found")
	}
	if wg.Creator != userID {
		return errors.New("NOT_CREATOR: Only the creator can abandon a waiting game")
	}
	if wg.claimed {
		return errors.New("GAME_FULL: Game already has two participants")
	}

	delete(r.waiting, gameID)
	return nil
}

// ListOpen returns joinable public games.
func (r *SessionRegistry) ListOpen() []OpenGame {
	r.mu.RLock()
	defer r.mu.RUnlock()

	open := make([]OpenGame, 0, len(r.waiting))
	for _, wg := range r.waiting {
		if wg.IsPrivate || wg.claimed {
			continue
		}
		open = append(open, OpenGame{GameID: wg.ID, Creator: wg.Creator, Version: wg.Version})
	}
	return open
}

// SweepExpiredWaiting drops waiting records past their expiry and returns how
// many were removed.
func (r *SessionRegistry) SweepExpiredWaiting(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, wg := range r.waiting {
		// Claimed records are about to become sessions; Insert removes them
		if wg.claimed {
			continue
		}
		if now.After(wg.Expiry) {
			delete(r.waiting, id)
			removed++
		}
	}
	return removed
}

// Sessions snapshots the live sessions, used at shutdown to notify players.
func (r *SessionRegistry) Sessions() []*GameSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*GameSession, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}
