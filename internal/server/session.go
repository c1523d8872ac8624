package server

import (
	"sync"
	"time"

	"rummy-server/internal/rummy"
)

// AIUserID is the reserved participant id for the embedded opponent.
const AIUserID = "ai"

// seenRequestWindow bounds the per-session idempotency record. 64 comfortably
// covers any client retry horizon without growing with game length.
const seenRequestWindow = 64

type GameStatus string

const (
	StatusPlaying   GameStatus = "playing"
	StatusCompleted GameStatus = "completed"
)

// GameSession is the authoritative in-memory record of one game in progress.
// All mutation goes through MoveProcessor under mu, so version checks and
// increments are atomic per session while distinct sessions run in parallel.
type GameSession struct {
	ID           string
	Participants [2]string
	VsAI         bool
	IsPrivate    bool
	Game         *rummy.Game
	Version      int64
	Status       GameStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time

	mu        sync.Mutex
	seen      map[string]*MoveOutcome
	seenOrder []string

	// aiBusy prevents two scheduler goroutines from driving the same
	// session's AI turns at once.
	aiBusy bool

	// finalized flips once Finish has persisted the result; Status blocks
	// moves earlier so a failed finalization can be retried safely.
	finalized bool
}

func newGameSession(id string, participants [2]string, vsAI, isPrivate bool) *GameSession {
	now := time.Now()
	return &GameSession{
		ID:           id,
		Participants: participants,
		VsAI:         vsAI,
		IsPrivate:    isPrivate,
		Game:         rummy.NewGame(participants),
		Version:      0,
		Status:       StatusPlaying,
		CreatedAt:    now,
		UpdatedAt:    now,
		seen:         make(map[string]*MoveOutcome, seenRequestWindow),
	}
}

// rememberRequest records the outcome for an idempotency key, evicting the
// oldest entry once the window is full. Caller holds mu.
func (s *GameSession) rememberRequest(requestID string, outcome *MoveOutcome) {
	if requestID == "" {
		return
	}
	if len(s.seenOrder) >= seenRequestWindow {
		oldest := s.seenOrder[0]
		s.seenOrder = s.seenOrder[1:]
		delete(s.seen, oldest)
	}
	s.seen[requestID] = outcome
	s.seenOrder = append(s.seenOrder, requestID)
}

// replay returns the stored outcome for a previously applied request id.
// Caller holds mu.
func (s *GameSession) replay(requestID string) (*MoveOutcome, bool) {
	outcome, ok := s.seen[requestID]
	return outcome, ok
}

// seatOf returns the seat index of a participant, or -1.
func (s *GameSession) seatOf(userID string) int {
	for i, p := range s.Participants {
		if p == userID {
			return i
		}
	}
	return -1
}

// WaitingGame is the pre-session record for a PvP game with one open seat.
// Its own version guards the waiting record, not the in-progress session.
type WaitingGame struct {
	ID        string
	Creator   string
	IsPrivate bool
	Version   int64
	CreatedAt time.Time
	Expiry    time.Time

	// claimed is set when a joiner wins the seat. The record stays in the
	// registry until the session is inserted, so a losing concurrent join
	// reads as a full game rather than an unknown one.
	claimed bool
}
