package server

import (
	"errors"
	"fmt"
	"time"

	"rummy-server/internal/rummy"
)

// Move is a participant's requested transition, carrying the idempotency key
// and the version it was computed against.
type Move struct {
	Actor           string
	Type            rummy.MoveType
	CardID          int
	RequestID       string
	ExpectedVersion int64
}

// MoveOutcome is what an accepted (or replayed) move produced.
type MoveOutcome struct {
	GameID       string
	Actor        string
	MoveType     rummy.MoveType
	Version      int64
	Phase        rummy.Phase
	ActivePlayer string
	RoundEnded   bool
	GameEnded    bool
	Duplicate    bool
}

// VersionConflictError reports the true current version so the caller can
// resynchronize. The rejected move mutated nothing.
type VersionConflictError struct {
	ServerVersion int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("VERSION_CONFLICT: Server version is %d", e.ServerVersion)
}

// MoveProcessor validates and applies moves against live sessions. All
// mutation of a session happens here, under the session's own mutex.
type MoveProcessor struct {
	registry *SessionRegistry
}

func NewMoveProcessor(registry *SessionRegistry) *MoveProcessor {
	return &MoveProcessor{registry: registry}
}

// Apply runs the full validation chain: session exists, request not already
// applied, version matches, actor is seated, move legal for the phase. The
// engine validates before mutating, so a failure leaves the session exactly
// as it was; success commits zones, phase, version and the idempotency
// record together.
func (mp *MoveProcessor) Apply(gameID string, move Move) (*MoveOutcome, error) {
	sess, err := mp.registry.Get(gameID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Status != StatusPlaying {
		return nil, errors.New("GAME_NOT_FOUND: Game already finished")
	}

	seat := sess.seatOf(move.Actor)
	if seat < 0 {
		return nil, errors.New("UNAUTHORIZED: You are not a participant in this game")
	}

	// Idempotent replay: the original outcome, no second mutation. The window
	// is keyed per actor, so one participant can never replay the other's
	// request id.
	if original, ok := sess.replay(requestKey(move)); ok {
		replayed := *original
		replayed.Duplicate = true
		return &replayed, nil
	}

	if move.ExpectedVersion != sess.Version {
		return nil, &VersionConflictError{ServerVersion: sess.Version}
	}

	game := sess.Game
	switch move.Type {
	case rummy.MoveDrawFromStock:
		_, err = game.DrawFromStock(seat)
	case rummy.MoveTakeDiscard:
		_, err = game.TakeDiscard(seat)
	case rummy.MoveDiscardCard:
		err = game.DiscardCard(seat, move.CardID)
	case rummy.MoveKnock:
		err = game.Knock(seat, move.CardID)
	case rummy.MoveStartNextRound:
		err = game.StartNextRound(seat)
	default:
		err = fmt.Errorf("INVALID_MOVE: Unknown move type '%s'", move.Type)
	}
	if err != nil {
		return nil, err
	}

	sess.Version++
	sess.UpdatedAt = time.Now()

	outcome := &MoveOutcome{
		GameID:       gameID,
		Actor:        move.Actor,
		MoveType:     move.Type,
		Version:      sess.Version,
		Phase:        game.Phase,
		ActivePlayer: game.ActivePlayer(),
		RoundEnded:   game.Phase == rummy.PhaseRoundOver,
		GameEnded:    game.Phase == rummy.PhaseGameOver,
	}
	sess.rememberRequest(requestKey(move), outcome)

	return outcome, nil
}

// requestKey scopes an idempotency key to its actor.
func requestKey(move Move) string {
	if move.RequestID == "" {
		return ""
	}
	return move.Actor + ":" + move.RequestID
}

// StateFor snapshots a viewer's projection plus the current version under
// the session lock. Participants get their own hand; anyone else gets the
// spectator view.
func (mp *MoveProcessor) StateFor(gameID, viewerID string) (*GameStateEvent, error) {
	sess, err := mp.registry.Get(gameID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	event := &GameStateEvent{GameID: gameID, Version: sess.Version}
	if seat := sess.seatOf(viewerID); seat >= 0 {
		event.State = sess.Game.ClientState(seat)
	} else {
		event.Spectator = sess.Game.SpectatorState()
	}
	return event, nil
}
