package server

import (
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"rummy-server/internal/rummy"
)

// maxAIMovesPerDrive caps one scheduler activation. Legal moves strictly
// advance the state machine, so this is never reached in practice; it is the
// hard stop if that invariant is ever broken.
const maxAIMovesPerDrive = 32

// AIScheduler reacts to MoveApplied notifications: whenever the active
// participant of a session is the AI, it obtains a move from the selector
// and submits it through the exact same MoveProcessor path as a human,
// repeating until control returns to a human or the round ends. It never
// runs inline with the human request that triggered it.
type AIScheduler struct {
	registry  *SessionRegistry
	processor *MoveProcessor
	selector  rummy.MoveSelector

	// delay precedes each AI move so play does not look instantaneous. It is
	// a scheduling choice, not a correctness requirement.
	delay time.Duration

	notify    chan string
	quit      chan struct{}
	onOutcome func(sess *GameSession, outcome *MoveOutcome)
}

func NewAIScheduler(registry *SessionRegistry, processor *MoveProcessor, selector rummy.MoveSelector, delay time.Duration) *AIScheduler {
	return &AIScheduler{
		registry:  registry,
		processor: processor,
		selector:  selector,
		delay:     delay,
		notify:    make(chan string, 64),
		quit:      make(chan struct{}),
	}
}

// SetOutcomeHandler wires the broadcast/finalize hook applied after every AI
// move. Must be called before Start.
func (s *AIScheduler) SetOutcomeHandler(fn func(sess *GameSession, outcome *MoveOutcome)) {
	s.onOutcome = fn
}

func (s *AIScheduler) Start() {
	go s.run()
}

func (s *AIScheduler) Stop() {
	close(s.quit)
}

// MoveApplied notifies the scheduler that a session changed. Non-blocking:
// a full queue only delays AI turns, it never stalls a human request.
func (s *AIScheduler) MoveApplied(gameID string) {
	select {
	case s.notify <- gameID:
	default:
		log.Printf("AI scheduler queue full, dropping notification for %s", gameID)
	}
}

func (s *AIScheduler) run() {
	for {
		select {
		case gameID := <-s.notify:
			s.dispatch(gameID)
		case <-s.quit:
			return
		}
	}
}

// dispatch starts a drive goroutine for a session unless one is already
// running. Per-session drives run independently so one session's think delay
// never blocks another.
func (s *AIScheduler) dispatch(gameID string) {
	sess, err := s.registry.Get(gameID)
	if err != nil {
		return
	}

	sess.mu.Lock()
	if sess.aiBusy || sess.seatOf(AIUserID) < 0 {
		sess.mu.Unlock()
		return
	}
	sess.aiBusy = true
	sess.mu.Unlock()

	go s.drive(sess)
}

func (s *AIScheduler) drive(sess *GameSession) {
	defer func() {
		sess.mu.Lock()
		sess.aiBusy = false
		sess.mu.Unlock()
	}()

	conflicts := 0
	for moves := 0; moves < maxAIMovesPerDrive; moves++ {
		view, version, ok := s.aiTurnSnapshot(sess)
		if !ok {
			return
		}

		select {
		case <-time.After(s.delay):
		case <-s.quit:
			return
		}

		proposed := s.selector.SelectMove(view)
		outcome, err := s.processor.Apply(sess.ID, Move{
			Actor:           AIUserID,
			Type:            proposed.Type,
			CardID:          proposed.CardID,
			RequestID:       uuid.New().String(),
			ExpectedVersion: version,
		})

		var conflict *VersionConflictError
		switch {
		case err == nil:
			conflicts = 0
			if s.onOutcome != nil {
				s.onOutcome(sess, outcome)
			}
		case errors.As(err, &conflict):
			// A concurrent action slipped in; re-read once and retry
			conflicts++
			if conflicts > 1 {
				log.Printf("AI turn aborted for %s: repeated version conflicts", sess.ID)
				return
			}
		default:
			// The session stays stable and resumable; just give up this turn
			log.Printf("AI turn aborted for %s: %v", sess.ID, err)
			return
		}
	}
	log.Printf("AI drive for %s hit the move cap, aborting", sess.ID)
}

// aiTurnSnapshot returns the AI's projection and the current version when it
// is the AI's turn in a live, non-terminal session.
func (s *AIScheduler) aiTurnSnapshot(sess *GameSession) (*rummy.ClientState, int64, bool) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Status != StatusPlaying {
		return nil, 0, false
	}
	phase := sess.Game.Phase
	if phase != rummy.PhaseAwaitingDraw && phase != rummy.PhaseAwaitingDiscard {
		return nil, 0, false
	}
	seat := sess.seatOf(AIUserID)
	if seat < 0 || sess.Game.ActivePlayer() != AIUserID {
		return nil, 0, false
	}
	return sess.Game.ClientState(seat), sess.Version, true
}
