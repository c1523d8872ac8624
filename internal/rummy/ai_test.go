package rummy

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func applyProposed(t *testing.T, g *Game, seat int, move ProposedMove) {
	t.Helper()

	var err error
	switch move.Type {
	case MoveDrawFromStock:
		_, err = g.DrawFromStock(seat)
	case MoveTakeDiscard:
		_, err = g.TakeDiscard(seat)
	case MoveDiscardCard:
		err = g.DiscardCard(seat, move.CardID)
	case MoveKnock:
		err = g.Knock(seat, move.CardID)
	case MoveStartNextRound:
		err = g.StartNextRound(seat)
	}
	if err != nil {
		t.Fatalf("Selector proposed an illegal move %s: %v", move.Type, err)
	}
}

func TestGreedySelector_DrawPhase(t *testing.T) {
	g := newTestGame(30)
	seat := g.Active

	move := GreedySelector{}.SelectMove(g.ClientState(seat))
	if move.Type != MoveDrawFromStock && move.Type != MoveTakeDiscard {
		t.Fatalf("Expected a draw-phase move, got %s", move.Type)
	}
	applyProposed(t, g, seat, move)
	assert.Equal(t, PhaseAwaitingDiscard, g.Phase)
}

func TestGreedySelector_TakesObviousDiscard(t *testing.T) {
	g := newTestGame(31)
	seat := g.Active

	// Top of the pile completes a set of nines
	setHand(g, seat, []Card{
		c(Hearts, Nine), c(Diamonds, Nine), c(Clubs, King), c(Diamonds, Queen),
		c(Spades, Jack), c(Clubs, Seven), c(Diamonds, Five), c(Hearts, Four),
		c(Clubs, Two), c(Hearts, Queen),
	})
	g.DiscardPile = []Card{c(Spades, Nine)}

	move := GreedySelector{}.SelectMove(g.ClientState(seat))
	assert.Equal(t, MoveTakeDiscard, move.Type)
}

func TestGreedySelector_KnocksWhenPossible(t *testing.T) {
	g := newTestGame(32)
	seat := g.Active

	setHand(g, seat, []Card{
		c(Clubs, Ace), c(Clubs, Two), c(Clubs, Three),
		c(Hearts, Nine), c(Diamonds, Nine), c(Spades, Nine),
		c(Spades, Ten), c(Spades, Jack), c(Spades, Queen),
		c(Diamonds, Four), c(Diamonds, King),
	})
	g.Phase = PhaseAwaitingDiscard

	move := GreedySelector{}.SelectMove(g.ClientState(seat))
	assert.Equal(t, MoveKnock, move.Type)
	assert.Equal(t, c(Diamonds, King).GetId(), move.CardID)

	applyProposed(t, g, seat, move)
	assert.Equal(t, PhaseRoundOver, g.Phase)
}

func TestGreedySelector_NeverDiscardsTakenCard(t *testing.T) {
	g := newTestGame(33)
	seat := g.Active

	// A junk hand where the taken card is also the most expensive deadwood
	setHand(g, seat, []Card{
		c(Clubs, Ace), c(Diamonds, Two), c(Hearts, Four), c(Spades, Five),
		c(Clubs, Seven), c(Diamonds, Eight), c(Hearts, Ten), c(Spades, Queen),
		c(Clubs, Queen), c(Hearts, Ace),
	})
	g.DiscardPile = []Card{c(Spades, King)}

	taken, err := g.TakeDiscard(seat)
	assert.NoError(t, err)

	move := GreedySelector{}.SelectMove(g.ClientState(seat))
	assert.NotEqual(t, taken.GetId(), move.CardID)
	applyProposed(t, g, seat, move)
}

// A full game driven by the selector on both seats must terminate. This is
// the bounded-progress property: every legal move advances the state machine.
func TestGreedySelector_SelfPlayTerminates(t *testing.T) {
	g := NewGame([2]string{"botA", "botB"}, WithRand(rand.New(rand.NewSource(42))))
	selector := GreedySelector{}

	const moveBudget = 10000
	for i := 0; i < moveBudget; i++ {
		if g.Phase == PhaseGameOver {
			return
		}
		seat := g.Active
		if g.Phase == PhaseRoundOver {
			seat = 0
		}
		move := selector.SelectMove(g.ClientState(seat))
		applyProposed(t, g, seat, move)

		if g.TotalCards() != DeckSize {
			t.Fatalf("Card conservation broken after move %d", i)
		}
	}
	t.Fatalf("Game did not finish within %d moves", moveBudget)
}
