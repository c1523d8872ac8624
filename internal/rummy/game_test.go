package rummy

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestGame(seed int64) *Game {
	return NewGame([2]string{"alice", "bob"}, WithRand(rand.New(rand.NewSource(seed))))
}

// setHand replaces a seat's hand wholesale. Tests use it to build exact
// scoring scenarios; the cards swapped out go nowhere, so conservation checks
// do not apply afterwards.
func setHand(g *Game, seat int, cards []Card) {
	g.Hands[seat] = make(map[int]Card, len(cards))
	for _, card := range cards {
		g.Hands[seat][card.GetId()] = card
	}
}

func TestNewGame_Deal(t *testing.T) {
	assert := assert.New(t)
	g := newTestGame(1)

	assert.Equal(HandSize, len(g.Hands[0]))
	assert.Equal(HandSize, len(g.Hands[1]))
	assert.Equal(1, len(g.DiscardPile))
	assert.Equal(DeckSize-2*HandSize-1, g.Stock.Count())
	assert.Equal(DeckSize, g.TotalCards())

	assert.Equal(PhaseAwaitingDraw, g.Phase)
	assert.Equal(1, g.Round)
	// Non-dealer acts first
	assert.Equal(1-g.Dealer, g.Active)
}

func TestDrawFromStock(t *testing.T) {
	assert := assert.New(t)
	g := newTestGame(2)
	seat := g.Active

	card, err := g.DrawFromStock(seat)
	assert.NoError(err)
	assert.Equal(PhaseAwaitingDiscard, g.Phase)
	assert.Equal(HandSize+1, len(g.Hands[seat]))
	assert.Contains(g.Hands[seat], card.GetId())
	assert.Equal(DeckSize, g.TotalCards())

	// Still the same player's turn
	assert.Equal(seat, g.Active)
}

func TestDrawFromStock_WrongPhase(t *testing.T) {
	g := newTestGame(3)
	seat := g.Active

	if _, err := g.DrawFromStock(seat); err != nil {
		t.Fatalf("First draw should succeed: %v", err)
	}
	if _, err := g.DrawFromStock(seat); err == nil {
		t.Error("Second draw in the same turn should be rejected")
	}
}

func TestDrawFromStock_NotYourTurn(t *testing.T) {
	g := newTestGame(4)
	_, err := g.DrawFromStock(1 - g.Active)
	assert.ErrorContains(t, err, "NOT_YOUR_TURN")
}

func TestTakeDiscard(t *testing.T) {
	assert := assert.New(t)
	g := newTestGame(5)
	seat := g.Active
	top := *g.discardTop()

	card, err := g.TakeDiscard(seat)
	assert.NoError(err)
	assert.Equal(top, card)
	assert.Empty(g.DiscardPile)
	assert.Equal(PhaseAwaitingDiscard, g.Phase)
	assert.Equal(DeckSize, g.TotalCards())

	// The taken card cannot be discarded straight back
	err = g.DiscardCard(seat, card.GetId())
	assert.ErrorContains(err, "DISCARD_RETURNED")
}

func TestDiscardCard_CompletesTurn(t *testing.T) {
	assert := assert.New(t)
	g := newTestGame(6)
	seat := g.Active

	drawn, err := g.DrawFromStock(seat)
	assert.NoError(err)

	err = g.DiscardCard(seat, drawn.GetId())
	assert.NoError(err)

	assert.Equal(PhaseAwaitingDraw, g.Phase)
	assert.Equal(1-seat, g.Active)
	assert.Equal(HandSize, len(g.Hands[seat]))
	assert.Equal(DeckSize, g.TotalCards())
}

func TestDiscardCard_NotInHand(t *testing.T) {
	g := newTestGame(7)
	seat := g.Active

	if _, err := g.DrawFromStock(seat); err != nil {
		t.Fatalf("Draw failed: %v", err)
	}

	// Find an id the player does not hold
	missing := -1
	for id := 0; id < DeckSize; id++ {
		if _, ok := g.Hands[seat][id]; !ok {
			missing = id
			break
		}
	}

	err := g.DiscardCard(seat, missing)
	assert.ErrorContains(t, err, "CARD_NOT_IN_HAND")
}

func TestDiscard_DeadHand(t *testing.T) {
	assert := assert.New(t)
	g := newTestGame(8)
	seat := g.Active

	drawn, err := g.DrawFromStock(seat)
	assert.NoError(err)

	// Shrink the stock to the dead-hand floor
	g.Stock.Cards = g.Stock.Cards[:DeadHandFloor]

	err = g.DiscardCard(seat, drawn.GetId())
	assert.NoError(err)

	assert.Equal(PhaseRoundOver, g.Phase)
	assert.NotNil(g.LastResult)
	assert.True(g.LastResult.DeadHand)
	assert.Equal(-1, g.LastResult.Winner)
	assert.Equal([2]int{0, 0}, g.Scores)
}

func TestKnock_TooHigh(t *testing.T) {
	g := newTestGame(9)
	seat := g.Active

	setHand(g, seat, []Card{
		c(Clubs, King), c(Diamonds, King), c(Hearts, Queen), c(Spades, Jack),
		c(Clubs, Nine), c(Diamonds, Seven), c(Hearts, Five), c(Spades, Four),
		c(Clubs, Two), c(Diamonds, Ten), c(Hearts, Eight),
	})
	g.Phase = PhaseAwaitingDiscard

	err := g.Knock(seat, Card{Suit: Hearts, Rank: Eight}.GetId())
	assert.ErrorContains(t, err, "KNOCK_TOO_HIGH")
	// Rejection must not mutate anything
	assert.Equal(t, PhaseAwaitingDiscard, g.Phase)
	assert.Equal(t, 11, len(g.Hands[seat]))
}

func TestKnock_Gin(t *testing.T) {
	assert := assert.New(t)
	g := newTestGame(10)
	knocker := g.Active
	defender := 1 - knocker

	setHand(g, knocker, []Card{
		c(Clubs, Ace), c(Clubs, Two), c(Clubs, Three),
		c(Hearts, Nine), c(Diamonds, Nine), c(Spades, Nine),
		c(Spades, Jack), c(Spades, Queen), c(Spades, King), c(Spades, Ten),
		c(Diamonds, King), // the knock discard
	})
	setHand(g, defender, []Card{
		c(Hearts, King), c(Hearts, Queen), c(Diamonds, Ten), c(Diamonds, Five),
		c(Clubs, Seven), c(Clubs, Nine), c(Diamonds, Two), c(Hearts, Four),
		c(Spades, Six), c(Hearts, Six),
	})
	g.Phase = PhaseAwaitingDiscard

	err := g.Knock(knocker, Card{Suit: Diamonds, Rank: King}.GetId())
	assert.NoError(err)

	result := g.LastResult
	assert.NotNil(result)
	assert.True(result.Gin)
	assert.False(result.Undercut)
	assert.Equal(knocker, result.Winner)
	assert.Equal(0, result.KnockerDeadwood)
	// Gin admits no layoffs
	assert.Empty(result.LaidOff)
	assert.Equal(result.DefenderDeadwood+GinBonus, result.Points)
	assert.Equal(result.Points, g.Scores[knocker])
}

func TestKnock_Undercut(t *testing.T) {
	assert := assert.New(t)
	g := newTestGame(11)
	knocker := g.Active
	defender := 1 - knocker

	// Knocker ends with 4 deadwood after discarding the Five of Diamonds
	setHand(g, knocker, []Card{
		c(Clubs, Ace), c(Clubs, Two), c(Clubs, Three),
		c(Hearts, Nine), c(Diamonds, Nine), c(Spades, Nine),
		c(Spades, Ten), c(Spades, Jack), c(Spades, Queen),
		c(Diamonds, Four), c(Diamonds, Five),
	})
	// Defender is fully melded: zero deadwood beats the knocker's four
	setHand(g, defender, []Card{
		c(Hearts, Ace), c(Hearts, Two), c(Hearts, Three), c(Hearts, Four),
		c(Diamonds, Ten), c(Diamonds, Jack), c(Diamonds, Queen),
		c(Clubs, Five), c(Clubs, Six), c(Clubs, Seven),
	})
	g.Phase = PhaseAwaitingDiscard

	err := g.Knock(knocker, Card{Suit: Diamonds, Rank: Five}.GetId())
	assert.NoError(err)

	result := g.LastResult
	assert.NotNil(result)
	assert.False(result.Gin)
	assert.True(result.Undercut)
	assert.Equal(defender, result.Winner)
	assert.Equal(4, result.KnockerDeadwood)
	assert.LessOrEqual(result.DefenderDeadwood, result.KnockerDeadwood)
	assert.Equal(result.KnockerDeadwood-result.DefenderDeadwood+UndercutBonus, result.Points)
	assert.Equal(result.Points, g.Scores[defender])
	assert.Equal(0, g.Scores[knocker])
}

func TestKnock_GameOverAtTarget(t *testing.T) {
	assert := assert.New(t)
	g := newTestGame(12)
	knocker := g.Active

	g.Scores[knocker] = TargetScore - 1
	setHand(g, knocker, []Card{
		c(Clubs, Ace), c(Clubs, Two), c(Clubs, Three),
		c(Hearts, Nine), c(Diamonds, Nine), c(Spades, Nine),
		c(Spades, Jack), c(Spades, Queen), c(Spades, King), c(Spades, Ten),
		c(Diamonds, King),
	})
	g.Phase = PhaseAwaitingDiscard

	err := g.Knock(knocker, Card{Suit: Diamonds, Rank: King}.GetId())
	assert.NoError(err)
	assert.Equal(PhaseGameOver, g.Phase)
	assert.True(g.LastResult.GameOver)

	winner, ok := g.Winner()
	assert.True(ok)
	assert.Equal(g.Players[knocker], winner)
}

func TestStartNextRound(t *testing.T) {
	assert := assert.New(t)
	g := newTestGame(13)
	firstDealer := g.Dealer

	g.Phase = PhaseRoundOver
	g.LastResult = &RoundResult{DeadHand: true, Knocker: -1, Winner: -1}

	err := g.StartNextRound(0)
	assert.NoError(err)

	assert.Equal(2, g.Round)
	assert.Equal(1-firstDealer, g.Dealer)
	assert.Equal(PhaseAwaitingDraw, g.Phase)
	assert.Equal(HandSize, len(g.Hands[0]))
	assert.Equal(HandSize, len(g.Hands[1]))
	assert.Equal(DeckSize, g.TotalCards())
}

// The finished round's result must not linger into the next round's views.
func TestStartNextRound_ClearsLastResult(t *testing.T) {
	g := newTestGame(13)
	g.Phase = PhaseRoundOver
	g.LastResult = &RoundResult{Knocker: 0, Winner: 0, KnockerDeadwood: 3, Points: 12}

	if err := g.StartNextRound(0); err != nil {
		t.Fatalf("StartNextRound failed: %v", err)
	}

	if g.LastResult != nil {
		t.Error("LastResult should be cleared by the new deal")
	}
	if g.ClientState(0).LastResult != nil {
		t.Error("Projection should not carry the previous round's result")
	}
	if g.SpectatorState().LastResult != nil {
		t.Error("Spectator projection should not carry the previous round's result")
	}
}

func TestStartNextRound_WrongPhase(t *testing.T) {
	g := newTestGame(14)
	err := g.StartNextRound(0)
	assert.ErrorContains(t, err, "WRONG_PHASE")
}

func TestCardConservation_FullTurnCycle(t *testing.T) {
	g := newTestGame(15)

	// Play a handful of plain turns and check the invariant after each move
	for turn := 0; turn < 6 && g.Phase == PhaseAwaitingDraw; turn++ {
		seat := g.Active
		drawn, err := g.DrawFromStock(seat)
		if err != nil {
			t.Fatalf("Turn %d draw: %v", turn, err)
		}
		if g.TotalCards() != DeckSize {
			t.Fatalf("Conservation broken after draw on turn %d", turn)
		}
		if err := g.DiscardCard(seat, drawn.GetId()); err != nil {
			t.Fatalf("Turn %d discard: %v", turn, err)
		}
		if g.TotalCards() != DeckSize {
			t.Fatalf("Conservation broken after discard on turn %d", turn)
		}
	}
}

func TestSeat(t *testing.T) {
	g := newTestGame(16)
	assert.Equal(t, 0, g.Seat("alice"))
	assert.Equal(t, 1, g.Seat("bob"))
	assert.Equal(t, -1, g.Seat("carol"))
}
