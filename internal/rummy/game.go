package rummy

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"
)

type Phase string

const (
	PhaseAwaitingDraw    Phase = "awaiting_draw"
	PhaseAwaitingDiscard Phase = "awaiting_discard"
	PhaseRoundOver       Phase = "round_over"
	PhaseGameOver        Phase = "game_over"
)

const (
	HandSize      = 10
	KnockLimit    = 10
	GinBonus      = 25
	UndercutBonus = 25
	TargetScore   = 100

	// DeadHandFloor: a discard that leaves this many or fewer cards in the
	// stock ends the round immediately as a scoreless dead hand.
	DeadHandFloor = 2
)

type Game struct {
	Players     [2]string       `json:"players"`
	Hands       [2]map[int]Card `json:"hands"`
	Stock       *Deck           `json:"stock"`
	DiscardPile []Card          `json:"discardPile"`
	Scores      [2]int          `json:"scores"`
	Active      int             `json:"active"`
	Dealer      int             `json:"dealer"`
	Phase       Phase           `json:"phase"`
	Round       int             `json:"round"`
	LastResult  *RoundResult    `json:"lastResult,omitempty"`

	// Card taken from the discard pile this turn, -1 otherwise. A player may
	// not discard the card they just took.
	tookDiscard int

	rng *rand.Rand
}

// RoundResult is the public outcome of a finished round. Knocker and Winner
// are seat indexes, -1 for a dead hand.
type RoundResult struct {
	DeadHand         bool   `json:"deadHand"`
	Knocker          int    `json:"knocker"`
	Winner           int    `json:"winner"`
	Gin              bool   `json:"gin"`
	Undercut         bool   `json:"undercut"`
	KnockerDeadwood  int    `json:"knockerDeadwood"`
	DefenderDeadwood int    `json:"defenderDeadwood"`
	Points           int    `json:"points"`
	LaidOff          []Card `json:"laidOff,omitempty"`
	GameOver         bool   `json:"gameOver"`
}

type Option func(*Game)

// WithRand fixes the shuffle source, used by tests for deterministic deals.
func WithRand(rng *rand.Rand) Option {
	return func(g *Game) {
		g.rng = rng
	}
}

func NewGame(players [2]string, opts ...Option) *Game {
	g := &Game{
		Players:     players,
		Round:       1,
		Dealer:      0,
		tookDiscard: -1,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	g.deal()
	return g
}

func (g *Game) deal() {
	deck := NewDeck()
	deck.Shuffle(g.rng)

	for seat := range g.Hands {
		g.Hands[seat] = make(map[int]Card, HandSize)
	}
	for range HandSize {
		for seat := range g.Hands {
			card := deck.Draw(1)[0]
			g.Hands[seat][card.GetId()] = card
		}
	}

	// Seed the discard pile with one face-up card
	g.DiscardPile = deck.Draw(1)
	g.Stock = deck

	// Non-dealer acts first
	g.Active = 1 - g.Dealer
	g.Phase = PhaseAwaitingDraw
	g.tookDiscard = -1
	g.LastResult = nil
}

// Seat returns the seat index for a participant id, or -1.
func (g *Game) Seat(playerID string) int {
	for i, p := range g.Players {
		if p == playerID {
			return i
		}
	}
	return -1
}

func (g *Game) ActivePlayer() string {
	return g.Players[g.Active]
}

// HandCards returns a seat's hand sorted by card id.
func (g *Game) HandCards(seat int) []Card {
	cards := make([]Card, 0, len(g.Hands[seat]))
	for _, c := range g.Hands[seat] {
		cards = append(cards, c)
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].GetId() < cards[j].GetId() })
	return cards
}

// TotalCards counts cards across every zone. Always DeckSize.
func (g *Game) TotalCards() int {
	return len(g.Hands[0]) + len(g.Hands[1]) + g.Stock.Count() + len(g.DiscardPile)
}

func (g *Game) DrawFromStock(seat int) (Card, error) {
	if err := g.checkTurn(seat, PhaseAwaitingDraw); err != nil {
		return Card{}, err
	}
	if g.Stock.Count() == 0 {
		return Card{}, errors.New("STOCK_EMPTY: The stock pile is exhausted")
	}

	card := g.Stock.Draw(1)[0]
	g.Hands[seat][card.GetId()] = card
	g.Phase = PhaseAwaitingDiscard
	g.tookDiscard = -1
	return card, nil
}

func (g *Game) TakeDiscard(seat int) (Card, error) {
	if err := g.checkTurn(seat, PhaseAwaitingDraw); err != nil {
		return Card{}, err
	}
	if len(g.DiscardPile) == 0 {
		return Card{}, errors.New("DISCARD_EMPTY: The discard pile is empty")
	}

	card := g.DiscardPile[len(g.DiscardPile)-1]
	g.DiscardPile = g.DiscardPile[:len(g.DiscardPile)-1]
	g.Hands[seat][card.GetId()] = card
	g.Phase = PhaseAwaitingDiscard
	g.tookDiscard = card.GetId()
	return card, nil
}

func (g *Game) DiscardCard(seat, cardID int) error {
	if err := g.checkTurn(seat, PhaseAwaitingDiscard); err != nil {
		return err
	}
	card, ok := g.Hands[seat][cardID]
	if !ok {
		return errors.New("CARD_NOT_IN_HAND: That card is not in your hand")
	}
	if cardID == g.tookDiscard {
		return errors.New("DISCARD_RETURNED: Cannot discard the card you just took from the pile")
	}

	delete(g.Hands[seat], cardID)
	g.DiscardPile = append(g.DiscardPile, card)
	g.tookDiscard = -1

	if g.Stock.Count() <= DeadHandFloor {
		g.LastResult = &RoundResult{DeadHand: true, Knocker: -1, Winner: -1}
		g.Phase = PhaseRoundOver
		return nil
	}

	g.Active = 1 - seat
	g.Phase = PhaseAwaitingDraw
	return nil
}

// Knock discards cardID and declares the end of the round. Legal only when
// the remaining deadwood is at or under the knock limit.
func (g *Game) Knock(seat, cardID int) error {
	if err := g.checkTurn(seat, PhaseAwaitingDiscard); err != nil {
		return err
	}
	card, ok := g.Hands[seat][cardID]
	if !ok {
		return errors.New("CARD_NOT_IN_HAND: That card is not in your hand")
	}

	kept := make([]Card, 0, len(g.Hands[seat])-1)
	for id, c := range g.Hands[seat] {
		if id != cardID {
			kept = append(kept, c)
		}
	}
	knockerMelds, knockerDeadwood := BestMelds(kept)
	knockerCount := deadwoodSum(knockerDeadwood)
	if knockerCount > KnockLimit {
		return fmt.Errorf("KNOCK_TOO_HIGH: Deadwood %d exceeds the knock limit of %d", knockerCount, KnockLimit)
	}

	// Commit: the knock is legal from here on
	delete(g.Hands[seat], cardID)
	g.DiscardPile = append(g.DiscardPile, card)
	g.tookDiscard = -1

	defender := 1 - seat
	_, defenderDeadwood := BestMelds(g.HandCards(defender))

	result := &RoundResult{
		Knocker:         seat,
		Gin:             knockerCount == 0,
		KnockerDeadwood: knockerCount,
	}

	// Gin admits no layoffs
	remaining := defenderDeadwood
	if !result.Gin {
		result.LaidOff, remaining = layOff(defenderDeadwood, knockerMelds)
	}
	result.DefenderDeadwood = deadwoodSum(remaining)

	switch {
	case result.Gin:
		result.Winner = seat
		result.Points = result.DefenderDeadwood + GinBonus
	case result.DefenderDeadwood <= knockerCount:
		// Undercut: defender ties or beats the knocker
		result.Undercut = true
		result.Winner = defender
		result.Points = knockerCount - result.DefenderDeadwood + UndercutBonus
	default:
		result.Winner = seat
		result.Points = result.DefenderDeadwood - knockerCount
	}

	g.Scores[result.Winner] += result.Points
	if g.Scores[result.Winner] >= TargetScore {
		result.GameOver = true
		g.Phase = PhaseGameOver
	} else {
		g.Phase = PhaseRoundOver
	}
	g.LastResult = result
	return nil
}

// StartNextRound deals the next round after a round ends. Either participant
// may trigger it.
func (g *Game) StartNextRound(seat int) error {
	if g.Phase != PhaseRoundOver {
		return fmt.Errorf("WRONG_PHASE: Cannot start a new round during %s", g.Phase)
	}
	if seat < 0 || seat > 1 {
		return errors.New("INVALID_SEAT: Unknown seat")
	}

	g.Round++
	g.Dealer = 1 - g.Dealer
	g.deal()
	return nil
}

// Winner returns the leading participant id once the game is over.
func (g *Game) Winner() (string, bool) {
	if g.Phase != PhaseGameOver {
		return "", false
	}
	if g.Scores[0] >= g.Scores[1] {
		return g.Players[0], true
	}
	return g.Players[1], true
}

func (g *Game) checkTurn(seat int, want Phase) error {
	if g.Phase != want {
		return fmt.Errorf("WRONG_PHASE: That move is not legal during %s", g.Phase)
	}
	if seat != g.Active {
		return errors.New("NOT_YOUR_TURN: It is not your turn")
	}
	return nil
}
