package rummy

import (
	"fmt"
	"math/rand"
)

type Suit int

const (
	Clubs Suit = iota
	Diamonds
	Hearts
	Spades
)

var suitString = map[Suit]string{
	Clubs:    "Clubs",
	Diamonds: "Diamonds",
	Hearts:   "Hearts",
	Spades:   "Spades",
}

func (s Suit) String() string {
	return suitString[s]
}

type Rank int

const (
	Ace Rank = iota
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
)

var rankString = map[Rank]string{
	Ace:   "Ace",
	Two:   "Two",
	Three: "Three",
	Four:  "Four",
	Five:  "Five",
	Six:   "Six",
	Seven: "Seven",
	Eight: "Eight",
	Nine:  "Nine",
	Ten:   "Ten",
	Jack:  "Jack",
	Queen: "Queen",
	King:  "King",
}

func (r Rank) String() string {
	return rankString[r]
}

// DeckSize is the fixed card count the conservation invariant is checked
// against: every card is in exactly one zone at all times.
const DeckSize = 52

type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

// GetId returns a stable identifier in [0, DeckSize). Clients reference cards
// by this id in discard and knock moves.
func (c Card) GetId() int {
	return int(c.Suit)*13 + int(c.Rank)
}

// CardFromId is the inverse of GetId.
func CardFromId(id int) (Card, error) {
	if id < 0 || id >= DeckSize {
		return Card{}, fmt.Errorf("CARD_INVALID: No card with id %d", id)
	}
	return Card{Suit: Suit(id / 13), Rank: Rank(id % 13)}, nil
}

// DeadwoodValue follows standard gin rummy counting: aces one, faces ten.
func (c Card) DeadwoodValue() int {
	if c.Rank >= Ten {
		return 10
	}
	return int(c.Rank) + 1
}

func (c Card) String() string {
	return fmt.Sprintf("%s of %s", c.Rank.String(), c.Suit.String())
}

type Deck struct {
	Cards []Card `json:"cards"`
}

func NewDeck() *Deck {
	cards := make([]Card, 0, DeckSize)
	for _, suit := range []Suit{Clubs, Diamonds, Hearts, Spades} {
		for rank := Ace; rank <= King; rank++ {
			cards = append(cards, Card{Suit: suit, Rank: rank})
		}
	}
	return &Deck{Cards: cards}
}

func (d *Deck) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(d.Cards), func(i, j int) {
		d.Cards[i], d.Cards[j] = d.Cards[j], d.Cards[i]
	})
}

func (d *Deck) Count() int {
	return len(d.Cards)
}

// Draw removes and returns the top n cards. Callers are responsible for
// checking Count first; drawing past the end is a programming error.
func (d *Deck) Draw(n int) []Card {
	cards := d.Cards[len(d.Cards)-n:]
	d.Cards = d.Cards[:len(d.Cards)-n]
	drawn := make([]Card, n)
	copy(drawn, cards)
	return drawn
}
