package rummy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func c(suit Suit, rank Rank) Card {
	return Card{Suit: suit, Rank: rank}
}

func TestDeadwoodCount_NoMelds(t *testing.T) {
	hand := []Card{
		c(Clubs, Ace), c(Diamonds, Four), c(Hearts, Seven), c(Spades, Ten),
	}
	// 1 + 4 + 7 + 10
	assert.Equal(t, 22, DeadwoodCount(hand))
}

func TestDeadwoodCount_SetRemovesCards(t *testing.T) {
	hand := []Card{
		c(Clubs, Eight), c(Diamonds, Eight), c(Hearts, Eight),
		c(Spades, Two),
	}
	assert.Equal(t, 2, DeadwoodCount(hand))
}

func TestDeadwoodCount_Run(t *testing.T) {
	hand := []Card{
		c(Spades, Four), c(Spades, Five), c(Spades, Six), c(Spades, Seven),
		c(Hearts, King),
	}
	assert.Equal(t, 10, DeadwoodCount(hand))
}

func TestBestMelds_PrefersCheaperDeadwood(t *testing.T) {
	// Seven of Spades can join the spade run or the sevens set. The run
	// strands both other sevens (14 deadwood); the set strands the Five and
	// Six of Spades (11). The partition must pick the set.
	hand := []Card{
		c(Spades, Five), c(Spades, Six), c(Spades, Seven),
		c(Hearts, Seven), c(Diamonds, Seven),
	}
	assert.Equal(t, 11, DeadwoodCount(hand))
}

func TestBestMelds_GinHand(t *testing.T) {
	hand := []Card{
		c(Clubs, Ace), c(Clubs, Two), c(Clubs, Three),
		c(Hearts, Nine), c(Diamonds, Nine), c(Spades, Nine),
		c(Spades, Jack), c(Spades, Queen), c(Spades, King), c(Spades, Ten),
	}
	melds, deadwood := BestMelds(hand)
	assert.Empty(t, deadwood)
	assert.Len(t, melds, 3)
}

func TestBestMelds_AceRunsDoNotWrap(t *testing.T) {
	hand := []Card{
		c(Clubs, Queen), c(Clubs, King), c(Clubs, Ace),
	}
	// Q-K-A is not a run
	assert.Equal(t, 21, DeadwoodCount(hand))
}

func TestLayOff_ExtendsRunBothWays(t *testing.T) {
	melds := []Meld{
		{Kind: MeldRun, Cards: []Card{c(Hearts, Five), c(Hearts, Six), c(Hearts, Seven)}},
	}
	deadwood := []Card{c(Hearts, Four), c(Hearts, Eight), c(Spades, King)}

	laid, remaining := layOff(deadwood, melds)
	assert.Len(t, laid, 2)
	assert.Equal(t, []Card{c(Spades, King)}, remaining)
}

func TestLayOff_ChainedExtension(t *testing.T) {
	// Nine only fits after the Eight has been laid off
	melds := []Meld{
		{Kind: MeldRun, Cards: []Card{c(Hearts, Five), c(Hearts, Six), c(Hearts, Seven)}},
	}
	deadwood := []Card{c(Hearts, Nine), c(Hearts, Eight)}

	laid, remaining := layOff(deadwood, melds)
	assert.Len(t, laid, 2)
	assert.Empty(t, remaining)
}

func TestLayOff_SetCapsAtFour(t *testing.T) {
	melds := []Meld{
		{Kind: MeldSet, Cards: []Card{c(Hearts, Three), c(Spades, Three), c(Clubs, Three)}},
	}
	deadwood := []Card{c(Diamonds, Three)}

	laid, remaining := layOff(deadwood, melds)
	assert.Len(t, laid, 1)
	assert.Empty(t, remaining)

	// A full set accepts nothing
	full := []Meld{
		{Kind: MeldSet, Cards: []Card{
			c(Hearts, Three), c(Spades, Three), c(Clubs, Three), c(Diamonds, Three),
		}},
	}
	laid, remaining = layOff([]Card{c(Hearts, Three)}, full)
	assert.Empty(t, laid)
	assert.Len(t, remaining, 1)
}
