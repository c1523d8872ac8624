package rummy

type ClientState struct {
	Phase          Phase        `json:"phase"`
	Round          int          `json:"round"`
	ActivePlayer   string       `json:"activePlayer"`
	You            string       `json:"you"`
	Hand           []Card       `json:"hand"`
	OpponentName   string       `json:"opponentName"`
	OpponentCount  int          `json:"opponentCount"`
	StockCount     int          `json:"stockCount"`
	DiscardCount   int          `json:"discardCount"`
	DiscardTopCard *Card        `json:"discardTopCard"` // Pointer so we can send nil when pile is empty
	YourScore      int          `json:"yourScore"`
	OpponentScore  int          `json:"opponentScore"`
	YourDeadwood   int          `json:"yourDeadwood"`
	TookDiscard    *int         `json:"tookDiscard,omitempty"` // Card you took from the pile this turn, if any
	LastResult     *RoundResult `json:"lastResult,omitempty"`
}

type SpectatorState struct {
	Phase          Phase        `json:"phase"`
	Round          int          `json:"round"`
	ActivePlayer   string       `json:"activePlayer"`
	Players        [2]string    `json:"players"`
	HandCounts     [2]int       `json:"handCounts"`
	StockCount     int          `json:"stockCount"`
	DiscardCount   int          `json:"discardCount"`
	DiscardTopCard *Card        `json:"discardTopCard"`
	Scores         [2]int       `json:"scores"`
	LastResult     *RoundResult `json:"lastResult,omitempty"`
}

// ClientState projects the game for one seat. The opponent's hand is reduced
// to a count; nothing here mutates the game, so it is safe to call for every
// viewer of the same session.
func (g *Game) ClientState(seat int) *ClientState {
	opponent := 1 - seat
	hand := g.HandCards(seat)

	var took *int
	if seat == g.Active && g.tookDiscard >= 0 {
		id := g.tookDiscard
		took = &id
	}

	return &ClientState{
		Phase:          g.Phase,
		Round:          g.Round,
		ActivePlayer:   g.Players[g.Active],
		You:            g.Players[seat],
		Hand:           hand,
		OpponentName:   g.Players[opponent],
		OpponentCount:  len(g.Hands[opponent]),
		StockCount:     g.Stock.Count(),
		DiscardCount:   len(g.DiscardPile),
		DiscardTopCard: g.discardTop(),
		YourScore:      g.Scores[seat],
		OpponentScore:  g.Scores[opponent],
		YourDeadwood:   DeadwoodCount(hand),
		TookDiscard:    took,
		LastResult:     g.LastResult,
	}
}

// SpectatorState is the fully reduced view for non-participants: both hands
// as counts only.
func (g *Game) SpectatorState() *SpectatorState {
	return &SpectatorState{
		Phase:          g.Phase,
		Round:          g.Round,
		ActivePlayer:   g.Players[g.Active],
		Players:        g.Players,
		HandCounts:     [2]int{len(g.Hands[0]), len(g.Hands[1])},
		StockCount:     g.Stock.Count(),
		DiscardCount:   len(g.DiscardPile),
		DiscardTopCard: g.discardTop(),
		Scores:         g.Scores,
		LastResult:     g.LastResult,
	}
}

func (g *Game) discardTop() *Card {
	if len(g.DiscardPile) == 0 {
		return nil
	}
	card := g.DiscardPile[len(g.DiscardPile)-1]
	return &card
}
