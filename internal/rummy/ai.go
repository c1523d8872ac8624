package rummy

// MoveSelector chooses the next move for an automated participant. It only
// sees the participant's own projection, the same information a human client
// gets, so a selector can never act on hidden state.
type MoveSelector interface {
	SelectMove(view *ClientState) ProposedMove
}

// GreedySelector plays the obvious deadwood-minimizing line: take the
// discard when it strictly improves the hand, knock as soon as the limit
// allows, otherwise shed the most expensive deadwood.
type GreedySelector struct{}

func (GreedySelector) SelectMove(view *ClientState) ProposedMove {
	switch view.Phase {
	case PhaseAwaitingDraw:
		if view.DiscardTopCard != nil && takeImproves(view.Hand, *view.DiscardTopCard) {
			return ProposedMove{Type: MoveTakeDiscard}
		}
		return ProposedMove{Type: MoveDrawFromStock}

	case PhaseAwaitingDiscard:
		discard, remaining := bestDiscard(view.Hand, view.TookDiscard)
		if remaining <= KnockLimit {
			return ProposedMove{Type: MoveKnock, CardID: discard}
		}
		return ProposedMove{Type: MoveDiscardCard, CardID: discard}

	default:
		return ProposedMove{Type: MoveStartNextRound}
	}
}

func takeImproves(hand []Card, top Card) bool {
	current := DeadwoodCount(hand)
	taken := append(append([]Card(nil), hand...), top)
	topID := top.GetId()
	_, after := bestDiscard(taken, &topID)
	return after < current
}

// bestDiscard returns the card id whose removal leaves the least deadwood,
// never the card just taken from the pile, plus the resulting count.
func bestDiscard(hand []Card, forbidden *int) (int, int) {
	bestID := -1
	bestCount := 0
	for _, candidate := range hand {
		if forbidden != nil && candidate.GetId() == *forbidden {
			continue
		}
		kept := make([]Card, 0, len(hand)-1)
		for _, c := range hand {
			if c.GetId() != candidate.GetId() {
				kept = append(kept, c)
			}
		}
		count := DeadwoodCount(kept)
		if bestID == -1 || count < bestCount {
			bestID = candidate.GetId()
			bestCount = count
		}
	}
	return bestID, bestCount
}
