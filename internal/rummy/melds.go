package rummy

import (
	"slices"
	"sort"
)

type MeldKind string

const (
	MeldSet MeldKind = "set"
	MeldRun MeldKind = "run"
)

type Meld struct {
	Kind  MeldKind `json:"kind"`
	Cards []Card   `json:"cards"`
}

// candidateMelds enumerates every set (3-4 of a rank) and every run (3+
// consecutive ranks in one suit) that can be formed from cards. Overlapping
// candidates are fine; the partition search picks a disjoint subset.
func candidateMelds(cards []Card) []Meld {
	var melds []Meld

	// Sets
	byRank := make(map[Rank][]Card)
	for _, c := range cards {
		byRank[c.Rank] = append(byRank[c.Rank], c)
	}
	for _, group := range byRank {
		if len(group) < 3 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].Suit < group[j].Suit })
		if len(group) == 4 {
			melds = append(melds, Meld{Kind: MeldSet, Cards: slices.Clone(group)})
			// All four 3-card subsets
			for skip := range group {
				sub := make([]Card, 0, 3)
				for i, c := range group {
					if i != skip {
						sub = append(sub, c)
					}
				}
				melds = append(melds, Meld{Kind: MeldSet, Cards: sub})
			}
		} else {
			melds = append(melds, Meld{Kind: MeldSet, Cards: slices.Clone(group)})
		}
	}

	// Runs
	bySuit := make(map[Suit][]Card)
	for _, c := range cards {
		bySuit[c.Suit] = append(bySuit[c.Suit], c)
	}
	for _, group := range bySuit {
		sort.Slice(group, func(i, j int) bool { return group[i].Rank < group[j].Rank })
		for start := 0; start < len(group); start++ {
			run := []Card{group[start]}
			for next := start + 1; next < len(group); next++ {
				if group[next].Rank != run[len(run)-1].Rank+1 {
					break
				}
				run = append(run, group[next])
				if len(run) >= 3 {
					melds = append(melds, Meld{Kind: MeldRun, Cards: slices.Clone(run)})
				}
			}
		}
	}

	return melds
}

func meldMask(m Meld) uint64 {
	var mask uint64
	for _, c := range m.Cards {
		mask |= 1 << uint(c.GetId())
	}
	return mask
}

// BestMelds finds the disjoint meld combination that minimizes deadwood and
// returns it together with the leftover cards. Hands never exceed eleven
// cards, so the exhaustive search is cheap.
func BestMelds(cards []Card) ([]Meld, []Card) {
	candidates := candidateMelds(cards)
	masks := make([]uint64, len(candidates))
	for i, m := range candidates {
		masks[i] = meldMask(m)
	}

	bestValue := deadwoodSum(cards)
	var bestUsed uint64
	var bestMelds []Meld

	var search func(idx int, used uint64, chosen []Meld)
	search = func(idx int, used uint64, chosen []Meld) {
		remaining := 0
		for _, c := range cards {
			if used&(1<<uint(c.GetId())) == 0 {
				remaining += c.DeadwoodValue()
			}
		}
		if remaining < bestValue {
			bestValue = remaining
			bestUsed = used
			bestMelds = slices.Clone(chosen)
		}
		for i := idx; i < len(candidates); i++ {
			if masks[i]&used != 0 {
				continue
			}
			search(i+1, used|masks[i], append(chosen, candidates[i]))
		}
	}
	search(0, 0, nil)

	var deadwood []Card
	for _, c := range cards {
		if bestUsed&(1<<uint(c.GetId())) == 0 {
			deadwood = append(deadwood, c)
		}
	}
	return bestMelds, deadwood
}

// DeadwoodCount is the minimal deadwood total for a hand.
func DeadwoodCount(cards []Card) int {
	_, deadwood := BestMelds(cards)
	return deadwoodSum(deadwood)
}

func deadwoodSum(cards []Card) int {
	total := 0
	for _, c := range cards {
		total += c.DeadwoodValue()
	}
	return total
}

// layOff moves every defender deadwood card that extends one of the
// knocker's melds onto that meld, repeating until nothing fits. Returns the
// cards laid off and the deadwood that remains with the defender.
func layOff(deadwood []Card, knockerMelds []Meld) (laid []Card, remaining []Card) {
	melds := make([]Meld, len(knockerMelds))
	for i, m := range knockerMelds {
		melds[i] = Meld{Kind: m.Kind, Cards: slices.Clone(m.Cards)}
	}
	remaining = slices.Clone(deadwood)

	for {
		moved := false
		for i := 0; i < len(remaining); i++ {
			card := remaining[i]
			for mi := range melds {
				if !extendsMeld(card, melds[mi]) {
					continue
				}
				melds[mi].Cards = append(melds[mi].Cards, card)
				sortRun(&melds[mi])
				laid = append(laid, card)
				remaining = slices.Delete(remaining, i, i+1)
				i--
				moved = true
				break
			}
		}
		if !moved {
			return laid, remaining
		}
	}
}

func extendsMeld(card Card, m Meld) bool {
	if m.Kind == MeldSet {
		return len(m.Cards) < 4 && card.Rank == m.Cards[0].Rank
	}
	low := m.Cards[0]
	high := m.Cards[len(m.Cards)-1]
	if card.Suit != low.Suit {
		return false
	}
	return (low.Rank > Ace && card.Rank == low.Rank-1) ||
		(high.Rank < King && card.Rank == high.Rank+1)
}

func sortRun(m *Meld) {
	if m.Kind == MeldRun {
		sort.Slice(m.Cards, func(i, j int) bool { return m.Cards[i].Rank < m.Cards[j].Rank })
	}
}
