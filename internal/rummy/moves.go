package rummy

type MoveType string

const (
	// Draw phase
	MoveDrawFromStock MoveType = "draw_from_stock"
	MoveTakeDiscard   MoveType = "take_discard"

	// Discard phase
	MoveDiscardCard MoveType = "discard_card"
	MoveKnock       MoveType = "knock"

	// Between rounds
	MoveStartNextRound MoveType = "start_next_round"
)

// ProposedMove is a bare action against the state machine, before the
// transport layer attaches idempotency and versioning.
type ProposedMove struct {
	Type   MoveType `json:"type"`
	CardID int      `json:"cardId"`
}
