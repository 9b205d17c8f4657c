package game

import (
	"github.com/lox/fairjack/internal/deck"
)

// Snapshot is the caller-facing view of a round. The dealer's hole card
// is withheld while player hands are still acting, per standard blackjack
// convention; everything else is the live state plus the legal-action set
// the caller needs to choose its next move.
type Snapshot struct {
	RoundID          string        `json:"roundId"`
	Phase            string        `json:"phase"`
	Turn             uint64        `json:"turn"`
	DealerCommitment string        `json:"dealerCommitment"`
	Dealer           []deck.Card   `json:"dealer"`
	HoleCardHidden   bool          `json:"holeCardHidden"`
	Hands            [][]deck.Card `json:"hands"`
	Active           []bool        `json:"active"`
	Statuses         []string      `json:"statuses"`
	Bets             []int64       `json:"bets"`
	Winnings         []int64       `json:"winnings,omitempty"`
	CurrentHand      int           `json:"currentHand"`
	Legal            Legal         `json:"legal"`
}

// Snapshot builds the current caller-facing view
func (r *Round) Snapshot() Snapshot {
	s := Snapshot{
		RoundID:          r.id,
		Phase:            r.phase.String(),
		Turn:             r.turn,
		DealerCommitment: r.dealerCommit.String(),
		Dealer:           r.DealerVisible(),
		HoleCardHidden:   r.phase == PhasePlaying && len(r.dealer) > 1,
		Hands:            make([][]deck.Card, len(r.hands)),
		Active:           r.ActiveMask(),
		Statuses:         make([]string, len(r.statuses)),
		Bets:             r.Bets(),
		CurrentHand:      r.current,
		Legal:            r.LegalActions(),
	}
	for i, h := range r.hands {
		s.Hands[i] = h.Clone()
	}
	for i, st := range r.statuses {
		s.Statuses[i] = st.String()
	}
	if r.phase == PhaseSettled {
		s.Winnings = r.Winnings()
	}
	return s
}
