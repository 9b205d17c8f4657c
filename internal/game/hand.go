package game

import (
	"strings"

	"github.com/lox/fairjack/internal/deck"
)

// Hand is an ordered sequence of cards belonging to one party
type Hand []deck.Card

// Add appends a card to the hand
func (h *Hand) Add(c deck.Card) {
	*h = append(*h, c)
}

// Clone returns an independent copy of the hand
func (h Hand) Clone() Hand {
	out := make(Hand, len(h))
	copy(out, h)
	return out
}

// HardTotal is the sum of card values with every ace counted as 1. It is
// the total that decides bust and hit eligibility.
func (h Hand) HardTotal() int {
	sum := 0
	for _, c := range h {
		sum += c.Value()
	}
	return sum
}

// BestTotal is the blackjack-optimal score: the hard total, plus 10 if the
// hand holds an ace and the upgrade does not bust. At most one ace is ever
// promoted; a second promotion would always exceed 21.
func (h Hand) BestTotal() int {
	sum := h.HardTotal()
	if h.hasAce() && sum+10 <= 21 {
		sum += 10
	}
	return sum
}

// IsSoft reports whether the best total relies on an ace counted as 11
func (h Hand) IsSoft() bool {
	return h.BestTotal() != h.HardTotal()
}

// IsBusted reports whether the hand is past 21 even with every ace as 1
func (h Hand) IsBusted() bool {
	return h.HardTotal() > 21
}

// IsBlackjack reports whether the hand is a two-card 21 (ace plus a
// ten-value card). A natural is terminal for the hand and outranks a 21
// reached on three or more cards. Whether a post-split two-card 21 counts
// is the round's concern, not the hand's.
func (h Hand) IsBlackjack() bool {
	return len(h) == 2 && h.BestTotal() == 21
}

func (h Hand) hasAce() bool {
	for _, c := range h {
		if c.IsAce() {
			return true
		}
	}
	return false
}

// String returns the hand as space-separated cards (e.g., "A♠ T♥")
func (h Hand) String() string {
	if len(h) == 0 {
		return "(empty)"
	}
	parts := make([]string, len(h))
	for i, c := range h {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}
