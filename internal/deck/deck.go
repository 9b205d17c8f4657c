package deck

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	rand "math/rand/v2"
)

// Size is the number of cards in a single deck
const Size = 52

// ErrExhausted is returned when drawing from an empty deck. A single round
// of blackjack cannot consume 52 cards, so hitting this means the deck was
// misused.
var ErrExhausted = errors.New("deck: exhausted")

// Deck is an ordered 52-card deck. Cards are drawn from the front without
// replacement.
type Deck struct {
	cards [Size]Card
	next  int
}

// Derive builds a deterministically shuffled deck from seed material.
// The material is hashed with SHA-256 and the digest seeds a PCG that
// drives a Fisher-Yates shuffle, so identical material always yields an
// identical card order. This is what makes the post-round fairness check
// possible: anyone holding both revealed seeds can recompute the deck.
func Derive(material []byte) *Deck {
	digest := sha256.Sum256(material)
	rng := rand.New(rand.NewPCG(
		binary.BigEndian.Uint64(digest[0:8]),
		binary.BigEndian.Uint64(digest[8:16]),
	))

	d := &Deck{}
	i := 0
	for suit := Hearts; suit <= Spades; suit++ {
		for rank := Ace; rank <= King; rank++ {
			d.cards[i] = NewCard(suit, rank)
			i++
		}
	}
	for i := len(d.cards) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
	return d
}

// Stacked builds a deck with an explicit card order, for deterministic
// tests and transcripts. The remaining slots are left zero-valued and
// drawing past the stacked cards returns ErrExhausted.
func Stacked(cards ...Card) *Deck {
	d := &Deck{next: Size - len(cards)}
	copy(d.cards[d.next:], cards)
	return d
}

// Draw removes and returns the next card
func (d *Deck) Draw() (Card, error) {
	if d.next >= len(d.cards) {
		return Card{}, ErrExhausted
	}
	card := d.cards[d.next]
	d.next++
	return card, nil
}

// Remaining returns the number of cards left
func (d *Deck) Remaining() int {
	return len(d.cards) - d.next
}

// Cards returns a copy of the full card order, drawn and undrawn. Used by
// the fairness verifier to publish the recomputed permutation.
func (d *Deck) Cards() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards[:])
	return out
}
