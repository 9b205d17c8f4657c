package game

import "fmt"

// Rules holds the configurable table rules. The defaults mirror the
// protocol's reference tables: split up to four hands, dealer stands on
// soft 17, naturals pay 3:2.
type Rules struct {
	// MaxHands caps how many hands a player can hold after splits.
	// Splitting is refused once the cap is reached.
	MaxHands int
	// NoResplit forbids splitting a hand that was itself produced by a
	// split, regardless of MaxHands.
	NoResplit bool
	// DealerHitsSoft17 makes the dealer draw on a soft 17 instead of
	// standing.
	DealerHitsSoft17 bool
}

// DefaultRules returns the reference table rules
func DefaultRules() Rules {
	return Rules{
		MaxHands:         4,
		NoResplit:        false,
		DealerHitsSoft17: false,
	}
}

// Validate checks that the rules are playable
func (r Rules) Validate() error {
	if r.MaxHands < 1 {
		return fmt.Errorf("rules: max hands must be at least 1, got %d", r.MaxHands)
	}
	return nil
}
