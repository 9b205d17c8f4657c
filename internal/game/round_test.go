package game

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/fairjack/internal/deck"
	"github.com/lox/fairjack/internal/fairness"
)

var (
	testDealerSeed = fairness.Seed{0x01, 0x02, 0x03, 0x04}
	testPlayerSeed = fairness.Seed{0x0a, 0x0b, 0x0c, 0x0d}
	testPubKey     = fairness.PubKey{0xff}
)

// dealtRound builds a round through commit and deal with a scripted deck.
// Card order: two dealer cards first, then two cards per player hand, then
// whatever the actions draw.
func dealtRound(t *testing.T, bets []int64, cards []deck.Card, opts ...Option) *Round {
	t.Helper()
	opts = append([]Option{
		WithDealerSeed(testDealerSeed),
		WithDeck(deck.Stacked(cards...)),
	}, opts...)
	r, err := NewRound("round-under-test", bets, nil, opts...)
	require.NoError(t, err)
	require.NoError(t, r.RegisterCommitment(fairness.Commit(testPlayerSeed), testPubKey))
	require.NoError(t, r.Deal(testPlayerSeed))
	return r
}

// standingDealer is a 17 the dealer stands on without drawing
func standingDealer() []deck.Card {
	return []deck.Card{card(deck.Hearts, deck.Ten), card(deck.Hearts, deck.Seven)}
}

func TestNewRoundRejectsBadBets(t *testing.T) {
	t.Parallel()
	_, err := NewRound("r", nil, fairness.Secure())
	assert.Error(t, err)
	_, err = NewRound("r", []int64{10, 0}, fairness.Secure())
	assert.Error(t, err)
	_, err = NewRound("r", []int64{10, -5}, fairness.Secure())
	assert.Error(t, err)
}

func TestDealRequiresCommitment(t *testing.T) {
	t.Parallel()
	r, err := NewRound("r", []int64{10}, fairness.Secure())
	require.NoError(t, err)
	require.Equal(t, PhaseCreated, r.Phase())

	err = r.Deal(testPlayerSeed)
	var phaseErr *PhaseError
	require.True(t, errors.As(err, &phaseErr), "deal before commit must be a phase error, got %v", err)
	assert.Equal(t, PhaseCreated, r.Phase(), "failed deal must not advance the round")

	require.NoError(t, r.RegisterCommitment(fairness.Commit(testPlayerSeed), testPubKey))
	assert.Equal(t, PhaseCommitted, r.Phase())

	err = r.RegisterCommitment(fairness.Commit(testPlayerSeed), testPubKey)
	assert.True(t, errors.As(err, &phaseErr), "double commit must be a phase error")
}

func TestDealDetectsCommitmentMismatch(t *testing.T) {
	t.Parallel()
	r, err := NewRound("r", []int64{10}, nil, WithDealerSeed(testDealerSeed))
	require.NoError(t, err)
	require.NoError(t, r.RegisterCommitment(fairness.Commit(testPlayerSeed), testPubKey))

	wrong := fairness.Seed{0xde, 0xad}
	err = r.Deal(wrong)
	var mismatch *fairness.CommitmentMismatchError
	require.True(t, errors.As(err, &mismatch), "expected commitment mismatch, got %v", err)
	assert.Equal(t, PhaseDisputed, r.Phase(), "mismatch must flag the round disputed")

	// A disputed round accepts nothing further.
	var phaseErr *PhaseError
	assert.True(t, errors.As(r.Deal(testPlayerSeed), &phaseErr))
	_, _, err = r.Reveal()
	assert.True(t, errors.As(err, &phaseErr))
}

func TestDealOrderAndInitialState(t *testing.T) {
	t.Parallel()
	r := dealtRound(t, []int64{10, 20}, []deck.Card{
		card(deck.Hearts, deck.Ten), card(deck.Hearts, deck.Seven), // dealer
		card(deck.Spades, deck.Eight), card(deck.Diamonds, deck.Nine), // hand 0
		card(deck.Clubs, deck.Five), card(deck.Clubs, deck.Six), // hand 1
	})

	require.Equal(t, PhasePlaying, r.Phase())
	hands := r.PlayerHands()
	require.Len(t, hands, 2)
	assert.Equal(t, "8♠ 9♦", hands[0].String())
	assert.Equal(t, "5♣ 6♣", hands[1].String())
	assert.Equal(t, []bool{true, true}, r.ActiveMask())
	assert.Equal(t, []int64{10, 20}, r.Bets())
	assert.Equal(t, 0, r.CurrentHand())
	assert.Equal(t, uint64(0), r.Turn())

	// Hole card withheld while hands act.
	visible := r.DealerVisible()
	require.Len(t, visible, 1)
	assert.Equal(t, card(deck.Hearts, deck.Ten), visible[0])
}

// Scenario: hand A♥ T♣ is a natural 21; for an active two-card hand the
// legal set allows double but not split (ranks differ).
func TestLegalActionsNaturalTwentyOne(t *testing.T) {
	t.Parallel()
	r := &Round{
		phase:     PhasePlaying,
		rules:     DefaultRules(),
		hands:     []Hand{{card(deck.Hearts, deck.Ace), card(deck.Clubs, deck.Ten)}},
		active:    []bool{true},
		statuses:  []HandStatus{StatusActive},
		bets:      []int64{10},
		fromSplit: []bool{false},
	}

	require.Equal(t, 21, r.hands[0].BestTotal())
	require.True(t, r.hands[0].IsBlackjack())

	legal := r.LegalActions()
	assert.True(t, legal.Hit, "hard total 11 still allows a hit")
	assert.True(t, legal.Stand)
	assert.True(t, legal.Double)
	assert.False(t, legal.Split, "A and T are different ranks")
}

func TestLegalActionsInactiveHand(t *testing.T) {
	t.Parallel()
	r := &Round{
		phase:     PhasePlaying,
		rules:     DefaultRules(),
		hands:     []Hand{{card(deck.Hearts, deck.Five), card(deck.Clubs, deck.Five)}},
		active:    []bool{false},
		statuses:  []HandStatus{StatusStanding},
		bets:      []int64{10},
		fromSplit: []bool{false},
	}
	assert.Equal(t, Legal{}, r.LegalActions(), "inactive hand gets no actions")
}

// Scenario: 8♠ 9♦ hits a 7♣ for a hard 24 and busts.
func TestHitBusts(t *testing.T) {
	t.Parallel()
	r := dealtRound(t, []int64{10}, []deck.Card{
		card(deck.Hearts, deck.Ten), card(deck.Hearts, deck.Seven),
		card(deck.Spades, deck.Eight), card(deck.Diamonds, deck.Nine),
		card(deck.Clubs, deck.Seven), // the hit
	})

	require.NoError(t, r.Apply(Hit, 0))

	hands := r.PlayerHands()
	assert.Equal(t, 24, hands[0].HardTotal())
	assert.Equal(t, []bool{false}, r.ActiveMask())
	assert.Equal(t, StatusBusted, r.statuses[0])
	assert.Equal(t, PhaseSettled, r.Phase(), "lone hand busting ends the round")
	assert.Equal(t, []int64{0}, r.Winnings(), "a bust always loses")
}

func TestHitBelowTwentyOneStaysActive(t *testing.T) {
	t.Parallel()
	r := dealtRound(t, []int64{10}, []deck.Card{
		card(deck.Hearts, deck.Ten), card(deck.Hearts, deck.Seven),
		card(deck.Spades, deck.Eight), card(deck.Diamonds, deck.Nine),
		card(deck.Clubs, deck.Two),
	})

	require.NoError(t, r.Apply(Hit, 0))
	assert.Equal(t, []bool{true}, r.ActiveMask())
	assert.Equal(t, PhasePlaying, r.Phase())
	assert.Equal(t, uint64(1), r.Turn())
}

func TestStandAdvancesToNextHand(t *testing.T) {
	t.Parallel()
	r := dealtRound(t, []int64{10, 10}, []deck.Card{
		card(deck.Hearts, deck.Ten), card(deck.Hearts, deck.Seven),
		card(deck.Spades, deck.Eight), card(deck.Diamonds, deck.Nine), // 17
		card(deck.Clubs, deck.Ten), card(deck.Clubs, deck.Nine), // 19
	})

	require.NoError(t, r.Apply(Stand, 0))
	assert.Equal(t, 1, r.CurrentHand())
	assert.Equal(t, []bool{false, true}, r.ActiveMask())

	require.NoError(t, r.Apply(Stand, 1))
	assert.Equal(t, PhaseSettled, r.Phase())
	// Dealer stands on 17: hand 0 pushes, hand 1 wins.
	assert.Equal(t, []int64{10, 20}, r.Winnings())
}

func TestDoubleDrawsOneCardAndStands(t *testing.T) {
	t.Parallel()
	r := dealtRound(t, []int64{10}, []deck.Card{
		card(deck.Hearts, deck.Ten), card(deck.Hearts, deck.Seven),
		card(deck.Clubs, deck.Five), card(deck.Diamonds, deck.Six), // 11
		card(deck.Spades, deck.Ten), // the double card -> 21
	})

	require.NoError(t, r.Apply(Double, 0))

	assert.Equal(t, StatusDoubledStanding, r.statuses[0])
	assert.Equal(t, []int64{20}, r.Bets(), "bet doubles")
	assert.Len(t, r.PlayerHands()[0], 3)
	assert.Equal(t, PhaseSettled, r.Phase())
	assert.Equal(t, []int64{40}, r.Winnings(), "21 beats dealer 17 at the doubled bet")
}

func TestDoubleRequiresTwoCards(t *testing.T) {
	t.Parallel()
	r := dealtRound(t, []int64{10}, []deck.Card{
		card(deck.Hearts, deck.Ten), card(deck.Hearts, deck.Seven),
		card(deck.Clubs, deck.Two), card(deck.Diamonds, deck.Three),
		card(deck.Spades, deck.Two),
	})
	require.NoError(t, r.Apply(Hit, 0))

	err := r.Apply(Double, 1)
	var illegal *IllegalActionError
	require.True(t, errors.As(err, &illegal))
	assert.Equal(t, []int64{10}, r.Bets(), "rejected double must not touch the bet")
}

// Scenario: a pair of fours splits into two active hands, each drawing one
// card, with the bet duplicated and play staying on the first sub-hand.
func TestSplit(t *testing.T) {
	t.Parallel()
	r := dealtRound(t, []int64{10}, []deck.Card{
		card(deck.Hearts, deck.Ten), card(deck.Hearts, deck.Seven),
		card(deck.Clubs, deck.Four), card(deck.Hearts, deck.Four),
		card(deck.Spades, deck.Nine), // first sub-hand's card
		card(deck.Diamonds, deck.Eight), // second sub-hand's card
	})

	require.True(t, r.LegalActions().Split)
	require.NoError(t, r.Apply(Split, 0))

	hands := r.PlayerHands()
	require.Len(t, hands, 2)
	assert.Equal(t, "4♣ 9♠", hands[0].String(), "first sub-hand keeps the original index and draws first")
	assert.Equal(t, "4♥ 8♦", hands[1].String(), "second sub-hand inserted immediately after")
	assert.Equal(t, []bool{true, true}, r.ActiveMask())
	assert.Equal(t, []int64{10, 10}, r.Bets(), "bet duplicated for the new hand")
	assert.Equal(t, 0, r.CurrentHand(), "play stays on the first sub-hand")
	assert.Equal(t, PhasePlaying, r.Phase())
}

func TestSplitRequiresEqualRanks(t *testing.T) {
	t.Parallel()
	r := dealtRound(t, []int64{10}, []deck.Card{
		card(deck.Hearts, deck.Ten), card(deck.Hearts, deck.Seven),
		card(deck.Clubs, deck.King), card(deck.Hearts, deck.Queen), // both ten-value, different ranks
	})
	assert.False(t, r.LegalActions().Split, "equal value is not equal rank")

	err := r.Apply(Split, 0)
	var illegal *IllegalActionError
	assert.True(t, errors.As(err, &illegal))
}

func TestSplitHandCap(t *testing.T) {
	t.Parallel()
	cards := []deck.Card{
		card(deck.Hearts, deck.Ten), card(deck.Hearts, deck.Seven),
		card(deck.Clubs, deck.Eight), card(deck.Hearts, deck.Eight),
		card(deck.Diamonds, deck.Eight), card(deck.Spades, deck.Eight), // split draws: another pair each
	}
	r := dealtRound(t, []int64{10}, cards, WithRules(Rules{MaxHands: 2}))

	require.NoError(t, r.Apply(Split, 0))
	// First sub-hand is 8♣ 8♦, a pair, but the table caps at two hands.
	assert.False(t, r.LegalActions().Split)

	err := r.Apply(Split, 1)
	var illegal *IllegalActionError
	assert.True(t, errors.As(err, &illegal))
}

func TestNoResplitRule(t *testing.T) {
	t.Parallel()
	cards := []deck.Card{
		card(deck.Hearts, deck.Ten), card(deck.Hearts, deck.Seven),
		card(deck.Clubs, deck.Eight), card(deck.Hearts, deck.Eight),
		card(deck.Diamonds, deck.Eight), card(deck.Spades, deck.Eight),
	}
	r := dealtRound(t, []int64{10}, cards, WithRules(Rules{MaxHands: 4, NoResplit: true}))

	require.NoError(t, r.Apply(Split, 0))
	assert.False(t, r.LegalActions().Split, "split hands may not re-split on this table")
}

func TestStaleActionRejected(t *testing.T) {
	t.Parallel()
	r := dealtRound(t, []int64{10}, []deck.Card{
		card(deck.Hearts, deck.Ten), card(deck.Hearts, deck.Seven),
		card(deck.Spades, deck.Eight), card(deck.Diamonds, deck.Nine),
		card(deck.Clubs, deck.Two),
	})

	require.NoError(t, r.Apply(Hit, 0))

	// Replaying the same turn is stale, as is skipping ahead.
	for _, turn := range []uint64{0, 2, 99} {
		err := r.Apply(Stand, turn)
		var stale *StaleActionError
		require.True(t, errors.As(err, &stale), "turn %d should be stale, got %v", turn, err)
		assert.Equal(t, uint64(1), stale.Turn)
		assert.Equal(t, turn, stale.Got)
	}
	assert.Equal(t, uint64(1), r.Turn(), "rejections must not advance the counter")
}

func TestIllegalActionIdempotent(t *testing.T) {
	t.Parallel()
	r := dealtRound(t, []int64{10}, []deck.Card{
		card(deck.Hearts, deck.Ten), card(deck.Hearts, deck.Seven),
		card(deck.Spades, deck.Eight), card(deck.Diamonds, deck.Nine),
	})

	before := r.Snapshot()
	var first, second *IllegalActionError
	require.True(t, errors.As(r.Apply(Split, 0), &first))
	require.True(t, errors.As(r.Apply(Split, 0), &second))
	assert.Equal(t, first.Error(), second.Error(), "same rejection both times")
	assert.Equal(t, before, r.Snapshot(), "rejected actions never mutate state")
}

func TestPlayerNaturalPaysThreeToTwo(t *testing.T) {
	t.Parallel()
	r := dealtRound(t, []int64{10}, []deck.Card{
		card(deck.Hearts, deck.Ten), card(deck.Hearts, deck.Seven),
		card(deck.Clubs, deck.Ace), card(deck.Clubs, deck.King),
	})

	// Natural stands immediately; with no hand left to act the dealer
	// plays out and the round settles without any submitted action.
	assert.Equal(t, PhaseSettled, r.Phase())
	assert.Equal(t, []int64{25}, r.Winnings(), "10 at 3:2 returns 25")
}

func TestDealerNaturalEndsRoundAtDeal(t *testing.T) {
	t.Parallel()
	r := dealtRound(t, []int64{10, 10}, []deck.Card{
		card(deck.Hearts, deck.Ace), card(deck.Hearts, deck.King), // dealer natural
		card(deck.Clubs, deck.Ace), card(deck.Clubs, deck.Queen), // player natural
		card(deck.Spades, deck.Nine), card(deck.Diamonds, deck.Nine),
	})

	assert.Equal(t, PhaseSettled, r.Phase())
	assert.Equal(t, []int64{10, 0}, r.Winnings(), "player natural pushes, the rest lose")
	assert.Equal(t, Legal{}, r.LegalActions())
}

func TestDealerDrawsToSeventeen(t *testing.T) {
	t.Parallel()
	r := dealtRound(t, []int64{10}, []deck.Card{
		card(deck.Hearts, deck.Ten), card(deck.Hearts, deck.Two), // dealer 12
		card(deck.Spades, deck.Ten), card(deck.Diamonds, deck.Nine), // player 19
		card(deck.Clubs, deck.Five), // dealer draws to 17
	})

	require.NoError(t, r.Apply(Stand, 0))
	assert.Equal(t, 17, r.DealerHand().BestTotal())
	assert.Equal(t, []int64{20}, r.Winnings(), "19 beats 17")
}

func TestDealerStandsOnSoftSeventeenByDefault(t *testing.T) {
	t.Parallel()
	cards := []deck.Card{
		card(deck.Hearts, deck.Ace), card(deck.Hearts, deck.Six), // soft 17
		card(deck.Spades, deck.Ten), card(deck.Diamonds, deck.Eight),
		card(deck.Clubs, deck.Four),
	}

	r := dealtRound(t, []int64{10}, cards)
	require.NoError(t, r.Apply(Stand, 0))
	assert.Len(t, r.DealerHand(), 2, "default table stands on soft 17")
	assert.Equal(t, []int64{20}, r.Winnings(), "18 beats 17")

	hits := dealtRound(t, []int64{10}, cards, WithRules(Rules{MaxHands: 4, DealerHitsSoft17: true}))
	require.NoError(t, hits.Apply(Stand, 0))
	assert.Len(t, hits.DealerHand(), 3, "H17 table draws on soft 17")
	assert.Equal(t, 21, hits.DealerHand().BestTotal())
}

func TestDealerBustPaysRemainingHands(t *testing.T) {
	t.Parallel()
	r := dealtRound(t, []int64{10}, []deck.Card{
		card(deck.Hearts, deck.Ten), card(deck.Hearts, deck.Six), // dealer 16
		card(deck.Spades, deck.Ten), card(deck.Diamonds, deck.Two), // player 12
		card(deck.Clubs, deck.King), // dealer draws to 26
	})

	require.NoError(t, r.Apply(Stand, 0))
	assert.True(t, r.DealerHand().IsBusted())
	assert.Equal(t, []int64{20}, r.Winnings())
}

func TestRevealOnlyAfterSettlement(t *testing.T) {
	t.Parallel()
	r := dealtRound(t, []int64{10}, []deck.Card{
		card(deck.Hearts, deck.Ten), card(deck.Hearts, deck.Seven),
		card(deck.Spades, deck.Eight), card(deck.Diamonds, deck.Nine),
	})

	_, _, err := r.Reveal()
	var phaseErr *PhaseError
	require.True(t, errors.As(err, &phaseErr), "reveal mid-round must fail")

	require.NoError(t, r.Apply(Stand, 0))
	player, dealer, err := r.Reveal()
	require.NoError(t, err)
	assert.Equal(t, testPlayerSeed, player)
	assert.Equal(t, testDealerSeed, dealer)

	// Anyone can now confirm the commitments.
	assert.NoError(t, fairness.Verify(r.DealerCommitment(), dealer))
	assert.NoError(t, fairness.Verify(r.PlayerCommitment(), player))
}

func TestApplyIntentViewChecks(t *testing.T) {
	t.Parallel()
	r := dealtRound(t, []int64{10}, []deck.Card{
		card(deck.Hearts, deck.Ten), card(deck.Hearts, deck.Seven),
		card(deck.Spades, deck.Eight), card(deck.Diamonds, deck.Nine),
		card(deck.Clubs, deck.Two),
	})

	good := Intent{
		Action:      Hit,
		Turn:        0,
		Hand:        0,
		HandCards:   []deck.Card{card(deck.Spades, deck.Eight), card(deck.Diamonds, deck.Nine)},
		DealerCards: []deck.Card{card(deck.Hearts, deck.Ten)},
	}

	var illegal *IllegalActionError

	wrongHand := good
	wrongHand.Hand = 1
	require.True(t, errors.As(r.ApplyIntent(wrongHand), &illegal))

	staleView := good
	staleView.HandCards = []deck.Card{card(deck.Spades, deck.Eight)}
	require.True(t, errors.As(r.ApplyIntent(staleView), &illegal))

	staleDealer := good
	staleDealer.DealerCards = []deck.Card{card(deck.Hearts, deck.Seven)}
	require.True(t, errors.As(r.ApplyIntent(staleDealer), &illegal))

	require.NoError(t, r.ApplyIntent(good))
	assert.Equal(t, uint64(1), r.Turn())
}

func TestSnapshotMasksHoleCard(t *testing.T) {
	t.Parallel()
	r := dealtRound(t, []int64{10}, []deck.Card{
		card(deck.Hearts, deck.Ten), card(deck.Hearts, deck.Seven),
		card(deck.Spades, deck.Eight), card(deck.Diamonds, deck.Nine),
	})

	snap := r.Snapshot()
	assert.Equal(t, "playing", snap.Phase)
	assert.True(t, snap.HoleCardHidden)
	require.Len(t, snap.Dealer, 1)
	assert.Nil(t, snap.Winnings, "winnings hidden until settled")
	assert.True(t, snap.Legal.Stand)

	require.NoError(t, r.Apply(Stand, 0))
	snap = r.Snapshot()
	assert.Equal(t, "settled", snap.Phase)
	assert.False(t, snap.HoleCardHidden)
	assert.Len(t, snap.Dealer, 2)
	assert.Equal(t, []int64{10}, snap.Winnings, "17 pushes 17")
}

func TestActionLog(t *testing.T) {
	t.Parallel()
	r := dealtRound(t, []int64{10}, []deck.Card{
		card(deck.Hearts, deck.Ten), card(deck.Hearts, deck.Seven),
		card(deck.Clubs, deck.Four), card(deck.Hearts, deck.Four),
		card(deck.Spades, deck.Nine), card(deck.Diamonds, deck.Eight),
	})

	require.NoError(t, r.Apply(Split, 0))
	require.NoError(t, r.Apply(Stand, 1))
	require.NoError(t, r.Apply(Stand, 2))

	assert.Equal(t, []ActionRecord{
		{Turn: 0, Hand: 0, Action: Split},
		{Turn: 1, Hand: 0, Action: Stand},
		{Turn: 2, Hand: 1, Action: Stand},
	}, r.Actions())
}
