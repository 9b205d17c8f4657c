package game

import (
	"fmt"

	"github.com/lox/fairjack/internal/fairness"
)

// Transcript is everything a third party needs to re-run a round and
// check the dealer's honesty: both revealed seeds, both published
// commitments, the bets and the accepted-action log.
type Transcript struct {
	RoundID          string         `json:"roundId"`
	Bets             []int64        `json:"bets"`
	DealerSeed       string         `json:"dealerSeed"`
	PlayerSeed       string         `json:"playerSeed"`
	DealerCommitment string         `json:"dealerCommitment"`
	PlayerCommitment string         `json:"playerCommitment"`
	PlayerPubKey     string         `json:"playerPubKey"`
	Actions          []ActionRecord `json:"actions"`
}

// Transcript extracts the verification transcript from a settled round
func (r *Round) Transcript() (Transcript, error) {
	player, dealer, err := r.Reveal()
	if err != nil {
		return Transcript{}, err
	}
	return Transcript{
		RoundID:          r.id,
		Bets:             r.InitialBets(),
		DealerSeed:       dealer.String(),
		PlayerSeed:       player.String(),
		DealerCommitment: r.dealerCommit.String(),
		PlayerCommitment: r.playerCommit.String(),
		PlayerPubKey:     r.playerPubKey.String(),
		Actions:          r.Actions(),
	}, nil
}

// Replay re-runs a round from its transcript. Both seeds are checked
// against their published commitments first; a mismatch surfaces as a
// *fairness.CommitmentMismatchError, the detectable-fraud signal. The
// returned round is fully settled and its winnings can be compared with
// what the dealer paid out.
func Replay(tr Transcript, rules Rules, opts ...Option) (*Round, error) {
	dealerSeed, err := fairness.ParseSeed(tr.DealerSeed)
	if err != nil {
		return nil, err
	}
	playerSeed, err := fairness.ParseSeed(tr.PlayerSeed)
	if err != nil {
		return nil, err
	}
	dealerCommit, err := fairness.ParseCommitment(tr.DealerCommitment)
	if err != nil {
		return nil, err
	}
	playerCommit, err := fairness.ParseCommitment(tr.PlayerCommitment)
	if err != nil {
		return nil, err
	}
	pubkey, err := fairness.ParsePubKey(tr.PlayerPubKey)
	if err != nil {
		return nil, err
	}

	if err := fairness.Verify(dealerCommit, dealerSeed); err != nil {
		return nil, err
	}

	opts = append([]Option{WithRules(rules), WithDealerSeed(dealerSeed)}, opts...)
	r, err := NewRound(tr.RoundID, tr.Bets, nil, opts...)
	if err != nil {
		return nil, err
	}
	if err := r.RegisterCommitment(playerCommit, pubkey); err != nil {
		return nil, err
	}
	// Deal verifies the player seed against the registered commitment.
	if err := r.Deal(playerSeed); err != nil {
		return nil, err
	}

	for i, rec := range tr.Actions {
		if r.current != rec.Hand {
			return nil, fmt.Errorf("transcript action %d targets hand %d but hand %d is acting", i, rec.Hand, r.current)
		}
		if err := r.Apply(rec.Action, rec.Turn); err != nil {
			return nil, fmt.Errorf("transcript action %d (%s): %w", i, rec.Action, err)
		}
	}
	if r.Phase() != PhaseSettled {
		return nil, fmt.Errorf("transcript ends with round still %s", r.Phase())
	}
	return r, nil
}
