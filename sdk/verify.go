package sdk

import (
	"fmt"

	"github.com/lox/fairjack/internal/fairness"
	"github.com/lox/fairjack/internal/game"
)

// Verify checks a revealed transcript against what this client witnessed
// during the round, then replays it. It fails if the dealer swapped its
// commitment after the fact, if the transcript does not carry our own seed,
// or if the replayed round does not reach the same settlement. A
// *fairness.CommitmentMismatchError from inside the replay is the signal
// that the dealer's revealed seed does not hash to the commitment it
// published before dealing.
func Verify(tr game.Transcript, round *Round, rules game.Rules) (*game.Round, error) {
	if tr.RoundID != round.ID {
		return nil, fmt.Errorf("transcript is for round %s, not %s", tr.RoundID, round.ID)
	}

	dealerCommit, err := fairness.ParseCommitment(tr.DealerCommitment)
	if err != nil {
		return nil, fmt.Errorf("bad dealer commitment: %w", err)
	}
	if dealerCommit != round.DealerCommitment {
		return nil, &fairness.CommitmentMismatchError{
			Want: round.DealerCommitment,
			Got:  dealerCommit,
		}
	}

	playerSeed, err := fairness.ParseSeed(tr.PlayerSeed)
	if err != nil {
		return nil, fmt.Errorf("bad player seed: %w", err)
	}
	if playerSeed != round.PlayerSeed {
		return nil, fmt.Errorf("transcript player seed %s is not the seed this client revealed", tr.PlayerSeed)
	}

	return game.Replay(tr, rules)
}
