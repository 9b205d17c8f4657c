package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/lox/fairjack/cmd/fairjack/shared"
	"github.com/lox/fairjack/internal/fairness"
	"github.com/lox/fairjack/internal/game"
)

// VerifyCmd replays a transcript and reports whether the round was dealt
// and settled honestly
type VerifyCmd struct {
	Transcript       string `kong:"arg,help='Transcript JSON file, or - for stdin'"`
	MaxHands         int    `kong:"default='4',help='Table rule: maximum hands after splitting'"`
	NoResplit        bool   `kong:"help='Table rule: split pairs cannot be split again'"`
	DealerHitsSoft17 bool   `kong:"help='Table rule: dealer hits soft 17'"`
	Debug            bool   `kong:"help='Enable debug logging'"`
}

func (c *VerifyCmd) Run() error {
	logger := shared.SetupLogger(c.Debug)

	var (
		raw []byte
		err error
	)
	if c.Transcript == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(c.Transcript)
	}
	if err != nil {
		return err
	}

	var transcript game.Transcript
	if err := json.Unmarshal(raw, &transcript); err != nil {
		return fmt.Errorf("parsing transcript: %w", err)
	}

	rules := game.Rules{
		MaxHands:         c.MaxHands,
		NoResplit:        c.NoResplit,
		DealerHitsSoft17: c.DealerHitsSoft17,
	}

	round, err := game.Replay(transcript, rules)
	if err != nil {
		var mismatch *fairness.CommitmentMismatchError
		if errors.As(err, &mismatch) {
			logger.Error("COMMITMENT MISMATCH: a revealed seed does not hash to its published commitment",
				"round", transcript.RoundID, "error", err)
			fmt.Println("FAIL: commitment mismatch, round should be disputed")
			os.Exit(1)
		}
		return fmt.Errorf("replay failed: %w", err)
	}

	fmt.Printf("PASS: round %s verified\n", transcript.RoundID)
	fmt.Printf("  dealer: %s (%d)\n", round.DealerHand(), round.DealerHand().BestTotal())
	for i, hand := range round.PlayerHands() {
		fmt.Printf("  hand %d: %s (%d)  bet %d  won %d\n",
			i, hand, hand.BestTotal(), round.Bets()[i], round.Winnings()[i])
	}
	return nil
}
