package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/lox/fairjack/cmd/fairjack/shared"
	"github.com/lox/fairjack/internal/fairness"
	"github.com/lox/fairjack/internal/game"
	"github.com/lox/fairjack/internal/server"
	"github.com/lox/fairjack/sdk"
)

// DemoCmd spins up an in-process dealer, plays one round over a real
// websocket with a simple hit-below-17 strategy, then reveals and verifies
// the transcript
type DemoCmd struct {
	Bet   int64  `kong:"default='10',help='Bet amount for the demo hand'"`
	Out   string `kong:"help='Write the revealed transcript JSON to this file'"`
	Debug bool   `kong:"help='Enable debug logging'"`
}

func (c *DemoCmd) Run() error {
	logger := shared.SetupLogger(c.Debug)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dealer := server.NewDealerService(logger)
	srv := server.NewServer("127.0.0.1:0", dealer, logger)
	go func() { _ = srv.Start(ctx) }()
	defer func() { _ = srv.Stop() }()

	deadline := time.Now().Add(5 * time.Second)
	for srv.Addr() == "127.0.0.1:0" {
		if time.Now().After(deadline) {
			return fmt.Errorf("server did not start listening")
		}
		time.Sleep(10 * time.Millisecond)
	}

	client := sdk.NewClient("ws://"+srv.Addr(), logger)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	round, err := client.StartRound(ctx, []int64{c.Bet})
	if err != nil {
		return err
	}
	logger.Info("commitments exchanged before any card was dealt",
		"round", round.ID,
		"dealerCommitment", round.DealerCommitment,
		"playerCommitment", fairness.Commit(round.PlayerSeed),
	)

	snapshot, err := client.Deal(ctx, round)
	if err != nil {
		return err
	}
	printTable(snapshot)

	for snapshot.Phase == "playing" {
		hand := game.Hand(snapshot.Hands[snapshot.CurrentHand])
		action := game.Stand
		if hand.BestTotal() < 17 {
			action = game.Hit
		}
		logger.Info("acting", "hand", snapshot.CurrentHand, "total", hand.BestTotal(), "action", action)
		snapshot, err = client.ActWithView(ctx, round.ID, action, snapshot)
		if err != nil {
			return err
		}
		printTable(snapshot)
	}

	transcript, err := client.Reveal(ctx, round.ID)
	if err != nil {
		return err
	}
	replayed, err := sdk.Verify(transcript, round, game.DefaultRules())
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	logger.Info("transcript verified against both commitments",
		"round", round.ID, "winnings", replayed.Winnings())

	if c.Out != "" {
		raw, err := json.MarshalIndent(transcript, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(c.Out, raw, 0o644); err != nil {
			return err
		}
		logger.Info("transcript written", "path", c.Out)
	}
	return nil
}

func printTable(s game.Snapshot) {
	dealer := game.Hand(s.Dealer).String()
	if s.HoleCardHidden {
		dealer += " ??"
	}
	fmt.Printf("dealer: %s\n", dealer)
	for i, cards := range s.Hands {
		marker := " "
		if s.Phase == "playing" && i == s.CurrentHand {
			marker = "*"
		}
		hand := game.Hand(cards)
		fmt.Printf("%s hand %d: %s (%d) bet %d [%s]\n",
			marker, i, hand, hand.BestTotal(), s.Bets[i], s.Statuses[i])
	}
	if s.Phase == "settled" {
		fmt.Printf("settled: winnings %v\n", s.Winnings)
	}
	fmt.Println()
}
