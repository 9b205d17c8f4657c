package server

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/fairjack/internal/fairness"
	"github.com/lox/fairjack/internal/game"
	"github.com/lox/fairjack/internal/roundid"
)

// ErrRoundNotFound is returned for operations against an unknown round id
var ErrRoundNotFound = errors.New("round not found")

// DealerService owns every open round. Access to a round is serialized
// through its entry mutex, so actions apply strictly one at a time no
// matter how the transport delivers them. Rounds are fully independent;
// the only shared state is the entropy source.
type DealerService struct {
	mu     sync.RWMutex
	rounds map[string]*roundEntry

	entropy       fairness.Entropy
	rules         game.Rules
	limits        TableSettings
	clock         quartz.Clock
	actionTimeout time.Duration
	ids           *roundid.Generator
	logger        *log.Logger
}

// roundEntry pairs a round with its lock and pending action deadline
type roundEntry struct {
	mu    sync.Mutex
	round *game.Round
	timer *quartz.Timer
}

// ServiceOption configures a DealerService
type ServiceOption func(*DealerService)

// WithClock sets the clock used for action deadlines
func WithClock(clock quartz.Clock) ServiceOption {
	return func(s *DealerService) { s.clock = clock }
}

// WithEntropy sets the entropy source for dealer seeds
func WithEntropy(src fairness.Entropy) ServiceOption {
	return func(s *DealerService) { s.entropy = src }
}

// WithRules sets the table rules applied to every round
func WithRules(rules game.Rules) ServiceOption {
	return func(s *DealerService) { s.rules = rules }
}

// WithLimits sets the table bet limits
func WithLimits(limits TableSettings) ServiceOption {
	return func(s *DealerService) { s.limits = limits }
}

// WithActionTimeout sets the per-action deadline. Zero disables deadlines.
func WithActionTimeout(d time.Duration) ServiceOption {
	return func(s *DealerService) { s.actionTimeout = d }
}

// NewDealerService creates a dealer service
func NewDealerService(logger *log.Logger, opts ...ServiceOption) *DealerService {
	s := &DealerService{
		rounds:  make(map[string]*roundEntry),
		entropy: fairness.Secure(),
		rules:   game.DefaultRules(),
		limits:  DefaultConfig().Table,
		clock:   quartz.NewReal(),
		ids:     roundid.NewGenerator(nil),
		logger:  logger.WithPrefix("dealer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartRound creates a round at bet time: the player's commitment and
// pubkey go on record, the dealer seed is generated and committed, and
// the dealer commitment is returned. No cards are dealt yet.
func (s *DealerService) StartRound(bets []int64, playerCommitment fairness.Commitment, pubkey fairness.PubKey) (string, fairness.Commitment, error) {
	for i, bet := range bets {
		if bet < s.limits.MinBet || bet > s.limits.MaxBet {
			return "", fairness.Commitment{}, fmt.Errorf("bet %d of %d is outside table limits [%d, %d]",
				i, bet, s.limits.MinBet, s.limits.MaxBet)
		}
	}

	id := s.ids.New()
	round, err := game.NewRound(id, bets, s.entropy,
		game.WithRules(s.rules),
		game.WithLogger(s.logger),
	)
	if err != nil {
		return "", fairness.Commitment{}, err
	}
	if err := round.RegisterCommitment(playerCommitment, pubkey); err != nil {
		return "", fairness.Commitment{}, err
	}

	s.mu.Lock()
	s.rounds[id] = &roundEntry{round: round}
	s.mu.Unlock()

	s.logger.Info("round started", "round", id, "hands", len(bets))
	return id, round.DealerCommitment(), nil
}

// Deal reveals the player seed, derives the deck and deals the initial
// hands. Starts the action deadline if the player has a hand to play.
func (s *DealerService) Deal(roundID string, playerSeed fairness.Seed) (game.Snapshot, error) {
	entry, err := s.entry(roundID)
	if err != nil {
		return game.Snapshot{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := entry.round.Deal(playerSeed); err != nil {
		return entry.round.Snapshot(), err
	}
	s.armDeadline(roundID, entry)
	return entry.round.Snapshot(), nil
}

// SubmitAction applies one action. The turn counter and the optional view
// checks reject anything stale without mutating the round.
func (s *DealerService) SubmitAction(roundID string, data ActionData) (game.Snapshot, error) {
	entry, err := s.entry(roundID)
	if err != nil {
		return game.Snapshot{}, err
	}

	action, err := game.ParseAction(data.Action)
	if err != nil {
		return game.Snapshot{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if len(data.HandCards) > 0 || len(data.DealerCards) > 0 {
		err = entry.round.ApplyIntent(game.Intent{
			Action:      action,
			Turn:        data.Turn,
			Hand:        data.Hand,
			HandCards:   data.HandCards,
			DealerCards: data.DealerCards,
		})
	} else {
		err = entry.round.Apply(action, data.Turn)
	}
	if err != nil {
		return entry.round.Snapshot(), err
	}

	s.armDeadline(roundID, entry)
	return entry.round.Snapshot(), nil
}

// Reveal returns the round transcript after settlement
func (s *DealerService) Reveal(roundID string) (game.Transcript, error) {
	entry, err := s.entry(roundID)
	if err != nil {
		return game.Transcript{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.round.Transcript()
}

// Snapshot returns the current caller-facing view of a round
func (s *DealerService) Snapshot(roundID string) (game.Snapshot, error) {
	entry, err := s.entry(roundID)
	if err != nil {
		return game.Snapshot{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.round.Snapshot(), nil
}

// CloseRound drops a round from the registry, stopping any deadline
func (s *DealerService) CloseRound(roundID string) {
	s.mu.Lock()
	entry, ok := s.rounds[roundID]
	if ok {
		delete(s.rounds, roundID)
	}
	s.mu.Unlock()

	if ok {
		entry.mu.Lock()
		if entry.timer != nil {
			entry.timer.Stop()
		}
		entry.mu.Unlock()
	}
}

// RoundCount returns the number of open rounds
func (s *DealerService) RoundCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rounds)
}

func (s *DealerService) entry(roundID string) (*roundEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.rounds[roundID]
	if !ok {
		return nil, fmt.Errorf("round %s: %w", roundID, ErrRoundNotFound)
	}
	return entry, nil
}

// armDeadline schedules an auto-stand for the active hand. Caller holds
// the entry lock.
func (s *DealerService) armDeadline(roundID string, entry *roundEntry) {
	if entry.timer != nil {
		entry.timer.Stop()
		entry.timer = nil
	}
	if s.actionTimeout <= 0 || entry.round.Phase() != game.PhasePlaying {
		return
	}
	entry.timer = s.clock.AfterFunc(s.actionTimeout, func() {
		s.timeoutStand(roundID, entry)
	})
}

// timeoutStand stands the active hand when its deadline expires. The
// engine's turn counter makes this race-free: if a real action landed
// first, the phase or counter moved on and the forced stand applies to
// whatever hand is active now, which is exactly the hand that is stalling.
func (s *DealerService) timeoutStand(roundID string, entry *roundEntry) {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.round.Phase() != game.PhasePlaying {
		return
	}
	hand := entry.round.CurrentHand()
	if err := entry.round.Apply(game.Stand, entry.round.Turn()); err != nil {
		s.logger.Error("timeout stand failed", "round", roundID, "error", err)
		return
	}
	s.logger.Info("hand timed out, forced stand", "round", roundID, "hand", hand)
	s.armDeadline(roundID, entry)
}
