package game

import (
	"fmt"
	"io"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/lox/fairjack/internal/deck"
	"github.com/lox/fairjack/internal/fairness"
)

// Phase is the round lifecycle position. Dealing is only reachable from
// PhaseCommitted, which makes it structurally impossible to put a card in
// a hand before both commitments are on record.
type Phase int

const (
	// PhaseCreated: bets fixed, dealer seed generated and committed
	PhaseCreated Phase = iota
	// PhaseCommitted: player commitment and pubkey registered
	PhaseCommitted
	// PhasePlaying: cards dealt, player hands acting
	PhasePlaying
	// PhaseDealerTurn: player hands done, dealer drawing to the house rule
	PhaseDealerTurn
	// PhaseSettled: winnings computed, seeds revealable
	PhaseSettled
	// PhaseDisputed: a revealed seed broke its commitment; the round is
	// void and must be surfaced as a fairness violation
	PhaseDisputed
)

// String returns the wire name of the phase
func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseCommitted:
		return "committed"
	case PhasePlaying:
		return "playing"
	case PhaseDealerTurn:
		return "dealer_turn"
	case PhaseSettled:
		return "settled"
	case PhaseDisputed:
		return "disputed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ActionRecord is one accepted action in the round's ordered log. The log
// plus both seeds is enough to replay the round move for move.
type ActionRecord struct {
	Turn   uint64 `json:"turn"`
	Hand   int    `json:"hand"`
	Action Action `json:"action"`
}

// Round is the aggregate root for one blackjack round. All mutation goes
// through RegisterCommitment, Deal and Apply; there is no way to poke a
// card into a hand from outside.
type Round struct {
	id     string
	rules  Rules
	logger *log.Logger

	dealerSeed   fairness.Seed
	dealerCommit fairness.Commitment
	playerSeed   fairness.Seed
	playerCommit fairness.Commitment
	playerPubKey fairness.PubKey

	phase Phase
	deck  *deck.Deck

	dealer      Hand
	hands       []Hand
	statuses    []HandStatus
	active      []bool
	bets        []int64
	initialBets []int64
	winnings    []int64
	fromSplit   []bool
	current     int

	turn    uint64
	actions []ActionRecord
}

// Option configures a Round at construction
type Option func(*Round)

// WithRules sets the table rules
func WithRules(rules Rules) Option {
	return func(r *Round) { r.rules = rules }
}

// WithDealerSeed pins the dealer seed instead of drawing one from entropy.
// Used by the replay verifier and by deterministic tests.
func WithDealerSeed(seed fairness.Seed) Option {
	return func(r *Round) {
		r.dealerSeed = seed
		r.dealerCommit = fairness.Commit(seed)
	}
}

// WithDeck pins the deck instead of deriving it from the combined seeds.
// Test seam for scripted card orders.
func WithDeck(d *deck.Deck) Option {
	return func(r *Round) { r.deck = d }
}

// WithLogger sets the round logger
func WithLogger(logger *log.Logger) Option {
	return func(r *Round) { r.logger = logger }
}

// NewRound creates a round at bet time. The dealer seed is drawn from the
// entropy source and committed immediately; no cards are dealt until the
// player's commitment is registered and Deal is called.
func NewRound(id string, bets []int64, entropy fairness.Entropy, opts ...Option) (*Round, error) {
	if len(bets) == 0 {
		return nil, fmt.Errorf("round %s: at least one bet required", id)
	}
	for i, bet := range bets {
		if bet <= 0 {
			return nil, fmt.Errorf("round %s: bet %d must be positive, got %d", id, i, bet)
		}
	}

	r := &Round{
		id:          id,
		rules:       DefaultRules(),
		logger:      log.New(io.Discard),
		phase:       PhaseCreated,
		bets:        slices.Clone(bets),
		initialBets: slices.Clone(bets),
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.rules.Validate(); err != nil {
		return nil, err
	}

	if r.dealerCommit == (fairness.Commitment{}) {
		seed, err := fairness.NewSeed(entropy)
		if err != nil {
			return nil, err
		}
		r.dealerSeed = seed
		r.dealerCommit = fairness.Commit(seed)
	}

	r.logger.Debug("round created", "round", id, "hands", len(bets))
	return r, nil
}

// ID returns the round identifier
func (r *Round) ID() string { return r.id }

// Phase returns the current lifecycle phase
func (r *Round) Phase() Phase { return r.phase }

// Turn returns the action counter the round expects next
func (r *Round) Turn() uint64 { return r.turn }

// DealerCommitment returns the digest published before the deal
func (r *Round) DealerCommitment() fairness.Commitment { return r.dealerCommit }

// PlayerCommitment returns the player's registered digest
func (r *Round) PlayerCommitment() fairness.Commitment { return r.playerCommit }

// RegisterCommitment records the player's seed commitment and session
// pubkey. Only valid before any card is dealt.
func (r *Round) RegisterCommitment(c fairness.Commitment, pubkey fairness.PubKey) error {
	if r.phase != PhaseCreated {
		return &PhaseError{Op: "register commitment", Phase: r.phase}
	}
	r.playerCommit = c
	r.playerPubKey = pubkey
	r.phase = PhaseCommitted
	r.logger.Debug("player committed", "round", r.id, "commitment", c)
	return nil
}

// Deal verifies the revealed player seed against its commitment, derives
// the deck from both seeds and deals the initial hands. Unreachable until
// RegisterCommitment has run; that ordering is the fairness invariant.
func (r *Round) Deal(playerSeed fairness.Seed) error {
	if r.phase != PhaseCommitted {
		return &PhaseError{Op: "deal", Phase: r.phase}
	}
	if err := fairness.Verify(r.playerCommit, playerSeed); err != nil {
		r.phase = PhaseDisputed
		r.logger.Error("player seed broke commitment", "round", r.id, "error", err)
		return err
	}
	r.playerSeed = playerSeed
	if r.deck == nil {
		r.deck = deck.Derive(fairness.Combine(r.dealerSeed, playerSeed))
	}

	n := len(r.bets)
	r.hands = make([]Hand, n)
	r.statuses = make([]HandStatus, n)
	r.active = make([]bool, n)
	r.winnings = make([]int64, n)
	r.fromSplit = make([]bool, n)
	for i := range r.active {
		r.active[i] = true
	}

	// Dealer draws first, then each player hand in order.
	for range 2 {
		if err := r.drawTo(&r.dealer); err != nil {
			return err
		}
	}
	for i := range r.hands {
		for range 2 {
			if err := r.drawTo(&r.hands[i]); err != nil {
				return err
			}
		}
	}

	// Naturals stand immediately.
	for i, h := range r.hands {
		if h.IsBlackjack() {
			r.active[i] = false
			r.statuses[i] = StatusStanding
		}
	}

	if r.dealer.IsBlackjack() {
		// Dealer natural ends the round on the spot: player naturals
		// push, everything else loses.
		for i := range r.hands {
			if !r.active[i] {
				r.winnings[i] = r.bets[i]
			}
			r.active[i] = false
			if r.statuses[i] == StatusActive {
				r.statuses[i] = StatusStanding
			}
		}
		r.current = len(r.hands)
		r.phase = PhaseSettled
		r.logger.Info("dealer natural, round settled", "round", r.id)
		return nil
	}

	r.advance()
	if !r.anyActive() {
		r.finish()
		return nil
	}

	r.phase = PhasePlaying
	r.logger.Debug("round dealt", "round", r.id, "dealerUp", r.dealer[0], "currentHand", r.current)
	return nil
}

// LegalActions derives the four-action legal set for the current hand.
// Everything is false unless the round is in play and the hand is active.
func (r *Round) LegalActions() Legal {
	if r.phase != PhasePlaying || r.current >= len(r.hands) || !r.active[r.current] {
		return Legal{}
	}
	h := r.hands[r.current]
	return Legal{
		Hit:    h.HardTotal() < 21,
		Stand:  true,
		Double: len(h) == 2,
		Split: len(h) == 2 &&
			h[0].Rank == h[1].Rank &&
			len(r.hands) < r.rules.MaxHands &&
			!(r.rules.NoResplit && r.fromSplit[r.current]),
	}
}

// Apply processes one action against the active hand. The turn counter
// must match the round's counter exactly; anything else is rejected as
// stale with no mutation. Illegal actions are likewise rejected untouched,
// so resubmitting the same bad request is idempotent.
func (r *Round) Apply(action Action, turn uint64) error {
	if r.phase != PhasePlaying {
		return &IllegalActionError{Action: action, Reason: fmt.Sprintf("round is %s, no hand may act", r.phase)}
	}
	if turn != r.turn {
		return &StaleActionError{Turn: r.turn, Got: turn}
	}
	legal := r.LegalActions()
	if !legal.Allows(action) {
		return &IllegalActionError{Action: action, Reason: "not in the legal set for the active hand"}
	}

	hand := r.current
	var err error
	switch action {
	case Hit:
		err = r.applyHit()
	case Stand:
		r.deactivate(StatusStanding)
	case Double:
		err = r.applyDouble()
	case Split:
		err = r.applySplit()
	}
	if err != nil {
		return err
	}

	r.actions = append(r.actions, ActionRecord{Turn: turn, Hand: hand, Action: action})
	r.turn++
	r.logger.Debug("action applied", "round", r.id, "hand", hand, "action", action, "turn", turn)

	if !r.anyActive() {
		r.finish()
	}
	return nil
}

// Intent is an action together with the client's view of the table. The
// engine refuses intents whose view no longer matches, so a client acting
// on a stale snapshot cannot mutate the round.
type Intent struct {
	Action      Action
	Turn        uint64
	Hand        int
	HandCards   []deck.Card
	DealerCards []deck.Card
}

// ApplyIntent validates the intent's view of the table and then applies
// the action.
func (r *Round) ApplyIntent(in Intent) error {
	if r.phase != PhasePlaying {
		return &IllegalActionError{Action: in.Action, Reason: fmt.Sprintf("round is %s, no hand may act", r.phase)}
	}
	if in.Hand != r.current {
		return &IllegalActionError{Action: in.Action, Reason: fmt.Sprintf("hand %d is not the active hand (%d is)", in.Hand, r.current)}
	}
	if !slices.Equal(in.HandCards, r.hands[r.current]) {
		return &IllegalActionError{Action: in.Action, Reason: "intent carries a stale view of the acting hand"}
	}
	if !slices.Equal(in.DealerCards, r.DealerVisible()) {
		return &IllegalActionError{Action: in.Action, Reason: "intent carries a stale view of the dealer hand"}
	}
	return r.Apply(in.Action, in.Turn)
}

func (r *Round) applyHit() error {
	if err := r.drawTo(&r.hands[r.current]); err != nil {
		return err
	}
	if r.hands[r.current].IsBusted() {
		r.deactivate(StatusBusted)
	}
	return nil
}

func (r *Round) applyDouble() error {
	r.bets[r.current] *= 2
	if err := r.drawTo(&r.hands[r.current]); err != nil {
		return err
	}
	// One card and done, busted or not.
	r.deactivate(StatusDoubledStanding)
	return nil
}

// applySplit separates the pair into two hands. The first sub-hand keeps
// the original index and draws its replacement card first; the second is
// inserted immediately after with a duplicated bet. Both are active and
// the current hand stays on the first sub-hand.
func (r *Round) applySplit() error {
	i := r.current
	pair := r.hands[i]

	first := Hand{pair[0]}
	second := Hand{pair[1]}
	r.hands[i] = first
	if err := r.drawTo(&r.hands[i]); err != nil {
		return err
	}
	if err := r.drawTo(&second); err != nil {
		return err
	}

	r.hands = slices.Insert(r.hands, i+1, second)
	r.active = slices.Insert(r.active, i+1, true)
	r.statuses = slices.Insert(r.statuses, i+1, StatusActive)
	r.bets = slices.Insert(r.bets, i+1, r.bets[i])
	r.winnings = slices.Insert(r.winnings, i+1, int64(0))
	r.fromSplit = slices.Insert(r.fromSplit, i+1, true)
	r.fromSplit[i] = true
	return nil
}

// deactivate retires the current hand with the given terminal status and
// moves play to the next active hand.
func (r *Round) deactivate(status HandStatus) {
	r.statuses[r.current] = status
	r.active[r.current] = false
	r.advance()
}

func (r *Round) advance() {
	for r.current < len(r.hands) && !r.active[r.current] {
		r.current++
	}
}

func (r *Round) anyActive() bool {
	return slices.Contains(r.active, true)
}

func (r *Round) drawTo(h *Hand) error {
	c, err := r.deck.Draw()
	if err != nil {
		return fmt.Errorf("round %s: %w", r.id, err)
	}
	h.Add(c)
	return nil
}

// finish plays out the dealer hand and settles every player hand
func (r *Round) finish() {
	r.phase = PhaseDealerTurn
	r.playDealer()
	r.settle()
}

// playDealer draws to the house rule: hit below 17, stand on 17 and above.
// Soft 17 is hit only when the table rules say so.
func (r *Round) playDealer() {
	for {
		total := r.dealer.BestTotal()
		if total < 17 {
			if err := r.drawTo(&r.dealer); err != nil {
				r.logger.Error("dealer draw failed", "round", r.id, "error", err)
				return
			}
			continue
		}
		if total == 17 && r.dealer.IsSoft() && r.rules.DealerHitsSoft17 {
			if err := r.drawTo(&r.dealer); err != nil {
				r.logger.Error("dealer draw failed", "round", r.id, "error", err)
				return
			}
			continue
		}
		return
	}
}

// settle computes winnings as total returned stake per hand: 0 on a loss,
// the bet back on a push, 2x on a win, 5x/2 on a natural. A busted hand
// always loses; a natural beats a non-natural dealer 21. Post-split 21s
// are not naturals.
func (r *Round) settle() {
	dealerTotal := r.dealer.BestTotal()
	dealerBust := r.dealer.IsBusted()

	for i, h := range r.hands {
		total := h.BestTotal()
		natural := h.IsBlackjack() && !r.fromSplit[i]
		switch {
		case h.IsBusted():
			r.winnings[i] = 0
		case natural:
			r.winnings[i] = r.bets[i] * 5 / 2
		case dealerBust || total > dealerTotal:
			r.winnings[i] = r.bets[i] * 2
		case total == dealerTotal:
			r.winnings[i] = r.bets[i]
		default:
			r.winnings[i] = 0
		}
	}

	r.phase = PhaseSettled
	r.logger.Info("round settled",
		"round", r.id,
		"dealer", r.dealer.String(),
		"dealerTotal", dealerTotal,
		"winnings", r.winnings)
}

// Reveal returns both seeds for third-party verification. Only available
// once the round has settled; revealing early would leak the deck.
func (r *Round) Reveal() (player, dealer fairness.Seed, err error) {
	if r.phase != PhaseSettled {
		return fairness.Seed{}, fairness.Seed{}, &PhaseError{Op: "reveal", Phase: r.phase}
	}
	return r.playerSeed, r.dealerSeed, nil
}

// DealerVisible returns the dealer cards a player may see: the upcard
// only while hands are still acting, the full hand afterwards.
func (r *Round) DealerVisible() []deck.Card {
	if r.phase == PhasePlaying && len(r.dealer) > 1 {
		return slices.Clone(r.dealer[:1])
	}
	return slices.Clone(r.dealer)
}

// DealerHand returns a copy of the full dealer hand
func (r *Round) DealerHand() Hand { return r.dealer.Clone() }

// PlayerHands returns a copy of all player hands
func (r *Round) PlayerHands() []Hand {
	out := make([]Hand, len(r.hands))
	for i, h := range r.hands {
		out[i] = h.Clone()
	}
	return out
}

// ActiveMask returns a copy of the per-hand active flags
func (r *Round) ActiveMask() []bool { return slices.Clone(r.active) }

// Bets returns a copy of the current per-hand bets (doubled where doubled)
func (r *Round) Bets() []int64 { return slices.Clone(r.bets) }

// InitialBets returns a copy of the bets as placed at round creation
func (r *Round) InitialBets() []int64 { return slices.Clone(r.initialBets) }

// Winnings returns a copy of the per-hand winnings (zero until settled)
func (r *Round) Winnings() []int64 { return slices.Clone(r.winnings) }

// CurrentHand returns the index of the hand allowed to act
func (r *Round) CurrentHand() int { return r.current }

// Actions returns a copy of the accepted-action log
func (r *Round) Actions() []ActionRecord { return slices.Clone(r.actions) }
