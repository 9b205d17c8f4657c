package server

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/lox/fairjack/internal/deck"
	"github.com/lox/fairjack/internal/fairness"
	"github.com/lox/fairjack/internal/game"
)

// MessageType identifies the type of a websocket message
type MessageType string

const (
	// Client -> Server
	MessageTypeStartRound MessageType = "start_round"
	MessageTypeDeal       MessageType = "deal"
	MessageTypeAction     MessageType = "action"
	MessageTypeReveal     MessageType = "reveal"

	// Server -> Client
	MessageTypeRoundStarted MessageType = "round_started"
	MessageTypeSnapshot     MessageType = "snapshot"
	MessageTypeRevealed     MessageType = "revealed"
	MessageTypeError        MessageType = "error"
)

// Message is the websocket envelope
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a message with the current timestamp
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client -> Server payloads

// StartRoundData places bets and publishes the player's commitment and
// session pubkey. No cards are dealt in response; the server answers with
// its own commitment.
type StartRoundData struct {
	Bets             []int64 `json:"bets"`
	PlayerCommitment string  `json:"playerCommitment"`
	PlayerPubKey     string  `json:"playerPubKey"`
}

// DealData reveals the player seed so the deck can be derived and the
// initial hands dealt
type DealData struct {
	RoundID    string `json:"roundId"`
	PlayerSeed string `json:"playerSeed"`
}

// ActionData submits one action against the active hand. Turn must match
// the counter from the latest snapshot. HandCards and DealerCards carry
// the client's view of the table so a stale client cannot act blind.
type ActionData struct {
	RoundID     string      `json:"roundId"`
	Action      string      `json:"action"`
	Turn        uint64      `json:"turn"`
	Hand        int         `json:"hand"`
	HandCards   []deck.Card `json:"handCards,omitempty"`
	DealerCards []deck.Card `json:"dealerCards,omitempty"`
}

// RevealData asks for both seeds after settlement
type RevealData struct {
	RoundID string `json:"roundId"`
}

// Server -> Client payloads

// RoundStartedData returns the new round id and the dealer's commitment,
// published before any card exists
type RoundStartedData struct {
	RoundID          string `json:"roundId"`
	DealerCommitment string `json:"dealerCommitment"`
}

// SnapshotData wraps the engine snapshot
type SnapshotData struct {
	Snapshot game.Snapshot `json:"snapshot"`
}

// RevealedData carries both seeds plus the transcript needed for
// independent verification
type RevealedData struct {
	RoundID    string          `json:"roundId"`
	Transcript game.Transcript `json:"transcript"`
}

// ErrorData is a typed rejection. Code distinguishes usage mistakes from
// integrity failures; Snapshot, when present, is the current state so the
// caller can resynchronize.
type ErrorData struct {
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Snapshot *game.Snapshot `json:"snapshot,omitempty"`
}

// Error codes surfaced to clients
const (
	CodeIllegalAction      = "ILLEGAL_ACTION"
	CodeStaleAction        = "STALE_ACTION"
	CodeDeckExhausted      = "DECK_EXHAUSTED"
	CodeCommitmentMismatch = "COMMITMENT_MISMATCH"
	CodeRoundNotFound      = "ROUND_NOT_FOUND"
	CodePhase              = "WRONG_PHASE"
	CodeBadRequest         = "BAD_REQUEST"
)

// CodeForError maps engine errors onto wire error codes
func CodeForError(err error) string {
	var (
		illegal  *game.IllegalActionError
		stale    *game.StaleActionError
		phase    *game.PhaseError
		mismatch *fairness.CommitmentMismatchError
	)
	switch {
	case errors.As(err, &illegal):
		return CodeIllegalAction
	case errors.As(err, &stale):
		return CodeStaleAction
	case errors.As(err, &mismatch):
		return CodeCommitmentMismatch
	case errors.As(err, &phase):
		return CodePhase
	case errors.Is(err, deck.ErrExhausted):
		return CodeDeckExhausted
	case errors.Is(err, ErrRoundNotFound):
		return CodeRoundNotFound
	default:
		return CodeBadRequest
	}
}
