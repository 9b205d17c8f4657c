// Package sdk is a client library for the fairjack dealer. It drives the
// commit-then-reveal round protocol for the player side: it generates and
// keeps the player seed, publishes only its commitment at bet time, reveals
// the seed to trigger the deal, submits actions, and verifies the dealer's
// post-settlement reveal by replaying the transcript locally.
package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/fairjack/internal/fairness"
	"github.com/lox/fairjack/internal/game"
	"github.com/lox/fairjack/internal/server"
)

// ServerError is a typed rejection from the dealer. Snapshot, when present,
// is the authoritative state to resync from.
type ServerError struct {
	Code     string
	Message  string
	Snapshot *game.Snapshot
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Round holds the client side of one round: the secrets generated at start
// and the dealer commitment recorded before any card was dealt.
type Round struct {
	ID               string
	PlayerSeed       fairness.Seed
	PlayerPubKey     fairness.PubKey
	DealerCommitment fairness.Commitment
}

// Client is a websocket client for the dealer server. Requests carry a
// request id and the client blocks until the matching reply arrives, so
// callers get ordinary synchronous methods.
type Client struct {
	serverURL string
	logger    *log.Logger
	entropy   fairness.Entropy

	mu        sync.Mutex
	conn      *websocket.Conn
	pending   map[string]chan *server.Message
	nextID    uint64
	connected bool
	stopChan  chan struct{}
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithEntropy sets the source used for player seeds and pubkeys
func WithEntropy(src fairness.Entropy) ClientOption {
	return func(c *Client) { c.entropy = src }
}

// NewClient creates a client for the given server URL
func NewClient(serverURL string, logger *log.Logger, opts ...ClientOption) *Client {
	c := &Client{
		serverURL: serverURL,
		logger:    logger.WithPrefix("sdk"),
		entropy:   fairness.Secure(),
		pending:   make(map[string]chan *server.Message),
		stopChan:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect establishes the websocket connection
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		u.Scheme = "ws"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readMessages()
	return nil
}

// Close closes the connection and fails any requests in flight
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	c.connected = false
	close(c.stopChan)

	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return c.conn.Close()
	}
	return nil
}

// StartRound places bets. A fresh seed and pubkey are generated and kept
// locally; only the seed's commitment goes over the wire. The returned
// Round records the dealer's commitment, published before any card exists.
func (c *Client) StartRound(ctx context.Context, bets []int64) (*Round, error) {
	seed, err := fairness.NewSeed(c.entropy)
	if err != nil {
		return nil, err
	}
	pubkey, err := fairness.NewPubKey(c.entropy)
	if err != nil {
		return nil, err
	}

	reply, err := c.call(ctx, server.MessageTypeStartRound, server.StartRoundData{
		Bets:             bets,
		PlayerCommitment: fairness.Commit(seed).String(),
		PlayerPubKey:     pubkey.String(),
	})
	if err != nil {
		return nil, err
	}

	var data server.RoundStartedData
	if err := json.Unmarshal(reply.Data, &data); err != nil {
		return nil, fmt.Errorf("bad round_started payload: %w", err)
	}
	dealerCommitment, err := fairness.ParseCommitment(data.DealerCommitment)
	if err != nil {
		return nil, fmt.Errorf("bad dealer commitment: %w", err)
	}

	c.logger.Info("round started", "round", data.RoundID, "dealerCommitment", data.DealerCommitment)
	return &Round{
		ID:               data.RoundID,
		PlayerSeed:       seed,
		PlayerPubKey:     pubkey,
		DealerCommitment: dealerCommitment,
	}, nil
}

// Deal reveals the player seed and returns the dealt table
func (c *Client) Deal(ctx context.Context, round *Round) (game.Snapshot, error) {
	reply, err := c.call(ctx, server.MessageTypeDeal, server.DealData{
		RoundID:    round.ID,
		PlayerSeed: round.PlayerSeed.String(),
	})
	if err != nil {
		return game.Snapshot{}, err
	}
	return decodeSnapshot(reply)
}

// Act submits an action against the active hand at the given turn
func (c *Client) Act(ctx context.Context, roundID string, action game.Action, turn uint64) (game.Snapshot, error) {
	return c.act(ctx, server.ActionData{
		RoundID: roundID,
		Action:  action.String(),
		Turn:    turn,
	})
}

// ActWithView submits an action bound to the client's view of the table,
// taken from a snapshot. The dealer rejects it if the view is stale, which
// keeps a lagging client from acting blind.
func (c *Client) ActWithView(ctx context.Context, roundID string, action game.Action, snapshot game.Snapshot) (game.Snapshot, error) {
	return c.act(ctx, server.ActionData{
		RoundID:     roundID,
		Action:      action.String(),
		Turn:        snapshot.Turn,
		Hand:        snapshot.CurrentHand,
		HandCards:   snapshot.Hands[snapshot.CurrentHand],
		DealerCards: snapshot.Dealer,
	})
}

func (c *Client) act(ctx context.Context, data server.ActionData) (game.Snapshot, error) {
	reply, err := c.call(ctx, server.MessageTypeAction, data)
	if err != nil {
		return game.Snapshot{}, err
	}
	return decodeSnapshot(reply)
}

// Reveal fetches the post-settlement transcript with both seeds
func (c *Client) Reveal(ctx context.Context, roundID string) (game.Transcript, error) {
	reply, err := c.call(ctx, server.MessageTypeReveal, server.RevealData{RoundID: roundID})
	if err != nil {
		return game.Transcript{}, err
	}
	var data server.RevealedData
	if err := json.Unmarshal(reply.Data, &data); err != nil {
		return game.Transcript{}, fmt.Errorf("bad revealed payload: %w", err)
	}
	return data.Transcript, nil
}

// call sends one request and blocks until its reply or the context ends
func (c *Client) call(ctx context.Context, messageType server.MessageType, data interface{}) (*server.Message, error) {
	msg, err := server.NewMessage(messageType, data)
	if err != nil {
		return nil, err
	}

	ch := make(chan *server.Message, 1)

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil, fmt.Errorf("not connected")
	}
	c.nextID++
	requestID := strconv.FormatUint(c.nextID, 10)
	msg.RequestID = requestID
	c.pending[requestID] = ch

	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	err = c.conn.WriteJSON(msg)
	c.mu.Unlock()

	if err != nil {
		c.dropPending(requestID)
		return nil, fmt.Errorf("write %s: %w", messageType, err)
	}

	select {
	case reply := <-ch:
		if reply.Type == server.MessageTypeError {
			return nil, decodeError(reply)
		}
		return reply, nil
	case <-ctx.Done():
		c.dropPending(requestID)
		return nil, ctx.Err()
	case <-c.stopChan:
		return nil, fmt.Errorf("connection closed")
	}
}

func (c *Client) dropPending(requestID string) {
	c.mu.Lock()
	delete(c.pending, requestID)
	c.mu.Unlock()
}

func (c *Client) readMessages() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		select {
		case <-c.stopChan:
			return
		default:
			var msg server.Message
			if err := c.conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					c.logger.Debug("read error", "error", err)
				}
				return
			}
			c.dispatch(&msg)
		}
	}
}

func (c *Client) dispatch(msg *server.Message) {
	c.mu.Lock()
	ch, ok := c.pending[msg.RequestID]
	if ok {
		delete(c.pending, msg.RequestID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("unmatched message", "type", msg.Type, "requestId", msg.RequestID)
		return
	}
	ch <- msg
}

func decodeSnapshot(msg *server.Message) (game.Snapshot, error) {
	var data server.SnapshotData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return game.Snapshot{}, fmt.Errorf("bad snapshot payload: %w", err)
	}
	return data.Snapshot, nil
}

func decodeError(msg *server.Message) error {
	var data server.ErrorData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return fmt.Errorf("bad error payload: %w", err)
	}
	return &ServerError{
		Code:     data.Code,
		Message:  data.Message,
		Snapshot: data.Snapshot,
	}
}
