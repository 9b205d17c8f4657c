package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/fairjack/internal/fairness"
	"github.com/lox/fairjack/internal/game"
)

// ErrConnectionClosed is returned when sending on a closed connection
var ErrConnectionClosed = errors.New("connection closed")

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second
	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// Connection wraps one websocket client. Each connection runs its own
// read and write pumps; requests are handled inline on the read pump so a
// single client's requests are naturally serialized.
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	dealer    *DealerService
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection creates a connection wrapper
func NewConnection(conn *websocket.Conn, logger *log.Logger, dealer *DealerService) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:   conn,
		send:   make(chan *Message, 64),
		dealer: dealer,
		logger: logger.WithPrefix("conn"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// Done is closed when the connection shuts down
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// SendMessage queues a message for the client
func (c *Connection) SendMessage(msg *Message) error {
	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		c.logger.Warn("send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("read error", "error", err)
			}
			return
		}
		c.handleMessage(&msg)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("write error", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Connection) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypeStartRound:
		c.handleStartRound(msg)
	case MessageTypeDeal:
		c.handleDeal(msg)
	case MessageTypeAction:
		c.handleAction(msg)
	case MessageTypeReveal:
		c.handleReveal(msg)
	default:
		c.replyError(msg.RequestID, CodeBadRequest, "unknown message type "+string(msg.Type), nil)
	}
}

func (c *Connection) handleStartRound(msg *Message) {
	var data StartRoundData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		c.replyError(msg.RequestID, CodeBadRequest, err.Error(), nil)
		return
	}
	commitment, err := fairness.ParseCommitment(data.PlayerCommitment)
	if err != nil {
		c.replyError(msg.RequestID, CodeBadRequest, err.Error(), nil)
		return
	}
	pubkey, err := fairness.ParsePubKey(data.PlayerPubKey)
	if err != nil {
		c.replyError(msg.RequestID, CodeBadRequest, err.Error(), nil)
		return
	}

	roundID, dealerCommitment, err := c.dealer.StartRound(data.Bets, commitment, pubkey)
	if err != nil {
		c.replyError(msg.RequestID, CodeForError(err), err.Error(), nil)
		return
	}
	c.reply(msg.RequestID, MessageTypeRoundStarted, RoundStartedData{
		RoundID:          roundID,
		DealerCommitment: dealerCommitment.String(),
	})
}

func (c *Connection) handleDeal(msg *Message) {
	var data DealData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		c.replyError(msg.RequestID, CodeBadRequest, err.Error(), nil)
		return
	}
	seed, err := fairness.ParseSeed(data.PlayerSeed)
	if err != nil {
		c.replyError(msg.RequestID, CodeBadRequest, err.Error(), nil)
		return
	}

	snapshot, err := c.dealer.Deal(data.RoundID, seed)
	if err != nil {
		c.replyError(msg.RequestID, CodeForError(err), err.Error(), snapshotRef(snapshot, err))
		return
	}
	c.reply(msg.RequestID, MessageTypeSnapshot, SnapshotData{Snapshot: snapshot})
}

func (c *Connection) handleAction(msg *Message) {
	var data ActionData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		c.replyError(msg.RequestID, CodeBadRequest, err.Error(), nil)
		return
	}

	snapshot, err := c.dealer.SubmitAction(data.RoundID, data)
	if err != nil {
		// Rejections ship the current state so the client can resync.
		c.replyError(msg.RequestID, CodeForError(err), err.Error(), snapshotRef(snapshot, err))
		return
	}
	c.reply(msg.RequestID, MessageTypeSnapshot, SnapshotData{Snapshot: snapshot})
}

func (c *Connection) handleReveal(msg *Message) {
	var data RevealData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		c.replyError(msg.RequestID, CodeBadRequest, err.Error(), nil)
		return
	}

	transcript, err := c.dealer.Reveal(data.RoundID)
	if err != nil {
		c.replyError(msg.RequestID, CodeForError(err), err.Error(), nil)
		return
	}
	c.reply(msg.RequestID, MessageTypeRevealed, RevealedData{
		RoundID:    data.RoundID,
		Transcript: transcript,
	})
}

func (c *Connection) reply(requestID string, messageType MessageType, data interface{}) {
	msg, err := NewMessage(messageType, data)
	if err != nil {
		c.logger.Error("failed to marshal reply", "type", messageType, "error", err)
		return
	}
	msg.RequestID = requestID
	_ = c.SendMessage(msg)
}

func (c *Connection) replyError(requestID, code, message string, snapshot *game.Snapshot) {
	msg, err := NewMessage(MessageTypeError, ErrorData{
		Code:     code,
		Message:  message,
		Snapshot: snapshot,
	})
	if err != nil {
		c.logger.Error("failed to marshal error reply", "error", err)
		return
	}
	msg.RequestID = requestID
	_ = c.SendMessage(msg)
}

// snapshotRef returns the snapshot to attach to a rejection, or nil when
// the round does not exist at all
func snapshotRef(s game.Snapshot, err error) *game.Snapshot {
	if errors.Is(err, ErrRoundNotFound) {
		return nil
	}
	return &s
}
