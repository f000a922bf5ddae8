package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/vovakirdan/quadra-client/internal/proto"
)

// Conn owns the gateway socket and its sequencing state: one websocket, one
// per-epoch message-id counter, one read loop. Inbound packets are decoded
// and handed to onPacket; unexpected closures are reported through onClosed.
type Conn struct {
	url     string
	timeout time.Duration
	log     *zerolog.Logger

	// onPacket and onClosed are fixed before the first Connect.
	onPacket func(proto.Packet)
	onClosed func(err error)

	msgID     atomic.Int64
	connected atomic.Bool

	mu         sync.Mutex
	ws         *websocket.Conn
	epoch      string
	dialing    bool
	cancelRead context.CancelFunc
}

// NewConn builds an unconnected connection manager for the given gateway URL.
func NewConn(url string, timeout time.Duration, logger *zerolog.Logger) *Conn {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Conn{url: url, timeout: timeout, log: logger}
}

// Connect dials the gateway, performs the authorize handshake and starts the
// read loop. The message-id counter resets to its base, so ids are unique per
// connection epoch only. Transport and handshake failures return *ConnError.
func (c *Conn) Connect(ctx context.Context, token string, handling proto.Handling) error {
	// The dialing flag keeps the gate closed for the whole handshake, so two
	// overlapping Connect calls can never both install a socket.
	c.mu.Lock()
	if c.ws != nil || c.dialing {
		c.mu.Unlock()
		return &ConnError{Stage: StageDial, Err: errors.New("already connected")}
	}
	c.dialing = true
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ws, _, err := websocket.Dial(dialCtx, c.url, nil)
	if err != nil {
		c.setDialing(false)
		return &ConnError{Stage: StageDial, Err: err}
	}

	c.msgID.Store(0)
	epoch := uuid.NewString()

	if err := c.authorize(dialCtx, ws, token, handling); err != nil {
		ws.Close(websocket.StatusPolicyViolation, "authorize failed")
		c.setDialing(false)
		return err
	}

	readCtx, cancelRead := context.WithCancel(context.Background())

	c.mu.Lock()
	c.ws = ws
	c.epoch = epoch
	c.cancelRead = cancelRead
	c.dialing = false
	c.mu.Unlock()
	c.connected.Store(true)

	go c.readLoop(readCtx, ws)

	c.log.Info().Str("epoch", epoch).Str("url", c.url).Msg("gateway connected")
	return nil
}

func (c *Conn) authorize(ctx context.Context, ws *websocket.Conn, token string, handling proto.Handling) error {
	data, err := proto.Marshal(proto.AuthorizeData{Token: token, Handling: handling})
	if err != nil {
		return &ConnError{Stage: StageAuthorize, Err: err}
	}
	id := c.msgID.Inc()
	raw, err := proto.Encode(proto.Packet{ID: &id, Command: proto.CommandAuthorize, Data: data})
	if err != nil {
		return &ConnError{Stage: StageAuthorize, Err: err}
	}
	if err := ws.Write(ctx, websocket.MessageText, raw); err != nil {
		return &ConnError{Stage: StageAuthorize, Err: err}
	}

	// The gateway answers authorize before anything else; skip packets it may
	// push ahead of the reply anyway.
	for {
		_, msg, err := ws.Read(ctx)
		if err != nil {
			return &ConnError{Stage: StageAuthorize, Err: err}
		}
		pkt, err := proto.Decode(msg)
		if err != nil {
			return &ConnError{Stage: StageAuthorize, Err: err}
		}
		if pkt.Command != proto.CommandAuthorize {
			continue
		}
		var reply proto.AuthorizeReply
		if err := json.Unmarshal(pkt.Data, &reply); err != nil {
			return &ConnError{Stage: StageAuthorize, Err: err}
		}
		if !reply.Success {
			return &ConnError{Stage: StageAuthorize, Reason: reply.Reason}
		}
		return nil
	}
}

// NextMessageID returns the next unused message id for this connection epoch.
// Ids are strictly increasing integers starting at 1 and reset on Connect.
func (c *Conn) NextMessageID() int64 {
	return c.msgID.Inc()
}

// Send serializes {id?, command, data} and writes it to the socket. The write
// is queued without waiting for any acknowledgement. Returns the assigned id
// (0 when withID is false) and ErrNotConnected when no socket is open.
func (c *Conn) Send(command string, data json.RawMessage, withID bool) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ws == nil {
		return 0, ErrNotConnected
	}

	pkt := proto.Packet{Command: command, Data: data}
	var id int64
	if withID {
		id = c.msgID.Inc()
		pkt.ID = &id
	}
	raw, err := proto.Encode(pkt)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.ws.Write(ctx, websocket.MessageText, raw); err != nil {
		return 0, fmt.Errorf("send %s: %w", command, err)
	}
	return id, nil
}

// Disconnect closes the socket. Calling it twice is a no-op.
func (c *Conn) Disconnect() error {
	c.mu.Lock()
	ws := c.ws
	if ws == nil {
		c.mu.Unlock()
		return nil
	}
	c.ws = nil
	cancel := c.cancelRead
	c.cancelRead = nil
	epoch := c.epoch
	c.mu.Unlock()

	c.connected.Store(false)
	if cancel != nil {
		cancel()
	}
	c.log.Info().Str("epoch", epoch).Msg("gateway disconnected")
	return ws.Close(websocket.StatusNormalClosure, "bye")
}

// Connected reports whether a socket is currently open.
func (c *Conn) Connected() bool {
	return c.connected.Load()
}

func (c *Conn) setDialing(v bool) {
	c.mu.Lock()
	c.dialing = v
	c.mu.Unlock()
}

func (c *Conn) readLoop(ctx context.Context, ws *websocket.Conn) {
	for {
		_, raw, err := ws.Read(ctx)
		if err != nil {
			c.readClosed(ws, err)
			return
		}
		pkt, err := proto.Decode(raw)
		if err != nil {
			// Malformed inbound data never kills the connection.
			c.log.Warn().Err(err).Msg("dropping malformed packet")
			continue
		}
		if c.onPacket != nil {
			c.onPacket(pkt)
		}
	}
}

func (c *Conn) readClosed(ws *websocket.Conn, err error) {
	c.mu.Lock()
	if c.ws != ws {
		// This read loop belonged to a socket Disconnect or a reconnect has
		// already replaced; the current connection is untouched.
		c.mu.Unlock()
		return
	}
	c.ws = nil
	c.cancelRead = nil
	epoch := c.epoch
	c.mu.Unlock()
	c.connected.Store(false)

	if errors.Is(err, context.Canceled) {
		return
	}
	c.log.Warn().Err(err).Str("epoch", epoch).Msg("gateway connection lost")
	if c.onClosed != nil {
		c.onClosed(err)
	}
}
