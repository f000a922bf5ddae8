// Package client implements the session layer for the Quadra gateway: one
// authenticated user, one socket, at most one room.
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/quadra-client/internal/auth"
	"github.com/vovakirdan/quadra-client/internal/config"
	"github.com/vovakirdan/quadra-client/internal/event"
	"github.com/vovakirdan/quadra-client/internal/log"
	"github.com/vovakirdan/quadra-client/internal/proto"
)

// Client is the single authenticated session this process owns. All session
// and room state is guarded by one mutex; inbound dispatch and caller-issued
// actions serialize through it.
type Client struct {
	cfg  config.Config
	log  *zerolog.Logger
	bus  *event.Bus
	conn *Conn

	mu          sync.Mutex
	token       string
	identity    auth.Identity
	handling    proto.Handling
	presence    proto.PresenceData
	room        *Room
	pendingJoin string
	lastRoom    string
	resuming    bool
	closed      bool
}

// New constructs a disconnected client from configuration. A nil logger
// disables logging.
func New(cfg config.Config, logger *zerolog.Logger) *Client {
	if logger == nil {
		logger = log.Nop()
	}

	c := &Client{
		cfg:      cfg,
		log:      logger,
		bus:      event.NewBus(),
		handling: cfg.Handling,
		presence: proto.PresenceData{Status: proto.StatusOnline},
	}
	if c.handling == (proto.Handling{}) {
		c.handling = proto.DefaultHandling()
	}
	c.room = &Room{client: c}

	d := newDispatcher(c)
	c.conn = NewConn(cfg.GatewayURL, cfg.ConnectTimeout, logger)
	c.conn.onPacket = d.handle
	c.conn.onClosed = c.connClosed
	return c
}

// On subscribes a handler to a named event. See the event package for the
// payload delivered per name.
func (c *Client) On(name string, h event.Handler) {
	c.bus.Subscribe(name, h)
}

// Connect opens the gateway connection and authenticates. The token is
// attached on the first call and immutable afterwards; resume passes an empty
// token to reuse it.
func (c *Client) Connect(ctx context.Context, token string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.token == "" {
		c.token = token
		if ident, err := auth.ParseIdentity(token); err != nil {
			c.log.Debug().Err(err).Msg("token is not a jwt, session is anonymous")
		} else {
			c.identity = ident
		}
	}
	tok := c.token
	handling := c.handling
	c.mu.Unlock()

	return c.conn.Connect(ctx, tok, handling)
}

// Close tears the session down and closes the socket. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.room.id = ""
	c.room.bracket = ""
	c.pendingJoin = ""
	c.mu.Unlock()
	return c.conn.Disconnect()
}

// Join requests membership in roomID. If the session is already in a room it
// first sends a leave, so the gateway never sees two memberships at once.
// Room state is confirmed, not assumed: the room id is set only when the
// joinroom ack arrives, and the join event fires then.
func (c *Client) Join(roomID string) error {
	if roomID == "" {
		return errors.New("join: empty room id")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	if c.room.id != "" {
		if err := c.sendLeaveLocked(); err != nil {
			return err
		}
		c.room.id = ""
		c.room.bracket = ""
		c.lastRoom = ""
	}

	data, err := proto.Marshal(roomID)
	if err != nil {
		return err
	}
	if _, err := c.conn.Send(proto.CommandJoinRoom, data, true); err != nil {
		return err
	}
	c.pendingJoin = roomID
	return nil
}

// Leave requests leaving the current room. The local room id is cleared when
// the leaveroom ack arrives, and the leave event fires then.
func (c *Client) Leave() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room.id == "" && c.pendingJoin == "" {
		return ErrNotInRoom
	}
	if err := c.sendLeaveLocked(); err != nil {
		return err
	}
	c.pendingJoin = ""
	c.lastRoom = ""
	return nil
}

func (c *Client) sendLeaveLocked() error {
	// leaveroom carries a literal false sentinel instead of a payload.
	data, err := proto.Marshal(false)
	if err != nil {
		return err
	}
	_, err = c.conn.Send(proto.CommandLeaveRoom, data, true)
	return err
}

// SetPresence broadcasts the session's presence. Fire and forget: the last
// local call wins immediately, and a missing connection is not an error.
func (c *Client) SetPresence(status, detail string) error {
	p := proto.PresenceData{Status: status, Detail: detail}
	if err := p.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.presence = p
	c.mu.Unlock()

	data, err := proto.Marshal(p)
	if err != nil {
		return err
	}
	if _, err := c.conn.Send(proto.CommandSocialPresence, data, false); err != nil {
		if errors.Is(err, ErrNotConnected) {
			c.log.Debug().Str("status", status).Msg("presence not sent, offline")
			return nil
		}
		return err
	}
	return nil
}

// DirectMessage sends a private message to another user.
func (c *Client) DirectMessage(recipient, content string) error {
	data, err := proto.Marshal(proto.DMData{Recipient: recipient, Msg: content})
	if err != nil {
		return err
	}
	_, err = c.conn.Send(proto.CommandSocialDM, data, false)
	return err
}

// Invite asks another user to join the session's current room.
func (c *Client) Invite(userID string) error {
	data, err := proto.Marshal(userID)
	if err != nil {
		return err
	}
	_, err = c.conn.Send(proto.CommandSocialInvite, data, false)
	return err
}

// Room returns the session's room handle. Its actions fail with ErrNotInRoom
// until a join is confirmed.
func (c *Client) Room() *Room {
	return c.room
}

// Presence returns the last locally set presence.
func (c *Client) Presence() proto.PresenceData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presence
}

// Handling returns the session's input-handling configuration.
func (c *Client) Handling() proto.Handling {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handling
}

// SetHandling reconfigures input handling. The new values are transmitted in
// the next authorize handshake; inbound packets never change them.
func (c *Client) SetHandling(h proto.Handling) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handling = h
}

// Identity returns the user identity decoded from the session token; zero for
// anonymous (opaque-token) sessions.
func (c *Client) Identity() auth.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Connected reports whether the gateway socket is open.
func (c *Client) Connected() bool {
	return c.conn.Connected()
}

// connClosed handles unexpected socket closure. Room membership cannot
// outlive the socket, so it is dropped before anyone is notified.
func (c *Client) connClosed(err error) {
	c.mu.Lock()
	c.room.id = ""
	c.room.bracket = ""
	c.pendingJoin = ""
	resuming := c.cfg.ResumeEnabled && !c.closed
	// A resume loop that is still running picks this drop up itself; spawn a
	// new one only when none is active.
	spawn := resuming && !c.resuming
	if spawn {
		c.resuming = true
	}
	c.mu.Unlock()

	c.bus.Publish(event.Disconnected, &event.DisconnectedPayload{Err: err, Resuming: resuming})
	if spawn {
		go c.resume()
	}
}

// resume re-dials with exponential backoff, re-authorizes and re-joins the
// last confirmed room.
func (c *Client) resume() {
	b := &backoff.Backoff{
		Min:    c.cfg.ResumeMinDelay,
		Max:    c.cfg.ResumeMaxDelay,
		Jitter: true,
	}

	for {
		c.mu.Lock()
		if c.closed {
			c.resuming = false
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		wait := b.Duration()
		time.Sleep(wait)

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
		err := c.Connect(ctx, "")
		cancel()
		if err != nil {
			if c.conn.Connected() {
				// Reconnected by hand while we were backing off.
				c.mu.Lock()
				c.resuming = false
				c.mu.Unlock()
				return
			}
			c.log.Warn().Err(err).Dur("waited", wait).Msg("resume attempt failed")
			continue
		}

		c.mu.Lock()
		if !c.conn.Connected() {
			// Dropped again before the flag could be handed back; that drop's
			// connClosed saw resuming set and left the retry to this loop.
			c.mu.Unlock()
			continue
		}
		room := c.lastRoom
		c.resuming = false
		c.mu.Unlock()

		c.bus.Publish(event.Resumed, nil)
		if room != "" {
			if err := c.Join(room); err != nil {
				c.log.Warn().Err(err).Str("room", room).Msg("rejoin after resume failed")
			}
		}
		return
	}
}
