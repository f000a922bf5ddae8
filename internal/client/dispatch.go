package client

import (
	"encoding/json"

	"github.com/vovakirdan/quadra-client/internal/event"
	"github.com/vovakirdan/quadra-client/internal/proto"
)

// dispatcher routes decoded inbound packets to session/room state mutation
// and bus notifications. It runs on the connection's read goroutine; every
// handler takes the client mutex and publishes only after releasing it so
// subscribers may call back into the client.
type dispatcher struct {
	c        *Client
	handlers map[string]func(json.RawMessage)
}

func newDispatcher(c *Client) *dispatcher {
	d := &dispatcher{c: c}
	d.handlers = map[string]func(json.RawMessage){
		proto.CommandJoinRoom:       d.joinAck,
		proto.CommandLeaveRoom:      d.leaveAck,
		proto.CommandChat:           d.chat,
		proto.CommandSocialInvite:   d.invite,
		proto.CommandSocialPresence: d.presence,
		proto.CommandSocialDM:       d.directMessage,
	}
	return d
}

func (d *dispatcher) handle(p proto.Packet) {
	h, ok := d.handlers[p.Command]
	if !ok {
		// Unknown commands are expected; the gateway adds them faster than
		// clients update.
		d.c.log.Debug().Str("command", p.Command).Msg("ignoring unknown command")
		return
	}
	h(p.Data)
}

func (d *dispatcher) joinAck(data json.RawMessage) {
	var roomID string
	if err := json.Unmarshal(data, &roomID); err != nil {
		d.c.log.Warn().Err(err).Msg("bad joinroom ack")
		return
	}

	c := d.c
	c.mu.Lock()
	if c.room.id == roomID {
		// Duplicate ack; state already consistent.
		c.mu.Unlock()
		return
	}
	if c.pendingJoin != roomID {
		c.mu.Unlock()
		c.log.Debug().Str("room", roomID).Msg("stale joinroom ack")
		return
	}
	c.room.id = roomID
	c.room.bracket = proto.BracketPlayer
	c.pendingJoin = ""
	c.lastRoom = roomID
	c.mu.Unlock()

	c.log.Info().Str("room", roomID).Msg("joined room")
	c.bus.Publish(event.Join, nil)
}

func (d *dispatcher) leaveAck(json.RawMessage) {
	c := d.c
	c.mu.Lock()
	if c.room.id == "" {
		// Already cleared, either by an earlier ack or by the implicit leave
		// inside Join.
		c.mu.Unlock()
		return
	}
	roomID := c.room.id
	c.room.id = ""
	c.room.bracket = ""
	c.lastRoom = ""
	c.mu.Unlock()

	c.log.Info().Str("room", roomID).Msg("left room")
	c.bus.Publish(event.Leave, nil)
}

func (d *dispatcher) chat(data json.RawMessage) {
	var msg proto.ChatData
	if err := json.Unmarshal(data, &msg); err != nil {
		d.c.log.Warn().Err(err).Msg("bad chat packet")
		return
	}

	c := d.c
	c.mu.Lock()
	inRoom := c.room.id != ""
	c.mu.Unlock()
	if !inRoom {
		c.log.Debug().Str("author", msg.Author).Msg("chat packet outside a room")
		return
	}

	c.bus.Publish(event.Message, &event.MessagePayload{
		Content:       msg.Content,
		Author:        msg.Author,
		SystemMessage: msg.SystemMessage,
		ID:            msg.ID,
		TS:            msg.TS,
	})
}

func (d *dispatcher) invite(data json.RawMessage) {
	var inv proto.InviteData
	if err := json.Unmarshal(data, &inv); err != nil {
		d.c.log.Warn().Err(err).Msg("bad invite packet")
		return
	}
	d.c.bus.Publish(event.Invite, &event.InvitePayload{
		Author:   inv.Author,
		RoomID:   inv.Room.ID,
		RoomName: inv.Room.Name,
	})
}

// presence echoes mutate local state only when they target the authenticated
// user; everyone else's presence is not this session's concern.
func (d *dispatcher) presence(data json.RawMessage) {
	var p proto.PresenceData
	if err := json.Unmarshal(data, &p); err != nil {
		d.c.log.Warn().Err(err).Msg("bad presence packet")
		return
	}

	c := d.c
	c.mu.Lock()
	if p.User != "" && p.User == c.identity.UserID {
		c.presence = proto.PresenceData{Status: p.Status, Detail: p.Detail}
	}
	c.mu.Unlock()
}

func (d *dispatcher) directMessage(data json.RawMessage) {
	var dm proto.DMData
	if err := json.Unmarshal(data, &dm); err != nil {
		d.c.log.Warn().Err(err).Msg("bad dm packet")
		return
	}
	d.c.bus.Publish(event.DM, &event.DMPayload{
		Author:  dm.Author,
		Content: dm.Msg,
		TS:      dm.TS,
	})
}
