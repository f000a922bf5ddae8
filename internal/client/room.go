package client

import (
	"fmt"

	"github.com/vovakirdan/quadra-client/internal/proto"
)

// Room is the session's view of its current room membership. The id is empty
// while not in a room; every action checks it first. Host privilege for
// SetMode and SetConfig is enforced by the gateway, not locally.
type Room struct {
	client  *Client
	id      string
	bracket proto.Bracket
}

// ID returns the confirmed room id, or empty when not in a room.
func (r *Room) ID() string {
	r.client.mu.Lock()
	defer r.client.mu.Unlock()
	return r.id
}

// Bracket returns the session's role in the room.
func (r *Room) Bracket() proto.Bracket {
	r.client.mu.Lock()
	defer r.client.mu.Unlock()
	return r.bracket
}

// Message sends a chat message to the room.
func (r *Room) Message(content string) error {
	c := r.client
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.id == "" {
		return ErrNotInRoom
	}
	data, err := proto.Marshal(content)
	if err != nil {
		return err
	}
	_, err = c.conn.Send(proto.CommandChat, data, true)
	return err
}

// SelfMode requests switching the session's own role between player and
// spectator. The bracket field updates when the gateway confirms via a room
// update, not here.
func (r *Room) SelfMode(mode proto.Bracket) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid bracket %q", mode)
	}
	c := r.client
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.id == "" {
		return ErrNotInRoom
	}
	data, err := proto.Marshal(mode)
	if err != nil {
		return err
	}
	_, err = c.conn.Send(proto.CommandSwitchBracket, data, true)
	return err
}

// SetMode requests switching another member's role. Requires host privilege
// at the gateway.
func (r *Room) SetMode(userID string, mode proto.Bracket) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid bracket %q", mode)
	}
	c := r.client
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.id == "" {
		return ErrNotInRoom
	}
	data, err := proto.Marshal(proto.SwitchBracketHostData{UID: userID, Bracket: mode})
	if err != nil {
		return err
	}
	_, err = c.conn.Send(proto.CommandSwitchBracketHost, data, true)
	return err
}

// SetConfig sends an ordered sequence of room-config assignments.
func (r *Room) SetConfig(entries []proto.ConfigEntry) error {
	c := r.client
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.id == "" {
		return ErrNotInRoom
	}
	data, err := proto.Marshal(entries)
	if err != nil {
		return err
	}
	_, err = c.conn.Send(proto.CommandUpdateConfig, data, true)
	return err
}
