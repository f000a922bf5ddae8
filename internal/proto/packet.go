package proto

import (
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
)

// Packet is the wire envelope for every message exchanged with the gateway.
// ID is present only on commands that correlate with a server acknowledgement.
type Packet struct {
	ID      *int64          `json:"id,omitempty"`
	Command string          `json:"command"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Outbound command names.
const (
	CommandAuthorize         = "authorize"
	CommandJoinRoom          = "joinroom"
	CommandLeaveRoom         = "leaveroom"
	CommandChat              = "chat"
	CommandSwitchBracket     = "switchbracket"
	CommandSwitchBracketHost = "switchbrackethost"
	CommandUpdateConfig      = "updateconfig"
	CommandSocialDM          = "social.dm"
	CommandSocialPresence    = "social.presence"
	CommandSocialInvite      = "social.invite"
)

// DecodeError reports a malformed inbound packet. The read loop logs and drops
// the packet; this error never reaches callers of the client API.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode packet: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode packet: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode serializes a packet for the wire. Packets without a command are
// rejected so a half-built command can never be written to the socket.
func Encode(p Packet) ([]byte, error) {
	if p.Command == "" {
		return nil, fmt.Errorf("encode packet: empty command")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode packet %q: %w", p.Command, err)
	}
	return raw, nil
}

// Decode parses a wire packet. A missing command field or unparsable body
// yields a *DecodeError.
func Decode(raw []byte) (Packet, error) {
	var p Packet
	if err := json.Unmarshal(raw, &p); err != nil {
		return Packet{}, &DecodeError{Reason: "unparsable body", Err: err}
	}
	if p.Command == "" {
		return Packet{}, &DecodeError{Reason: "missing command field"}
	}
	return p, nil
}

// Marshal is a convenience for building Packet.Data from a typed payload.
func Marshal(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return raw, nil
}

// Bracket is a member role inside a room.
type Bracket string

const (
	BracketPlayer    Bracket = "player"
	BracketSpectator Bracket = "spectator"
)

var brackets = []Bracket{BracketPlayer, BracketSpectator}

// Valid reports whether the bracket is one the gateway recognises.
func (b Bracket) Valid() bool {
	return lo.Contains(brackets, b)
}

// Presence statuses.
const (
	StatusOnline    = "online"
	StatusAway      = "away"
	StatusBusy      = "busy"
	StatusInvisible = "invisible"
)

var presenceStatuses = []string{StatusOnline, StatusAway, StatusBusy, StatusInvisible}

// PresenceData is the payload of social.presence, both outbound and as the
// gateway's echo. User is set only on inbound echoes.
type PresenceData struct {
	User   string `json:"user,omitempty"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// Validate rejects statuses the gateway would bounce.
func (p PresenceData) Validate() error {
	if !lo.Contains(presenceStatuses, p.Status) {
		return fmt.Errorf("invalid presence status %q", p.Status)
	}
	return nil
}

// AuthorizeData opens the session after the transport connects.
type AuthorizeData struct {
	Token    string   `json:"token"`
	Handling Handling `json:"handling"`
}

// AuthorizeReply is the gateway's answer to authorize.
type AuthorizeReply struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// Handling carries the session's input-handling configuration.
type Handling struct {
	ARR      string `json:"arr" mapstructure:"arr" yaml:"arr"`
	DAS      string `json:"das" mapstructure:"das" yaml:"das"`
	SDF      string `json:"sdf" mapstructure:"sdf" yaml:"sdf"`
	SafeLock bool   `json:"safelock" mapstructure:"safelock" yaml:"safelock"`
}

// DefaultHandling returns the gateway's documented defaults.
func DefaultHandling() Handling {
	return Handling{ARR: "1", DAS: "1", SDF: "5", SafeLock: true}
}

// DMData is the payload of social.dm in both directions. Recipient is set on
// outbound sends, Author on inbound deliveries.
type DMData struct {
	Recipient string `json:"recipient,omitempty"`
	Author    string `json:"author,omitempty"`
	Msg       string `json:"msg"`
	TS        int64  `json:"ts,omitempty"`
}

// SwitchBracketHostData asks the gateway to move another member.
type SwitchBracketHostData struct {
	UID     string  `json:"uid"`
	Bracket Bracket `json:"bracket"`
}

// ConfigEntry is one room-config assignment; updateconfig carries an ordered
// list of them.
type ConfigEntry struct {
	Index string `json:"index"`
	Value any    `json:"value"`
}

// ChatData is an inbound room chat message.
type ChatData struct {
	ID            string `json:"id,omitempty"`
	Content       string `json:"content"`
	Author        string `json:"author"`
	SystemMessage bool   `json:"systemMessage"`
	TS            int64  `json:"ts"`
}

// RoomRef identifies a room inside an invite.
type RoomRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// InviteData is an inbound room invitation.
type InviteData struct {
	Author string  `json:"author"`
	Room   RoomRef `json:"room"`
}
