package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by sends attempted without an open socket.
	ErrNotConnected = errors.New("not connected")
	// ErrNotInRoom is returned by room-scoped actions with no active room.
	ErrNotInRoom = errors.New("not in room")
	// ErrClosed is returned once the client has been torn down.
	ErrClosed = errors.New("client closed")
)

// Connect stages for ConnError.
const (
	StageDial      = "dial"
	StageAuthorize = "authorize"
)

// ConnError reports a failed connection attempt. Stage tells whether the
// transport or the authorize handshake failed.
type ConnError struct {
	Stage  string
	Reason string
	Err    error
}

func (e *ConnError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("connect (%s): %v", e.Stage, e.Err)
	case e.Reason != "":
		return fmt.Sprintf("connect (%s): %s", e.Stage, e.Reason)
	default:
		return fmt.Sprintf("connect (%s) failed", e.Stage)
	}
}

func (e *ConnError) Unwrap() error { return e.Err }
