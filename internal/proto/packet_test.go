package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	id := int64(42)
	cases := []struct {
		name string
		pkt  Packet
	}{
		{
			name: "with id and data",
			pkt:  Packet{ID: &id, Command: CommandJoinRoom, Data: json.RawMessage(`"ROOM1"`)},
		},
		{
			name: "without id",
			pkt:  Packet{Command: CommandSocialPresence, Data: json.RawMessage(`{"status":"away","detail":""}`)},
		},
		{
			name: "without data",
			pkt:  Packet{Command: CommandLeaveRoom},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := Encode(tc.pkt)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := Decode(raw)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Command != tc.pkt.Command {
				t.Fatalf("command mismatch: %q != %q", got.Command, tc.pkt.Command)
			}
			if (got.ID == nil) != (tc.pkt.ID == nil) {
				t.Fatalf("id presence mismatch: %v vs %v", got.ID, tc.pkt.ID)
			}
			if got.ID != nil && *got.ID != *tc.pkt.ID {
				t.Fatalf("id mismatch: %d != %d", *got.ID, *tc.pkt.ID)
			}
			if !bytes.Equal(got.Data, tc.pkt.Data) {
				t.Fatalf("data mismatch: %s != %s", got.Data, tc.pkt.Data)
			}
		})
	}
}

func TestEncodeRejectsEmptyCommand(t *testing.T) {
	if _, err := Encode(Packet{Data: json.RawMessage(`1`)}); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestDecodeMissingCommand(t *testing.T) {
	_, err := Decode([]byte(`{"id":1,"data":"x"}`))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestDecodeUnparsableBody(t *testing.T) {
	_, err := Decode([]byte(`{{{`))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestDecodeToleratesUnknownFields(t *testing.T) {
	pkt, err := Decode([]byte(`{"command":"foo.bar","extra":true,"data":{"x":1}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pkt.Command != "foo.bar" {
		t.Fatalf("unexpected command %q", pkt.Command)
	}
}

func TestBracketValid(t *testing.T) {
	if !BracketPlayer.Valid() || !BracketSpectator.Valid() {
		t.Fatal("known brackets must validate")
	}
	if Bracket("referee").Valid() {
		t.Fatal("unknown bracket must not validate")
	}
}

func TestPresenceValidate(t *testing.T) {
	for _, s := range []string{StatusOnline, StatusAway, StatusBusy, StatusInvisible} {
		if err := (PresenceData{Status: s}).Validate(); err != nil {
			t.Fatalf("status %q: %v", s, err)
		}
	}
	if err := (PresenceData{Status: "dnd"}).Validate(); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestDefaultHandling(t *testing.T) {
	h := DefaultHandling()
	if h.ARR != "1" || h.DAS != "1" || h.SDF != "5" || !h.SafeLock {
		t.Fatalf("unexpected defaults: %+v", h)
	}
}
