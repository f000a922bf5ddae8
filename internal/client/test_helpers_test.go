package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/quadra-client/internal/config"
	"github.com/vovakirdan/quadra-client/internal/proto"
)

// testGateway is an in-process stand-in for the real gateway: it accepts
// websocket connections, answers the authorize handshake, records every
// packet it receives and acknowledges joins, leaves and chat like the server
// would.
type testGateway struct {
	t         *testing.T
	ts        *httptest.Server
	authFail  bool
	authDelay time.Duration
	autoAck   bool

	mu      sync.Mutex
	conn    *websocket.Conn
	connCtx context.Context
	packets []proto.Packet
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()
	g := &testGateway{t: t, autoAck: true}
	g.ts = httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(g.ts.Close)
	return g
}

func (g *testGateway) url() string {
	return strings.Replace(g.ts.URL, "http", "ws", 1)
}

func (g *testGateway) config() config.Config {
	cfg := config.Default()
	cfg.GatewayURL = g.url()
	cfg.ConnectTimeout = 2 * time.Second
	cfg.ResumeMinDelay = 10 * time.Millisecond
	cfg.ResumeMaxDelay = 50 * time.Millisecond
	return cfg
}

func (g *testGateway) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}
	ctx := r.Context()

	_, raw, err := conn.Read(ctx)
	if err != nil {
		return
	}
	pkt, err := proto.Decode(raw)
	if err != nil || pkt.Command != proto.CommandAuthorize {
		conn.Close(websocket.StatusPolicyViolation, "expected authorize")
		return
	}

	if g.authDelay > 0 {
		time.Sleep(g.authDelay)
	}

	reply := proto.AuthorizeReply{Success: !g.authFail}
	if g.authFail {
		reply.Reason = "bad token"
	}
	g.write(ctx, conn, proto.Packet{Command: proto.CommandAuthorize, Data: mustMarshal(g.t, reply)})
	if g.authFail {
		conn.Close(websocket.StatusNormalClosure, "denied")
		return
	}

	g.mu.Lock()
	g.conn = conn
	g.connCtx = ctx
	g.mu.Unlock()

	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			return
		}
		pkt, err := proto.Decode(raw)
		if err != nil {
			continue
		}

		g.mu.Lock()
		g.packets = append(g.packets, pkt)
		g.mu.Unlock()

		if !g.autoAck {
			continue
		}
		switch pkt.Command {
		case proto.CommandJoinRoom:
			g.write(ctx, conn, proto.Packet{Command: proto.CommandJoinRoom, Data: pkt.Data})
		case proto.CommandLeaveRoom:
			g.write(ctx, conn, proto.Packet{Command: proto.CommandLeaveRoom, Data: pkt.Data})
		case proto.CommandChat:
			var content string
			if err := json.Unmarshal(pkt.Data, &content); err != nil {
				continue
			}
			echo := proto.ChatData{Content: content, Author: "tester", TS: time.Now().UnixMilli()}
			g.write(ctx, conn, proto.Packet{Command: proto.CommandChat, Data: mustMarshal(g.t, echo)})
		}
	}
}

func (g *testGateway) write(ctx context.Context, conn *websocket.Conn, pkt proto.Packet) {
	raw, err := proto.Encode(pkt)
	if err != nil {
		g.t.Errorf("gateway encode: %v", err)
		return
	}
	_ = conn.Write(ctx, websocket.MessageText, raw)
}

// inject sends an arbitrary packet to the connected client.
func (g *testGateway) inject(pkt proto.Packet) {
	conn, ctx := g.current()
	if conn == nil {
		g.t.Fatal("inject: no client connected")
	}
	g.write(ctx, conn, pkt)
}

// injectRaw sends raw bytes, bypassing the codec.
func (g *testGateway) injectRaw(raw []byte) {
	conn, ctx := g.current()
	if conn == nil {
		g.t.Fatal("injectRaw: no client connected")
	}
	_ = conn.Write(ctx, websocket.MessageText, raw)
}

// dropClient closes the socket from the server side, simulating an
// unexpected connection loss.
func (g *testGateway) dropClient() {
	conn, _ := g.current()
	if conn == nil {
		g.t.Fatal("dropClient: no client connected")
	}
	_ = conn.Close(websocket.StatusInternalError, "dropped")
}

func (g *testGateway) current() (*websocket.Conn, context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.conn, g.connCtx
}

// received returns the commands recorded so far, in arrival order.
func (g *testGateway) received() []proto.Packet {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]proto.Packet, len(g.packets))
	copy(out, g.packets)
	return out
}

func (g *testGateway) commandNames() []string {
	pkts := g.received()
	names := make([]string, 0, len(pkts))
	for _, p := range pkts {
		names = append(names, p.Command)
	}
	return names
}

func mustMarshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := proto.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

// collect buffers payloads published on a named event.
func collect(c *Client, name string) <-chan any {
	ch := make(chan any, 16)
	c.On(name, func(p any) { ch <- p })
	return ch
}

func mustEvent(t *testing.T, ch <-chan any, what string) any {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatalf("expected %s event not received", what)
		return nil
	}
}

func mustNoEvent(t *testing.T, ch <-chan any, what string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("unexpected %s event", what)
	case <-time.After(150 * time.Millisecond):
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", what)
}
