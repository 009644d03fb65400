package rtm

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relaydesk/rtm-go/wire"
)

const startFixture = `{
	"ok": true,
	"url": "wss://rtm.example.test/websocket/abc",
	"self": {"id": "U0", "name": "rtmbot"},
	"team": {"id": "T0", "name": "Example"},
	"users": [
		{"id": "U1", "name": "alice"},
		{"id": "U2", "name": "bob"}
	],
	"channels": [
		{"id": "C1", "name": "general", "is_member": true},
		{"id": "C2", "name": "random"}
	],
	"groups": [
		{"id": "G1", "name": "secret"}
	],
	"bots": [
		{"id": "B1", "name": "deploybot"}
	],
	"ims": [
		{"id": "D1", "user": "U1"}
	]
}`

func startResponse(t *testing.T) *wire.StartResponse {
	t.Helper()
	var resp wire.StartResponse
	require.NoError(t, json.Unmarshal([]byte(startFixture), &resp))
	return &resp
}

func testSession(t *testing.T) (*Session, *fakeConn, *fakeOpener) {
	t.Helper()
	conn := newFakeConn()
	opener := &fakeOpener{}
	return NewSession(startResponse(t), "xoxb-test", conn, nil, opener), conn, opener
}

// fakeConn is an in-memory Conn. Tests push inbound frames with push/fail
// and inspect what was written.
type fakeConn struct {
	frames chan Frame
	errs   chan error
	done   chan struct{}
	once   sync.Once

	mu       sync.Mutex
	sent     [][]byte
	pongs    [][]byte
	writeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan Frame, 16),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
}

func (c *fakeConn) push(kind FrameKind, payload string) {
	c.frames <- Frame{Kind: kind, Payload: []byte(payload)}
}

func (c *fakeConn) fail(err error) { c.errs <- err }

func (c *fakeConn) ReadFrame() (Frame, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case err := <-c.errs:
		return Frame{}, err
	case <-c.done:
		return Frame{}, net.ErrClosed
	}
}

func (c *fakeConn) WriteText(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.sent = append(c.sent, append([]byte(nil), p...))
	return nil
}

func (c *fakeConn) WritePong(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pongs = append(c.pongs, append([]byte(nil), p...))
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *fakeConn) sentFrames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, p := range c.sent {
		out[i] = string(p)
	}
	return out
}

func (c *fakeConn) pongFrames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.pongs))
	for i, p := range c.pongs {
		out[i] = string(p)
	}
	return out
}

type fakeTransport struct {
	conn *fakeConn
	err  error

	mu   sync.Mutex
	urls []string
}

func (t *fakeTransport) Dial(_ context.Context, url string) (Conn, error) {
	t.mu.Lock()
	t.urls = append(t.urls, url)
	t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	return t.conn, nil
}

type fakeOpener struct {
	channelID string
	err       error

	calls []string // "token/user"
}

func (o *fakeOpener) OpenIM(_ context.Context, token, userID string) (string, error) {
	o.calls = append(o.calls, token+"/"+userID)
	if o.err != nil {
		return "", o.err
	}
	return o.channelID, nil
}
