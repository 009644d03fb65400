package rtm

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsflate"
	"github.com/stretchr/testify/require"

	"github.com/relaydesk/rtm-go/frame"
)

// wsPeer is the server end of a test socket.
type wsPeer struct {
	conn    net.Conn
	rd      *bufio.Reader
	deflate bool
}

func (p *wsPeer) write(f ws.Frame) error {
	return ws.WriteFrame(p.conn, f)
}

// read returns the next client frame with its payload unmasked.
func (p *wsPeer) read() (ws.Frame, error) {
	f, err := ws.ReadFrame(p.rd)
	if err != nil {
		return f, err
	}
	if f.Header.Masked {
		ws.Cipher(f.Payload, f.Header.Mask, 0)
		f.Header.Masked = false
	}
	return f, nil
}

// newWSServer starts a WebSocket endpoint that runs script against the first
// connection. The returned channel yields script's error once it finishes.
func newWSServer(t *testing.T, compress bool, script func(p *wsPeer) error) (string, <-chan error) {
	t.Helper()
	done := make(chan error, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ext := wsflate.Extension{Parameters: wsflate.DefaultParameters}
		var u ws.HTTPUpgrader
		if compress {
			u.Negotiate = ext.Negotiate
		}
		conn, rw, _, err := u.Upgrade(r, w)
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()

		_, accepted := ext.Accepted()
		done <- script(&wsPeer{conn: conn, rd: rw.Reader, deflate: accepted})
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http"), done
}

func dialTest(t *testing.T, tr WebSocketTransport, url string) Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := tr.Dial(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketTransport_TextPingClose(t *testing.T) {
	url, done := newWSServer(t, false, func(p *wsPeer) error {
		if err := p.write(ws.NewTextFrame([]byte(`{"type":"hello"}`))); err != nil {
			return err
		}
		if err := p.write(ws.NewPingFrame([]byte("p1"))); err != nil {
			return err
		}

		pong, err := p.read()
		if err != nil {
			return err
		}
		if pong.Header.OpCode != ws.OpPong || string(pong.Payload) != "p1" {
			return errors.New("expected pong p1")
		}

		body := ws.NewCloseFrameBody(ws.StatusGoingAway, "bye")
		if err := p.write(ws.NewCloseFrame(body)); err != nil {
			return err
		}
		reply, err := p.read()
		if err != nil {
			return err
		}
		if reply.Header.OpCode != ws.OpClose {
			return errors.New("expected close reply")
		}
		return nil
	})

	conn := dialTest(t, WebSocketTransport{}, url)

	f, err := conn.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, FrameText, f.Kind)
	require.JSONEq(t, `{"type":"hello"}`, string(f.Payload))

	f, err = conn.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, FramePing, f.Kind)
	require.Equal(t, "p1", string(f.Payload))
	require.NoError(t, conn.WritePong(f.Payload))

	_, err = conn.ReadFrame()
	var ce *CloseError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, int(ws.StatusGoingAway), ce.Code)
	require.Equal(t, "bye", ce.Reason)

	require.NoError(t, <-done)
}

func TestWebSocketTransport_CloseWithoutStatus(t *testing.T) {
	reply := make(chan ws.Frame, 1)
	url, done := newWSServer(t, false, func(p *wsPeer) error {
		if err := p.write(ws.NewCloseFrame(nil)); err != nil {
			return err
		}
		f, err := p.read()
		if err != nil {
			return err
		}
		reply <- f
		return nil
	})

	conn := dialTest(t, WebSocketTransport{}, url)

	_, err := conn.ReadFrame()
	var ce *CloseError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, int(ws.StatusNoStatusRcvd), ce.Code)

	require.NoError(t, <-done)
	f := <-reply
	require.Equal(t, ws.OpClose, f.Header.OpCode)
	require.Empty(t, f.Payload)
}

func TestWebSocketTransport_WriteText(t *testing.T) {
	got := make(chan string, 1)
	url, done := newWSServer(t, false, func(p *wsPeer) error {
		f, err := p.read()
		if err != nil {
			return err
		}
		got <- string(f.Payload)
		return nil
	})

	conn := dialTest(t, WebSocketTransport{}, url)
	require.NoError(t, conn.WriteText([]byte(`{"type":"typing","channel":"C1"}`)))

	require.NoError(t, <-done)
	require.Equal(t, `{"type":"typing","channel":"C1"}`, <-got)
}

func TestWebSocketTransport_Compression(t *testing.T) {
	large := `{"type":"message","text":"` + strings.Repeat("compress me ", 200) + `"}`

	got := make(chan string, 1)
	url, done := newWSServer(t, true, func(p *wsPeer) error {
		if !p.deflate {
			return errors.New("deflate not negotiated")
		}

		compressed, ok := frame.Deflate([]byte(large))
		if !ok {
			return errors.New("payload not compressed")
		}
		out := ws.NewTextFrame(compressed)
		out.Header.Rsv = ws.Rsv(true, false, false)
		if err := p.write(out); err != nil {
			return err
		}

		in, err := p.read()
		if err != nil {
			return err
		}
		if r1, _, _ := ws.RsvBits(in.Header.Rsv); !r1 {
			return errors.New("client frame not compressed")
		}
		plain, err := frame.Inflate(in.Payload)
		if err != nil {
			return err
		}
		got <- string(plain)
		return nil
	})

	conn := dialTest(t, WebSocketTransport{Compression: true}, url)

	f, err := conn.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, large, string(f.Payload))

	require.NoError(t, conn.WriteText([]byte(large)))
	require.NoError(t, <-done)
	require.Equal(t, large, <-got)
}

func TestWebSocketTransport_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = WebSocketTransport{}.Dial(context.Background(), "ws://"+addr+"/websocket")
	require.ErrorContains(t, err, "dial")
}

func TestWebSocketTransport_CloseIsIdempotent(t *testing.T) {
	url, _ := newWSServer(t, false, func(p *wsPeer) error {
		_, err := p.read()
		return err
	})

	conn := dialTest(t, WebSocketTransport{}, url)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	_, err := conn.ReadFrame()
	require.Error(t, err)
}
