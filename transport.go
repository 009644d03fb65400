package rtm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/gobwas/httphead"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsflate"
	"github.com/gobwas/ws/wsutil"

	"github.com/relaydesk/rtm-go/frame"
)

// FrameKind distinguishes the frames a Conn surfaces to the lifecycle.
type FrameKind int

const (
	FrameText FrameKind = iota
	FramePing
)

// Frame is one inbound unit read from the socket.
type Frame struct {
	Kind    FrameKind
	Payload []byte
}

// Transport opens the realtime socket.
type Transport interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Conn is a live socket. ReadFrame is called from a single goroutine;
// writes may come from any goroutine. ReadFrame returns an error once the
// connection terminates, a *CloseError when the server closed it cleanly.
type Conn interface {
	ReadFrame() (Frame, error)
	WriteText(p []byte) error
	WritePong(p []byte) error
	Close() error
}

// WebSocketTransport is the default Transport.
type WebSocketTransport struct {
	// Compression offers permessage-deflate during the opening handshake.
	Compression bool
}

// Dial connects to url and completes the WebSocket handshake.
func (t WebSocketTransport) Dial(ctx context.Context, url string) (Conn, error) {
	var d ws.Dialer
	if t.Compression {
		d.Extensions = []httphead.Option{wsflate.DefaultParameters.Option()}
	}

	conn, br, hs, err := d.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	c := &wsConn{conn: conn}
	for _, opt := range hs.Extensions {
		if string(opt.Name) == wsflate.ExtensionName {
			c.deflate = true
		}
	}

	// br holds whatever the server sent right after the handshake response.
	var src io.Reader = conn
	if br != nil {
		src = io.MultiReader(br, conn)
	}
	c.reader = &wsutil.Reader{
		Source:         src,
		State:          ws.StateClientSide,
		OnIntermediate: c.handleIntermediate,
	}
	if c.deflate {
		// RSV1 marks compressed messages once the extension is agreed.
		c.reader.State |= ws.StateExtended
		c.reader.Extensions = []wsutil.RecvExtension{&c.msg}
	}
	return c, nil
}

type wsConn struct {
	conn    net.Conn
	reader  *wsutil.Reader
	msg     wsflate.MessageState
	deflate bool

	mu        sync.Mutex // serialises writes
	closeOnce sync.Once
}

func (c *wsConn) ReadFrame() (Frame, error) {
	for {
		hdr, err := c.reader.NextFrame()
		if err != nil {
			return Frame{}, err
		}

		switch hdr.OpCode {
		case ws.OpText, ws.OpBinary:
			payload, err := io.ReadAll(c.reader)
			if err != nil {
				return Frame{}, err
			}
			if c.msg.IsCompressed() {
				if payload, err = frame.Inflate(payload); err != nil {
					return Frame{}, fmt.Errorf("inflate: %w", err)
				}
			}
			return Frame{Kind: FrameText, Payload: payload}, nil

		case ws.OpPing:
			payload, err := io.ReadAll(c.reader)
			if err != nil {
				return Frame{}, err
			}
			return Frame{Kind: FramePing, Payload: payload}, nil

		case ws.OpClose:
			payload, err := io.ReadAll(c.reader)
			if err != nil {
				return Frame{}, err
			}
			code, reason := ws.ParseCloseFrameData(payload)
			// A close frame without a status gets an empty reply; 1005 is
			// reserved and never sent.
			var body []byte
			if code == 0 {
				code = ws.StatusNoStatusRcvd
			} else {
				body = ws.NewCloseFrameBody(code, "")
			}
			if err := c.writeFrame(ws.NewCloseFrame(body)); err != nil {
				slog.Debug("close reply failed", "error", err)
			}
			return Frame{}, &CloseError{Code: int(code), Reason: reason}

		default:
			if err := c.reader.Discard(); err != nil {
				return Frame{}, err
			}
		}
	}
}

// handleIntermediate answers pings interleaved with a fragmented message.
func (c *wsConn) handleIntermediate(hdr ws.Header, r io.Reader) error {
	payload, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if hdr.OpCode == ws.OpPing {
		return c.WritePong(payload)
	}
	return nil
}

func (c *wsConn) WriteText(p []byte) error {
	f := ws.NewTextFrame(p)
	if c.deflate {
		if compressed, ok := frame.Deflate(p); ok {
			f = ws.NewTextFrame(compressed)
			f.Header.Rsv = ws.Rsv(true, false, false)
		}
	}
	return c.writeFrame(f)
}

func (c *wsConn) WritePong(p []byte) error {
	return c.writeFrame(ws.NewPongFrame(p))
}

func (c *wsConn) writeFrame(f ws.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ws.WriteFrame(c.conn, ws.MaskFrame(f))
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}
