// Package rtm is a realtime chat-session client. It bootstraps a session
// over the web API, holds the WebSocket open, keeps a local mirror of users,
// channels, groups, bots and direct channels, and lets callers address
// destinations by name ("#general", "@alice") instead of protocol IDs.
//
// A host plugs in by implementing Handler (usually by embedding BaseHandler
// and overriding the hooks it needs) and calling Client.Run.
package rtm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// Config holds connection parameters.
type Config struct {
	Token       string       // auth token passed to the handshake and web API calls
	APIEndpoint string       // web API base URL (e.g. "https://slack.com/api"); DefaultAPIEndpoint if empty
	HTTPClient  *http.Client // web API transport; a 30s timeout client if nil
	Transport   Transport    // socket implementation; WebSocketTransport if nil
	Compression bool         // offer permessage-deflate (default transport only)
	Logger      *slog.Logger // slog.Default() if nil
}

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Handler receives lifecycle events. Hooks run one at a time on the Run
// goroutine in arrival order; the next frame is not processed until the
// current hook returns. Each hook returns the host state to carry forward.
//
// A non-nil error from OnMessage or OnInfo ends the connection and becomes
// the reason passed to OnClose. An OnConnect error is returned from Run
// without calling OnClose.
type Handler[S any] interface {
	OnConnect(session *Session, state S) (S, error)
	OnMessage(env Envelope, session *Session, state S) (S, error)
	OnClose(reason error, session *Session, state S) (S, error)
	OnInfo(msg any, session *Session, state S) (S, error)
}

// BaseHandler implements every Handler hook as a no-op. Embed it and
// override what you need.
type BaseHandler[S any] struct{}

func (BaseHandler[S]) OnConnect(_ *Session, state S) (S, error) { return state, nil }
func (BaseHandler[S]) OnMessage(_ Envelope, _ *Session, state S) (S, error) { return state, nil }
func (BaseHandler[S]) OnClose(_ error, _ *Session, state S) (S, error) { return state, nil }
func (BaseHandler[S]) OnInfo(_ any, _ *Session, state S) (S, error) { return state, nil }

// Client drives one connection through its lifecycle. A Client runs once;
// there is no reconnect.
type Client[S any] struct {
	cfg       Config
	api       *APIClient
	transport Transport
	handler   Handler[S]
	logger    *slog.Logger

	mu      sync.Mutex
	status  State
	started bool
	conn    Conn
	session *Session

	state S // owned by the Run goroutine

	infoCh    chan any
	done      chan struct{}
	closeOnce sync.Once
}

// New prepares a client. Nothing touches the network until Run.
func New[S any](cfg Config, handler Handler[S], initial S) (*Client[S], error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("rtm: token is required")
	}
	if handler == nil {
		handler = BaseHandler[S]{}
	}
	api, err := NewAPIClient(cfg.APIEndpoint, cfg.HTTPClient)
	if err != nil {
		return nil, err
	}
	transport := cfg.Transport
	if transport == nil {
		transport = WebSocketTransport{Compression: cfg.Compression}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client[S]{
		cfg:       cfg,
		api:       api,
		transport: transport,
		handler:   handler,
		logger:    logger,
		state:     initial,
		infoCh:    make(chan any, 64),
		done:      make(chan struct{}),
	}, nil
}

// State returns the current lifecycle state.
func (c *Client[S]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Session returns the live session, or nil before the socket opened.
func (c *Client[S]) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Run performs the handshake, opens the socket and processes frames until
// the connection ends. It returns whatever OnClose returns.
//
// A failed handshake returns a *HandshakeError and leaves the client
// Disconnected.
func (c *Client[S]) Run(ctx context.Context) (S, error) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		var zero S
		return zero, ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	connID := uuid.NewString()
	logger := c.logger.With("conn_id", connID)

	c.setStatus(logger, StateConnecting)
	start, err := c.api.StartRTM(ctx, c.cfg.Token)
	if err != nil {
		c.setStatus(logger, StateDisconnected)
		return c.state, newHandshakeError(err)
	}

	conn, err := c.transport.Dial(ctx, start.URL)
	if err != nil {
		c.setStatus(logger, StateDisconnected)
		return c.state, err
	}

	session := NewSession(start, c.cfg.Token, conn, c.transport, c.api)
	session.connID = connID
	session.logger = logger

	c.mu.Lock()
	c.conn = conn
	c.session = session
	c.mu.Unlock()
	c.setStatus(logger, StateConnected)
	logger.Info("connected to realtime endpoint",
		"self", session.Me().Name(),
		"team", session.Team().Name(),
		"users", len(session.users),
		"channels", len(session.channels),
	)

	state, err := c.handler.OnConnect(session, c.state)
	if err != nil {
		c.shutdown()
		c.setStatus(logger, StateClosed)
		return c.state, fmt.Errorf("connect hook: %w", err)
	}
	c.state = state

	reason := c.loop(ctx, conn, session)
	c.shutdown()
	c.setStatus(logger, StateClosed)
	logger.Info("connection closed", "reason", reason)

	return c.handler.OnClose(reason, session, c.state)
}

// Notify queues msg for OnInfo. It is the way for goroutines outside the
// hooks to get work onto the connection's single thread of control. Do not
// call it from a hook: the queue is drained by the same goroutine.
func (c *Client[S]) Notify(ctx context.Context, msg any) error {
	if c.closed() {
		return ErrClientClosed
	}
	select {
	case c.infoCh <- msg:
		return nil
	case <-c.done:
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the connection. OnClose sees ErrClientClosed as the reason.
func (c *Client[S]) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// --- Internal ---

func (c *Client[S]) loop(ctx context.Context, conn Conn, session *Session) error {
	frames := make(chan Frame)
	readErr := make(chan error, 1)

	go func() {
		for {
			f, err := conn.ReadFrame()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- f:
			case <-c.done:
				return
			}
		}
	}()

	for {
		select {
		case f := <-frames:
			if err := c.handleFrame(f, conn, session); err != nil {
				return err
			}
		case msg := <-c.infoCh:
			if err := c.info(msg, session); err != nil {
				return err
			}
		case err := <-readErr:
			if c.closed() {
				return ErrClientClosed
			}
			session.logger.Warn("read error, disconnecting", "error", err)
			return err
		case <-c.done:
			return ErrClientClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client[S]) handleFrame(f Frame, conn Conn, session *Session) error {
	switch f.Kind {
	case FramePing:
		if err := conn.WritePong(f.Payload); err != nil {
			return fmt.Errorf("pong: %w", err)
		}
		return nil
	case FrameText:
		return c.dispatch(f.Payload, session)
	}
	return nil
}

func (c *Client[S]) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (c *Client[S]) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client[S]) setStatus(logger *slog.Logger, s State) {
	c.mu.Lock()
	prev := c.status
	c.status = s
	c.mu.Unlock()
	if prev != s {
		logger.Info("connection state changed", "from", prev.String(), "to", s.String())
	}
}

func newHandshakeError(err error) *HandshakeError {
	kind := HandshakeOther
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.As(err, &dnsErr) && dnsErr.IsNotFound:
		kind = HandshakeNXDomain
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = HandshakeTimeout
	case errors.Is(err, context.DeadlineExceeded):
		kind = HandshakeTimeout
	}
	return &HandshakeError{Kind: kind, Err: err}
}
