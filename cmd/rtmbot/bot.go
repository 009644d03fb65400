package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	rtm "github.com/relaydesk/rtm-go"
)

// sendTimeout bounds a reply, including any direct-channel open.
const sendTimeout = 10 * time.Second

// stats is the state threaded through the hooks.
type stats struct {
	Seen    int // message events observed
	Replies int // messages the bot sent
	Pings   int // keepalive pings sent
}

// keepalive is posted through Client.Notify by the ping ticker.
type keepalive struct{}

// bot answers prefixed commands:
//
//	!ping                 typing indicator, then "pong"
//	!echo <text>          repeats text in the channel
//	!dm <text>            sends text to the author as a direct message
//	!say <dest> <text>    sends text to #channel, @user or a raw ID
type bot struct {
	rtm.BaseHandler[stats]
	prefix string
	logger *slog.Logger
}

func newBot(prefix string, logger *slog.Logger) *bot {
	return &bot{prefix: prefix, logger: logger}
}

func (b *bot) OnConnect(s *rtm.Session, st stats) (stats, error) {
	b.logger.Info("session ready",
		"self", s.Me().Name(),
		"team", s.Team().Name(),
		"users", len(s.Users()),
		"channels", len(s.Channels()),
	)
	return st, nil
}

func (b *bot) OnMessage(env rtm.Envelope, s *rtm.Session, st stats) (stats, error) {
	if env.Type() != "message" {
		return st, nil
	}
	if _, sub := env["subtype"]; sub {
		return st, nil
	}
	user, _ := env["user"].(string)
	channel, _ := env["channel"].(string)
	text, _ := env["text"].(string)
	if user == "" || channel == "" || user == s.Me().ID() {
		return st, nil
	}
	st.Seen++

	cmd, rest, ok := b.command(text)
	if !ok {
		return st, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	var err error
	switch cmd {
	case "ping":
		if err = s.SendTyping(channel); err == nil {
			err = s.Send(ctx, "pong", channel)
		}
	case "echo":
		err = s.Send(ctx, rest, channel)
	case "dm":
		if _, known := s.Users()[user]; !known {
			return st, nil
		}
		err = s.Send(ctx, rest, s.UserName(user))
	case "say":
		dest, body, _ := strings.Cut(rest, " ")
		err = s.Send(ctx, body, dest)
		if errors.Is(err, rtm.ErrChannelNotFound) {
			err = s.Send(ctx, fmt.Sprintf("no such channel: %s", dest), channel)
		}
	default:
		return st, nil
	}

	if err != nil {
		if errors.Is(err, rtm.ErrDeliveryFailed) {
			b.logger.Warn("delivery failed", "command", cmd, "error", err)
			return st, nil
		}
		return st, err
	}
	st.Replies++
	return st, nil
}

func (b *bot) OnInfo(msg any, s *rtm.Session, st stats) (stats, error) {
	switch m := msg.(type) {
	case keepalive:
		st.Pings++
		if err := s.SendPing(map[string]any{"id": st.Pings}); err != nil {
			return st, err
		}
	case *rtm.DecodeError:
		b.logger.Debug("undecodable frame", "error", m.Err, "len", len(m.Raw))
	}
	return st, nil
}

func (b *bot) OnClose(reason error, _ *rtm.Session, st stats) (stats, error) {
	b.logger.Info("session ended", "seen", st.Seen, "replies", st.Replies, "pings", st.Pings)
	if errors.Is(reason, rtm.ErrClientClosed) || errors.Is(reason, context.Canceled) {
		return st, nil
	}
	return st, reason
}

// command splits "!echo hi there" into ("echo", "hi there").
func (b *bot) command(text string) (string, string, bool) {
	body, ok := strings.CutPrefix(strings.TrimSpace(text), b.prefix)
	if !ok || body == "" {
		return "", "", false
	}
	cmd, rest, _ := strings.Cut(body, " ")
	return strings.ToLower(cmd), strings.TrimSpace(rest), true
}
