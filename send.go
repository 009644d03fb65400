package rtm

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/relaydesk/rtm-go/frame"
	"github.com/relaydesk/rtm-go/wire"
)

// Send delivers text to dest, which may be "#channel", "@user" or a raw
// channel ID.
//
// A "#name" that matches no channel fails with ErrChannelNotFound. An
// "@name" without an existing direct channel opens one through the web API
// first; that call blocks, and any failure along the way is reported as
// ErrDeliveryFailed.
func (s *Session) Send(ctx context.Context, text, dest string) error {
	return s.send(ctx, text, ParseReference(dest))
}

func (s *Session) send(ctx context.Context, text string, ref Reference) error {
	switch ref.Kind {
	case RefChannelName:
		id, ok := s.channelID(ref)
		if !ok {
			return fmt.Errorf("%w: %s", ErrChannelNotFound, ref)
		}
		return s.send(ctx, text, rawID(id))

	case RefUserName:
		if id, ok := s.directChannelID(ref); ok {
			return s.send(ctx, text, rawID(id))
		}
		id, err := s.openDirect(ctx, ref)
		if err != nil {
			s.logger.Warn("direct channel open failed", "to", ref.String(), "error", err)
			return err
		}
		return s.send(ctx, text, rawID(id))
	}

	return s.sendFrame(wire.MessageFrame{
		Type:    frame.TypeMessage,
		Text:    text,
		Channel: ref.Value,
	})
}

func (s *Session) openDirect(ctx context.Context, ref Reference) (string, error) {
	userID, ok := s.userID(ref)
	if !ok {
		return "", fmt.Errorf("%w: unknown user %s", ErrDeliveryFailed, ref)
	}
	if s.opener == nil {
		return "", fmt.Errorf("%w: no web API client to open a direct channel", ErrDeliveryFailed)
	}
	id, err := s.opener.OpenIM(ctx, s.token, userID)
	if err != nil {
		return "", fmt.Errorf("%w: open direct channel with %s: %w", ErrDeliveryFailed, ref, err)
	}
	return id, nil
}

// SendTyping tells channel the session is typing.
func (s *Session) SendTyping(channel string) error {
	return s.sendFrame(wire.TypingFrame{Type: frame.TypeTyping, Channel: channel})
}

// SendPing sends a keep-alive. Fields in extra are merged into the frame and
// win over the defaults.
func (s *Session) SendPing(extra map[string]any) error {
	return s.sendFrame(lo.Assign(map[string]any{"type": frame.TypePing}, extra))
}

func (s *Session) sendFrame(v any) error {
	if s.conn == nil {
		return ErrNotConnected
	}
	data, err := frame.Encode(v)
	if err != nil {
		return err
	}
	if err := s.conn.WriteText(data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
