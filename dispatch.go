package rtm

import (
	"github.com/relaydesk/rtm-go/frame"
)

// Envelope is a decoded inbound frame. Its "type" field says what kind of
// event it carries; numbers are json.Number.
type Envelope map[string]any

// Type returns the event type, or "" when the frame carries none.
func (e Envelope) Type() string { return frame.Type(e) }

// object returns a nested JSON object as an Entity, or nil.
func (e Envelope) object(key string) Entity {
	m, _ := e[key].(map[string]any)
	return Entity(m)
}

// dispatch decodes one text frame and hands it to the host. Frames that do
// not parse go to OnInfo as a *DecodeError; frames without a type are
// dropped. Only a hook error ends the connection.
func (c *Client[S]) dispatch(raw []byte, session *Session) error {
	obj, err := frame.Decode(raw)
	if err != nil {
		session.logger.Debug("bad frame", "error", err)
		return c.info(&DecodeError{Raw: raw, Err: err}, session)
	}

	env := Envelope(obj)
	if env.Type() == "" {
		session.logger.Debug("dropping frame without type", "size", len(raw))
		return nil
	}

	session.apply(env)

	state, err := c.handler.OnMessage(env, session, c.state)
	if err != nil {
		return err
	}
	c.state = state
	return nil
}

func (c *Client[S]) info(msg any, session *Session) error {
	state, err := c.handler.OnInfo(msg, session, c.state)
	if err != nil {
		return err
	}
	c.state = state
	return nil
}
