// Package wire defines the JSON payload types exchanged with the messaging
// backend: the web API responses used to bootstrap a session and open direct
// channels, and the fixed-shape outbound realtime frames.
package wire

// Response is the envelope every web API response shares.
type Response struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// StartResponse is returned by rtm.start. Entities are kept as loose objects;
// the session only relies on "id", "name" and "user".
type StartResponse struct {
	Response
	URL      string           `json:"url"`
	Self     map[string]any   `json:"self"`
	Team     map[string]any   `json:"team"`
	Users    []map[string]any `json:"users"`
	Channels []map[string]any `json:"channels"`
	Groups   []map[string]any `json:"groups"`
	Bots     []map[string]any `json:"bots"`
	IMs      []map[string]any `json:"ims"`
}

// IMOpenResponse is returned by im.open.
type IMOpenResponse struct {
	Response
	NoOp        bool `json:"no_op,omitempty"`
	AlreadyOpen bool `json:"already_open,omitempty"`
	Channel     struct {
		ID string `json:"id"`
	} `json:"channel"`
}

// MessageFrame is an outbound chat message (client -> server).
type MessageFrame struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Channel string `json:"channel"`
}

// TypingFrame is an outbound typing indicator (client -> server).
type TypingFrame struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}
