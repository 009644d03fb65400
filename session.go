package rtm

import (
	"context"
	"log/slog"
	"maps"
	"sync"

	"github.com/relaydesk/rtm-go/wire"
)

// DirectOpener opens a direct channel with a user on the backend. *APIClient
// implements it.
type DirectOpener interface {
	OpenIM(ctx context.Context, token, userID string) (string, error)
}

// Session is the connection-scoped mirror of server state: own identity,
// team, entity indexes and the live socket. It is built once the socket
// opens and discarded when the connection closes.
//
// Indexes change only through the dispatch path (see apply). Everything else
// reads under the read lock, so a Session may be shared with goroutines the
// host starts from its hooks.
type Session struct {
	connID string
	token  string

	mu       sync.RWMutex
	me       Entity
	team     Entity
	bots     map[string]Entity
	channels map[string]Entity
	groups   map[string]Entity
	users    map[string]Entity
	ims      map[string]Entity

	conn      Conn
	transport Transport
	opener    DirectOpener
	logger    *slog.Logger
}

// NewSession builds session state from a handshake response.
func NewSession(start *wire.StartResponse, token string, conn Conn, transport Transport, opener DirectOpener) *Session {
	return &Session{
		token:     token,
		me:        Entity(start.Self),
		team:      Entity(start.Team),
		bots:      BuildIndex(toEntities(start.Bots)),
		channels:  BuildIndex(toEntities(start.Channels)),
		groups:    BuildIndex(toEntities(start.Groups)),
		users:     BuildIndex(toEntities(start.Users)),
		ims:       BuildIndex(toEntities(start.IMs)),
		conn:      conn,
		transport: transport,
		opener:    opener,
		logger:    slog.Default(),
	}
}

// ConnID identifies the connection this session belongs to in logs.
func (s *Session) ConnID() string { return s.connID }

// Token returns the auth token the session was started with.
func (s *Session) Token() string { return s.token }

// Transport returns the transport that produced the live connection.
func (s *Session) Transport() Transport { return s.transport }

// Me returns the connected identity.
func (s *Session) Me() Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.me
}

// Team returns the team the session is connected to.
func (s *Session) Team() Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.team
}

// Users returns the user index (snapshot).
func (s *Session) Users() map[string]Entity { return s.snapshot(s.users) }

// Channels returns the channel index (snapshot).
func (s *Session) Channels() map[string]Entity { return s.snapshot(s.channels) }

// Groups returns the group index (snapshot).
func (s *Session) Groups() map[string]Entity { return s.snapshot(s.groups) }

// Bots returns the bot index (snapshot).
func (s *Session) Bots() map[string]Entity { return s.snapshot(s.bots) }

// DirectChannels returns the direct channel index (snapshot).
func (s *Session) DirectChannels() map[string]Entity { return s.snapshot(s.ims) }

func (s *Session) snapshot(index map[string]Entity) map[string]Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(index)
}

// --------------------------------------------------------------------------
// Inbound updates
// --------------------------------------------------------------------------

// apply folds a state-changing event into the indexes. Only the dispatch
// loop calls it. Entities are replaced, never modified in place, so maps
// handed out earlier stay stable.
func (s *Session) apply(env Envelope) {
	switch env.Type() {
	case "channel_created", "channel_joined", "channel_rename":
		s.upsert(s.channels, env.object("channel"))
	case "group_joined", "group_rename":
		s.upsert(s.groups, env.object("channel"))
	case "im_created":
		ch := env.object("channel")
		if ch != nil && ch.User() == "" {
			if user, ok := env["user"].(string); ok {
				ch = withField(ch, "user", user)
			}
		}
		s.upsert(s.ims, ch)
	case "team_join", "user_change":
		s.upsert(s.users, env.object("user"))
	case "bot_added", "bot_changed":
		s.upsert(s.bots, env.object("bot"))
	}
}

func (s *Session) upsert(index map[string]Entity, e Entity) {
	id := e.ID()
	if id == "" {
		s.logger.Debug("ignoring update without entity id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	merged := make(Entity, len(index[id])+len(e))
	maps.Copy(merged, index[id])
	maps.Copy(merged, e)
	index[id] = merged
}

func withField(e Entity, key string, value any) Entity {
	out := maps.Clone(e)
	out[key] = value
	return out
}
