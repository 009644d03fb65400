package rtm

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// RefKind tells how a Reference names its target.
type RefKind int

const (
	RefRawID RefKind = iota
	RefUserName
	RefChannelName
)

// Reference is a caller-supplied destination or person: "@name" for a user,
// "#name" for a channel, anything else a protocol ID used as is.
type Reference struct {
	Kind  RefKind
	Value string
}

// ParseReference classifies s by its leading character.
func ParseReference(s string) Reference {
	switch {
	case strings.HasPrefix(s, "@"):
		return Reference{Kind: RefUserName, Value: s[1:]}
	case strings.HasPrefix(s, "#"):
		return Reference{Kind: RefChannelName, Value: s[1:]}
	}
	return Reference{Kind: RefRawID, Value: s}
}

func rawID(id string) Reference { return Reference{Kind: RefRawID, Value: id} }

func (r Reference) String() string {
	switch r.Kind {
	case RefUserName:
		return "@" + r.Value
	case RefChannelName:
		return "#" + r.Value
	}
	return r.Value
}

// --------------------------------------------------------------------------
// Forward lookups (name -> ID)
//
// These are lenient: the target may simply not be cached yet, so a miss is
// reported with false rather than an error.
// --------------------------------------------------------------------------

// UserID resolves "@name" to a user ID. Raw IDs are returned unchanged.
func (s *Session) UserID(ref string) (string, bool) {
	return s.userID(ParseReference(ref))
}

// DirectChannelID finds the existing direct channel with the user ref names.
// A miss is the normal state before the first conversation with that user.
func (s *Session) DirectChannelID(ref string) (string, bool) {
	return s.directChannelID(ParseReference(ref))
}

// ChannelID resolves "#name" to a channel ID, falling back to private
// groups. Raw IDs are returned unchanged.
func (s *Session) ChannelID(ref string) (string, bool) {
	return s.channelID(ParseReference(ref))
}

func (s *Session) userID(r Reference) (string, bool) {
	if r.Value == "" {
		return "", false
	}
	switch r.Kind {
	case RefRawID:
		return r.Value, true
	case RefUserName:
		s.mu.RLock()
		defer s.mu.RUnlock()
		return findByName(s.users, r.Value)
	}
	return "", false
}

func (s *Session) directChannelID(r Reference) (string, bool) {
	userID, ok := s.userID(r)
	if !ok {
		return "", false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.FindKeyBy(s.ims, func(_ string, im Entity) bool {
		return im.User() == userID
	})
}

func (s *Session) channelID(r Reference) (string, bool) {
	if r.Value == "" {
		return "", false
	}
	switch r.Kind {
	case RefRawID:
		return r.Value, true
	case RefChannelName:
		s.mu.RLock()
		defer s.mu.RUnlock()
		if id, ok := findByName(s.channels, r.Value); ok {
			return id, true
		}
		return findByName(s.groups, r.Value)
	}
	return "", false
}

func findByName(index map[string]Entity, name string) (string, bool) {
	return lo.FindKeyBy(index, func(_ string, e Entity) bool {
		return e.Name() == name
	})
}

// --------------------------------------------------------------------------
// Reverse lookups (ID -> name)
//
// IDs passed here are expected to come from session data. A miss means the
// caller handed in something the session never saw, and panics.
// --------------------------------------------------------------------------

// UserName formats a user, bot or direct channel ID as "@name". A direct
// channel resolves to the user on the other side.
func (s *Session) UserName(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userName(id)
}

func (s *Session) userName(id string) string {
	switch KindOf(id) {
	case KindDirect:
		return s.userName(mustLookup(s.ims, KindDirect, id).User())
	case KindUser:
		return "@" + mustLookup(s.users, KindUser, id).Name()
	case KindBot:
		return "@" + mustLookup(s.bots, KindBot, id).Name()
	}
	panic(fmt.Sprintf("rtm: %q is not a user id", id))
}

// ChannelName formats a channel or group ID as "#name".
func (s *Session) ChannelName(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch KindOf(id) {
	case KindChannel:
		return "#" + mustLookup(s.channels, KindChannel, id).Name()
	case KindGroup:
		return "#" + mustLookup(s.groups, KindGroup, id).Name()
	}
	panic(fmt.Sprintf("rtm: %q is not a channel id", id))
}

func mustLookup(index map[string]Entity, kind Kind, id string) Entity {
	e, ok := index[id]
	if !ok {
		panic(fmt.Sprintf("rtm: unknown %s id %q", kind, id))
	}
	return e
}
