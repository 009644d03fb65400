package rtm

import (
	"fmt"

	"github.com/samber/lo"
)

// --------------------------------------------------------------------------
// Entities
// --------------------------------------------------------------------------

// Entity is a server-side object (user, channel, group, bot, direct channel)
// as delivered by the backend. Only a handful of keys are interpreted; the
// rest is passed through to hooks untouched.
type Entity map[string]any

// ID returns the entity's "id", or "" when absent.
func (e Entity) ID() string { return e.str("id") }

// Name returns the entity's "name", or "" when absent.
func (e Entity) Name() string { return e.str("name") }

// User returns the user ID a direct channel points at, or "" when absent.
func (e Entity) User() string { return e.str("user") }

func (e Entity) str(key string) string {
	s, _ := e[key].(string)
	return s
}

// BuildIndex folds entities into a map keyed by id. Later entries overwrite
// earlier ones sharing the same id.
//
// An entity without a string id panics: a table keyed on a missing id cannot
// serve any lookup.
func BuildIndex(entities []Entity) map[string]Entity {
	return lo.KeyBy(entities, func(e Entity) string {
		id := e.ID()
		if id == "" {
			panic(fmt.Sprintf("rtm: entity without id: %v", map[string]any(e)))
		}
		return id
	})
}

func toEntities(raw []map[string]any) []Entity {
	return lo.Map(raw, func(m map[string]any, _ int) Entity { return Entity(m) })
}

// --------------------------------------------------------------------------
// ID kinds
// --------------------------------------------------------------------------

// Kind classifies a protocol ID by its leading character.
type Kind byte

const (
	KindUnknown Kind = 0
	KindUser    Kind = 'U'
	KindChannel Kind = 'C'
	KindGroup   Kind = 'G'
	KindBot     Kind = 'B'
	KindDirect  Kind = 'D'
)

// KindOf returns the kind of id.
func KindOf(id string) Kind {
	if id == "" {
		return KindUnknown
	}
	switch k := Kind(id[0]); k {
	case KindUser, KindChannel, KindGroup, KindBot, KindDirect:
		return k
	}
	return KindUnknown
}

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindChannel:
		return "channel"
	case KindGroup:
		return "group"
	case KindBot:
		return "bot"
	case KindDirect:
		return "direct"
	}
	return "unknown"
}
