package rtm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	s, conn, _ := testSession(t)

	require.Equal(t, "U0", s.Me().ID())
	require.Equal(t, "Example", s.Team().Name())
	require.Equal(t, "xoxb-test", s.Token())
	require.Len(t, s.Users(), 2)
	require.Len(t, s.Channels(), 2)
	require.Len(t, s.Groups(), 1)
	require.Len(t, s.Bots(), 1)
	require.Len(t, s.DirectChannels(), 1)
	require.Equal(t, conn, s.conn)
}

func TestSession_SnapshotsAreCopies(t *testing.T) {
	s, _, _ := testSession(t)

	users := s.Users()
	delete(users, "U1")

	require.Len(t, s.Users(), 2)
}

func TestSession_ApplyChannelEvents(t *testing.T) {
	s, _, _ := testSession(t)

	s.apply(Envelope{
		"type":    "channel_created",
		"channel": map[string]any{"id": "C3", "name": "launch"},
	})
	id, ok := s.ChannelID("#launch")
	require.True(t, ok)
	require.Equal(t, "C3", id)

	before := s.Channels()["C1"]
	s.apply(Envelope{
		"type":    "channel_rename",
		"channel": map[string]any{"id": "C1", "name": "town-square"},
	})
	require.Equal(t, "#town-square", s.ChannelName("C1"))
	require.Equal(t, true, s.Channels()["C1"]["is_member"])
	// Entities handed out earlier are left alone.
	require.Equal(t, "general", before.Name())
}

func TestSession_ApplyIMCreated(t *testing.T) {
	s, _, _ := testSession(t)

	s.apply(Envelope{
		"type":    "im_created",
		"user":    "U2",
		"channel": map[string]any{"id": "D2"},
	})

	id, ok := s.DirectChannelID("@bob")
	require.True(t, ok)
	require.Equal(t, "D2", id)
	require.Equal(t, "@bob", s.UserName("D2"))
}

func TestSession_ApplyUserAndBotEvents(t *testing.T) {
	s, _, _ := testSession(t)

	s.apply(Envelope{"type": "team_join", "user": map[string]any{"id": "U3", "name": "carol"}})
	s.apply(Envelope{"type": "user_change", "user": map[string]any{"id": "U1", "name": "alicia"}})
	s.apply(Envelope{"type": "bot_added", "bot": map[string]any{"id": "B2", "name": "ci"}})
	s.apply(Envelope{"type": "group_joined", "channel": map[string]any{"id": "G2", "name": "ops"}})

	require.Equal(t, "@carol", s.UserName("U3"))
	require.Equal(t, "@alicia", s.UserName("U1"))
	require.Equal(t, "@ci", s.UserName("B2"))
	require.Equal(t, "#ops", s.ChannelName("G2"))
}

func TestSession_ApplyIgnoresIrrelevantEvents(t *testing.T) {
	s, _, _ := testSession(t)

	s.apply(Envelope{"type": "message", "channel": "C1", "text": "hi"})
	s.apply(Envelope{"type": "channel_created", "channel": map[string]any{"name": "no-id"}})
	s.apply(Envelope{"type": "team_join"})

	require.Len(t, s.Channels(), 2)
	require.Len(t, s.Users(), 2)
}
