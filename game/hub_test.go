package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_ReconnectSupersedesOldSession(t *testing.T) {
	t.Parallel()
	hub := NewHub(testLogger())

	s1 := NewSession("alice", nil, testLogger())
	s2 := NewSession("alice", nil, testLogger())

	hub.Register(s1)
	hub.Register(s2)

	// The superseded session's teardown must not count as a disconnect.
	assert.False(t, hub.Unregister(s1))

	hub.Send("alice", Outbound{Type: MsgRoomState})
	select {
	case payload := <-s2.outbox:
		require.NotEmpty(t, payload)
	default:
		t.Fatal("message did not reach the reconnected session")
	}

	assert.True(t, hub.Unregister(s2))
}

func TestHub_SendAfterUnregisterIsDropped(t *testing.T) {
	t.Parallel()
	hub := NewHub(testLogger())

	s := NewSession("bob", nil, testLogger())
	hub.Register(s)
	require.True(t, hub.Unregister(s))

	hub.Send("bob", Outbound{Type: MsgRoomState})
	select {
	case <-s.outbox:
		t.Fatal("unregistered session still receives messages")
	default:
	}
}
