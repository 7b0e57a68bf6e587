package app

import (
	"context"
	"errors"
	"testing"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/core/coretest"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceAnnouncesToOnlineFriendsOnly(t *testing.T) {
	st := coretest.NewStore().AddUser("a").AddUser("b").AddUser("c").AddUser("d")
	st.Befriend("a", "b").Befriend("a", "c")
	reg := NewRegistry()
	b1, b2, d := &coretest.Conn{}, &coretest.Conn{}, &coretest.Conn{}
	reg.Register("b", "b1", b1)
	reg.Register("b", "b2", b2)
	reg.Register("d", "d1", d)

	p := &Presence{Registry: reg, Friends: st}
	res, err := p.Announce(context.Background(), "a", domain.StatusOnline)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SendTo)

	for _, conn := range []*coretest.Conn{b1, b2} {
		evs := conn.OfType(core.EvFriendStatusChange)
		require.Len(t, evs, 1)
		assert.Equal(t, "a", evs[0]["userId"])
		assert.Equal(t, "online", evs[0]["status"])
	}
	assert.Empty(t, d.Events(), "not a friend")
}

func TestPresenceFriendLookupFailure(t *testing.T) {
	st := coretest.NewStore()
	st.FailFriends(errors.New("timeout"))
	p := &Presence{Registry: NewRegistry(), Friends: st}

	_, err := p.Announce(context.Background(), "a", domain.StatusOffline)
	assert.ErrorIs(t, err, core.ErrPersistence)
}
