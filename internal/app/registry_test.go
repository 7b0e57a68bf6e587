package app

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/core/coretest"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryTransitions(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.Register("a", "c1", &coretest.Conn{}))
	assert.False(t, r.Register("a", "c2", &coretest.Conn{}))
	assert.False(t, r.Register("a", "c1", &coretest.Conn{}), "re-register is a no-op")
	assert.Len(t, r.ConnectionsOf("a"), 2)

	uid, last, found := r.Deregister("c1")
	assert.Equal(t, domain.UserID("a"), uid)
	assert.False(t, last)
	assert.True(t, found)
	assert.True(t, r.IsOnline("a"))

	uid, last, found = r.Deregister("c2")
	assert.Equal(t, domain.UserID("a"), uid)
	assert.True(t, last)
	assert.True(t, found)
	assert.False(t, r.IsOnline("a"))
	assert.Empty(t, r.ConnectionsOf("a"))
}

func TestRegistryDeregisterUnknown(t *testing.T) {
	r := NewRegistry()
	uid, last, found := r.Deregister("nope")
	assert.Empty(t, uid)
	assert.False(t, last)
	assert.False(t, found)
}

func TestRegistryKeepsFirstOwner(t *testing.T) {
	r := NewRegistry()
	require.True(t, r.Register("a", "c1", &coretest.Conn{}))
	assert.False(t, r.Register("b", "c1", &coretest.Conn{}))

	owner, ok := r.OwnerOf("c1")
	assert.True(t, ok)
	assert.Equal(t, domain.UserID("a"), owner)
	assert.False(t, r.IsOnline("b"))
}

func TestRegistryOnlineMatchesConnectionCount(t *testing.T) {
	r := NewRegistry()
	rnd := rand.New(rand.NewSource(7))
	users := []domain.UserID{"a", "b", "c"}
	open := map[core.ConnectionID]domain.UserID{}

	for i := 0; i < 500; i++ {
		if len(open) == 0 || rnd.Intn(2) == 0 {
			uid := users[rnd.Intn(len(users))]
			cid := core.ConnectionID(fmt.Sprintf("c%d", i))
			r.Register(uid, cid, &coretest.Conn{})
			open[cid] = uid
		} else {
			for cid := range open {
				r.Deregister(cid)
				delete(open, cid)
				break
			}
		}
		for _, uid := range users {
			want := 0
			for _, owner := range open {
				if owner == uid {
					want++
				}
			}
			require.Len(t, r.ConnectionsOf(uid), want)
			require.Equal(t, want > 0, r.IsOnline(uid), "step %d user %s", i, uid)
		}
	}
}

func TestRegistryConcurrentTransitionsPair(t *testing.T) {
	r := NewRegistry()
	var online, offline atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cid := core.ConnectionID(fmt.Sprintf("c%d", i))
			for j := 0; j < 50; j++ {
				if r.Register("a", cid, &coretest.Conn{}) {
					online.Add(1)
				}
				if _, last, _ := r.Deregister(cid); last {
					offline.Add(1)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, online.Load(), offline.Load())
	assert.Positive(t, online.Load())
	assert.False(t, r.IsOnline("a"))
	users, conns := r.Stats()
	assert.Zero(t, users)
	assert.Zero(t, conns)
}

func TestSendToUsersSkipsAndCollectsDropped(t *testing.T) {
	r := NewRegistry()
	a, b, slow := &coretest.Conn{}, &coretest.Conn{}, &coretest.Conn{}
	slow.SetFull(true)
	r.Register("a", "ca", a)
	r.Register("b", "cb", b)
	r.Register("b", "cb-slow", slow)

	res := r.SendToUsers([]domain.UserID{"a", "b"}, "a", core.Frame(`{"type":"x"}`))
	assert.Equal(t, 1, res.SendTo)
	assert.Equal(t, []core.ConnectionID{"cb-slow"}, res.Dropped)
	assert.Empty(t, a.Events())
	assert.Len(t, b.Events(), 1)
}
