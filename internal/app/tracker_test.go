package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/core/coretest"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerJoinIsIdempotent(t *testing.T) {
	st := coretest.NewStore()
	tr := NewTracker(st)
	ctx := context.Background()

	first, err := tr.Join(ctx, "r", "a")
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assert.Equal(t, []domain.UserID{"a"}, first.Roster)

	again, err := tr.Join(ctx, "r", "a")
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Equal(t, first.Roster, again.Roster)
	assert.Equal(t, []domain.UserID{"a"}, st.Roster("r"))
}

func TestTrackerJoinRollsBackOnStoreFailure(t *testing.T) {
	st := coretest.NewStore()
	tr := NewTracker(st)
	ctx := context.Background()
	_, err := tr.Join(ctx, "r", "b")
	require.NoError(t, err)

	boom := errors.New("disk full")
	st.FailJoin("r", boom)
	change, err := tr.Join(ctx, "r", "a")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPersistence)
	assert.ErrorIs(t, err, boom)
	assert.False(t, change.Changed)

	assert.Equal(t, []domain.UserID{"b"}, tr.Roster("r"))
	assert.False(t, tr.Contains("r", "a"))
	assert.Empty(t, tr.RoomsOf("a"))
	assert.Equal(t, []domain.UserID{"b"}, st.Roster("r"))
}

func TestTrackerLeaveKeepsMemberOnStoreFailure(t *testing.T) {
	st := coretest.NewStore()
	tr := NewTracker(st)
	ctx := context.Background()
	_, err := tr.Join(ctx, "r", "a")
	require.NoError(t, err)

	st.FailLeave("r", errors.New("locked"))
	_, err = tr.Leave(ctx, "r", "a")
	assert.ErrorIs(t, err, core.ErrPersistence)
	assert.True(t, tr.Contains("r", "a"))
	assert.Equal(t, []domain.RoomID{"r"}, tr.RoomsOf("a"))
}

func TestTrackerLeaveAbsentIsNoop(t *testing.T) {
	st := coretest.NewStore()
	st.FailLeave("r", errors.New("must not be called"))
	tr := NewTracker(st)

	change, err := tr.Leave(context.Background(), "r", "a")
	require.NoError(t, err)
	assert.False(t, change.Changed)
	assert.Empty(t, change.Roster)
}

func TestTrackerReverseIndex(t *testing.T) {
	tr := NewTracker(coretest.NewStore())
	ctx := context.Background()
	for _, room := range []domain.RoomID{"r1", "r2", "r3"} {
		_, err := tr.Join(ctx, room, "a")
		require.NoError(t, err)
	}
	_, err := tr.Join(ctx, "r1", "b")
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.RoomID{"r1", "r2", "r3"}, tr.RoomsOf("a"))
	assert.Equal(t, 3, tr.RoomCount())

	_, err = tr.Leave(ctx, "r2", "a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.RoomID{"r1", "r3"}, tr.RoomsOf("a"))
	assert.Equal(t, 2, tr.RoomCount())

	_, err = tr.Leave(ctx, "r3", "a")
	require.NoError(t, err)
	change, err := tr.Leave(ctx, "r1", "a")
	require.NoError(t, err)
	assert.Equal(t, []domain.UserID{"b"}, change.Roster)
	assert.Empty(t, tr.RoomsOf("a"))
}

func TestTrackerRosterIsACopy(t *testing.T) {
	tr := NewTracker(coretest.NewStore())
	_, err := tr.Join(context.Background(), "r", "a")
	require.NoError(t, err)

	roster := tr.Roster("r")
	roster[0] = "mallory"
	assert.Equal(t, []domain.UserID{"a"}, tr.Roster("r"))
}

func TestTrackerConcurrentJoinsAndLeaves(t *testing.T) {
	st := coretest.NewStore()
	tr := NewTracker(st)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uid := domain.UserID(fmt.Sprintf("u%02d", i))
			_, _ = tr.Join(ctx, "r", uid)
			_, _ = tr.Join(ctx, "r", uid)
			if i%2 == 0 {
				_, _ = tr.Leave(ctx, "r", uid)
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, tr.Roster("r"), 20)
	assert.ElementsMatch(t, st.Roster("r"), tr.Roster("r"))
}

func TestTrackerSerializesMutationsPerRoom(t *testing.T) {
	st := coretest.NewStore()
	var inflight, overlaps atomic.Int32
	st.OnAdd = func(room domain.RoomID, _ domain.UserID) {
		if room != "r" {
			return
		}
		if inflight.Add(1) > 1 {
			overlaps.Add(1)
		}
		time.Sleep(time.Millisecond)
		inflight.Add(-1)
	}
	tr := NewTracker(st)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = tr.Join(context.Background(), "r", domain.UserID(fmt.Sprintf("u%d", i)))
		}(i)
	}
	wg.Wait()

	assert.Zero(t, overlaps.Load())
	assert.Len(t, tr.Roster("r"), 10)
	assert.Zero(t, tr.locks.Held())
}
