package app

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/core/coretest"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRelay(t *testing.T) (*SignalRelay, *Registry, *Tracker) {
	t.Helper()
	reg := NewRegistry()
	tr := NewTracker(coretest.NewStore())
	return &SignalRelay{Registry: reg, Rooms: tr}, reg, tr
}

func TestRelayToOfflineUserIsSilent(t *testing.T) {
	s, _, _ := newRelay(t)
	res, err := s.Relay("a", "ghost", "r", json.RawMessage(`{"type":"offer","sdp":"v=0"}`))
	require.NoError(t, err)
	assert.Zero(t, res.SendTo)
	assert.Empty(t, res.Dropped)
}

func TestRelayReachesEveryConnectionOfTarget(t *testing.T) {
	s, reg, _ := newRelay(t)
	b1, b2, a := &coretest.Conn{}, &coretest.Conn{}, &coretest.Conn{}
	reg.Register("b", "b1", b1)
	reg.Register("b", "b2", b2)
	reg.Register("a", "a1", a)

	payload := json.RawMessage(`{"type":"answer","sdp":"v=0"}`)
	res, err := s.Relay("a", "b", "r", payload)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SendTo)

	for _, conn := range []*coretest.Conn{b1, b2} {
		evs := conn.OfType(core.EvReceiveSignal)
		require.Len(t, evs, 1)
		assert.Equal(t, "a", evs[0]["userId"])
		assert.Equal(t, "r", evs[0]["roomId"])
		assert.Equal(t, map[string]any{"type": "answer", "sdp": "v=0"}, evs[0]["signal"])
	}
	assert.Empty(t, a.Events())
}

func TestMediaStateRequiresRoomMembership(t *testing.T) {
	s, reg, tr := newRelay(t)
	a, b := &coretest.Conn{}, &coretest.Conn{}
	reg.Register("a", "a1", a)
	reg.Register("b", "b1", b)
	_, err := tr.Join(context.Background(), "r", "b")
	require.NoError(t, err)

	_, ok, err := s.BroadcastMediaState("r", "a", domain.MediaState{Audio: true}, "")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = s.BroadcastScreenShare("r", "a", true, "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, b.Events())
	assert.Empty(t, a.Events())
}

func TestMediaStateReachesWholeRoster(t *testing.T) {
	s, reg, tr := newRelay(t)
	a, b := &coretest.Conn{}, &coretest.Conn{}
	reg.Register("a", "a1", a)
	reg.Register("b", "b1", b)
	for _, uid := range []domain.UserID{"a", "b"} {
		_, err := tr.Join(context.Background(), "r", uid)
		require.NoError(t, err)
	}

	res, ok, err := s.BroadcastMediaState("r", "a", domain.MediaState{Audio: true, Video: false}, "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, res.SendTo)
	ev := b.OfType(core.EvUserMediaState)
	require.Len(t, ev, 1)
	assert.Equal(t, true, ev[0]["audio"])
	assert.Equal(t, false, ev[0]["video"])
	assert.Equal(t, "a", ev[0]["userId"])

	res, ok, err = s.BroadcastScreenShare("r", "a", true, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, res.SendTo, "caller excluded itself")
	assert.Len(t, b.OfType(core.EvUserScreenShare), 1)
	assert.Empty(t, a.OfType(core.EvUserScreenShare))
}

func TestSignalKind(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`{"type":"offer","sdp":"v=0"}`, "offer"},
		{`{"type":"answer","sdp":"v=0"}`, "answer"},
		{`{"candidate":"candidate:1 1 udp 1 1.2.3.4 5 typ host"}`, "candidate"},
		{`{"type":"candidate","candidate":{"candidate":"candidate:1"}}`, "candidate"},
		{`{"renegotiate":true}`, "opaque"},
		{`"just a string"`, "opaque"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SignalKind(json.RawMessage(tc.in)), tc.in)
	}
}
