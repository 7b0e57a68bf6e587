package app

import (
	"encoding/json"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// SignalRelay forwards negotiation payloads between peers and fans out
// per-room media flags. Delivery is best effort and at most once.
type SignalRelay struct {
	Registry *Registry
	Rooms    *Tracker
}

// Relay hands payload to every connection of to. A target without
// connections silently drops it.
func (s *SignalRelay) Relay(from, to domain.UserID, room domain.RoomID, payload json.RawMessage) (core.PublishResult, error) {
	conns := s.Registry.ConnectionsOf(to)
	kind := SignalKind(payload)
	if len(conns) == 0 {
		log.Debug().Str("module", "app.relay").Str("from", string(from)).Str("to", string(to)).Str("kind", kind).Msg("target offline, signal dropped")
		return core.PublishResult{}, nil
	}
	f, err := core.Encode(core.ReceiveSignalEvent{
		Type:   core.EvReceiveSignal,
		RoomID: room,
		UserID: from,
		Signal: payload,
	})
	if err != nil {
		return core.PublishResult{}, err
	}
	res := deliver(conns, f)
	log.Debug().Str("module", "app.relay").Str("from", string(from)).Str("to", string(to)).Str("kind", kind).Int("sent_to", res.SendTo).Msg("signal relayed")
	return res, nil
}

// BroadcastMediaState tells the room about from's audio/video flags.
// ok is false when from is not in the roster; nothing is sent then.
func (s *SignalRelay) BroadcastMediaState(room domain.RoomID, from domain.UserID, state domain.MediaState, except domain.UserID) (res core.PublishResult, ok bool, err error) {
	return s.broadcastAs(room, from, except, core.UserMediaStateEvent{
		Type:       core.EvUserMediaState,
		RoomID:     room,
		UserID:     from,
		MediaState: state,
	})
}

// BroadcastScreenShare tells the room that from started or stopped sharing.
func (s *SignalRelay) BroadcastScreenShare(room domain.RoomID, from domain.UserID, sharing bool, except domain.UserID) (res core.PublishResult, ok bool, err error) {
	return s.broadcastAs(room, from, except, core.UserScreenShareEvent{
		Type:    core.EvUserScreenShare,
		RoomID:  room,
		UserID:  from,
		Sharing: sharing,
	})
}

func (s *SignalRelay) broadcastAs(room domain.RoomID, from, except domain.UserID, ev any) (core.PublishResult, bool, error) {
	if !s.Rooms.Contains(room, from) {
		log.Warn().Str("module", "app.relay").Str("room", string(room)).Str("user", string(from)).Msg("sender not in room, broadcast skipped")
		return core.PublishResult{}, false, nil
	}
	res, err := s.BroadcastRoster(s.Rooms.Roster(room), except, ev)
	return res, true, err
}

// BroadcastRoster encodes ev once and sends it to every listed user.
func (s *SignalRelay) BroadcastRoster(roster []domain.UserID, except domain.UserID, ev any) (core.PublishResult, error) {
	f, err := core.Encode(ev)
	if err != nil {
		return core.PublishResult{}, err
	}
	return s.Registry.SendToUsers(roster, except, f), nil
}

// SignalKind names the negotiation step a payload carries, for logs and
// metrics only. The payload itself is never altered or rejected.
func SignalKind(payload json.RawMessage) string {
	var env struct {
		Type      string          `json:"type"`
		Candidate json.RawMessage `json:"candidate"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return "opaque"
	}
	if t := webrtc.NewSDPType(env.Type); t != webrtc.SDPTypeUnknown {
		return t.String()
	}
	if len(env.Candidate) == 0 {
		return "opaque"
	}
	var flat webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &flat); err == nil && flat.Candidate != "" {
		return "candidate"
	}
	var nested webrtc.ICECandidateInit
	if err := json.Unmarshal(env.Candidate, &nested); err == nil && nested.Candidate != "" {
		return "candidate"
	}
	return "opaque"
}
