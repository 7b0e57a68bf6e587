package orch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

// Signal forwards a negotiation payload to every connection of target.
// An offline target is not an error.
func (o *Orchestrator) Signal(_ context.Context, cid core.ConnectionID, target domain.UserID, roomID domain.RoomID, payload json.RawMessage) error {
	uid, err := o.owner(cid)
	if err != nil {
		return err
	}
	if target == "" {
		return fmt.Errorf("%w: missing target user", core.ErrInvalid)
	}
	res, err := o.Relay.Relay(uid, target, roomID, payload)
	if err != nil {
		return err
	}
	o.Metrics.Signal(app.SignalKind(payload), res.SendTo > 0)
	o.handleResult(res)
	return nil
}

// MediaState fans the sender's audio/video flags out to its room. A sender
// that is not in the room gets an authorization error and nobody is told.
func (o *Orchestrator) MediaState(_ context.Context, cid core.ConnectionID, roomID domain.RoomID, state domain.MediaState) error {
	uid, err := o.owner(cid)
	if err != nil {
		return err
	}
	res, ok, err := o.Relay.BroadcastMediaState(roomID, uid, state, "")
	return o.finishRoomBroadcast(roomID, res, ok, err)
}

// ScreenShare fans the sender's screen sharing flag out to its room.
func (o *Orchestrator) ScreenShare(_ context.Context, cid core.ConnectionID, roomID domain.RoomID, sharing bool) error {
	uid, err := o.owner(cid)
	if err != nil {
		return err
	}
	res, ok, err := o.Relay.BroadcastScreenShare(roomID, uid, sharing, "")
	return o.finishRoomBroadcast(roomID, res, ok, err)
}

func (o *Orchestrator) finishRoomBroadcast(roomID domain.RoomID, res core.PublishResult, ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: not in room %s", core.ErrAuthorization, roomID)
	}
	o.handleResult(res)
	return nil
}
