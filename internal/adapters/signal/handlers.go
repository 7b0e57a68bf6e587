package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// handleAuthenticate never closes the transport: a failed attempt gets
// auth_error and the client may try again.
func (ctl *SignalWSController) handleAuthenticate(ctx context.Context, c *WsSignalConn, data []byte) {
	var p struct {
		Token string `json:"token"`
	}
	if err := decode(data, &p); err != nil {
		ctl.sendMessage(c, core.EvAuthError, "bad_payload")
		return
	}
	uid, err := ctl.Orch.Authenticate(ctx, c.id, c, p.Token)
	if err != nil {
		kind := core.Kind(err)
		ctl.Orch.Metrics.EventError(kind)
		if kind != "authentication" {
			log.Error().Err(err).Str("module", "signal").Str("cid", string(c.id)).Msg("authenticate failed")
			ctl.sendMessage(c, core.EvAuthError, "authentication error")
			return
		}
		log.Info().Err(err).Str("module", "signal").Str("cid", string(c.id)).Msg("authentication rejected")
		ctl.sendMessage(c, core.EvAuthError, "authentication failed")
		return
	}
	ctl.sendJSON(c, core.AuthenticatedEvent{Type: core.EvAuthenticated, UserID: uid})
}

type roomPayload struct {
	RoomID domain.RoomID `json:"roomId"`
}

func (p roomPayload) validate() error {
	if p.RoomID == "" {
		return errBadPayload
	}
	return nil
}

func (ctl *SignalWSController) handleJoin(ctx context.Context, c *WsSignalConn, data []byte) error {
	var p roomPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if err := p.validate(); err != nil {
		return err
	}
	users, err := ctl.Orch.JoinRoom(ctx, c.id, p.RoomID)
	if err != nil {
		return err
	}
	ctl.sendJSON(c, core.RoomUsersEvent{Type: core.EvRoomUsers, RoomID: p.RoomID, Users: users})
	return nil
}

func (ctl *SignalWSController) handleLeave(ctx context.Context, c *WsSignalConn, data []byte) error {
	var p roomPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if err := p.validate(); err != nil {
		return err
	}
	if err := ctl.Orch.LeaveRoom(ctx, c.id, p.RoomID); err != nil {
		return err
	}
	ctl.sendJSON(c, core.LeftRoomEvent{Type: core.EvLeftRoom, RoomID: p.RoomID})
	return nil
}

// allow applies the per-user limit to high-frequency events. Anonymous
// connections pass through and are rejected by the orchestrator.
func (ctl *SignalWSController) allow(c *WsSignalConn) error {
	uid, ok := ctl.Orch.Registry.OwnerOf(c.id)
	if !ok || ctl.Limiter.Allow(uid) {
		return nil
	}
	return errRateLimited
}

func (ctl *SignalWSController) handleSendSignal(ctx context.Context, c *WsSignalConn, data []byte) error {
	var p struct {
		RoomID       domain.RoomID   `json:"roomId"`
		TargetUserID domain.UserID   `json:"targetUserId"`
		Signal       json.RawMessage `json:"signal"`
	}
	if err := decode(data, &p); err != nil {
		return err
	}
	if len(p.Signal) == 0 {
		return errBadPayload
	}
	if err := ctl.allow(c); err != nil {
		return err
	}
	return ctl.Orch.Signal(ctx, c.id, p.TargetUserID, p.RoomID, p.Signal)
}

func (ctl *SignalWSController) handleMediaState(ctx context.Context, c *WsSignalConn, data []byte) error {
	var p struct {
		roomPayload
		domain.MediaState
	}
	if err := decode(data, &p); err != nil {
		return err
	}
	if err := p.validate(); err != nil {
		return err
	}
	if err := ctl.allow(c); err != nil {
		return err
	}
	return ctl.Orch.MediaState(ctx, c.id, p.RoomID, p.MediaState)
}

func (ctl *SignalWSController) handleScreenShare(ctx context.Context, c *WsSignalConn, data []byte) error {
	var p struct {
		roomPayload
		Sharing bool `json:"sharing"`
	}
	if err := decode(data, &p); err != nil {
		return err
	}
	if err := p.validate(); err != nil {
		return err
	}
	if err := ctl.allow(c); err != nil {
		return err
	}
	return ctl.Orch.ScreenShare(ctx, c.id, p.RoomID, p.Sharing)
}

func (ctl *SignalWSController) handlePresence(ctx context.Context, c *WsSignalConn, data []byte) error {
	var p struct {
		Status domain.Status `json:"status"`
	}
	if err := decode(data, &p); err != nil {
		return err
	}
	return ctl.Orch.UpdatePresence(ctx, c.id, p.Status)
}

func (ctl *SignalWSController) handlePing(c *WsSignalConn) {
	ctl.sendJSON(c, struct {
		Type string `json:"type"`
	}{Type: core.EvPong})
}
