package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkeye/huddle/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

var knownEvents = map[string]bool{
	"authenticate":       true,
	"join_room":          true,
	"leave_room":         true,
	"send_signal":        true,
	"media_state_change": true,
	"screen_share_state": true,
	"presence_update":    true,
	"ping":               true,
}

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.Settings.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("cid", string(c.id)).Msg("writePump ctx done")
			// unblocks readPump
			c.Close()
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("cid", string(c.id)).Msg("writePump ping")
				c.Close()
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("cid", string(c.id)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("cid", string(c.id)).Msg("writePump write error")
				c.Close()
				return
			}
		}
	}
}

// readPump handles the connection's events one at a time, in arrival
// order. Its exit is the transport close that triggers reconciliation.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("cid", string(c.id)).Msg("readPump closing")
		cancel()
		c.Close()
		if err := ctl.Orch.Disconnect(ctx, c.id); err != nil {
			log.Error().Err(err).Str("module", "signal").Str("cid", string(c.id)).Msg("disconnect cleanup")
		}
	}()

	if ctl.Settings.ReadLimit > 0 {
		c.conn.SetReadLimit(ctl.Settings.ReadLimit)
	}
	wait := ctl.Settings.pongWait()
	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("cid", string(c.id)).Msg("readPump read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(wait))
		ctl.handleSignal(ctx, c, data)
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, c *WsSignalConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendMessage(c, core.EvError, "bad_payload")
		return
	}
	if knownEvents[env.Type] {
		ctl.Orch.Metrics.Event(env.Type)
	}

	var err error
	switch env.Type {
	case "authenticate":
		ctl.handleAuthenticate(ctx, c, data)
		return
	case "join_room":
		err = ctl.handleJoin(ctx, c, data)
	case "leave_room":
		err = ctl.handleLeave(ctx, c, data)
	case "send_signal":
		err = ctl.handleSendSignal(ctx, c, data)
	case "media_state_change":
		err = ctl.handleMediaState(ctx, c, data)
	case "screen_share_state":
		err = ctl.handleScreenShare(ctx, c, data)
	case "presence_update":
		err = ctl.handlePresence(ctx, c, data)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendMessage(c, core.EvError, "unknown event "+env.Type)
	}
	if err != nil {
		ctl.sendError(c, env.Type, err)
	}
}

var (
	errBadPayload  = fmt.Errorf("%w: bad_payload", core.ErrInvalid)
	errRateLimited = fmt.Errorf("%w: rate limited", core.ErrInvalid)
)

func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return errBadPayload
	}
	return nil
}

// sendError reports a failed event to its own connection only.
func (ctl *SignalWSController) sendError(c *WsSignalConn, event string, err error) {
	kind := core.Kind(err)
	ctl.Orch.Metrics.EventError(kind)
	msg := err.Error()
	switch kind {
	case "persistence", "internal":
		log.Error().Err(err).Str("module", "signal").Str("cid", string(c.id)).Str("event", event).Msg("event failed")
		msg = event + " failed"
	default:
		log.Info().Err(err).Str("module", "signal").Str("cid", string(c.id)).Str("event", event).Msg("event rejected")
	}
	ctl.sendMessage(c, core.EvError, msg)
}

func (ctl *SignalWSController) sendMessage(c *WsSignalConn, typ, msg string) {
	ctl.sendJSON(c, core.ErrorEvent{Type: typ, Message: msg})
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	f, err := core.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(f); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("cid", string(c.id)).Msg("sendJSON dropped")
	}
}
