package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

// Disconnect reconciles a closed transport. Nothing happens unless it was
// the user's last connection; then the user goes offline for its friends
// and leaves every room it occupies. A failing room does not stop the
// others; the failures are logged and returned together.
func (o *Orchestrator) Disconnect(ctx context.Context, cid core.ConnectionID) error {
	uid, ok := o.Registry.OwnerOf(cid)
	if !ok {
		// never authenticated
		return nil
	}
	unlock := o.users.Lock(uid)
	defer unlock()

	uid, last, found := o.Registry.Deregister(cid)
	defer o.refreshGauges()
	if !found || !last {
		return nil
	}

	sctx, cancel := o.storeCtx(ctx)
	defer cancel()
	o.announce(sctx, uid, domain.StatusOffline)

	var errs error
	rooms := o.Rooms.RoomsOf(uid)
	for _, roomID := range rooms {
		if err := o.leave(sctx, roomID, uid, false); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("room %s: %w", roomID, err))
		}
	}
	if errs != nil {
		failed := len(multierr.Errors(errs))
		o.Metrics.ReconcileFailed(failed)
		log.Error().Err(errs).Str("module", "orch").Str("user", string(uid)).Int("rooms", len(rooms)).Int("failed", failed).Msg("disconnect cleanup incomplete")
		return errs
	}
	log.Info().Str("module", "orch").Str("cid", string(cid)).Str("user", string(uid)).Int("rooms", len(rooms)).Msg("user went offline")
	return nil
}
