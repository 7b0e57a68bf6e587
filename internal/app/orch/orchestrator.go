package orch

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/metrics"
	"github.com/rs/zerolog/log"
)

const defaultStoreTimeout = 5 * time.Second

// Orchestrator turns inbound connection events into registry and tracker
// mutations and the broadcasts that follow them.
//
// Every transition of one user (going online, joining, leaving, going
// offline) runs under that user's lock, so a disconnect never races an
// in-flight join of the same user: it waits and then cleans the join up.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.Tracker
	Presence *app.Presence
	Relay    *app.SignalRelay
	Policy   app.Policy
	Store    core.Store
	Auth     core.TokenVerifier
	Metrics  *metrics.Metrics

	// StoreTimeout bounds each store round trip. Round trips are not
	// cancelled by the connection going away.
	StoreTimeout time.Duration

	users app.KeyedMutex[domain.UserID]
}

func New(store core.Store, auth core.TokenVerifier, policy app.Policy, m *metrics.Metrics) *Orchestrator {
	reg := app.NewRegistry()
	rooms := app.NewTracker(store)
	return &Orchestrator{
		Registry: reg,
		Rooms:    rooms,
		Presence: &app.Presence{Registry: reg, Friends: store},
		Relay:    &app.SignalRelay{Registry: reg, Rooms: rooms},
		Policy:   policy,
		Store:    store,
		Auth:     auth,
		Metrics:  m,
	}
}

func (o *Orchestrator) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	d := o.StoreTimeout
	if d <= 0 {
		d = defaultStoreTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), d)
}

// owner resolves the authenticated user of a connection.
func (o *Orchestrator) owner(cid core.ConnectionID) (domain.UserID, error) {
	uid, ok := o.Registry.OwnerOf(cid)
	if !ok {
		return "", core.ErrUnauthenticated
	}
	return uid, nil
}

// Authenticate verifies token and registers the connection under its user.
// The first connection of a user makes it online for its friends.
func (o *Orchestrator) Authenticate(ctx context.Context, cid core.ConnectionID, conn core.SignalConnection, token string) (domain.UserID, error) {
	if token == "" {
		return "", fmt.Errorf("%w: missing token", core.ErrAuthentication)
	}
	uid, err := o.Auth.Verify(token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrAuthentication, err)
	}

	sctx, cancel := o.storeCtx(ctx)
	defer cancel()
	if _, err := o.Store.User(sctx, uid); err != nil {
		if core.Kind(err) == "not_found" {
			return "", fmt.Errorf("%w: unknown user %s", core.ErrAuthentication, uid)
		}
		return "", err
	}

	unlock := o.users.Lock(uid)
	defer unlock()

	if owner, ok := o.Registry.OwnerOf(cid); ok {
		if owner == uid {
			return uid, nil
		}
		return "", fmt.Errorf("%w: connection already authenticated", core.ErrAuthentication)
	}
	if first := o.Registry.Register(uid, cid, conn); first {
		o.announce(sctx, uid, domain.StatusOnline)
	}
	o.refreshGauges()
	log.Info().Str("module", "orch").Str("cid", string(cid)).Str("user", string(uid)).Msg("authenticated")
	return uid, nil
}

// UpdatePresence passes a user-declared status overlay on to friends.
func (o *Orchestrator) UpdatePresence(ctx context.Context, cid core.ConnectionID, status domain.Status) error {
	uid, err := o.owner(cid)
	if err != nil {
		return err
	}
	if !status.Declarable() {
		return fmt.Errorf("%w: status %q", core.ErrInvalid, status)
	}
	unlock := o.users.Lock(uid)
	defer unlock()

	sctx, cancel := o.storeCtx(ctx)
	defer cancel()
	o.announce(sctx, uid, status)
	return nil
}

// announce persists status and tells online friends. Both are best effort.
func (o *Orchestrator) announce(ctx context.Context, uid domain.UserID, status domain.Status) {
	if err := o.Store.SetUserStatus(ctx, uid, status); err != nil {
		log.Error().Err(err).Str("module", "orch").Str("user", string(uid)).Str("status", string(status)).Msg("persist status failed")
	}
	res, err := o.Presence.Announce(ctx, uid, status)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("user", string(uid)).Str("status", string(status)).Msg("presence announce failed")
		return
	}
	o.handleResult(res)
}

// handleResult applies the back-pressure policy to connections that
// refused a frame.
func (o *Orchestrator) handleResult(res core.PublishResult) {
	o.Metrics.Slow(len(res.Dropped))
	if o.Policy == nil {
		return
	}
	for _, cid := range res.Dropped {
		uid, ok := o.Registry.OwnerOf(cid)
		if !ok {
			continue
		}
		switch o.Policy.OnBackPressure(uid, cid) {
		case app.KickMember:
			if conn, ok := o.Registry.Connection(cid); ok {
				log.Warn().Str("module", "orch").Str("cid", string(cid)).Str("user", string(uid)).Msg("kicking slow connection")
				conn.Close()
			}
		case app.DropFrame, app.NoAction:
		}
	}
}

func (o *Orchestrator) refreshGauges() {
	users, conns := o.Registry.Stats()
	o.Metrics.Occupancy(users, conns, o.Rooms.RoomCount())
}
