package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// JoinRoom puts the connection's user into a room after checking the room
// exists and the user belongs to its server. It returns the room's users.
// user_joined_room is broadcast only when the roster actually changed.
func (o *Orchestrator) JoinRoom(ctx context.Context, cid core.ConnectionID, roomID domain.RoomID) ([]domain.User, error) {
	uid, err := o.owner(cid)
	if err != nil {
		return nil, err
	}
	unlock := o.users.Lock(uid)
	defer unlock()
	// the connection may have closed while we waited for the lock
	if _, err := o.owner(cid); err != nil {
		return nil, err
	}

	sctx, cancel := o.storeCtx(ctx)
	defer cancel()

	room, err := o.Store.Room(sctx, roomID)
	if err != nil {
		return nil, err
	}
	ok, err := o.Store.IsAuthorizedMember(sctx, room.Server, uid)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a member of server %s", core.ErrAuthorization, uid, room.Server)
	}

	change, err := o.Rooms.Join(sctx, roomID, uid)
	if err != nil {
		return nil, err
	}
	o.refreshGauges()

	users := o.profiles(sctx, change.Roster)
	if change.Changed {
		joiner := domain.User{ID: uid}
		for i := range users {
			if users[i].ID == uid {
				joiner = users[i].Brief()
				break
			}
		}
		res, err := o.Relay.BroadcastRoster(change.Roster, "", core.UserJoinedRoomEvent{
			Type:   core.EvUserJoinedRoom,
			RoomID: roomID,
			User:   joiner,
		})
		if err != nil {
			log.Error().Err(err).Str("module", "orch").Str("room", string(roomID)).Msg("broadcast join failed")
		}
		o.handleResult(res)
	}
	log.Info().Str("module", "orch").Str("room", string(roomID)).Str("user", string(uid)).Bool("changed", change.Changed).Msg("join room")
	return users, nil
}

// LeaveRoom takes the connection's user out of a room.
func (o *Orchestrator) LeaveRoom(ctx context.Context, cid core.ConnectionID, roomID domain.RoomID) error {
	uid, err := o.owner(cid)
	if err != nil {
		return err
	}
	unlock := o.users.Lock(uid)
	defer unlock()

	sctx, cancel := o.storeCtx(ctx)
	defer cancel()

	if _, err := o.Store.Room(sctx, roomID); err != nil {
		return err
	}
	return o.leave(sctx, roomID, uid, true)
}

// leave removes uid from roomID and tells the room. notifySelf also tells
// the leaving user's own connections, so its other devices stay in sync.
// Caller holds uid's lock.
func (o *Orchestrator) leave(ctx context.Context, roomID domain.RoomID, uid domain.UserID, notifySelf bool) error {
	change, err := o.Rooms.Leave(ctx, roomID, uid)
	if err != nil {
		return err
	}
	o.refreshGauges()
	if !change.Changed {
		return nil
	}
	targets := change.Roster
	if notifySelf {
		targets = append(targets, uid)
	}
	res, err := o.Relay.BroadcastRoster(targets, "", core.UserLeftRoomEvent{
		Type:   core.EvUserLeftRoom,
		RoomID: roomID,
		UserID: uid,
	})
	if err != nil {
		return err
	}
	o.handleResult(res)
	log.Info().Str("module", "orch").Str("room", string(roomID)).Str("user", string(uid)).Msg("left room")
	return nil
}

// RoomUsers returns the profiles of a room's live roster.
func (o *Orchestrator) RoomUsers(ctx context.Context, roomID domain.RoomID) ([]domain.User, error) {
	sctx, cancel := o.storeCtx(ctx)
	defer cancel()
	if _, err := o.Store.Room(sctx, roomID); err != nil {
		return nil, err
	}
	return o.profiles(sctx, o.Rooms.Roster(roomID)), nil
}

// profiles loads user profiles, falling back to bare ids when the store
// cannot answer: the roster itself is already committed at this point.
func (o *Orchestrator) profiles(ctx context.Context, ids []domain.UserID) []domain.User {
	users, err := o.Store.Users(ctx, ids)
	if err == nil {
		return users
	}
	log.Error().Err(err).Str("module", "orch").Int("users", len(ids)).Msg("load profiles failed")
	users = make([]domain.User, 0, len(ids))
	for _, id := range ids {
		users = append(users, domain.User{ID: id})
	}
	return users
}
