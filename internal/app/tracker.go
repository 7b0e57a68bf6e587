package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// RosterChange is the outcome of a join or leave. Roster is the room
// snapshot taken right after the mutation, under the room lock.
type RosterChange struct {
	Roster  []domain.UserID
	Changed bool
}

// Tracker keeps the live roster of every room together with the reverse
// user -> rooms index, and mirrors each change into the persisted roster.
//
// Mutations of one room are serialized by a per-room lock held across the
// store round trip; the store is written before memory so a failed write
// leaves the in-memory roster untouched.
type Tracker struct {
	store core.RosterStore
	locks KeyedMutex[domain.RoomID]

	mu     sync.RWMutex
	rooms  map[domain.RoomID]map[domain.UserID]struct{}
	byUser map[domain.UserID]map[domain.RoomID]struct{}
}

func NewTracker(store core.RosterStore) *Tracker {
	return &Tracker{
		store:  store,
		rooms:  make(map[domain.RoomID]map[domain.UserID]struct{}),
		byUser: make(map[domain.UserID]map[domain.RoomID]struct{}),
	}
}

// Join adds uid to the room. The caller must already have authorized uid.
// Joining twice is a no-op that still returns the roster.
func (t *Tracker) Join(ctx context.Context, room domain.RoomID, uid domain.UserID) (RosterChange, error) {
	unlock := t.locks.Lock(room)
	defer unlock()

	if t.Contains(room, uid) {
		return RosterChange{Roster: t.Roster(room)}, nil
	}
	if err := t.store.AddRoomMember(ctx, room, uid); err != nil {
		log.Error().Err(err).Str("module", "app.tracker").Str("room", string(room)).Str("user", string(uid)).Msg("persist join failed")
		return RosterChange{Roster: t.Roster(room)}, fmt.Errorf("%w: add %s to %s: %w", core.ErrPersistence, uid, room, err)
	}

	t.mu.Lock()
	members, ok := t.rooms[room]
	if !ok {
		members = make(map[domain.UserID]struct{})
		t.rooms[room] = members
	}
	members[uid] = struct{}{}
	joined, ok := t.byUser[uid]
	if !ok {
		joined = make(map[domain.RoomID]struct{})
		t.byUser[uid] = joined
	}
	joined[room] = struct{}{}
	roster := snapshot(members)
	t.mu.Unlock()

	log.Info().Str("module", "app.tracker").Str("room", string(room)).Str("user", string(uid)).Int("members", len(roster)).Msg("member joined")
	return RosterChange{Roster: roster, Changed: true}, nil
}

// Leave removes uid from the room; absent users are a no-op.
func (t *Tracker) Leave(ctx context.Context, room domain.RoomID, uid domain.UserID) (RosterChange, error) {
	unlock := t.locks.Lock(room)
	defer unlock()

	if !t.Contains(room, uid) {
		return RosterChange{Roster: t.Roster(room)}, nil
	}
	if err := t.store.RemoveRoomMember(ctx, room, uid); err != nil {
		log.Error().Err(err).Str("module", "app.tracker").Str("room", string(room)).Str("user", string(uid)).Msg("persist leave failed")
		return RosterChange{Roster: t.Roster(room)}, fmt.Errorf("%w: remove %s from %s: %w", core.ErrPersistence, uid, room, err)
	}

	t.mu.Lock()
	members := t.rooms[room]
	delete(members, uid)
	if len(members) == 0 {
		delete(t.rooms, room)
	}
	if joined, ok := t.byUser[uid]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(t.byUser, uid)
		}
	}
	roster := snapshot(members)
	t.mu.Unlock()

	log.Info().Str("module", "app.tracker").Str("room", string(room)).Str("user", string(uid)).Int("members", len(roster)).Msg("member left")
	return RosterChange{Roster: roster, Changed: true}, nil
}

// Roster returns a copy of the users currently in the room.
func (t *Tracker) Roster(room domain.RoomID) []domain.UserID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return snapshot(t.rooms[room])
}

func (t *Tracker) Contains(room domain.RoomID, uid domain.UserID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.rooms[room][uid]
	return ok
}

// RoomsOf returns the rooms uid currently occupies.
func (t *Tracker) RoomsOf(uid domain.UserID) []domain.RoomID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	joined := t.byUser[uid]
	out := make([]domain.RoomID, 0, len(joined))
	for room := range joined {
		out = append(out, room)
	}
	return out
}

// RoomCount returns how many rooms have at least one occupant.
func (t *Tracker) RoomCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms)
}

func snapshot(members map[domain.UserID]struct{}) []domain.UserID {
	out := make([]domain.UserID, 0, len(members))
	for uid := range members {
		out = append(out, uid)
	}
	return out
}
