// Package coretest provides in-memory collaborators for tests.
package coretest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
)

var ErrFull = errors.New("send buffer full")

// Conn records every frame it is handed.
type Conn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
	full   bool
}

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("closed")
	}
	if c.full {
		return ErrFull
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// SetFull makes every following TrySend fail with back pressure.
func (c *Conn) SetFull(full bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.full = full
}

// Events decodes the received frames in order.
func (c *Conn) Events() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			panic(fmt.Sprintf("bad frame %q: %v", f, err))
		}
		out = append(out, m)
	}
	return out
}

// OfType returns the received events whose type matches.
func (c *Conn) OfType(typ string) []map[string]any {
	var out []map[string]any
	for _, ev := range c.Events() {
		if ev["type"] == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (c *Conn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

// Verifier accepts the tokens it maps.
type Verifier map[string]domain.UserID

func (v Verifier) Verify(token string) (domain.UserID, error) {
	uid, ok := v[token]
	if !ok {
		return "", errors.New("unknown token")
	}
	return uid, nil
}

// Store is an in-memory core.Store with failure injection.
type Store struct {
	mu       sync.Mutex
	users    map[domain.UserID]domain.User
	servers  map[domain.ServerID]domain.Server
	members  map[domain.ServerID]map[domain.UserID]bool
	rooms    map[domain.RoomID]domain.Room
	friends  map[domain.UserID]map[domain.UserID]bool
	rosters  map[domain.RoomID]map[domain.UserID]bool
	failAdd  map[domain.RoomID]error
	failRem  map[domain.RoomID]error
	failFrnd error

	// OnAdd runs inside AddRoomMember before the write, without the lock.
	OnAdd func(room domain.RoomID, user domain.UserID)
}

var _ core.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		users:   make(map[domain.UserID]domain.User),
		servers: make(map[domain.ServerID]domain.Server),
		members: make(map[domain.ServerID]map[domain.UserID]bool),
		rooms:   make(map[domain.RoomID]domain.Room),
		friends: make(map[domain.UserID]map[domain.UserID]bool),
		rosters: make(map[domain.RoomID]map[domain.UserID]bool),
		failAdd: make(map[domain.RoomID]error),
		failRem: make(map[domain.RoomID]error),
	}
}

func (s *Store) AddUser(id domain.UserID) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = domain.User{ID: id, Username: string(id), Status: domain.StatusOffline}
	return s
}

func (s *Store) AddServer(id domain.ServerID, owner domain.UserID, members ...domain.UserID) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.servers[id] = domain.Server{ID: id, Name: string(id), Owner: owner}
	set := make(map[domain.UserID]bool)
	for _, m := range members {
		set[m] = true
	}
	s.members[id] = set
	return s
}

func (s *Store) AddRoom(id domain.RoomID, server domain.ServerID) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[id] = domain.Room{ID: id, Server: server, Name: string(id), Type: domain.RoomVoice}
	return s
}

func (s *Store) Befriend(a, b domain.UserID) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range [][2]domain.UserID{{a, b}, {b, a}} {
		if s.friends[p[0]] == nil {
			s.friends[p[0]] = make(map[domain.UserID]bool)
		}
		s.friends[p[0]][p[1]] = true
	}
	return s
}

func (s *Store) FailJoin(room domain.RoomID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failAdd, room)
		return
	}
	s.failAdd[room] = err
}

func (s *Store) FailLeave(room domain.RoomID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failRem, room)
		return
	}
	s.failRem[room] = err
}

func (s *Store) FailFriends(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFrnd = err
}

// Roster returns the persisted roster of a room, sorted.
func (s *Store) Roster(room domain.RoomID) []domain.UserID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserID, 0, len(s.rosters[room]))
	for uid := range s.rosters[room] {
		out = append(out, uid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Store) Status(id domain.UserID) domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id].Status
}

func (s *Store) AddRoomMember(_ context.Context, room domain.RoomID, user domain.UserID) error {
	if s.OnAdd != nil {
		s.OnAdd(room, user)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failAdd[room]; err != nil {
		return err
	}
	if s.rosters[room] == nil {
		s.rosters[room] = make(map[domain.UserID]bool)
	}
	s.rosters[room][user] = true
	return nil
}

func (s *Store) RemoveRoomMember(_ context.Context, room domain.RoomID, user domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failRem[room]; err != nil {
		return err
	}
	delete(s.rosters[room], user)
	return nil
}

func (s *Store) Room(_ context.Context, id domain.RoomID) (*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, fmt.Errorf("%w: room %s", core.ErrNotFound, id)
	}
	return &r, nil
}

func (s *Store) IsAuthorizedMember(_ context.Context, server domain.ServerID, user domain.UserID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	srv, ok := s.servers[server]
	if !ok {
		return false, fmt.Errorf("%w: server %s", core.ErrNotFound, server)
	}
	return srv.Owner == user || s.members[server][user], nil
}

func (s *Store) FriendsOf(_ context.Context, user domain.UserID) ([]domain.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFrnd != nil {
		return nil, s.failFrnd
	}
	out := make([]domain.UserID, 0, len(s.friends[user]))
	for f := range s.friends[user] {
		out = append(out, f)
	}
	return out, nil
}

func (s *Store) User(_ context.Context, id domain.UserID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", core.ErrNotFound, id)
	}
	return &u, nil
}

func (s *Store) Users(_ context.Context, ids []domain.UserID) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) SetUserStatus(_ context.Context, id domain.UserID, status domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%w: user %s", core.ErrNotFound, id)
	}
	u.Status = status
	s.users[id] = u
	return nil
}
