package store

import (
	"context"

	"github.com/dkeye/huddle/internal/domain"
)

func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	if u.Status == "" {
		u.Status = domain.StatusOffline
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, display_name, avatar, status) VALUES (?, ?, ?, ?, ?)`,
		string(u.ID), u.Username, u.DisplayName, u.Avatar, string(u.Status))
	if err != nil {
		return persistErr("create user", err)
	}
	return nil
}

func (s *Store) CreateServer(ctx context.Context, srv domain.Server) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO servers (id, name, owner_id) VALUES (?, ?, ?)`, string(srv.ID), srv.Name, string(srv.Owner))
	if err != nil {
		return persistErr("create server", err)
	}
	return nil
}

func (s *Store) AddServerMember(ctx context.Context, server domain.ServerID, user domain.UserID) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO server_members (server_id, user_id) VALUES (?, ?)`, string(server), string(user))
	if err != nil {
		return persistErr("add server member", err)
	}
	return nil
}

func (s *Store) CreateRoom(ctx context.Context, r domain.Room) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (id, server_id, name, type) VALUES (?, ?, ?, ?)`,
		string(r.ID), string(r.Server), r.Name, string(r.Type))
	if err != nil {
		return persistErr("create room", err)
	}
	return nil
}

// AddFriend stores one undirected edge.
func (s *Store) AddFriend(ctx context.Context, a, b domain.UserID) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO friends (user_id, friend_id) VALUES (?, ?)`, string(a), string(b))
	if err != nil {
		return persistErr("add friend", err)
	}
	return nil
}
