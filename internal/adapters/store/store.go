// Package store persists users, servers, rooms and live room rosters in
// SQLite. Entity CRUD beyond what the relay reads lives elsewhere; the
// seeding helpers here exist for local setups and tests.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

var _ core.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one writer; also keeps ":memory:" databases on a single connection
	db.SetMaxOpenConns(1)
	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info().Str("module", "store").Str("path", path).Msg("database ready")
	return s, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", core.ErrPersistence, op, err)
}

// ResetRosters empties every persisted roster. Live presence is owned by a
// single relay process, so whatever a previous run left behind is stale.
func (s *Store) ResetRosters(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM room_users`)
	if err != nil {
		return 0, persistErr("reset rosters", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *Store) AddRoomMember(ctx context.Context, room domain.RoomID, user domain.UserID) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO room_users (room_id, user_id) VALUES (?, ?)`, string(room), string(user))
	if err != nil {
		return persistErr("add room member", err)
	}
	return nil
}

func (s *Store) RemoveRoomMember(ctx context.Context, room domain.RoomID, user domain.UserID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM room_users WHERE room_id = ? AND user_id = ?`, string(room), string(user))
	if err != nil {
		return persistErr("remove room member", err)
	}
	return nil
}

// RoomMembers returns the persisted roster of a room.
func (s *Store) RoomMembers(ctx context.Context, room domain.RoomID) ([]domain.UserID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM room_users WHERE room_id = ? ORDER BY user_id`, string(room))
	if err != nil {
		return nil, persistErr("room members", err)
	}
	defer rows.Close()
	var out []domain.UserID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, persistErr("scan room member", err)
		}
		out = append(out, domain.UserID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("room members", err)
	}
	return out, nil
}

func (s *Store) Room(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	var r domain.Room
	err := s.db.QueryRowContext(ctx,
		`SELECT id, server_id, name, type FROM rooms WHERE id = ?`, string(id)).
		Scan(&r.ID, &r.Server, &r.Name, &r.Type)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: room %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, persistErr("load room", err)
	}
	return &r, nil
}

// IsAuthorizedMember reports whether user owns or belongs to server.
// A missing server is ErrNotFound.
func (s *Store) IsAuthorizedMember(ctx context.Context, server domain.ServerID, user domain.UserID) (bool, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT owner_id FROM servers WHERE id = ?`, string(server)).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("%w: server %s", core.ErrNotFound, server)
	}
	if err != nil {
		return false, persistErr("load server", err)
	}
	if owner == string(user) {
		return true, nil
	}
	var n int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM server_members WHERE server_id = ? AND user_id = ?`, string(server), string(user)).Scan(&n)
	if err != nil {
		return false, persistErr("check membership", err)
	}
	return n > 0, nil
}

// FriendsOf treats friend edges as undirected.
func (s *Store) FriendsOf(ctx context.Context, user domain.UserID) ([]domain.UserID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT friend_id FROM friends WHERE user_id = ?
		UNION
		SELECT user_id FROM friends WHERE friend_id = ?`, string(user), string(user))
	if err != nil {
		return nil, persistErr("friends", err)
	}
	defer rows.Close()
	var out []domain.UserID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, persistErr("scan friend", err)
		}
		out = append(out, domain.UserID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("friends", err)
	}
	return out, nil
}

func (s *Store) User(ctx context.Context, id domain.UserID) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, display_name, avatar, status FROM users WHERE id = ?`, string(id)).
		Scan(&u.ID, &u.Username, &u.DisplayName, &u.Avatar, &u.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, persistErr("load user", err)
	}
	return &u, nil
}

// Users loads the profiles of ids; unknown ids are skipped.
func (s *Store) Users(ctx context.Context, ids []domain.UserID) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = string(id)
	}
	q := `SELECT id, username, display_name, avatar, status FROM users WHERE id IN (?` +
		strings.Repeat(",?", len(ids)-1) + `) ORDER BY username`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, persistErr("load users", err)
	}
	defer rows.Close()
	out := make([]domain.User, 0, len(ids))
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Avatar, &u.Status); err != nil {
			return nil, persistErr("scan user", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("load users", err)
	}
	return out, nil
}

func (s *Store) SetUserStatus(ctx context.Context, id domain.UserID, status domain.Status) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET status = ? WHERE id = ?`, string(status), string(id))
	if err != nil {
		return persistErr("set status", err)
	}
	return nil
}
