package core

import (
	"context"

	"github.com/dkeye/huddle/internal/domain"
)

// TokenVerifier resolves a bearer token to the user it was issued for.
type TokenVerifier interface {
	Verify(token string) (domain.UserID, error)
}

// RosterStore persists who currently sits in a room.
type RosterStore interface {
	AddRoomMember(ctx context.Context, room domain.RoomID, user domain.UserID) error
	RemoveRoomMember(ctx context.Context, room domain.RoomID, user domain.UserID) error
}

// MembershipChecker answers whether a user may enter rooms of a server.
type MembershipChecker interface {
	Room(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	IsAuthorizedMember(ctx context.Context, server domain.ServerID, user domain.UserID) (bool, error)
}

// FriendStore is the read-only source of friend edges.
type FriendStore interface {
	FriendsOf(ctx context.Context, user domain.UserID) ([]domain.UserID, error)
}

// UserStore holds profiles and the last persisted status.
type UserStore interface {
	User(ctx context.Context, id domain.UserID) (*domain.User, error)
	Users(ctx context.Context, ids []domain.UserID) ([]domain.User, error)
	SetUserStatus(ctx context.Context, id domain.UserID, status domain.Status) error
}

// Store is everything the relay consumes from persistence.
type Store interface {
	RosterStore
	MembershipChecker
	FriendStore
	UserStore
}
