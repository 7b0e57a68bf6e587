package core

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/huddle/internal/domain"
)

// Outbound event names.
const (
	EvAuthenticated      = "authenticated"
	EvAuthError          = "auth_error"
	EvError              = "error"
	EvUserJoinedRoom     = "user_joined_room"
	EvUserLeftRoom       = "user_left_room"
	EvRoomUsers          = "room_users"
	EvLeftRoom           = "left_room"
	EvReceiveSignal      = "receive_signal"
	EvUserMediaState     = "user_media_state"
	EvUserScreenShare    = "user_screen_share"
	EvFriendStatusChange = "friend_status_change"
	EvPong               = "pong"
)

type AuthenticatedEvent struct {
	Type   string        `json:"type"`
	UserID domain.UserID `json:"userId"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type UserJoinedRoomEvent struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
	User   domain.User   `json:"user"`
}

type UserLeftRoomEvent struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
}

type RoomUsersEvent struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
	Users  []domain.User `json:"users"`
}

type LeftRoomEvent struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
}

type ReceiveSignalEvent struct {
	Type   string          `json:"type"`
	RoomID domain.RoomID   `json:"roomId,omitempty"`
	UserID domain.UserID   `json:"userId"`
	Signal json.RawMessage `json:"signal"`
}

type UserMediaStateEvent struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
	domain.MediaState
}

type UserScreenShareEvent struct {
	Type    string        `json:"type"`
	RoomID  domain.RoomID `json:"roomId"`
	UserID  domain.UserID `json:"userId"`
	Sharing bool          `json:"sharing"`
}

type FriendStatusChangeEvent struct {
	Type   string        `json:"type"`
	UserID domain.UserID `json:"userId"`
	Status domain.Status `json:"status"`
}

// Encode marshals an outbound event into a frame.
func Encode(v any) (Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return Frame(b), nil
}
