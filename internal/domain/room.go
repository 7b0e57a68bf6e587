package domain

type (
	RoomID   string
	ServerID string
	RoomType string
)

const (
	RoomVoice RoomType = "voice"
	RoomVideo RoomType = "video"
	RoomText  RoomType = "text"
)

type Room struct {
	ID     RoomID   `json:"_id"`
	Server ServerID `json:"server"`
	Name   string   `json:"name"`
	Type   RoomType `json:"type"`
}

type Server struct {
	ID    ServerID `json:"_id"`
	Name  string   `json:"name"`
	Owner UserID   `json:"owner"`
}
