// Package domain contains entity without logic, just meta-data
package domain

type UserID string

type User struct {
	ID          UserID `json:"_id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Status      Status `json:"status,omitempty"`
}

// Brief is the subset of a user broadcast to room mates on join.
func (u *User) Brief() User {
	return User{ID: u.ID, Username: u.Username}
}
