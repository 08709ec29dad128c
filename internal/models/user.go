package models

import (
	"time"

	"github.com/uoknil/tauschBar/internal/utils"
)

// User represents a registered account. Warnings and IsBanned are mutated by
// moderation actions only.
type User struct {
	ID             utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
	Username       string      `bson:"username" json:"username"`
	Email          string      `bson:"email" json:"email"`
	PasswordHash   string      `bson:"password" json:"-"`
	Address        string      `bson:"address,omitempty" json:"address,omitempty"`
	Zip            string      `bson:"zip,omitempty" json:"zip,omitempty"`
	ProfilePicture string      `bson:"profile_picture,omitempty" json:"profile_picture,omitempty"` // S3 key
	Warnings       int         `bson:"warnings" json:"warnings"`
	IsBanned       bool        `bson:"is_banned" json:"is_banned"`
	IsModerator    bool        `bson:"is_moderator" json:"is_moderator"`
	CreatedAt      time.Time   `bson:"created_at" json:"created_at"`
}

// PublicProfile is the user shape exposed to other users.
type PublicProfile struct {
	ID       utils.SixID `json:"id"`
	Username string      `json:"username"`
}

// Public returns the profile other users may see.
func (u *User) Public() PublicProfile {
	return PublicProfile{ID: u.ID, Username: u.Username}
}
