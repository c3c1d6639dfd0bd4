package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User holds the structure for the users collection in mongo
type User struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	Email     string             `json:"email" bson:"email" index:"unique"`
	Phone     string             `json:"phone" bson:"phone"`
	Password  string             `json:"-" bson:"password"`
	AvatarURL string             `json:"avatar_url" bson:"avatar_url,omitempty"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

// UserSummary is the projection of a user attached to rosters, invitations
// and contributions on the read side
type UserSummary struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id"`
	Name      string             `json:"name" bson:"name"`
	Email     string             `json:"email" bson:"email"`
	AvatarURL string             `json:"avatar_url" bson:"avatar_url,omitempty"`
}

// Summary trims a user down to the fields safe to embed in responses
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
	}
}
