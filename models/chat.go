package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatMessage holds the structure for the chatMessages collection in mongo
type ChatMessage struct {
	ID         primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	CampaignID primitive.ObjectID `json:"campaign_id" bson:"campaign_id"`
	UserID     primitive.ObjectID `json:"user_id" bson:"user_id"`
	Text       string             `json:"text" bson:"text"`
	Timestamp  time.Time          `json:"timestamp" bson:"timestamp"`
	ReadBy     []ReadReceipt      `json:"read_by" bson:"read_by"`
}

// ReadReceipt marks a message as read by a user
type ReadReceipt struct {
	UserID primitive.ObjectID `json:"user_id" bson:"user_id"`
	ReadAt time.Time          `json:"read_at" bson:"read_at"`
}

// ChatMessageWithUser is a chat message joined with its sender projection
type ChatMessageWithUser struct {
	ChatMessage
	User UserSummary `json:"user"`
}
