package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CampaignMember holds the structure for the campaignMembers collection in mongo.
// The pair {campaign_id, user_id} is unique, and so is {campaign_id, allocated_month}
// once a month has been assigned.
type CampaignMember struct {
	ID                primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	CampaignID        primitive.ObjectID `json:"campaign_id" bson:"campaign_id"`
	UserID            primitive.ObjectID `json:"user_id" bson:"user_id"`
	IsAdmin           bool               `json:"is_admin" bson:"is_admin"`
	AllocatedMonth    *time.Time         `json:"allocated_month" bson:"allocated_month,omitempty"`
	HasReceivedPayout bool               `json:"has_received_payout" bson:"has_received_payout"`
	CreatedAt         time.Time          `json:"created_at" bson:"created_at"`
}

// MemberWithUser is a roster entry joined with its user projection
type MemberWithUser struct {
	CampaignMember
	User UserSummary `json:"user"`
}
