package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Invitation statuses. Pending is the only non-terminal state.
const (
	InvitationStatusPending   = "pending"
	InvitationStatusAccepted  = "accepted"
	InvitationStatusDeclined  = "declined"
	InvitationStatusCancelled = "cancelled"
)

// InvitationTTL is how long an invitation stays acceptable
const InvitationTTL = 30 * 24 * time.Hour

// Invitation holds the structure for the invitations collection in mongo.
// At most one pending invitation may exist per {campaign_id, email}.
type Invitation struct {
	ID         primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	CampaignID primitive.ObjectID `json:"campaign_id" bson:"campaign_id"`
	Email      string             `json:"email" bson:"email"`
	Token      string             `json:"token" bson:"token"`
	InvitedBy  primitive.ObjectID `json:"invited_by" bson:"invited_by"`
	Status     string             `json:"status" bson:"status"`
	ExpiresAt  time.Time          `json:"expires_at" bson:"expires_at"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at" bson:"updated_at"`
}

// Expired reports whether the invitation can no longer be responded to.
// Expiry is a read-time filter only, never a stored transition.
func (i Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// InvitationWithCampaign is an invitation joined with its campaign and inviter
// for the invitee-facing pending listing
type InvitationWithCampaign struct {
	Invitation
	Campaign Campaign    `json:"campaign"`
	Inviter  UserSummary `json:"inviter"`
}
