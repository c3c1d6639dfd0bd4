package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Contribution holds the structure for the contributions collection in mongo.
// Records are append-only: never updated, never deleted.
type Contribution struct {
	ID            primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	CampaignID    primitive.ObjectID `json:"campaign_id" bson:"campaign_id"`
	ContributorID primitive.ObjectID `json:"contributor_id" bson:"contributor_id"`
	RecipientID   primitive.ObjectID `json:"recipient_id" bson:"recipient_id"`
	Amount        float64            `json:"amount" bson:"amount"`
	Notes         string             `json:"notes" bson:"notes"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
}

// ContributionWithUsers is a contribution joined with contributor and
// recipient projections for campaign detail responses
type ContributionWithUsers struct {
	Contribution
	Contributor UserSummary `json:"contributor"`
	Recipient   UserSummary `json:"recipient"`
}
