package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Campaign statuses
const (
	CampaignStatusActive    = "active"
	CampaignStatusCompleted = "completed"
	CampaignStatusCancelled = "cancelled"
)

// Campaign frequencies
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// Campaign holds the structure for the campaigns collection in mongo
type Campaign struct {
	ID                 primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name               string             `json:"name" bson:"name"`
	Description        string             `json:"description" bson:"description"`
	TargetAmount       float64            `json:"target_amount" bson:"target_amount"`
	ContributionAmount float64            `json:"contribution_amount" bson:"contribution_amount"`
	StartDate          time.Time          `json:"start_date" bson:"start_date"`
	EndDate            time.Time          `json:"end_date" bson:"end_date"`
	Frequency          string             `json:"frequency" bson:"frequency"`
	MaxMembers         int                `json:"max_members" bson:"max_members"` // 0 means unbounded
	CreatedBy          primitive.ObjectID `json:"created_by" bson:"created_by"`
	Status             string             `json:"status" bson:"status"`
	CreatedAt          time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" bson:"updated_at"`
}

// ValidFrequency reports whether f is one of the supported contribution cadences
func ValidFrequency(f string) bool {
	return f == FrequencyDaily || f == FrequencyWeekly || f == FrequencyMonthly
}

// CampaignListItem is a campaign as it appears in the caller's campaign list
type CampaignListItem struct {
	Campaign
	Members int64 `json:"members"`
	IsAdmin bool  `json:"is_admin"`
}
