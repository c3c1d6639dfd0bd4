package databases

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the uniqueness constraints that back the correctness
// invariants: one membership per user per campaign, one member per allocated
// month per campaign, one pending invitation per email per campaign, and one
// account per email. Concurrent writers race onto these indexes rather than
// onto read-then-write checks, so a duplicate-key error is the authoritative
// conflict signal.
func EnsureIndexes(ctx context.Context, db DatabaseHelper) error {
	userIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if err := db.Collection(userCollectionName).CreateIndexes(ctx, userIndexes); err != nil {
		return err
	}

	memberIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "campaign_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// only assigned months participate, members awaiting allocation do not collide
			Keys: bson.D{{Key: "campaign_id", Value: 1}, {Key: "allocated_month", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(
				bson.M{"allocated_month": bson.M{"$exists": true}},
			),
		},
	}
	if err := db.Collection(membershipCollectionName).CreateIndexes(ctx, memberIndexes); err != nil {
		return err
	}

	invitationIndexes := []mongo.IndexModel{
		{
			// unique only while pending; terminal invitations keep their history
			Keys: bson.D{{Key: "campaign_id", Value: 1}, {Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(
				bson.M{"status": "pending"},
			),
		},
	}
	if err := db.Collection(invitationCollectionName).CreateIndexes(ctx, invitationIndexes); err != nil {
		return err
	}

	contributionIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "campaign_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "contributor_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	if err := db.Collection(contributionCollectionName).CreateIndexes(ctx, contributionIndexes); err != nil {
		return err
	}

	chatIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "campaign_id", Value: 1}, {Key: "timestamp", Value: 1}}},
	}
	return db.Collection(chatCollectionName).CreateIndexes(ctx, chatIndexes)
}
