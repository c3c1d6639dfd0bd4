package databases

// go generate: mockery --name MembershipDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/benovo-app/benovo-api/models"
)

const membershipCollectionName = "campaignMembers"

// MembershipDatabase contains the methods to use with the campaign member database
type MembershipDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.CampaignMember, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.CampaignMember, error)
	InsertOne(ctx context.Context, member models.CampaignMember, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) error
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

type membershipDatabase struct {
	db DatabaseHelper
}

// NewMembershipDatabase initializes a new instance of membership database with the provided db connection
func NewMembershipDatabase(db DatabaseHelper) MembershipDatabase {
	return &membershipDatabase{
		db: db,
	}
}

func (c *membershipDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.CampaignMember, error) {
	member := &models.CampaignMember{}
	err := c.db.Collection(membershipCollectionName).FindOne(ctx, filter, opts...).Decode(&member)
	if err != nil {
		return nil, err
	}
	return member, nil
}

func (c *membershipDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.CampaignMember, error) {
	var members []models.CampaignMember
	cur, err := c.db.Collection(membershipCollectionName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cur.Decode(&members)
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (c *membershipDatabase) InsertOne(ctx context.Context, member models.CampaignMember, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return c.db.Collection(membershipCollectionName).InsertOne(ctx, member, opts...)
}

func (c *membershipDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) error {
	_, err := c.db.Collection(membershipCollectionName).UpdateOne(ctx, filter, update, opts...)
	return err
}

func (c *membershipDatabase) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error) {
	res, err := c.db.Collection(membershipCollectionName).DeleteOne(ctx, filter, opts...)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (c *membershipDatabase) DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error) {
	res, err := c.db.Collection(membershipCollectionName).DeleteMany(ctx, filter, opts...)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (c *membershipDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return c.db.Collection(membershipCollectionName).CountDocuments(ctx, filter, opts...)
}
