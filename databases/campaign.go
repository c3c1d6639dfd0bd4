package databases

// go generate: mockery --name CampaignDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/benovo-app/benovo-api/models"
)

const campaignCollectionName = "campaigns"

// CampaignDatabase contains the methods to use with the campaign database
type CampaignDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Campaign, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Campaign, error)
	InsertOne(ctx context.Context, campaign models.Campaign, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) error
	UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) error
}

type campaignDatabase struct {
	db DatabaseHelper
}

// NewCampaignDatabase initializes a new instance of campaign database with the provided db connection
func NewCampaignDatabase(db DatabaseHelper) CampaignDatabase {
	return &campaignDatabase{
		db: db,
	}
}

func (c *campaignDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Campaign, error) {
	campaign := &models.Campaign{}
	err := c.db.Collection(campaignCollectionName).FindOne(ctx, filter, opts...).Decode(&campaign)
	if err != nil {
		return nil, err
	}
	return campaign, nil
}

func (c *campaignDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	cur, err := c.db.Collection(campaignCollectionName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cur.Decode(&campaigns)
	if err != nil {
		return nil, err
	}
	return campaigns, nil
}

func (c *campaignDatabase) InsertOne(ctx context.Context, campaign models.Campaign, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return c.db.Collection(campaignCollectionName).InsertOne(ctx, campaign, opts...)
}

func (c *campaignDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) error {
	_, err := c.db.Collection(campaignCollectionName).UpdateOne(ctx, filter, update, opts...)
	return err
}

func (c *campaignDatabase) UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error) {
	res, err := c.db.Collection(campaignCollectionName).UpdateMany(ctx, filter, update, opts...)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (c *campaignDatabase) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) error {
	_, err := c.db.Collection(campaignCollectionName).DeleteOne(ctx, filter, opts...)
	return err
}
