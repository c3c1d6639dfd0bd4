package databases

// go generate: mockery --name ContributionDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/benovo-app/benovo-api/models"
)

const contributionCollectionName = "contributions"

// ContributionDatabase contains the methods to use with the contribution database.
// The collection is append-only, so there is no update or single delete.
type ContributionDatabase interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Contribution, error)
	FindPaginated(ctx context.Context, filter interface{}, limit, page int, opts ...*options.FindOptions) ([]models.Contribution, error)
	InsertOne(ctx context.Context, contribution models.Contribution, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

type contributionDatabase struct {
	db DatabaseHelper
}

// NewContributionDatabase initializes a new instance of contribution database with the provided db connection
func NewContributionDatabase(db DatabaseHelper) ContributionDatabase {
	return &contributionDatabase{
		db: db,
	}
}

func (c *contributionDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Contribution, error) {
	var contributions []models.Contribution
	cur, err := c.db.Collection(contributionCollectionName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cur.Decode(&contributions)
	if err != nil {
		return nil, err
	}
	return contributions, nil
}

func (c *contributionDatabase) FindPaginated(ctx context.Context, filter interface{}, limit, page int, opts ...*options.FindOptions) ([]models.Contribution, error) {
	opts = append(opts, pageOpts(limit, page))
	return c.Find(ctx, filter, opts...)
}

func (c *contributionDatabase) InsertOne(ctx context.Context, contribution models.Contribution, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return c.db.Collection(contributionCollectionName).InsertOne(ctx, contribution, opts...)
}

// DeleteMany exists only for the campaign-delete cascade
func (c *contributionDatabase) DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error) {
	res, err := c.db.Collection(contributionCollectionName).DeleteMany(ctx, filter, opts...)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (c *contributionDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return c.db.Collection(contributionCollectionName).CountDocuments(ctx, filter, opts...)
}
