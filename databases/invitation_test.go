package databases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/benovo-app/benovo-api/databases"
	"github.com/benovo-app/benovo-api/databases/mocks"
)

func TestInvitationDatabase_UpdateOneReturnsMatchedCount(t *testing.T) {
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper

	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}

	collectionHelper.(*mocks.CollectionHelper).
		On("UpdateOne", context.Background(), bson.M{"matched": true}, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	collectionHelper.(*mocks.CollectionHelper).
		On("UpdateOne", context.Background(), bson.M{"matched": false}, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 0}, nil)

	collectionHelper.(*mocks.CollectionHelper).
		On("UpdateOne", context.Background(), bson.M{"error": true}, mock.Anything).
		Return(nil, errors.New("mocked-error"))

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "invitations").Return(collectionHelper)

	invitationDba := databases.NewInvitationDatabase(dbHelper)

	update := bson.M{"$set": bson.M{"status": "accepted"}}

	matched, err := invitationDba.UpdateOne(context.Background(), bson.M{"matched": true}, update)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), matched)

	// a filter that misses its precondition matches nothing
	matched, err = invitationDba.UpdateOne(context.Background(), bson.M{"matched": false}, update)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), matched)

	matched, err = invitationDba.UpdateOne(context.Background(), bson.M{"error": true}, update)
	assert.EqualError(t, err, "mocked-error")
	assert.Equal(t, int64(0), matched)
}
