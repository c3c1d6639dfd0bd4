package scheduler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/benovo-app/benovo-api/databases/mocks"
	"github.com/benovo-app/benovo-api/models"
)

func TestScheduler_CompleteEndedCampaigns(t *testing.T) {
	mockCamDB := &mocks.CampaignDatabase{}
	mockCamDB.On("UpdateMany", mock.Anything,
		mock.MatchedBy(func(filter bson.M) bool {
			return filter["status"] == models.CampaignStatusActive
		}),
		mock.MatchedBy(func(update bson.M) bool {
			set, ok := update["$set"].(bson.M)
			return ok && set["status"] == models.CampaignStatusCompleted
		}),
	).Return(int64(2), nil)

	s := NewScheduler(mockCamDB, &mocks.InvitationDatabase{})
	s.completeEndedCampaigns()

	mockCamDB.AssertExpectations(t)
}

func TestScheduler_CompleteEndedCampaignsSwallowsError(t *testing.T) {
	mockCamDB := &mocks.CampaignDatabase{}
	mockCamDB.On("UpdateMany", mock.Anything, mock.Anything, mock.Anything).
		Return(int64(0), errors.New("mocked error"))

	s := NewScheduler(mockCamDB, &mocks.InvitationDatabase{})
	s.completeEndedCampaigns()

	mockCamDB.AssertExpectations(t)
}

func TestScheduler_PurgeExpiredInvitations(t *testing.T) {
	mockInvDB := &mocks.InvitationDatabase{}
	mockInvDB.On("DeleteMany", mock.Anything, mock.MatchedBy(func(filter bson.M) bool {
		return filter["status"] == models.InvitationStatusPending
	})).Return(int64(3), nil)

	s := NewScheduler(&mocks.CampaignDatabase{}, mockInvDB)
	s.purgeExpiredInvitations()

	mockInvDB.AssertExpectations(t)
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(&mocks.CampaignDatabase{}, &mocks.InvitationDatabase{})
	s.Start()
	s.Stop()
	assert.NotNil(t, s.cron)
}
