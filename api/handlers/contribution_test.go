package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/benovo-app/benovo-api/api/handlers"
	"github.com/benovo-app/benovo-api/databases/mocks"
	"github.com/benovo-app/benovo-api/models"
)

func recordRequest(campaignID primitive.ObjectID, body, userID string) *http.Request {
	req := authedRequest("POST", "/api/v1/campaigns/"+campaignID.Hex()+"/contributions",
		body, userID, "payer@example.com")
	return mux.SetURLVars(req, map[string]string{"campaign_id": campaignID.Hex()})
}

func TestContribution_RecordContributionHandler_NonMemberForbidden(t *testing.T) {
	campaignID := primitive.NewObjectID()
	contributorID := primitive.NewObjectID()
	recipientID := primitive.NewObjectID()

	mockMemDB := &mocks.MembershipDatabase{}
	mockMemDB.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)

	c := handlers.Contribution{MDB: mockMemDB}

	rr := httptest.NewRecorder()
	req := recordRequest(campaignID, `{"recipient_id": "`+recipientID.Hex()+`", "amount": 50}`, contributorID.Hex())
	http.HandlerFunc(c.RecordContributionHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	mockMemDB.AssertExpectations(t)
}

func TestContribution_RecordContributionHandler_RejectsNegativeAmount(t *testing.T) {
	campaignID := primitive.NewObjectID()
	contributorID := primitive.NewObjectID()
	recipientID := primitive.NewObjectID()

	c := handlers.Contribution{}

	rr := httptest.NewRecorder()
	req := recordRequest(campaignID, `{"recipient_id": "`+recipientID.Hex()+`", "amount": -5}`, contributorID.Hex())
	http.HandlerFunc(c.RecordContributionHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestContribution_RecordContributionHandler_AcceptsZeroAmount(t *testing.T) {
	campaignID := primitive.NewObjectID()
	contributorID := primitive.NewObjectID()
	recipientID := primitive.NewObjectID()

	mockMemDB := &mocks.MembershipDatabase{}
	mockMemDB.On("FindOne", mock.Anything, bson.M{"campaign_id": campaignID, "user_id": contributorID}).
		Return(&models.CampaignMember{CampaignID: campaignID, UserID: contributorID}, nil)
	mockMemDB.On("FindOne", mock.Anything, bson.M{"campaign_id": campaignID, "user_id": recipientID}).
		Return(&models.CampaignMember{
			ID:         primitive.NewObjectID(),
			CampaignID: campaignID,
			UserID:     recipientID,
		}, nil)

	mockConDB := &mocks.ContributionDatabase{}
	mockConDB.On("InsertOne", mock.Anything, mock.MatchedBy(func(contribution models.Contribution) bool {
		return contribution.Amount == 0
	})).Return(&mocks.InsertOneResultHelper{}, nil)

	c := handlers.Contribution{DB: mockConDB, MDB: mockMemDB}

	rr := httptest.NewRecorder()
	req := recordRequest(campaignID, `{"recipient_id": "`+recipientID.Hex()+`", "amount": 0}`, contributorID.Hex())
	http.HandlerFunc(c.RecordContributionHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	mockConDB.AssertExpectations(t)
}

func TestContribution_RecordContributionHandler_CompletesPayout(t *testing.T) {
	campaignID := primitive.NewObjectID()
	contributorID := primitive.NewObjectID()
	recipientID := primitive.NewObjectID()
	recipientMemberID := primitive.NewObjectID()

	// recipient's allocated month is the current month so the tally runs
	allocated := time.Now().UTC()

	mockMemDB := &mocks.MembershipDatabase{}
	mockMemDB.On("FindOne", mock.Anything, bson.M{"campaign_id": campaignID, "user_id": contributorID}).
		Return(&models.CampaignMember{CampaignID: campaignID, UserID: contributorID}, nil)
	mockMemDB.On("FindOne", mock.Anything, bson.M{"campaign_id": campaignID, "user_id": recipientID}).
		Return(&models.CampaignMember{
			ID:             recipientMemberID,
			CampaignID:     campaignID,
			UserID:         recipientID,
			AllocatedMonth: &allocated,
		}, nil)
	// 5 members, 4 contributions in the window: complete
	mockMemDB.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(5), nil)
	mockMemDB.On("UpdateOne", mock.Anything, bson.M{"_id": recipientMemberID},
		bson.M{"$set": bson.M{"has_received_payout": true}}).Return(nil)

	mockConDB := &mocks.ContributionDatabase{}
	mockConDB.On("InsertOne", mock.Anything, mock.Anything).Return(&mocks.InsertOneResultHelper{}, nil)
	mockConDB.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(4), nil)

	c := handlers.Contribution{DB: mockConDB, MDB: mockMemDB}

	rr := httptest.NewRecorder()
	req := recordRequest(campaignID, `{"recipient_id": "`+recipientID.Hex()+`", "amount": 50}`, contributorID.Hex())
	http.HandlerFunc(c.RecordContributionHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	mockMemDB.AssertExpectations(t)
	mockConDB.AssertExpectations(t)
}

func TestContribution_RecordContributionHandler_BelowThresholdLeavesFlag(t *testing.T) {
	campaignID := primitive.NewObjectID()
	contributorID := primitive.NewObjectID()
	recipientID := primitive.NewObjectID()

	allocated := time.Now().UTC()

	mockMemDB := &mocks.MembershipDatabase{}
	mockMemDB.On("FindOne", mock.Anything, bson.M{"campaign_id": campaignID, "user_id": contributorID}).
		Return(&models.CampaignMember{CampaignID: campaignID, UserID: contributorID}, nil)
	mockMemDB.On("FindOne", mock.Anything, bson.M{"campaign_id": campaignID, "user_id": recipientID}).
		Return(&models.CampaignMember{
			ID:             primitive.NewObjectID(),
			CampaignID:     campaignID,
			UserID:         recipientID,
			AllocatedMonth: &allocated,
		}, nil)
	// 5 members, only 3 contributions: not complete, no UpdateOne expected
	mockMemDB.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(5), nil)

	mockConDB := &mocks.ContributionDatabase{}
	mockConDB.On("InsertOne", mock.Anything, mock.Anything).Return(&mocks.InsertOneResultHelper{}, nil)
	mockConDB.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(3), nil)

	c := handlers.Contribution{DB: mockConDB, MDB: mockMemDB}

	rr := httptest.NewRecorder()
	req := recordRequest(campaignID, `{"recipient_id": "`+recipientID.Hex()+`", "amount": 50}`, contributorID.Hex())
	http.HandlerFunc(c.RecordContributionHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	mockMemDB.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
	mockConDB.AssertExpectations(t)
}

func TestContribution_RecordContributionHandler_OutsideAllocatedMonthSkipsTally(t *testing.T) {
	campaignID := primitive.NewObjectID()
	contributorID := primitive.NewObjectID()
	recipientID := primitive.NewObjectID()

	// allocation is far in the future, so the write never triggers a count
	allocated := time.Now().UTC().AddDate(1, 0, 0)

	mockMemDB := &mocks.MembershipDatabase{}
	mockMemDB.On("FindOne", mock.Anything, bson.M{"campaign_id": campaignID, "user_id": contributorID}).
		Return(&models.CampaignMember{CampaignID: campaignID, UserID: contributorID}, nil)
	mockMemDB.On("FindOne", mock.Anything, bson.M{"campaign_id": campaignID, "user_id": recipientID}).
		Return(&models.CampaignMember{
			ID:             primitive.NewObjectID(),
			CampaignID:     campaignID,
			UserID:         recipientID,
			AllocatedMonth: &allocated,
		}, nil)

	mockConDB := &mocks.ContributionDatabase{}
	mockConDB.On("InsertOne", mock.Anything, mock.Anything).Return(&mocks.InsertOneResultHelper{}, nil)

	c := handlers.Contribution{DB: mockConDB, MDB: mockMemDB}

	rr := httptest.NewRecorder()
	req := recordRequest(campaignID, `{"recipient_id": "`+recipientID.Hex()+`", "amount": 50}`, contributorID.Hex())
	http.HandlerFunc(c.RecordContributionHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	mockConDB.AssertNotCalled(t, "CountDocuments", mock.Anything, mock.Anything)
	mockConDB.AssertExpectations(t)
}

func TestContribution_UserContributionsHandler(t *testing.T) {
	userID := primitive.NewObjectID()
	otherID := primitive.NewObjectID()

	contributions := []models.Contribution{
		{ID: primitive.NewObjectID(), ContributorID: userID, RecipientID: otherID, Amount: 25},
	}

	mockConDB := &mocks.ContributionDatabase{}
	mockConDB.On("Find", mock.Anything, mock.Anything).Return(contributions, nil)

	mockUserDB := &mocks.UserDatabase{}
	mockUserDB.On("Find", mock.Anything, mock.Anything).
		Return([]models.User{{ID: userID, Name: "Payer"}, {ID: otherID, Name: "Payee"}}, nil)

	c := handlers.Contribution{DB: mockConDB, UDB: mockUserDB}

	req := authedRequest("GET", "/api/v1/contributions", "", userID.Hex(), "payer@example.com")

	rr := httptest.NewRecorder()
	http.HandlerFunc(c.UserContributionsHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Payer")
	assert.Contains(t, rr.Body.String(), "Payee")
	mockConDB.AssertExpectations(t)
}
