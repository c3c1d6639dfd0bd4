package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/benovo-app/benovo-api/api"
	"github.com/benovo-app/benovo-api/api/handlers"
	"github.com/benovo-app/benovo-api/databases/mocks"
	"github.com/benovo-app/benovo-api/models"
)

func authedRequest(method, target, body, userID, email string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(api.WithUser(req.Context(), userID, email))
}

func monthPtr(year int, m time.Month) *time.Time {
	t := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
	return &t
}

func pendingInvitation(id, campaignID, invitedBy primitive.ObjectID, email string) *models.Invitation {
	now := time.Now().UTC()
	return &models.Invitation{
		ID:         id,
		CampaignID: campaignID,
		Email:      email,
		Token:      "tok",
		InvitedBy:  invitedBy,
		Status:     models.InvitationStatusPending,
		ExpiresAt:  now.Add(models.InvitationTTL),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestInvitation_RespondInvitationHandler_Decline(t *testing.T) {
	invitationID := primitive.NewObjectID()
	campaignID := primitive.NewObjectID()
	inviterID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	mockInvDB := &mocks.InvitationDatabase{}
	mockInvDB.On("FindOne", mock.Anything, mock.Anything).
		Return(pendingInvitation(invitationID, campaignID, inviterID, "invitee@example.com"), nil)
	mockInvDB.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)

	i := handlers.Invitation{DB: mockInvDB}

	req := authedRequest("POST", "/api/v1/invitations/"+invitationID.Hex()+"/respond",
		`{"action": "decline"}`, userID.Hex(), "invitee@example.com")
	req = mux.SetURLVars(req, map[string]string{"invitation_id": invitationID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(i.RespondInvitationHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "invitation declined")
	mockInvDB.AssertExpectations(t)
}

func TestInvitation_RespondInvitationHandler_AcceptAllocatesMonth(t *testing.T) {
	invitationID := primitive.NewObjectID()
	campaignID := primitive.NewObjectID()
	inviterID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	campaign := &models.Campaign{
		ID:         campaignID,
		Name:       "Holiday Pool",
		StartDate:  time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		MaxMembers: 5,
		Status:     models.CampaignStatusActive,
	}
	existing := []models.CampaignMember{
		{CampaignID: campaignID, UserID: inviterID, IsAdmin: true, AllocatedMonth: monthPtr(2024, time.January)},
	}

	mockInvDB := &mocks.InvitationDatabase{}
	mockInvDB.On("FindOne", mock.Anything, mock.Anything).
		Return(pendingInvitation(invitationID, campaignID, inviterID, "invitee@example.com"), nil)
	mockInvDB.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)

	mockCamDB := &mocks.CampaignDatabase{}
	mockCamDB.On("FindOne", mock.Anything, mock.Anything).Return(campaign, nil)

	mockMemDB := &mocks.MembershipDatabase{}
	// not yet a member
	mockMemDB.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)
	mockMemDB.On("Find", mock.Anything, mock.Anything).Return(existing, nil)
	mockMemDB.On("InsertOne", mock.Anything, mock.MatchedBy(func(m models.CampaignMember) bool {
		return m.CampaignID == campaignID &&
			m.UserID == userID &&
			!m.IsAdmin &&
			m.AllocatedMonth != nil &&
			m.AllocatedMonth.Equal(*monthPtr(2024, time.February))
	})).Return(&mocks.InsertOneResultHelper{}, nil)

	i := handlers.Invitation{DB: mockInvDB, MDB: mockMemDB, CamDB: mockCamDB}

	req := authedRequest("POST", "/api/v1/invitations/"+invitationID.Hex()+"/respond",
		`{"action": "accept"}`, userID.Hex(), "invitee@example.com")
	req = mux.SetURLVars(req, map[string]string{"invitation_id": invitationID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(i.RespondInvitationHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "invitation accepted")
	mockInvDB.AssertExpectations(t)
	mockMemDB.AssertExpectations(t)
}

func TestInvitation_RespondInvitationHandler_WrongInvitee(t *testing.T) {
	invitationID := primitive.NewObjectID()
	campaignID := primitive.NewObjectID()
	inviterID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	mockInvDB := &mocks.InvitationDatabase{}
	mockInvDB.On("FindOne", mock.Anything, mock.Anything).
		Return(pendingInvitation(invitationID, campaignID, inviterID, "someone-else@example.com"), nil)

	i := handlers.Invitation{DB: mockInvDB}

	req := authedRequest("POST", "/api/v1/invitations/"+invitationID.Hex()+"/respond",
		`{"action": "accept"}`, userID.Hex(), "invitee@example.com")
	req = mux.SetURLVars(req, map[string]string{"invitation_id": invitationID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(i.RespondInvitationHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	mockInvDB.AssertExpectations(t)
}

func TestInvitation_RespondInvitationHandler_ReplayIsNotFound(t *testing.T) {
	invitationID := primitive.NewObjectID()
	campaignID := primitive.NewObjectID()
	inviterID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	declined := pendingInvitation(invitationID, campaignID, inviterID, "invitee@example.com")
	declined.Status = models.InvitationStatusDeclined

	mockInvDB := &mocks.InvitationDatabase{}
	mockInvDB.On("FindOne", mock.Anything, mock.Anything).Return(declined, nil)

	i := handlers.Invitation{DB: mockInvDB}

	req := authedRequest("POST", "/api/v1/invitations/"+invitationID.Hex()+"/respond",
		`{"action": "accept"}`, userID.Hex(), "invitee@example.com")
	req = mux.SetURLVars(req, map[string]string{"invitation_id": invitationID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(i.RespondInvitationHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	mockInvDB.AssertExpectations(t)
}

func TestInvitation_RespondInvitationHandler_ExpiredIsNotFound(t *testing.T) {
	invitationID := primitive.NewObjectID()
	campaignID := primitive.NewObjectID()
	inviterID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	expired := pendingInvitation(invitationID, campaignID, inviterID, "invitee@example.com")
	expired.ExpiresAt = time.Now().UTC().Add(-time.Hour)

	mockInvDB := &mocks.InvitationDatabase{}
	mockInvDB.On("FindOne", mock.Anything, mock.Anything).Return(expired, nil)

	i := handlers.Invitation{DB: mockInvDB}

	req := authedRequest("POST", "/api/v1/invitations/"+invitationID.Hex()+"/respond",
		`{"action": "accept"}`, userID.Hex(), "invitee@example.com")
	req = mux.SetURLVars(req, map[string]string{"invitation_id": invitationID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(i.RespondInvitationHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	mockInvDB.AssertExpectations(t)
}

func TestInvitation_RespondInvitationHandler_AcceptWhenAlreadyMember(t *testing.T) {
	invitationID := primitive.NewObjectID()
	campaignID := primitive.NewObjectID()
	inviterID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	campaign := &models.Campaign{ID: campaignID, Name: "Holiday Pool", MaxMembers: 5}

	mockInvDB := &mocks.InvitationDatabase{}
	mockInvDB.On("FindOne", mock.Anything, mock.Anything).
		Return(pendingInvitation(invitationID, campaignID, inviterID, "invitee@example.com"), nil)
	// the invitation still flips to accepted
	mockInvDB.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)

	mockCamDB := &mocks.CampaignDatabase{}
	mockCamDB.On("FindOne", mock.Anything, mock.Anything).Return(campaign, nil)

	mockMemDB := &mocks.MembershipDatabase{}
	mockMemDB.On("FindOne", mock.Anything, mock.Anything).
		Return(&models.CampaignMember{CampaignID: campaignID, UserID: userID}, nil)

	i := handlers.Invitation{DB: mockInvDB, MDB: mockMemDB, CamDB: mockCamDB}

	req := authedRequest("POST", "/api/v1/invitations/"+invitationID.Hex()+"/respond",
		`{"action": "accept"}`, userID.Hex(), "invitee@example.com")
	req = mux.SetURLVars(req, map[string]string{"invitation_id": invitationID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(i.RespondInvitationHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	mockInvDB.AssertExpectations(t)
}

func TestInvitation_RespondInvitationHandler_AcceptMembershipRaceReportsConflict(t *testing.T) {
	invitationID := primitive.NewObjectID()
	campaignID := primitive.NewObjectID()
	inviterID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	campaign := &models.Campaign{
		ID:         campaignID,
		Name:       "Holiday Pool",
		StartDate:  time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		MaxMembers: 5,
	}
	before := []models.CampaignMember{
		{CampaignID: campaignID, UserID: inviterID, IsAdmin: true, AllocatedMonth: monthPtr(2024, time.January)},
	}
	// a concurrent acceptance landed the membership between pre-check and insert
	after := append(before, models.CampaignMember{
		CampaignID:     campaignID,
		UserID:         userID,
		AllocatedMonth: monthPtr(2024, time.February),
	})

	mockInvDB := &mocks.InvitationDatabase{}
	mockInvDB.On("FindOne", mock.Anything, mock.Anything).
		Return(pendingInvitation(invitationID, campaignID, inviterID, "invitee@example.com"), nil)
	mockInvDB.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)

	mockCamDB := &mocks.CampaignDatabase{}
	mockCamDB.On("FindOne", mock.Anything, mock.Anything).Return(campaign, nil)

	mockMemDB := &mocks.MembershipDatabase{}
	mockMemDB.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)
	mockMemDB.On("Find", mock.Anything, mock.Anything).Return(before, nil).Once()
	mockMemDB.On("InsertOne", mock.Anything, mock.Anything).
		Return(nil, mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}})
	mockMemDB.On("Find", mock.Anything, mock.Anything).Return(after, nil).Once()

	i := handlers.Invitation{DB: mockInvDB, MDB: mockMemDB, CamDB: mockCamDB}

	req := authedRequest("POST", "/api/v1/invitations/"+invitationID.Hex()+"/respond",
		`{"action": "accept"}`, userID.Hex(), "invitee@example.com")
	req = mux.SetURLVars(req, map[string]string{"invitation_id": invitationID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(i.RespondInvitationHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "already a member")
	mockInvDB.AssertExpectations(t)
	mockMemDB.AssertExpectations(t)
}

func TestInvitation_RespondInvitationHandler_AcceptAtCapacityDeclines(t *testing.T) {
	invitationID := primitive.NewObjectID()
	campaignID := primitive.NewObjectID()
	inviterID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	campaign := &models.Campaign{
		ID:         campaignID,
		StartDate:  time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		MaxMembers: 2,
	}
	full := []models.CampaignMember{
		{CampaignID: campaignID, AllocatedMonth: monthPtr(2024, time.January)},
		{CampaignID: campaignID, AllocatedMonth: monthPtr(2024, time.February)},
	}

	mockInvDB := &mocks.InvitationDatabase{}
	mockInvDB.On("FindOne", mock.Anything, mock.Anything).
		Return(pendingInvitation(invitationID, campaignID, inviterID, "invitee@example.com"), nil)
	mockInvDB.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)

	mockCamDB := &mocks.CampaignDatabase{}
	mockCamDB.On("FindOne", mock.Anything, mock.Anything).Return(campaign, nil)

	mockMemDB := &mocks.MembershipDatabase{}
	mockMemDB.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)
	mockMemDB.On("Find", mock.Anything, mock.Anything).Return(full, nil)

	i := handlers.Invitation{DB: mockInvDB, MDB: mockMemDB, CamDB: mockCamDB}

	req := authedRequest("POST", "/api/v1/invitations/"+invitationID.Hex()+"/respond",
		`{"action": "accept"}`, userID.Hex(), "invitee@example.com")
	req = mux.SetURLVars(req, map[string]string{"invitation_id": invitationID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(i.RespondInvitationHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "capacity")
	mockInvDB.AssertExpectations(t)
	mockMemDB.AssertExpectations(t)
}

func TestInvitation_CancelInvitationHandler_NotPending(t *testing.T) {
	invitationID := primitive.NewObjectID()
	campaignID := primitive.NewObjectID()
	adminID := primitive.NewObjectID()

	mockMemDB := &mocks.MembershipDatabase{}
	mockMemDB.On("FindOne", mock.Anything, mock.Anything).
		Return(&models.CampaignMember{CampaignID: campaignID, UserID: adminID, IsAdmin: true}, nil)

	mockInvDB := &mocks.InvitationDatabase{}
	mockInvDB.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), nil)

	i := handlers.Invitation{DB: mockInvDB, MDB: mockMemDB}

	req := authedRequest("DELETE",
		"/api/v1/campaigns/"+campaignID.Hex()+"/invitations/"+invitationID.Hex(),
		"", adminID.Hex(), "admin@example.com")
	req = mux.SetURLVars(req, map[string]string{
		"campaign_id":   campaignID.Hex(),
		"invitation_id": invitationID.Hex(),
	})

	rr := httptest.NewRecorder()
	http.HandlerFunc(i.CancelInvitationHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	mockInvDB.AssertExpectations(t)
}

func TestInvitation_InviteMemberHandler_DuplicatePending(t *testing.T) {
	campaignID := primitive.NewObjectID()
	adminID := primitive.NewObjectID()
	inviteeID := primitive.NewObjectID()

	campaign := &models.Campaign{ID: campaignID, Name: "Holiday Pool", MaxMembers: 10}

	// admin check succeeds, already-member check misses
	mockMemDB := &mocks.MembershipDatabase{}
	mockMemDB.On("FindOne", mock.Anything, mock.Anything).
		Return(&models.CampaignMember{CampaignID: campaignID, UserID: adminID, IsAdmin: true}, nil).Once()
	mockMemDB.On("FindOne", mock.Anything, mock.Anything).
		Return(nil, mongo.ErrNoDocuments).Once()
	mockMemDB.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(2), nil)

	mockCamDB := &mocks.CampaignDatabase{}
	mockCamDB.On("FindOne", mock.Anything, mock.Anything).Return(campaign, nil)

	mockUserDB := &mocks.UserDatabase{}
	mockUserDB.On("FindOne", mock.Anything, mock.Anything).
		Return(&models.User{ID: inviteeID, Email: "invitee@example.com"}, nil)

	mockInvDB := &mocks.InvitationDatabase{}
	mockInvDB.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(1), nil)
	mockInvDB.On("InsertOne", mock.Anything, mock.Anything).
		Return(nil, mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}})

	i := handlers.Invitation{DB: mockInvDB, MDB: mockMemDB, CamDB: mockCamDB, UDB: mockUserDB}

	req := authedRequest("POST", "/api/v1/campaigns/"+campaignID.Hex()+"/invitations",
		`{"email": "invitee@example.com"}`, adminID.Hex(), "admin@example.com")
	req = mux.SetURLVars(req, map[string]string{"campaign_id": campaignID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(i.InviteMemberHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "pending invitation already exists")
	mockInvDB.AssertExpectations(t)
}

func TestInvitation_InviteMemberHandler_NonAdminForbidden(t *testing.T) {
	campaignID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	mockMemDB := &mocks.MembershipDatabase{}
	mockMemDB.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)

	i := handlers.Invitation{MDB: mockMemDB}

	req := authedRequest("POST", "/api/v1/campaigns/"+campaignID.Hex()+"/invitations",
		`{"email": "invitee@example.com"}`, userID.Hex(), "user@example.com")
	req = mux.SetURLVars(req, map[string]string{"campaign_id": campaignID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(i.InviteMemberHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	mockMemDB.AssertExpectations(t)
}

func TestInvitation_UserInvitationsHandler_JoinsCampaigns(t *testing.T) {
	campaignID := primitive.NewObjectID()
	inviterID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	invitationID := primitive.NewObjectID()

	mockInvDB := &mocks.InvitationDatabase{}
	mockInvDB.On("Find", mock.Anything, mock.Anything).
		Return([]models.Invitation{*pendingInvitation(invitationID, campaignID, inviterID, "invitee@example.com")}, nil)

	mockCamDB := &mocks.CampaignDatabase{}
	mockCamDB.On("FindOne", mock.Anything, mock.Anything).
		Return(&models.Campaign{ID: campaignID, Name: "Holiday Pool"}, nil)

	mockUserDB := &mocks.UserDatabase{}
	mockUserDB.On("FindOne", mock.Anything, mock.Anything).
		Return(&models.User{ID: inviterID, Name: "Ada"}, nil)

	i := handlers.Invitation{DB: mockInvDB, CamDB: mockCamDB, UDB: mockUserDB}

	req := authedRequest("GET", "/api/v1/invitations", "", userID.Hex(), "invitee@example.com")

	rr := httptest.NewRecorder()
	http.HandlerFunc(i.UserInvitationsHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var out []models.InvitationWithCampaign
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Len(t, out, 1)
	assert.Equal(t, "Holiday Pool", out[0].Campaign.Name)
	assert.Equal(t, "Ada", out[0].Inviter.Name)
	mockInvDB.AssertExpectations(t)
}
