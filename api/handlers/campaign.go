package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/benovo-app/benovo-api/api"
	"github.com/benovo-app/benovo-api/config"
	"github.com/benovo-app/benovo-api/databases"
	"github.com/benovo-app/benovo-api/models"
)

// Campaign struct mostly used for mocking tests
type Campaign struct {
	DB     databases.CampaignDatabase
	MDB    databases.MembershipDatabase
	IDB    databases.InvitationDatabase
	CDB    databases.ContributionDatabase
	ChatDB databases.ChatDatabase
	UDB    databases.UserDatabase
	Hub    *Hub
}

type createCampaignRequest struct {
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	TargetAmount       float64   `json:"target_amount"`
	ContributionAmount float64   `json:"contribution_amount"`
	StartDate          time.Time `json:"start_date"`
	EndDate            time.Time `json:"end_date"`
	Frequency          string    `json:"frequency"`
	MaxMembers         int       `json:"max_members"`
}

// CreateCampaignHandler creates a new campaign with the caller as founding admin
func (c Campaign) CreateCampaignHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := primitive.ObjectIDFromHex(api.UserID(r.Context()))
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var req createCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	if req.Name == "" || req.TargetAmount <= 0 || req.ContributionAmount <= 0 {
		config.ErrorStatus("name, target_amount and contribution_amount are required", http.StatusBadRequest, w, errMissingFields)
		return
	}
	if !models.ValidFrequency(req.Frequency) {
		config.ErrorStatus("frequency must be daily, weekly or monthly", http.StatusBadRequest, w, errMissingFields)
		return
	}
	if req.StartDate.IsZero() || !req.EndDate.After(req.StartDate) {
		config.ErrorStatus("end_date must be after start_date", http.StatusBadRequest, w, errMissingFields)
		return
	}
	if req.MaxMembers < 0 {
		config.ErrorStatus("max_members must be a positive number", http.StatusBadRequest, w, errMissingFields)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	now := time.Now().UTC()
	campaign := models.Campaign{
		ID:                 primitive.NewObjectID(),
		Name:               req.Name,
		Description:        req.Description,
		TargetAmount:       req.TargetAmount,
		ContributionAmount: req.ContributionAmount,
		StartDate:          req.StartDate.UTC(),
		EndDate:            req.EndDate.UTC(),
		Frequency:          req.Frequency,
		MaxMembers:         req.MaxMembers,
		CreatedBy:          userID,
		Status:             models.CampaignStatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if _, err := c.DB.InsertOne(ctx, campaign); err != nil {
		config.ErrorStatus("failed to create campaign", http.StatusInternalServerError, w, err)
		return
	}

	// the creator joins as admin with no allocated month
	member := models.CampaignMember{
		ID:         primitive.NewObjectID(),
		CampaignID: campaign.ID,
		UserID:     userID,
		IsAdmin:    true,
		CreatedAt:  now,
	}
	if _, err := c.MDB.InsertOne(ctx, member); err != nil {
		config.ErrorStatus("failed to add creator as member", http.StatusInternalServerError, w, err)
		return
	}
	zap.S().Infow("campaign created",
		"campaignID", campaign.ID.Hex(),
		"createdBy", userID.Hex(),
	)

	b, err := json.Marshal(map[string]interface{}{
		"message":  "campaign created successfully",
		"campaign": campaign,
	})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// UserCampaignsHandler lists the caller's campaigns with member count and admin flag
func (c Campaign) UserCampaignsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := primitive.ObjectIDFromHex(api.UserID(r.Context()))
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	memberships, err := c.MDB.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		config.ErrorStatus("failed to get memberships", http.StatusInternalServerError, w, err)
		return
	}

	campaignIDs := make([]primitive.ObjectID, 0, len(memberships))
	adminByCampaign := make(map[primitive.ObjectID]bool, len(memberships))
	for _, m := range memberships {
		campaignIDs = append(campaignIDs, m.CampaignID)
		adminByCampaign[m.CampaignID] = m.IsAdmin
	}

	items := []models.CampaignListItem{}
	if len(campaignIDs) > 0 {
		campaigns, err := c.DB.Find(ctx, bson.M{"_id": bson.M{"$in": campaignIDs}})
		if err != nil {
			config.ErrorStatus("failed to get campaigns", http.StatusInternalServerError, w, err)
			return
		}
		for _, campaign := range campaigns {
			count, err := c.MDB.CountDocuments(ctx, bson.M{"campaign_id": campaign.ID})
			if err != nil {
				config.ErrorStatus("failed to count members", http.StatusInternalServerError, w, err)
				return
			}
			items = append(items, models.CampaignListItem{
				Campaign: campaign,
				Members:  count,
				IsAdmin:  adminByCampaign[campaign.ID],
			})
		}
	}

	b, err := json.Marshal(items)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

type campaignDetailResponse struct {
	models.Campaign
	Members            []models.MemberWithUser        `json:"members"`
	MemberCount        int64                          `json:"memberCount"`
	PendingInvitations []models.Invitation            `json:"pending_invitations"`
	Contributions      []models.ContributionWithUsers `json:"contributions"`
	IsAdmin            bool                           `json:"is_admin"`
}

// CampaignByIDHandler returns a campaign with roster, pending invitations and contributions
func (c Campaign) CampaignByIDHandler(w http.ResponseWriter, r *http.Request) {
	campaignID, err := primitive.ObjectIDFromHex(mux.Vars(r)["campaign_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	userID, err := primitive.ObjectIDFromHex(api.UserID(r.Context()))
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	membership, err := c.MDB.FindOne(ctx, bson.M{"campaign_id": campaignID, "user_id": userID})
	if err != nil {
		config.ErrorStatus("not authorized to access this campaign", http.StatusForbidden, w, err)
		return
	}

	campaign, err := c.DB.FindOne(ctx, bson.M{"_id": campaignID})
	if err != nil {
		config.ErrorStatus("failed to get campaign by ID", http.StatusNotFound, w, err)
		return
	}

	members, err := c.MDB.Find(ctx, bson.M{"campaign_id": campaignID})
	if err != nil {
		config.ErrorStatus("failed to get members", http.StatusInternalServerError, w, err)
		return
	}

	pending, err := c.IDB.Find(ctx, bson.M{"campaign_id": campaignID, "status": models.InvitationStatusPending})
	if err != nil {
		config.ErrorStatus("failed to get invitations", http.StatusInternalServerError, w, err)
		return
	}

	contributions, err := c.CDB.Find(ctx, bson.M{"campaign_id": campaignID})
	if err != nil {
		config.ErrorStatus("failed to get contributions", http.StatusInternalServerError, w, err)
		return
	}

	userIDs := make([]primitive.ObjectID, 0, len(members)+2*len(contributions))
	for _, m := range members {
		userIDs = append(userIDs, m.UserID)
	}
	for _, contrib := range contributions {
		userIDs = append(userIDs, contrib.ContributorID, contrib.RecipientID)
	}
	summaries, err := userSummaryMap(ctx, c.UDB, userIDs)
	if err != nil {
		config.ErrorStatus("failed to get users", http.StatusInternalServerError, w, err)
		return
	}

	resp := campaignDetailResponse{
		Campaign:           *campaign,
		Members:            make([]models.MemberWithUser, 0, len(members)),
		MemberCount:        int64(len(members)),
		PendingInvitations: pending,
		Contributions:      make([]models.ContributionWithUsers, 0, len(contributions)),
		IsAdmin:            membership.IsAdmin,
	}
	for _, m := range members {
		resp.Members = append(resp.Members, models.MemberWithUser{CampaignMember: m, User: summaries[m.UserID]})
	}
	for _, contrib := range contributions {
		resp.Contributions = append(resp.Contributions, models.ContributionWithUsers{
			Contribution: contrib,
			Contributor:  summaries[contrib.ContributorID],
			Recipient:    summaries[contrib.RecipientID],
		})
	}

	b, err := json.Marshal(resp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// DeleteCampaignHandler deletes a campaign and cascades its children. Admin only.
func (c Campaign) DeleteCampaignHandler(w http.ResponseWriter, r *http.Request) {
	campaignID, err := primitive.ObjectIDFromHex(mux.Vars(r)["campaign_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	userID, err := primitive.ObjectIDFromHex(api.UserID(r.Context()))
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	_, err = c.MDB.FindOne(ctx, bson.M{"campaign_id": campaignID, "user_id": userID, "is_admin": true})
	if err != nil {
		config.ErrorStatus("not authorized to delete this campaign", http.StatusForbidden, w, err)
		return
	}

	campaign, err := c.DB.FindOne(ctx, bson.M{"_id": campaignID})
	if err != nil {
		config.ErrorStatus("failed to get campaign by ID", http.StatusNotFound, w, err)
		return
	}

	// collect the roster before it goes away so we can notify them
	members, err := c.MDB.Find(ctx, bson.M{"campaign_id": campaignID})
	if err != nil {
		config.ErrorStatus("failed to get members", http.StatusInternalServerError, w, err)
		return
	}

	if err := c.DB.DeleteOne(ctx, bson.M{"_id": campaignID}); err != nil {
		config.ErrorStatus("failed to delete campaign", http.StatusInternalServerError, w, err)
		return
	}
	if _, err := c.MDB.DeleteMany(ctx, bson.M{"campaign_id": campaignID}); err != nil {
		config.ErrorStatus("failed to delete members", http.StatusInternalServerError, w, err)
		return
	}
	if _, err := c.IDB.DeleteMany(ctx, bson.M{"campaign_id": campaignID}); err != nil {
		config.ErrorStatus("failed to delete invitations", http.StatusInternalServerError, w, err)
		return
	}
	if _, err := c.CDB.DeleteMany(ctx, bson.M{"campaign_id": campaignID}); err != nil {
		config.ErrorStatus("failed to delete contributions", http.StatusInternalServerError, w, err)
		return
	}
	if _, err := c.ChatDB.DeleteMany(ctx, bson.M{"campaign_id": campaignID}); err != nil {
		config.ErrorStatus("failed to delete chat messages", http.StatusInternalServerError, w, err)
		return
	}
	zap.S().Infow("campaign deleted",
		"campaignID", campaignID.Hex(),
		"deletedBy", userID.Hex(),
	)

	if c.Hub != nil {
		payload := map[string]string{"campaignId": campaignID.Hex(), "name": campaign.Name}
		for _, m := range members {
			go c.Hub.PublishToUser(m.UserID.Hex(), TopicCampaignDeleted, payload)
		}
	}

	b, err := json.Marshal(map[string]string{"message": "campaign deleted successfully"})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
