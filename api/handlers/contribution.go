package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/benovo-app/benovo-api/api"
	"github.com/benovo-app/benovo-api/config"
	"github.com/benovo-app/benovo-api/databases"
	"github.com/benovo-app/benovo-api/models"
)

// Contribution struct mostly used for mocking tests
type Contribution struct {
	DB  databases.ContributionDatabase
	MDB databases.MembershipDatabase
	UDB databases.UserDatabase
	Hub *Hub
}

type recordContributionRequest struct {
	RecipientID string  `json:"recipient_id"`
	Amount      float64 `json:"amount"`
	Notes       string  `json:"notes"`
}

// RecordContributionHandler appends a contribution from the authenticated
// member to another member of the campaign. After the write it re-checks the
// recipient's payout tally for their allocated month.
func (c Contribution) RecordContributionHandler(w http.ResponseWriter, r *http.Request) {
	campaignID, err := primitive.ObjectIDFromHex(mux.Vars(r)["campaign_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	contributorID, err := primitive.ObjectIDFromHex(api.UserID(r.Context()))
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var req recordContributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	recipientID, err := primitive.ObjectIDFromHex(req.RecipientID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	if req.Amount < 0 {
		config.ErrorStatus("amount must not be negative", http.StatusBadRequest, w, errMissingFields)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if _, err := c.MDB.FindOne(ctx, bson.M{"campaign_id": campaignID, "user_id": contributorID}); err != nil {
		config.ErrorStatus("contributor is not a member of this campaign", http.StatusForbidden, w, errNotMember)
		return
	}
	recipient, err := c.MDB.FindOne(ctx, bson.M{"campaign_id": campaignID, "user_id": recipientID})
	if err != nil {
		config.ErrorStatus("recipient is not a member of this campaign", http.StatusForbidden, w, errNotMember)
		return
	}

	contribution := models.Contribution{
		ID:            primitive.NewObjectID(),
		CampaignID:    campaignID,
		ContributorID: contributorID,
		RecipientID:   recipientID,
		Amount:        req.Amount,
		Notes:         req.Notes,
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := c.DB.InsertOne(ctx, contribution); err != nil {
		config.ErrorStatus("failed to record contribution", http.StatusInternalServerError, w, err)
		return
	}

	c.checkPayoutCompletion(ctx, campaignID, recipient, contribution.CreatedAt)

	if c.Hub != nil {
		go c.Hub.PublishToUser(recipientID.Hex(), TopicPaymentReceived, map[string]interface{}{
			"campaignId":    campaignID.Hex(),
			"contributorId": contributorID.Hex(),
			"amount":        req.Amount,
		})
	}

	b, err := json.Marshal(contribution)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// checkPayoutCompletion flips has_received_payout once the recipient's
// allocated month has collected a contribution from every other member.
// Rows are counted raw, repeat payments from one contributor count each time.
// Best effort: a failure here never fails the contribution that was recorded.
func (c Contribution) checkPayoutCompletion(ctx context.Context, campaignID primitive.ObjectID, recipient *models.CampaignMember, at time.Time) {
	if recipient.AllocatedMonth == nil || recipient.HasReceivedPayout {
		return
	}
	if !sameMonth(at, *recipient.AllocatedMonth) {
		return
	}

	monthStart, monthEnd := monthBounds(*recipient.AllocatedMonth)
	contributionCount, err := c.DB.CountDocuments(ctx, bson.M{
		"campaign_id":  campaignID,
		"recipient_id": recipient.UserID,
		"created_at":   bson.M{"$gte": monthStart, "$lt": monthEnd},
	})
	if err != nil {
		zap.S().With(err).Error("failed to count contributions for payout check")
		return
	}
	memberCount, err := c.MDB.CountDocuments(ctx, bson.M{"campaign_id": campaignID})
	if err != nil {
		zap.S().With(err).Error("failed to count members for payout check")
		return
	}
	if !payoutComplete(contributionCount, memberCount) {
		return
	}

	err = c.MDB.UpdateOne(ctx,
		bson.M{"_id": recipient.ID},
		bson.M{"$set": bson.M{"has_received_payout": true}},
	)
	if err != nil {
		zap.S().With(err).Error("failed to mark payout as received")
		return
	}
	zap.S().Infow("payout complete",
		"campaignID", campaignID.Hex(),
		"recipientID", recipient.UserID.Hex(),
		"month", monthStart.Format("2006-01"),
	)
}

// CampaignContributionsHandler lists a campaign's contributions newest first,
// joined with contributor and recipient projections. Members only.
// Supports limit and page query parameters.
func (c Contribution) CampaignContributionsHandler(w http.ResponseWriter, r *http.Request) {
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
	limit, _ := strconv.Atoi(r.FormValue("limit"))
	page, _ := strconv.Atoi(r.FormValue("page"))

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if _, err := c.MDB.FindOne(ctx, bson.M{"campaign_id": campaignID, "user_id": userID}); err != nil {
		config.ErrorStatus("not a member of this campaign", http.StatusForbidden, w, errNotMember)
		return
	}

	filter := bson.M{"campaign_id": campaignID}
	sort := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var contributions []models.Contribution
	if limit > 0 {
		contributions, err = c.DB.FindPaginated(ctx, filter, limit, page, sort)
	} else {
		contributions, err = c.DB.Find(ctx, filter, sort)
	}
	if err != nil {
		config.ErrorStatus("failed to get contributions", http.StatusInternalServerError, w, err)
		return
	}

	joined, err := c.withUsers(ctx, contributions)
	if err != nil {
		config.ErrorStatus("failed to get contribution users", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(joined)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// UserContributionsHandler lists every contribution the authenticated user
// sent or received, across all campaigns
func (c Contribution) UserContributionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := primitive.ObjectIDFromHex(api.UserID(r.Context()))
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	contributions, err := c.DB.Find(ctx, bson.M{"$or": bson.A{
		bson.M{"contributor_id": userID},
		bson.M{"recipient_id": userID},
	}})
	if err != nil {
		config.ErrorStatus("failed to get contributions", http.StatusInternalServerError, w, err)
		return
	}

	joined, err := c.withUsers(ctx, contributions)
	if err != nil {
		config.ErrorStatus("failed to get contribution users", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(joined)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func (c Contribution) withUsers(ctx context.Context, contributions []models.Contribution) ([]models.ContributionWithUsers, error) {
	ids := make([]primitive.ObjectID, 0, len(contributions)*2)
	for _, contribution := range contributions {
		ids = append(ids, contribution.ContributorID, contribution.RecipientID)
	}
	summaries, err := userSummaryMap(ctx, c.UDB, ids)
	if err != nil {
		return nil, err
	}

	joined := make([]models.ContributionWithUsers, 0, len(contributions))
	for _, contribution := range contributions {
		joined = append(joined, models.ContributionWithUsers{
			Contribution: contribution,
			Contributor:  summaries[contribution.ContributorID],
			Recipient:    summaries[contribution.RecipientID],
		})
	}
	return joined, nil
}
