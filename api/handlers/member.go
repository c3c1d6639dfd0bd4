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
)

// Member struct mostly used for mocking tests
type Member struct {
	MDB databases.MembershipDatabase
	Hub *Hub
}

type updateMemberRequest struct {
	AllocatedMonth    *time.Time `json:"allocated_month"`
	HasReceivedPayout *bool      `json:"has_received_payout"`
}

// UpdateMemberHandler updates a member's allocated month and/or payout flag.
// Admin only. A month held by another member of the campaign is a conflict.
func (m Member) UpdateMemberHandler(w http.ResponseWriter, r *http.Request) {
	campaignID, err := primitive.ObjectIDFromHex(mux.Vars(r)["campaign_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	memberID, err := primitive.ObjectIDFromHex(mux.Vars(r)["member_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	userID, err := primitive.ObjectIDFromHex(api.UserID(r.Context()))
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var req updateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if req.AllocatedMonth == nil && req.HasReceivedPayout == nil {
		config.ErrorStatus("nothing to update", http.StatusBadRequest, w, errMissingFields)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if _, err := m.MDB.FindOne(ctx, bson.M{"campaign_id": campaignID, "user_id": userID, "is_admin": true}); err != nil {
		config.ErrorStatus("not authorized to update members", http.StatusForbidden, w, err)
		return
	}

	if _, err := m.MDB.FindOne(ctx, bson.M{"_id": memberID, "campaign_id": campaignID}); err != nil {
		config.ErrorStatus("member not found", http.StatusNotFound, w, err)
		return
	}

	set := bson.M{}
	if req.AllocatedMonth != nil {
		month := truncateToMonth(*req.AllocatedMonth)

		// friendly pre-check; the partial unique index has the final say
		_, err := m.MDB.FindOne(ctx, bson.M{
			"campaign_id":     campaignID,
			"allocated_month": month,
			"_id":             bson.M{"$ne": memberID},
		})
		if err == nil {
			config.ErrorStatus("allocated month is already taken", http.StatusConflict, w, errCampaignFull)
			return
		}
		set["allocated_month"] = month
	}
	if req.HasReceivedPayout != nil {
		set["has_received_payout"] = *req.HasReceivedPayout
	}

	err = m.MDB.UpdateOne(ctx, bson.M{"_id": memberID, "campaign_id": campaignID}, bson.M{"$set": set})
	if err != nil {
		if isDuplicateKey(err) {
			config.ErrorStatus("allocated month is already taken", http.StatusConflict, w, err)
			return
		}
		config.ErrorStatus("failed to update member", http.StatusInternalServerError, w, err)
		return
	}

	member, err := m.MDB.FindOne(ctx, bson.M{"_id": memberID, "campaign_id": campaignID})
	if err != nil {
		config.ErrorStatus("failed to get member", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(member)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// RemoveMemberHandler removes a non-admin member from a campaign. Admin only;
// there is no demotion path, so admins cannot be removed here.
func (m Member) RemoveMemberHandler(w http.ResponseWriter, r *http.Request) {
	campaignID, err := primitive.ObjectIDFromHex(mux.Vars(r)["campaign_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	memberID, err := primitive.ObjectIDFromHex(mux.Vars(r)["member_id"])
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

	if _, err := m.MDB.FindOne(ctx, bson.M{"campaign_id": campaignID, "user_id": userID, "is_admin": true}); err != nil {
		config.ErrorStatus("not authorized to remove members", http.StatusForbidden, w, err)
		return
	}

	target, err := m.MDB.FindOne(ctx, bson.M{"_id": memberID, "campaign_id": campaignID})
	if err != nil {
		config.ErrorStatus("member not found", http.StatusNotFound, w, err)
		return
	}
	if target.IsAdmin {
		config.ErrorStatus("admins cannot be removed from a campaign", http.StatusForbidden, w, errAdminTarget)
		return
	}

	deleted, err := m.MDB.DeleteOne(ctx, bson.M{"_id": memberID, "campaign_id": campaignID})
	if err != nil {
		config.ErrorStatus("failed to remove member", http.StatusInternalServerError, w, err)
		return
	}
	if deleted == 0 {
		config.ErrorStatus("member not found", http.StatusNotFound, w, errNotMember)
		return
	}
	zap.S().Infow("member removed",
		"campaignID", campaignID.Hex(),
		"memberID", memberID.Hex(),
		"removedBy", userID.Hex(),
	)

	if m.Hub != nil {
		go m.Hub.PublishToUser(target.UserID.Hex(), TopicRemovedFromCampaign, map[string]string{
			"campaignId": campaignID.Hex(),
		})
	}

	b, err := json.Marshal(map[string]string{"message": "member removed"})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
