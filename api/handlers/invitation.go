package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/benovo-app/benovo-api/api"
	"github.com/benovo-app/benovo-api/config"
	"github.com/benovo-app/benovo-api/databases"
	"github.com/benovo-app/benovo-api/models"
	templates "github.com/benovo-app/benovo-api/templates/html"
)

// Invitation struct mostly used for mocking tests
type Invitation struct {
	DB    databases.InvitationDatabase
	MDB   databases.MembershipDatabase
	CamDB databases.CampaignDatabase
	UDB   databases.UserDatabase
	Hub   *Hub
}

type inviteRequest struct {
	Email string `json:"email"`
}

// InviteMemberHandler creates a pending invitation for an existing account. Admin only.
func (i Invitation) InviteMemberHandler(w http.ResponseWriter, r *http.Request) {
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

	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" {
		config.ErrorStatus("email is required", http.StatusBadRequest, w, errMissingFields)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	_, err = i.MDB.FindOne(ctx, bson.M{"campaign_id": campaignID, "user_id": userID, "is_admin": true})
	if err != nil {
		config.ErrorStatus("not authorized to invite members", http.StatusForbidden, w, err)
		return
	}

	campaign, err := i.CamDB.FindOne(ctx, bson.M{"_id": campaignID})
	if err != nil {
		config.ErrorStatus("failed to get campaign by ID", http.StatusNotFound, w, err)
		return
	}

	invitee, err := i.UDB.FindOne(ctx, bson.M{"email": email})
	if err != nil {
		config.ErrorStatus("no account exists for this email", http.StatusNotFound, w, err)
		return
	}

	// friendly pre-checks; the partial unique index is the real guarantee
	if _, err := i.MDB.FindOne(ctx, bson.M{"campaign_id": campaignID, "user_id": invitee.ID}); err == nil {
		config.ErrorStatus("user is already a member of this campaign", http.StatusConflict, w, errAlreadyMember)
		return
	}

	memberCount, err := i.MDB.CountDocuments(ctx, bson.M{"campaign_id": campaignID})
	if err != nil {
		config.ErrorStatus("failed to count members", http.StatusInternalServerError, w, err)
		return
	}
	pendingCount, err := i.DB.CountDocuments(ctx, bson.M{"campaign_id": campaignID, "status": models.InvitationStatusPending})
	if err != nil {
		config.ErrorStatus("failed to count invitations", http.StatusInternalServerError, w, err)
		return
	}
	if campaign.MaxMembers > 0 && memberCount+pendingCount >= int64(campaign.MaxMembers) {
		config.ErrorStatus("campaign is at capacity", http.StatusConflict, w, errCampaignFull)
		return
	}

	now := time.Now().UTC()
	invitation := models.Invitation{
		ID:         primitive.NewObjectID(),
		CampaignID: campaignID,
		Email:      email,
		Token:      uuid.New().String(),
		InvitedBy:  userID,
		Status:     models.InvitationStatusPending,
		ExpiresAt:  now.Add(models.InvitationTTL),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := i.DB.InsertOne(ctx, invitation); err != nil {
		if isDuplicateKey(err) {
			config.ErrorStatus("a pending invitation already exists for this email", http.StatusConflict, w, err)
			return
		}
		config.ErrorStatus("failed to create invitation", http.StatusInternalServerError, w, err)
		return
	}
	zap.S().Infow("invitation created",
		"campaignID", campaignID.Hex(),
		"email", email,
		"invitedBy", userID.Hex(),
	)

	// delivery is fire-and-forget: losing the email or the push never fails the invite
	go func() {
		if err := sendInvitationEmail(email, campaign.Name, invitation.Token); err != nil {
			zap.S().With(err).Errorw("failed to send invitation email", "email", email)
		}
	}()
	if i.Hub != nil {
		go i.Hub.PublishToUser(invitee.ID.Hex(), TopicCampaignInvitation, map[string]string{
			"invitationId": invitation.ID.Hex(),
			"campaignId":   campaignID.Hex(),
			"campaignName": campaign.Name,
		})
	}

	b, err := json.Marshal(map[string]interface{}{
		"message":    "invitation sent successfully",
		"invitation": invitation,
	})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// CampaignInvitationsHandler lists a campaign's invitations. Member only.
func (i Invitation) CampaignInvitationsHandler(w http.ResponseWriter, r *http.Request) {
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

	if _, err := i.MDB.FindOne(ctx, bson.M{"campaign_id": campaignID, "user_id": userID}); err != nil {
		config.ErrorStatus("not authorized to access this campaign", http.StatusForbidden, w, err)
		return
	}

	invitations, err := i.DB.Find(ctx, bson.M{"campaign_id": campaignID})
	if err != nil {
		config.ErrorStatus("failed to get invitations", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(invitations)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// CancelInvitationHandler cancels a pending invitation. Admin only; terminal
// invitations are not found by the pending-only filter.
func (i Invitation) CancelInvitationHandler(w http.ResponseWriter, r *http.Request) {
	campaignID, err := primitive.ObjectIDFromHex(mux.Vars(r)["campaign_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	invitationID, err := primitive.ObjectIDFromHex(mux.Vars(r)["invitation_id"])
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

	if _, err := i.MDB.FindOne(ctx, bson.M{"campaign_id": campaignID, "user_id": userID, "is_admin": true}); err != nil {
		config.ErrorStatus("not authorized to cancel invitations", http.StatusForbidden, w, err)
		return
	}

	matched, err := i.DB.UpdateOne(ctx,
		bson.M{"_id": invitationID, "campaign_id": campaignID, "status": models.InvitationStatusPending},
		bson.M{"$set": bson.M{"status": models.InvitationStatusCancelled, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		config.ErrorStatus("failed to cancel invitation", http.StatusInternalServerError, w, err)
		return
	}
	if matched == 0 {
		config.ErrorStatus("no pending invitation found", http.StatusNotFound, w, errNotPending)
		return
	}

	b, err := json.Marshal(map[string]string{"message": "invitation cancelled"})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// UserInvitationsHandler lists the caller's pending, unexpired invitations.
// Expiry filters reads only; expired rows keep their pending status.
func (i Invitation) UserInvitationsHandler(w http.ResponseWriter, r *http.Request) {
	email := api.UserEmail(r.Context())

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	invitations, err := i.DB.Find(ctx, bson.M{
		"email":      email,
		"status":     models.InvitationStatusPending,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	})
	if err != nil {
		config.ErrorStatus("failed to get invitations", http.StatusInternalServerError, w, err)
		return
	}

	out := make([]models.InvitationWithCampaign, 0, len(invitations))
	for _, inv := range invitations {
		item := models.InvitationWithCampaign{Invitation: inv}
		if campaign, err := i.CamDB.FindOne(ctx, bson.M{"_id": inv.CampaignID}); err == nil {
			item.Campaign = *campaign
		}
		if inviter, err := i.UDB.FindOne(ctx, bson.M{"_id": inv.InvitedBy}); err == nil {
			item.Inviter = inviter.Summary()
		}
		out = append(out, item)
	}

	b, err := json.Marshal(out)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

type respondRequest struct {
	Action string `json:"action"`
}

// RespondInvitationHandler lets the invitee accept or decline a pending
// invitation. Terminal or expired invitations respond with 404.
func (i Invitation) RespondInvitationHandler(w http.ResponseWriter, r *http.Request) {
	invitationID, err := primitive.ObjectIDFromHex(mux.Vars(r)["invitation_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	userID, err := primitive.ObjectIDFromHex(api.UserID(r.Context()))
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	email := api.UserEmail(r.Context())

	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if req.Action != "accept" && req.Action != "decline" {
		config.ErrorStatus("action must be accept or decline", http.StatusBadRequest, w, errMissingFields)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	invitation, err := i.DB.FindOne(ctx, bson.M{"_id": invitationID})
	if err != nil {
		config.ErrorStatus("invitation not found", http.StatusNotFound, w, err)
		return
	}
	if invitation.Email != email {
		config.ErrorStatus("not authorized to respond to this invitation", http.StatusForbidden, w, errNotInvitee)
		return
	}
	if invitation.Status != models.InvitationStatusPending || invitation.Expired(time.Now().UTC()) {
		config.ErrorStatus("no pending invitation found", http.StatusNotFound, w, errNotPending)
		return
	}

	if req.Action == "decline" {
		if err := i.transition(ctx, invitationID, models.InvitationStatusDeclined); err != nil {
			config.ErrorStatus("failed to decline invitation", http.StatusInternalServerError, w, err)
			return
		}
		b, _ := json.Marshal(map[string]string{"message": "invitation declined"})
		w.WriteHeader(http.StatusOK)
		w.Write(b)
		return
	}

	campaign, err := i.CamDB.FindOne(ctx, bson.M{"_id": invitation.CampaignID})
	if err != nil {
		config.ErrorStatus("failed to get campaign by ID", http.StatusNotFound, w, err)
		return
	}

	// already a member: the invitation still flips to accepted, the membership
	// write is skipped, and the caller is told about the conflict
	if _, err := i.MDB.FindOne(ctx, bson.M{"campaign_id": campaign.ID, "user_id": userID}); err == nil {
		if err := i.transition(ctx, invitationID, models.InvitationStatusAccepted); err != nil {
			config.ErrorStatus("failed to accept invitation", http.StatusInternalServerError, w, err)
			return
		}
		config.ErrorStatus("already a member of this campaign", http.StatusConflict, w, errAlreadyMember)
		return
	}

	members, err := i.MDB.Find(ctx, bson.M{"campaign_id": campaign.ID})
	if err != nil {
		config.ErrorStatus("failed to get members", http.StatusInternalServerError, w, err)
		return
	}
	if campaign.MaxMembers > 0 && len(members) >= campaign.MaxMembers {
		if err := i.transition(ctx, invitationID, models.InvitationStatusDeclined); err != nil {
			config.ErrorStatus("failed to decline invitation", http.StatusInternalServerError, w, err)
			return
		}
		config.ErrorStatus("campaign is at capacity", http.StatusConflict, w, errCampaignFull)
		return
	}

	member, err := i.createMemberWithAllocation(ctx, campaign, userID, members)
	if err != nil {
		switch err {
		case errCampaignFull:
			if terr := i.transition(ctx, invitationID, models.InvitationStatusDeclined); terr != nil {
				zap.S().With(terr).Error("failed to decline full-campaign invitation")
			}
			config.ErrorStatus("campaign is at capacity", http.StatusConflict, w, err)
		case errAlreadyMember:
			// a concurrent acceptance won the membership insert
			if terr := i.transition(ctx, invitationID, models.InvitationStatusAccepted); terr != nil {
				zap.S().With(terr).Error("failed to accept invitation for existing member")
			}
			config.ErrorStatus("already a member of this campaign", http.StatusConflict, w, err)
		default:
			config.ErrorStatus("failed to create membership", http.StatusInternalServerError, w, err)
		}
		return
	}

	if err := i.transition(ctx, invitationID, models.InvitationStatusAccepted); err != nil {
		// membership already exists; surface the inconsistency in logs only
		zap.S().With(err).Errorw("membership created but invitation status update failed",
			"invitationID", invitationID.Hex(),
		)
	}
	zap.S().Infow("invitation accepted",
		"invitationID", invitationID.Hex(),
		"campaignID", campaign.ID.Hex(),
		"allocatedMonth", member.AllocatedMonth,
	)

	if i.Hub != nil {
		go i.Hub.PublishToUser(invitation.InvitedBy.Hex(), TopicInvitationAccepted, map[string]string{
			"invitationId": invitationID.Hex(),
			"campaignId":   campaign.ID.Hex(),
			"email":        email,
		})
	}

	b, err := json.Marshal(map[string]interface{}{
		"message":    "invitation accepted",
		"membership": member,
	})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// transition moves a pending invitation to a terminal state. Terminal states
// are final: the pending-only filter makes a replay a no-op.
func (i Invitation) transition(ctx context.Context, id primitive.ObjectID, status string) error {
	matched, err := i.DB.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.InvitationStatusPending},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if matched == 0 {
		return errNotPending
	}
	return nil
}

// createMemberWithAllocation inserts a membership holding the next free payout
// month. A duplicate-key means another acceptance raced us: either onto the
// month slot, in which case the scan reruns against a fresh roster before
// giving up, or onto the membership pair itself, which the refreshed roster
// reveals as an already-member conflict.
func (i Invitation) createMemberWithAllocation(ctx context.Context, campaign *models.Campaign, userID primitive.ObjectID, members []models.CampaignMember) (*models.CampaignMember, error) {
	for attempt := 0; attempt < 2; attempt++ {
		month, err := nextFreeMonth(campaign.StartDate, campaign.MaxMembers, members)
		if err != nil {
			return nil, err
		}

		member := models.CampaignMember{
			ID:             primitive.NewObjectID(),
			CampaignID:     campaign.ID,
			UserID:         userID,
			IsAdmin:        false,
			AllocatedMonth: &month,
			CreatedAt:      time.Now().UTC(),
		}
		_, err = i.MDB.InsertOne(ctx, member)
		if err == nil {
			return &member, nil
		}
		if !isDuplicateKey(err) {
			return nil, err
		}

		members, err = i.MDB.Find(ctx, bson.M{"campaign_id": campaign.ID})
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if m.UserID == userID {
				return nil, errAlreadyMember
			}
		}
	}
	return nil, errCampaignFull
}

// sendInvitationEmail delivers the invitation over sendgrid
func sendInvitationEmail(toEmail, campaignName, token string) error {
	from := mail.NewEmail("Benovo", "no-reply@benovo.app")
	subject := "You have been invited to join " + campaignName
	to := mail.NewEmail("", toEmail)
	link := os.Getenv("PUBLIC_WEB_BASE_URL") + "/invitations?token=" + token
	plain := "You have been invited to join the savings campaign \"" + campaignName + "\". Open the app to respond: " + link
	html := templates.RenderInvitationEmail(campaignName, link)
	msg := mail.NewSingleEmail(from, subject, to, plain, html)
	client := sendgrid.NewSendClient(os.Getenv("SENDGRID_API_KEY"))
	_, err := client.Send(msg)
	return err
}
