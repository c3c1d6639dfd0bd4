package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
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

const defaultChatPageSize = 50

// Chat struct mostly used for mocking tests
type Chat struct {
	DB  databases.ChatDatabase
	MDB databases.MembershipDatabase
	UDB databases.UserDatabase
	Hub *Hub
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

// SendMessageHandler posts a message to the campaign room. Members only.
// The sender's own read receipt is written with the message.
func (c Chat) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
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

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		config.ErrorStatus("message text is required", http.StatusBadRequest, w, errMissingFields)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if _, err := c.MDB.FindOne(ctx, bson.M{"campaign_id": campaignID, "user_id": userID}); err != nil {
		config.ErrorStatus("not a member of this campaign", http.StatusForbidden, w, errNotMember)
		return
	}

	now := time.Now().UTC()
	message := models.ChatMessage{
		ID:         primitive.NewObjectID(),
		CampaignID: campaignID,
		UserID:     userID,
		Text:       req.Text,
		Timestamp:  now,
		ReadBy:     []models.ReadReceipt{{UserID: userID, ReadAt: now}},
	}
	if _, err := c.DB.InsertOne(ctx, message); err != nil {
		config.ErrorStatus("failed to send message", http.StatusInternalServerError, w, err)
		return
	}

	if c.Hub != nil {
		go c.Hub.PublishToCampaign(campaignID.Hex(), TopicNewMessage, message)
	}

	b, err := json.Marshal(message)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// GetMessagesHandler returns campaign messages in chronological order, joined
// with their sender projections. Members only. The limit parameter caps the
// page and before (RFC 3339) walks further back in history. Fetching marks the
// returned window as read by the caller.
func (c Chat) GetMessagesHandler(w http.ResponseWriter, r *http.Request) {
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
	if limit <= 0 {
		limit = defaultChatPageSize
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if _, err := c.MDB.FindOne(ctx, bson.M{"campaign_id": campaignID, "user_id": userID}); err != nil {
		config.ErrorStatus("not a member of this campaign", http.StatusForbidden, w, errNotMember)
		return
	}

	filter := bson.M{"campaign_id": campaignID}
	if before := r.FormValue("before"); before != "" {
		cutoff, err := time.Parse(time.RFC3339, before)
		if err != nil {
			config.ErrorStatus("failed to parse before parameter", http.StatusBadRequest, w, err)
			return
		}
		filter["timestamp"] = bson.M{"$lt": cutoff}
	}

	// newest page first, then flipped back to chronological below
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))
	messages, err := c.DB.Find(ctx, filter, opts)
	if err != nil {
		config.ErrorStatus("failed to get messages", http.StatusInternalServerError, w, err)
		return
	}

	c.markRead(ctx, messages, userID)

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	ids := make([]primitive.ObjectID, 0, len(messages))
	for _, message := range messages {
		ids = append(ids, message.UserID)
	}
	summaries, err := userSummaryMap(ctx, c.UDB, ids)
	if err != nil {
		config.ErrorStatus("failed to get message users", http.StatusInternalServerError, w, err)
		return
	}

	joined := make([]models.ChatMessageWithUser, 0, len(messages))
	for _, message := range messages {
		joined = append(joined, models.ChatMessageWithUser{
			ChatMessage: message,
			User:        summaries[message.UserID],
		})
	}

	b, err := json.Marshal(joined)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// markRead adds the caller's read receipt to the fetched messages. Best
// effort, the read path still returns on failure.
func (c Chat) markRead(ctx context.Context, messages []models.ChatMessage, userID primitive.ObjectID) {
	ids := make([]primitive.ObjectID, 0, len(messages))
	for _, message := range messages {
		ids = append(ids, message.ID)
	}
	if len(ids) == 0 {
		return
	}

	_, err := c.DB.UpdateMany(ctx,
		bson.M{
			"_id":             bson.M{"$in": ids},
			"read_by.user_id": bson.M{"$ne": userID},
		},
		bson.M{"$addToSet": bson.M{"read_by": models.ReadReceipt{
			UserID: userID,
			ReadAt: time.Now().UTC(),
		}}},
	)
	if err != nil {
		zap.S().With(err).Error("failed to mark messages as read")
	}
}
