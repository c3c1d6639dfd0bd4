package handlers

import (
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Push topics consumed by connected clients
const (
	TopicCampaignInvitation  = "campaign-invitation"
	TopicInvitationAccepted  = "invitation-accepted"
	TopicCampaignDeleted     = "campaign-deleted"
	TopicRemovedFromCampaign = "removed-from-campaign"
	TopicPaymentReceived     = "payment-received"
	TopicNewMessage          = "newMessage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub owns the realtime connections: one entry per authenticated user,
// inserted on connect and removed on disconnect, plus campaign room
// membership for chat fan-out. Delivery is at-most-once and never fails
// the operation that triggered it.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*websocket.Conn
	rooms   map[string]map[string]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*websocket.Conn),
		rooms:   make(map[string]map[string]struct{}),
	}
}

type clientMessage struct {
	Event      string `json:"event"`
	CampaignID string `json:"campaignId"`
}

// HandleWebSocket upgrades the connection, authenticates it via the token
// query parameter and serves join/leave messages until disconnect
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, _, err := parseBearerToken(r.URL.Query().Get("token"))
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "unauthorized"}`))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().With(err).Error("websocket upgrade failed")
		return
	}

	h.mu.Lock()
	if old, ok := h.clients[userID]; ok {
		old.Close()
	}
	h.clients[userID] = conn
	h.mu.Unlock()
	zap.S().Debugf("user %s connected to /ws/notifications", userID)

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Event {
		case "join-campaign":
			if msg.CampaignID != "" {
				h.join(msg.CampaignID, userID)
			}
		case "leave-campaign":
			if msg.CampaignID != "" {
				h.leave(msg.CampaignID, userID)
			}
		}
	}

	h.evict(userID, conn)
	zap.S().Debugf("user %s disconnected from /ws/notifications", userID)
}

func (h *Hub) join(campaignID, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[campaignID]
	if !ok {
		room = make(map[string]struct{})
		h.rooms[campaignID] = room
	}
	room[userID] = struct{}{}
}

func (h *Hub) leave(campaignID, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[campaignID]; ok {
		delete(room, userID)
		if len(room) == 0 {
			delete(h.rooms, campaignID)
		}
	}
}

// evict removes the connection if it is still the registered one for userID
func (h *Hub) evict(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == conn {
		delete(h.clients, userID)
		for _, room := range h.rooms {
			delete(room, userID)
		}
	}
	conn.Close()
}

// PublishToUser pushes a payload to one user if connected, at most once
func (h *Hub) PublishToUser(userID, topic string, payload interface{}) {
	h.mu.Lock()
	conn, ok := h.clients[userID]
	h.mu.Unlock()
	if !ok {
		return
	}

	err := conn.WriteJSON(map[string]interface{}{
		"event": topic,
		"data":  payload,
	})
	if err != nil {
		zap.S().With(err).Errorf("failed to push %s to user %s", topic, userID)
		h.evict(userID, conn)
	}
}

// PublishToCampaign pushes a payload to every user in the campaign room
func (h *Hub) PublishToCampaign(campaignID, topic string, payload interface{}) {
	h.mu.Lock()
	members := make([]string, 0, len(h.rooms[campaignID]))
	for userID := range h.rooms[campaignID] {
		members = append(members, userID)
	}
	h.mu.Unlock()

	for _, userID := range members {
		h.PublishToUser(userID, topic, payload)
	}
}

// parseBearerToken validates an HS256 JWT and returns the subject and email claims
func parseBearerToken(tokenString string) (string, string, error) {
	if tokenString == "" {
		return "", "", fmt.Errorf("missing token")
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		return "", "", fmt.Errorf("invalid token")
	}
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	if sub == "" {
		return "", "", fmt.Errorf("invalid token subject")
	}
	return sub, email, nil
}
