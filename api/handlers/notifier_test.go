package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func signTestToken(t *testing.T, sub, email string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	assert.NoError(t, err)
	return signed
}

func TestParseBearerToken_Valid(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	sub, email, err := parseBearerToken(signTestToken(t, "abc123", "user@example.com"))
	assert.NoError(t, err)
	assert.Equal(t, "abc123", sub)
	assert.Equal(t, "user@example.com", email)
}

func TestParseBearerToken_Missing(t *testing.T) {
	_, _, err := parseBearerToken("")
	assert.Error(t, err)
}

func TestParseBearerToken_WrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "other-secret")

	_, _, err := parseBearerToken(signTestToken(t, "abc123", "user@example.com"))
	assert.Error(t, err)
}

func TestParseBearerToken_MissingSubject(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	_, _, err := parseBearerToken(signTestToken(t, "", "user@example.com"))
	assert.Error(t, err)
}

func TestHub_HandleWebSocketRejectsBadToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	h := NewHub()
	req := httptest.NewRequest("GET", "/ws/notifications?token=garbage", nil)
	rr := httptest.NewRecorder()
	h.HandleWebSocket(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHub_JoinLeaveRooms(t *testing.T) {
	h := NewHub()

	h.join("camp1", "user1")
	h.join("camp1", "user2")
	assert.Len(t, h.rooms["camp1"], 2)

	h.leave("camp1", "user1")
	assert.Len(t, h.rooms["camp1"], 1)

	// empty rooms are dropped
	h.leave("camp1", "user2")
	_, ok := h.rooms["camp1"]
	assert.False(t, ok)
}

func TestHub_PublishToUnknownUserIsNoop(t *testing.T) {
	h := NewHub()
	h.PublishToUser("nobody", TopicPaymentReceived, map[string]string{"amount": "10"})
	h.PublishToCampaign("camp1", TopicNewMessage, nil)
}
