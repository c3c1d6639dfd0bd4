package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/benovo-app/benovo-api/api/handlers"
	"github.com/benovo-app/benovo-api/databases/mocks"
	"github.com/benovo-app/benovo-api/models"
)

func TestAuth_RegisterHandler_Success(t *testing.T) {
	mockUserDB := &mocks.UserDatabase{}
	mockUserDB.On("InsertOne", mock.Anything, mock.MatchedBy(func(u models.User) bool {
		return u.Email == "new@example.com" &&
			u.Name == "New User" &&
			u.Password != "hunter22" // stored hashed, never plaintext
	})).Return(&mocks.InsertOneResultHelper{}, nil)

	a := handlers.Auth{DB: mockUserDB}

	body := `{"name": "New User", "email": "New@Example.com", "phone": "555-0100", "password": "hunter22"}`
	req := httptest.NewRequest("POST", "/api/v1/auth/register", strings.NewReader(body))

	rr := httptest.NewRecorder()
	http.HandlerFunc(a.RegisterHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), "user registered successfully")
	mockUserDB.AssertExpectations(t)
}

func TestAuth_RegisterHandler_MissingFields(t *testing.T) {
	a := handlers.Auth{}

	body := `{"email": "new@example.com"}`
	req := httptest.NewRequest("POST", "/api/v1/auth/register", strings.NewReader(body))

	rr := httptest.NewRecorder()
	http.HandlerFunc(a.RegisterHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAuth_RegisterHandler_DuplicateEmail(t *testing.T) {
	mockUserDB := &mocks.UserDatabase{}
	mockUserDB.On("InsertOne", mock.Anything, mock.Anything).
		Return(nil, mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}})

	a := handlers.Auth{DB: mockUserDB}

	body := `{"name": "New User", "email": "taken@example.com", "phone": "555-0100", "password": "hunter22"}`
	req := httptest.NewRequest("POST", "/api/v1/auth/register", strings.NewReader(body))

	rr := httptest.NewRecorder()
	http.HandlerFunc(a.RegisterHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	mockUserDB.AssertExpectations(t)
}

func TestAuth_LoginHandler_Success(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	assert.NoError(t, err)

	user := &models.User{
		ID:       primitive.NewObjectID(),
		Name:     "Existing",
		Email:    "user@example.com",
		Password: string(hash),
	}

	mockUserDB := &mocks.UserDatabase{}
	mockUserDB.On("FindOne", mock.Anything, mock.Anything).Return(user, nil)

	a := handlers.Auth{DB: mockUserDB}

	body := `{"email": "user@example.com", "password": "hunter22"}`
	req := httptest.NewRequest("POST", "/api/v1/auth/login", strings.NewReader(body))

	rr := httptest.NewRecorder()
	http.HandlerFunc(a.LoginHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Token string             `json:"token"`
		User  models.UserSummary `json:"user"`
	}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "user@example.com", resp.User.Email)
	// the hash must never leak into the response
	assert.NotContains(t, rr.Body.String(), string(hash))
	mockUserDB.AssertExpectations(t)
}

func TestAuth_LoginHandler_WrongPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	assert.NoError(t, err)

	mockUserDB := &mocks.UserDatabase{}
	mockUserDB.On("FindOne", mock.Anything, mock.Anything).
		Return(&models.User{ID: primitive.NewObjectID(), Email: "user@example.com", Password: string(hash)}, nil)

	a := handlers.Auth{DB: mockUserDB}

	body := `{"email": "user@example.com", "password": "wrong"}`
	req := httptest.NewRequest("POST", "/api/v1/auth/login", strings.NewReader(body))

	rr := httptest.NewRecorder()
	http.HandlerFunc(a.LoginHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	mockUserDB.AssertExpectations(t)
}

func TestAuth_LoginHandler_UnknownEmail(t *testing.T) {
	mockUserDB := &mocks.UserDatabase{}
	mockUserDB.On("FindOne", mock.Anything, mock.Anything).Return(nil, mongo.ErrNoDocuments)

	a := handlers.Auth{DB: mockUserDB}

	body := `{"email": "ghost@example.com", "password": "whatever"}`
	req := httptest.NewRequest("POST", "/api/v1/auth/login", strings.NewReader(body))

	rr := httptest.NewRecorder()
	http.HandlerFunc(a.LoginHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	mockUserDB.AssertExpectations(t)
}

func TestAuth_ProfileHandler(t *testing.T) {
	userID := primitive.NewObjectID()
	user := &models.User{ID: userID, Name: "Existing", Email: "user@example.com", Password: "secret-hash"}

	mockUserDB := &mocks.UserDatabase{}
	mockUserDB.On("FindOne", mock.Anything, mock.Anything).Return(user, nil)

	a := handlers.Auth{DB: mockUserDB}

	req := authedRequest("GET", "/api/v1/auth/profile", "", userID.Hex(), "user@example.com")

	rr := httptest.NewRecorder()
	http.HandlerFunc(a.ProfileHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "user@example.com")
	assert.NotContains(t, rr.Body.String(), "secret-hash")
	mockUserDB.AssertExpectations(t)
}
