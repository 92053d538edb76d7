package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"agrolink/api/internal/api/handlers"
	"agrolink/api/internal/apperr"
	"agrolink/api/internal/models"
	"agrolink/api/internal/services"
)

func setupAuthRouter(actor *services.Actor) (*MockUserService, http.Handler) {
	svc := new(MockUserService)
	h := handlers.NewAuthHandler(svc)
	r := newTestRouter(actor)
	r.POST("/auth/signup", h.Signup)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/sendOTP", h.SendOTP)
	r.POST("/auth/verifyotp", h.VerifyOTP)
	r.POST("/auth/changePassword", h.ChangePassword)
	r.POST("/auth/updateProfile", h.UpdateProfile)
	r.GET("/auth/user/:id", h.GetUser)
	return svc, r
}

func TestAuthHandler_Signup(t *testing.T) {
	svc, r := setupAuthRouter(nil)

	user := &models.User{Base: models.NewBase(), Name: "Ravi", Email: "ravi@example.com", Role: models.RoleFarmer, PasswordHash: "secret-hash"}
	svc.On("Signup", mock.Anything, mock.MatchedBy(func(in services.SignupInput) bool {
		return in.Email == "ravi@example.com" && in.Role == models.RoleFarmer
	})).Return(user, nil)

	w, resp := doJSON(t, r, http.MethodPost, "/auth/signup", map[string]interface{}{
		"name":     "Ravi",
		"email":    "ravi@example.com",
		"password": "longenough",
		"role":     "farmer",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, resp["success"])
	body := resp["user"].(map[string]interface{})
	assert.Equal(t, "farmer", body["role"])
	assert.NotContains(t, body, "password")
	assert.NotContains(t, w.Body.String(), "secret-hash")
	svc.AssertExpectations(t)
}

func TestAuthHandler_SignupDuplicate(t *testing.T) {
	svc, r := setupAuthRouter(nil)

	svc.On("Signup", mock.Anything, mock.Anything).Return(nil, apperr.Conflict("User already exists"))

	w, resp := doJSON(t, r, http.MethodPost, "/auth/signup", map[string]interface{}{"email": "dup@example.com"})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "User already exists", resp["message"])
	svc.AssertExpectations(t)
}

func TestAuthHandler_Login(t *testing.T) {
	svc, r := setupAuthRouter(nil)

	user := &models.User{Base: models.NewBase(), Email: "ravi@example.com", Role: models.RoleFarmer}
	svc.On("Login", mock.Anything, "ravi@example.com", "longenough").Return(user, "jwt-token", nil)

	w, resp := doJSON(t, r, http.MethodPost, "/auth/login", map[string]string{"email": "ravi@example.com", "password": "longenough"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jwt-token", resp["token"])
	svc.AssertExpectations(t)
}

func TestAuthHandler_LoginInvalid(t *testing.T) {
	svc, r := setupAuthRouter(nil)

	svc.On("Login", mock.Anything, "ravi@example.com", "wrong").Return(nil, "", apperr.Unauthorized("Invalid credentials"))

	w, resp := doJSON(t, r, http.MethodPost, "/auth/login", map[string]string{"email": "ravi@example.com", "password": "wrong"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "Invalid credentials", resp["message"])
	svc.AssertExpectations(t)
}

func TestAuthHandler_OTPFlow(t *testing.T) {
	svc, r := setupAuthRouter(nil)

	svc.On("SendOTP", mock.Anything, "ravi@example.com").Return(nil)
	svc.On("VerifyOTP", mock.Anything, "ravi@example.com", "123456").Return(&models.User{Email: "ravi@example.com", Verified: true}, nil)

	w, resp := doJSON(t, r, http.MethodPost, "/auth/sendOTP", map[string]string{"email": "ravi@example.com"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OTP sent", resp["message"])

	w, resp = doJSON(t, r, http.MethodPost, "/auth/verifyotp", map[string]string{"email": "ravi@example.com", "otp": "123456"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["user"].(map[string]interface{})["verified"])
	svc.AssertExpectations(t)
}

func TestAuthHandler_ChangePassword(t *testing.T) {
	actor := buyerActor()
	svc, r := setupAuthRouter(&actor)

	svc.On("ChangePassword", mock.Anything, actor.ID, "old-password", "new-password").Return(nil)

	w, resp := doJSON(t, r, http.MethodPost, "/auth/changePassword", map[string]string{
		"oldPassword": "old-password",
		"newPassword": "new-password",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Password changed", resp["message"])
	svc.AssertExpectations(t)
}

func TestAuthHandler_GetUserNotFound(t *testing.T) {
	actor := buyerActor()
	svc, r := setupAuthRouter(&actor)

	userID := primitive.NewObjectID()
	svc.On("FindByID", mock.Anything, userID).Return(nil, mongo.ErrNoDocuments)

	w, resp := doJSON(t, r, http.MethodGet, "/auth/user/"+userID.Hex(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Resource not found", resp["message"])
	svc.AssertExpectations(t)
}
