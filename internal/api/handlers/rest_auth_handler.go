package handlers

import (
	"github.com/gin-gonic/gin"

	"agrolink/api/internal/services"
)

// AuthHandler handles /auth requests.
type AuthHandler struct {
	userService services.IUserService
}

func NewAuthHandler(userService services.IUserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// Signup handles POST /auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var in services.SignupInput
	if !bindJSON(c, &in) {
		return
	}
	user, err := h.userService.Signup(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, gin.H{"message": "Account created", "user": user})
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var in loginRequest
	if !bindJSON(c, &in) {
		return
	}
	user, token, err := h.userService.Login(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"token": token, "user": user})
}

// SendOTP handles POST /auth/sendOTP
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var in otpRequest
	if !bindJSON(c, &in) {
		return
	}
	if err := h.userService.SendOTP(c.Request.Context(), in.Email); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"message": "OTP sent"})
}

// VerifyOTP handles POST /auth/verifyotp
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var in otpRequest
	if !bindJSON(c, &in) {
		return
	}
	user, err := h.userService.VerifyOTP(c.Request.Context(), in.Email, in.OTP)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"message": "Email verified", "user": user})
}

// ChangePassword handles POST /auth/changePassword
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	var in changePasswordRequest
	if !bindJSON(c, &in) {
		return
	}
	if err := h.userService.ChangePassword(c.Request.Context(), actor.ID, in.OldPassword, in.NewPassword); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"message": "Password changed"})
}

// UpdateProfile handles POST /auth/updateProfile
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	var in services.ProfileUpdate
	if !bindJSON(c, &in) {
		return
	}
	user, err := h.userService.UpdateProfile(c.Request.Context(), actor.ID, in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"user": user})
}

// GetUser handles GET /auth/user/:id
func (h *AuthHandler) GetUser(c *gin.Context) {
	userID, valid := pathID(c, "id")
	if !valid {
		return
	}
	user, err := h.userService.FindByID(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"user": user})
}
