package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"kwala.backend/internal/domain/entities"
	domainerrors "kwala.backend/internal/domain/errors"
	"kwala.backend/internal/interfaces/http/middleware"
	"kwala.backend/internal/interfaces/http/response"
)

type credentialService interface {
	Register(ctx context.Context, input *entities.RegisterInput) (*entities.AuthResponse, error)
	Login(ctx context.Context, input *entities.LoginInput) (*entities.AuthResponse, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*entities.UserAccount, error)
	ConsumeVerificationCode(ctx context.Context, email, code string) error
	ResendVerificationCode(ctx context.Context, email string) error
	QueryVerificationStatus(ctx context.Context, email string) (*entities.VerificationStatus, error)
	IssueResetCode(ctx context.Context, email string) error
	ConsumeResetCode(ctx context.Context, input *entities.ResetPasswordInput) error
	QueryResetStatus(ctx context.Context, email string) (*entities.ResetStatus, error)
}

// AuthHandler handles registration, login and the one-time code endpoints
type AuthHandler struct {
	credentials credentialService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(credentials credentialService) *AuthHandler {
	return &AuthHandler{credentials: credentials}
}

// Register handles user registration
// POST /api/register
func (h *AuthHandler) Register(c *gin.Context) {
	var input entities.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest("Name, email, phone number and password are required"))
		return
	}

	auth, err := h.credentials.Register(c.Request.Context(), &input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"user":  auth.Account.Public(),
		"token": auth.Token,
	})
}

// Login handles user login
// POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var input entities.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest("Email and password are required"))
		return
	}

	auth, err := h.credentials.Login(c.Request.Context(), &input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"user":  auth.Account.Public(),
		"token": auth.Token,
	})
}

// VerifyEmail handles email verification
// POST /api/verify-email
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var input entities.VerifyEmailInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest("Email and code are required"))
		return
	}

	if err := h.credentials.ConsumeVerificationCode(c.Request.Context(), input.Email, input.Code); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Email verified successfully"})
}

// ResendVerification issues a new verification code
// POST /api/resend-verification
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var input entities.EmailInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest("A valid email is required"))
		return
	}

	if err := h.credentials.ResendVerificationCode(c.Request.Context(), input.Email); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "New verification code sent"})
}

// VerificationStatus reports the verification code countdown
// GET /api/verification-status/:email
func (h *AuthHandler) VerificationStatus(c *gin.Context) {
	email, ok := emailParam(c)
	if !ok {
		return
	}

	status, err := h.credentials.QueryVerificationStatus(c.Request.Context(), email)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// ForgotPassword sends a password reset code
// POST /api/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var input entities.EmailInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest("A valid email is required"))
		return
	}

	if err := h.credentials.IssueResetCode(c.Request.Context(), input.Email); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Password reset code sent to email"})
}

// ResetPassword replaces the password using a reset code
// POST /api/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var input entities.ResetPasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest("Email and code are required"))
		return
	}

	if err := h.credentials.ConsumeResetCode(c.Request.Context(), &input); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Password reset successfully"})
}

// ResetPasswordStatus reports the reset code countdown
// GET /api/reset-password-status/:email
func (h *AuthHandler) ResetPasswordStatus(c *gin.Context) {
	email, ok := emailParam(c)
	if !ok {
		return
	}

	status, err := h.credentials.QueryResetStatus(c.Request.Context(), email)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// VerifyToken returns the account behind the bearer token
// GET /api/verify-token
func (h *AuthHandler) VerifyToken(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("Unauthorized"))
		return
	}

	account, err := h.credentials.GetAccount(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": account.Public()})
}

func emailParam(c *gin.Context) (string, bool) {
	email, err := url.PathUnescape(c.Param("email"))
	if err != nil || email == "" {
		response.Error(c, domainerrors.BadRequest("A valid email is required"))
		return "", false
	}
	return email, true
}
