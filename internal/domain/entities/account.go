package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// Country is the user's country with its dial code.
type Country struct {
	Name      string `json:"name" bson:"name"`
	PhoneCode string `json:"phoneCode" bson:"phoneCode"`
}

// UserAccount is a registered user together with its one-time code state.
type UserAccount struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PhoneNumber  string    `json:"phoneNumber"`
	Country      Country   `json:"country"`
	PasswordHash string    `json:"-"`

	IsVerified              bool        `json:"isVerified"`
	VerificationCode        null.String `json:"-"`
	VerificationCodeExpires null.Time   `json:"-"`

	ResetPasswordCode        null.String `json:"-"`
	ResetPasswordCodeExpires null.Time   `json:"-"`

	IsNewRegistration bool      `json:"-"`
	DeleteAt          null.Time `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PendingDeletion reports whether the account is an unverified new registration,
// the only state in which DeleteAt may be set.
func (a *UserAccount) PendingDeletion() bool {
	return !a.IsVerified && a.IsNewRegistration
}

// PublicView is the account shape returned to API clients.
type PublicView struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	IsVerified  bool   `json:"isVerified"`
}

// Public returns the client-facing projection of the account.
func (a *UserAccount) Public() PublicView {
	return PublicView{
		Email:       a.Email,
		Name:        a.Name,
		PhoneNumber: a.PhoneNumber,
		IsVerified:  a.IsVerified,
	}
}

// RegisterInput represents input for creating an account
type RegisterInput struct {
	Name        string  `json:"name" binding:"required"`
	Email       string  `json:"email" binding:"required,email"`
	PhoneNumber string  `json:"phoneNumber" binding:"required"`
	Password    string  `json:"password" binding:"required"`
	Country     Country `json:"country"`
}

// LoginInput represents input for user login
type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// VerifyEmailInput carries a verification code.
type VerifyEmailInput struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

// EmailInput is used by resend and forgot-password.
type EmailInput struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordInput carries a reset code and the replacement password.
type ResetPasswordInput struct {
	Email       string `json:"email" binding:"required,email"`
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"newPassword"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	Token   string       `json:"token"`
	Account *UserAccount `json:"-"`
}

// VerificationStatus is the countdown state of a verification code.
type VerificationStatus struct {
	TimeRemaining int `json:"timeRemaining"`
	ExactDuration int `json:"exactDuration"`
}

// ResetStatus is the countdown state of a reset code.
type ResetStatus struct {
	TimeRemaining int `json:"timeRemaining"`
}
