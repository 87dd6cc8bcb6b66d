package models

import (
	"time"

	"github.com/google/uuid"
)

// UserAccount is the relational row for entities.UserAccount.
type UserAccount struct {
	ID                       uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Email                    string     `gorm:"type:varchar(255);uniqueIndex;not null"`
	Name                     string     `gorm:"type:varchar(100);not null"`
	PhoneNumber              string     `gorm:"type:varchar(20);not null"`
	CountryName              string     `gorm:"type:varchar(100);not null"`
	CountryPhoneCode         string     `gorm:"type:varchar(10);not null"`
	PasswordHash             string     `gorm:"type:varchar(255);not null"`
	IsVerified               bool       `gorm:"not null;default:false"`
	VerificationCode         *string    `gorm:"type:varchar(6)"`
	VerificationCodeExpires  *time.Time `gorm:"type:timestamp"`
	ResetPasswordCode        *string    `gorm:"type:varchar(6)"`
	ResetPasswordCodeExpires *time.Time `gorm:"type:timestamp"`
	IsNewRegistration        bool       `gorm:"not null;default:false"`
	DeleteAt                 *time.Time `gorm:"type:timestamp;index"`
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

func (UserAccount) TableName() string {
	return "user_accounts"
}
