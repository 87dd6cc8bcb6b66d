package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"kwala.backend/internal/domain/entities"
	domainerrors "kwala.backend/internal/domain/errors"
	"kwala.backend/internal/infrastructure/models"
)

// AccountRepository implements account storage on postgres or sqlite.
// The relational store has no native TTL, so expired registrations are removed by the sweep only.
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// EnsureIndexes migrates the table together with its unique email and delete_at indexes.
func (r *AccountRepository) EnsureIndexes(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&models.UserAccount{}); err != nil {
		return domainerrors.StoreError(err)
	}
	return nil
}

// Create creates a new account
func (r *AccountRepository) Create(ctx context.Context, account *entities.UserAccount) error {
	m := toModel(account)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateEmail
		}
		return domainerrors.StoreError(err)
	}
	return nil
}

// GetByID gets an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.UserAccount, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByEmail gets an account by email
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*entities.UserAccount, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *AccountRepository) first(ctx context.Context, query string, arg interface{}) (*entities.UserAccount, error) {
	var m models.UserAccount
	if err := r.db.WithContext(ctx).Where(query, arg).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, domainerrors.StoreError(err)
	}
	return toEntity(&m), nil
}

// SetVerificationCode replaces the code of an unverified account
func (r *AccountRepository) SetVerificationCode(ctx context.Context, email, code string, expiresAt, deleteAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.UserAccount{}).
		Where("email = ? AND is_verified = ?", email, false).
		Updates(map[string]interface{}{
			"verification_code":         code,
			"verification_code_expires": expiresAt.UTC(),
			"delete_at":                 gorm.Expr("CASE WHEN is_new_registration THEN ? ELSE NULL END", deleteAt.UTC()),
			"updated_at":                time.Now().UTC(),
		})
	if result.Error != nil {
		return domainerrors.StoreError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// ConsumeVerificationCode verifies the account in one conditional update
func (r *AccountRepository) ConsumeVerificationCode(ctx context.Context, email, code string, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.UserAccount{}).
		Where("email = ? AND verification_code = ? AND verification_code_expires > ?", email, code, now.UTC()).
		Updates(map[string]interface{}{
			"is_verified":               true,
			"verification_code":         nil,
			"verification_code_expires": nil,
			"is_new_registration":       false,
			"delete_at":                 nil,
			"updated_at":                now.UTC(),
		})
	if result.Error != nil {
		return domainerrors.StoreError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrInvalidOrExpiredCode
	}
	return nil
}

// SetResetCode stores a reset code unless the previous one is still inside the cooldown
func (r *AccountRepository) SetResetCode(ctx context.Context, email, code string, expiresAt, cooldownUntil time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.UserAccount{}).
		Where("email = ? AND (reset_password_code_expires IS NULL OR reset_password_code_expires <= ?)", email, cooldownUntil.UTC()).
		Updates(map[string]interface{}{
			"reset_password_code":         code,
			"reset_password_code_expires": expiresAt.UTC(),
			"updated_at":                  time.Now().UTC(),
		})
	if result.Error != nil {
		return domainerrors.StoreError(result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	if _, err := r.GetByEmail(ctx, email); err != nil {
		return err
	}
	return domainerrors.ErrCooldownActive
}

// ConsumeResetCode swaps the password hash and clears the reset code
func (r *AccountRepository) ConsumeResetCode(ctx context.Context, email, code, passwordHash string, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.UserAccount{}).
		Where("email = ? AND reset_password_code = ? AND reset_password_code_expires > ?", email, code, now.UTC()).
		Updates(map[string]interface{}{
			"password_hash":               passwordHash,
			"reset_password_code":         nil,
			"reset_password_code_expires": nil,
			"updated_at":                  now.UTC(),
		})
	if result.Error != nil {
		return domainerrors.StoreError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrInvalidOrExpiredCode
	}
	return nil
}

// DeleteExpiredRegistrations hard deletes unverified registrations past their deleteAt
func (r *AccountRepository) DeleteExpiredRegistrations(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("delete_at < ? AND is_verified = ? AND is_new_registration = ?", now.UTC(), false, true).
		Delete(&models.UserAccount{})
	if result.Error != nil {
		return 0, domainerrors.StoreError(result.Error)
	}
	return result.RowsAffected, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func toModel(a *entities.UserAccount) *models.UserAccount {
	return &models.UserAccount{
		ID:                       a.ID,
		Email:                    a.Email,
		Name:                     a.Name,
		PhoneNumber:              a.PhoneNumber,
		CountryName:              a.Country.Name,
		CountryPhoneCode:         a.Country.PhoneCode,
		PasswordHash:             a.PasswordHash,
		IsVerified:               a.IsVerified,
		VerificationCode:         a.VerificationCode.Ptr(),
		VerificationCodeExpires:  utcPtr(a.VerificationCodeExpires),
		ResetPasswordCode:        a.ResetPasswordCode.Ptr(),
		ResetPasswordCodeExpires: utcPtr(a.ResetPasswordCodeExpires),
		IsNewRegistration:        a.IsNewRegistration,
		DeleteAt:                 utcPtr(a.DeleteAt),
		CreatedAt:                a.CreatedAt,
		UpdatedAt:                a.UpdatedAt,
	}
}

func toEntity(m *models.UserAccount) *entities.UserAccount {
	return &entities.UserAccount{
		ID:          m.ID,
		Email:       m.Email,
		Name:        m.Name,
		PhoneNumber: m.PhoneNumber,
		Country: entities.Country{
			Name:      m.CountryName,
			PhoneCode: m.CountryPhoneCode,
		},
		PasswordHash:             m.PasswordHash,
		IsVerified:               m.IsVerified,
		VerificationCode:         null.StringFromPtr(m.VerificationCode),
		VerificationCodeExpires:  null.TimeFromPtr(m.VerificationCodeExpires),
		ResetPasswordCode:        null.StringFromPtr(m.ResetPasswordCode),
		ResetPasswordCodeExpires: null.TimeFromPtr(m.ResetPasswordCodeExpires),
		IsNewRegistration:        m.IsNewRegistration,
		DeleteAt:                 null.TimeFromPtr(m.DeleteAt),
		CreatedAt:                m.CreatedAt,
		UpdatedAt:                m.UpdatedAt,
	}
}

func utcPtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	u := t.Time.UTC()
	return &u
}
