package usecases

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
	"kwala.backend/internal/config"
	"kwala.backend/internal/domain/entities"
	domainerrors "kwala.backend/internal/domain/errors"
	"kwala.backend/internal/domain/repositories"
	"kwala.backend/internal/domain/services"
	"kwala.backend/pkg/crypto"
	"kwala.backend/pkg/jwt"
	"kwala.backend/pkg/logger"
	"kwala.backend/pkg/metrics"
	"kwala.backend/pkg/redis"
	"kwala.backend/pkg/utils"
)

var phonePattern = regexp.MustCompile(`^\d{7,11}$`)

// Throttler marks key for ttl. Acquire fails with redis.ErrLocked while the mark is held,
// and the returned release clears it early.
type Throttler interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// CredentialUsecase owns accounts and their one-time verification and reset codes.
type CredentialUsecase struct {
	repo         repositories.AccountRepository
	sender       services.CodeSender
	jwtService   *jwt.JWTService
	cfg          config.CredentialsConfig
	throttle     Throttler
	now          func() time.Time
	generateCode func() (string, error)
}

// CredentialOption customises a CredentialUsecase.
type CredentialOption func(*CredentialUsecase)

// WithResendThrottle limits resend requests per email.
func WithResendThrottle(t Throttler) CredentialOption {
	return func(u *CredentialUsecase) { u.throttle = t }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CredentialOption {
	return func(u *CredentialUsecase) { u.now = now }
}

// WithCodeGenerator replaces the random code source.
func WithCodeGenerator(gen func() (string, error)) CredentialOption {
	return func(u *CredentialUsecase) { u.generateCode = gen }
}

// NewCredentialUsecase creates a new credential usecase
func NewCredentialUsecase(
	repo repositories.AccountRepository,
	sender services.CodeSender,
	jwtService *jwt.JWTService,
	cfg config.CredentialsConfig,
	opts ...CredentialOption,
) *CredentialUsecase {
	u := &CredentialUsecase{
		repo:         repo,
		sender:       sender,
		jwtService:   jwtService,
		cfg:          cfg,
		now:          time.Now,
		generateCode: crypto.GenerateNumericCode,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an unverified account, issues its first verification code and
// returns a session token. The account is removed if it is not verified within the
// registration grace window.
func (u *CredentialUsecase) Register(ctx context.Context, input *entities.RegisterInput) (*entities.AuthResponse, error) {
	name := strings.TrimSpace(input.Name)
	phone := strings.TrimSpace(input.PhoneNumber)
	country := entities.Country{
		Name:      strings.TrimSpace(input.Country.Name),
		PhoneCode: strings.TrimSpace(input.Country.PhoneCode),
	}
	if name == "" {
		return nil, domainerrors.BadRequest("Name is required")
	}
	if country.Name == "" || country.PhoneCode == "" {
		return nil, domainerrors.BadRequest("Country name and phone code are required")
	}
	if !phonePattern.MatchString(phone) {
		return nil, domainerrors.ErrInvalidPhoneFormat
	}
	if input.Password == "" {
		return nil, domainerrors.BadRequest("Password is required")
	}

	email := normalizeEmail(input.Email)
	_, err := u.repo.GetByEmail(ctx, email)
	if err == nil {
		return nil, domainerrors.ErrDuplicateEmail
	}
	if !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, err
	}

	passwordHash, err := crypto.HashPasswordWithCost(input.Password, u.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	code, err := u.generateCode()
	if err != nil {
		return nil, err
	}

	now := u.now()
	account := &entities.UserAccount{
		ID:                      utils.NewAccountID(),
		Email:                   email,
		Name:                    name,
		PhoneNumber:             phone,
		Country:                 country,
		PasswordHash:            passwordHash,
		IsVerified:              false,
		VerificationCode:        null.StringFrom(code),
		VerificationCodeExpires: null.TimeFrom(now.Add(u.cfg.CodeTTL)),
		IsNewRegistration:       true,
		DeleteAt:                null.TimeFrom(now.Add(u.cfg.RegistrationGrace)),
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if err := u.repo.Create(ctx, account); err != nil {
		return nil, err
	}
	metrics.CodeChecks.WithLabelValues(string(services.CodeKindVerification), metrics.ResultIssued).Inc()
	logger.Info(ctx, "Account registered", zap.String("user_id", account.ID.String()))

	if err := u.sender.SendCode(ctx, services.CodeKindVerification, email, code); err != nil {
		return nil, domainerrors.DeliveryError(err)
	}

	token, err := u.jwtService.GenerateToken(account.ID, account.Email)
	if err != nil {
		return nil, err
	}
	return &entities.AuthResponse{Token: token, Account: account}, nil
}

// Login checks the password and returns a session token.
func (u *CredentialUsecase) Login(ctx context.Context, input *entities.LoginInput) (*entities.AuthResponse, error) {
	account, err := u.repo.GetByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.ErrInvalidCredentials
		}
		return nil, err
	}
	if !crypto.CheckPassword(input.Password, account.PasswordHash) {
		return nil, domainerrors.ErrInvalidCredentials
	}

	token, err := u.jwtService.GenerateToken(account.ID, account.Email)
	if err != nil {
		return nil, err
	}
	return &entities.AuthResponse{Token: token, Account: account}, nil
}

// GetAccount loads the account behind a token.
func (u *CredentialUsecase) GetAccount(ctx context.Context, id uuid.UUID) (*entities.UserAccount, error) {
	return u.repo.GetByID(ctx, id)
}

// IssueVerificationCode replaces the account's verification code, restarts the
// deletion timer of a new registration and sends the code.
func (u *CredentialUsecase) IssueVerificationCode(ctx context.Context, account *entities.UserAccount) error {
	code, err := u.generateCode()
	if err != nil {
		return err
	}

	now := u.now()
	if err := u.repo.SetVerificationCode(ctx, account.Email, code, now.Add(u.cfg.CodeTTL), now.Add(u.cfg.RegistrationGrace)); err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return domainerrors.ErrAccountNotEligible
		}
		return err
	}
	metrics.CodeChecks.WithLabelValues(string(services.CodeKindVerification), metrics.ResultIssued).Inc()

	if err := u.sender.SendCode(ctx, services.CodeKindVerification, account.Email, code); err != nil {
		return domainerrors.DeliveryError(err)
	}
	return nil
}

// ConsumeVerificationCode marks the account verified when code matches and has not expired.
func (u *CredentialUsecase) ConsumeVerificationCode(ctx context.Context, email, code string) error {
	err := u.repo.ConsumeVerificationCode(ctx, normalizeEmail(email), strings.TrimSpace(code), u.now())
	u.recordCheck(services.CodeKindVerification, err)
	return err
}

// ResendVerificationCode issues a fresh code to an unverified account.
func (u *CredentialUsecase) ResendVerificationCode(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	account, err := u.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return domainerrors.ErrAccountNotEligible
		}
		return err
	}
	if account.IsVerified {
		return domainerrors.ErrAccountNotEligible
	}

	var release func(context.Context) error
	if u.throttle != nil && u.cfg.ResendThrottle > 0 {
		rel, err := u.throttle.Acquire(ctx, "resend:"+email, u.cfg.ResendThrottle)
		switch {
		case errors.Is(err, redis.ErrLocked):
			metrics.CodeChecks.WithLabelValues(string(services.CodeKindVerification), metrics.ResultCooldown).Inc()
			return domainerrors.ErrCooldownActive
		case err != nil:
			logger.Warn(ctx, "Resend throttle unavailable", zap.Error(err))
		default:
			release = rel
		}
	}

	if err := u.IssueVerificationCode(ctx, account); err != nil {
		// a failed issue must not hold the user off for the whole window
		if release != nil {
			if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
				logger.Warn(ctx, "Failed to clear resend throttle", zap.Error(rerr))
			}
		}
		return err
	}
	return nil
}

// QueryVerificationStatus reports how long the current verification code stays valid.
// ExactDuration is the full code lifetime while the code is fresh, so a client can tell a
// new countdown from a resumed one.
func (u *CredentialUsecase) QueryVerificationStatus(ctx context.Context, email string) (*entities.VerificationStatus, error) {
	account, err := u.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return &entities.VerificationStatus{}, nil
		}
		return nil, err
	}
	if account.IsVerified || !account.VerificationCode.Valid || !account.VerificationCodeExpires.Valid {
		return &entities.VerificationStatus{}, nil
	}

	remaining := account.VerificationCodeExpires.Time.Sub(u.now())
	if remaining <= 0 {
		return &entities.VerificationStatus{}, nil
	}

	seconds := int(remaining / time.Second)
	status := &entities.VerificationStatus{TimeRemaining: seconds, ExactDuration: seconds}
	if remaining >= u.cfg.CodeTTL-u.cfg.FreshWindow {
		status.ExactDuration = int(u.cfg.CodeTTL / time.Second)
	}
	return status, nil
}

// IssueResetCode sends a password reset code unless one was issued within the cooldown.
func (u *CredentialUsecase) IssueResetCode(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	code, err := u.generateCode()
	if err != nil {
		return err
	}

	now := u.now()
	expiresAt := now.Add(u.cfg.CodeTTL)
	// a code issued at t expires at t+CodeTTL, so "issued before now-cooldown" is this bound
	cooldownUntil := expiresAt.Add(-u.cfg.ResetCooldown)
	if err := u.repo.SetResetCode(ctx, email, code, expiresAt, cooldownUntil); err != nil {
		if errors.Is(err, domainerrors.ErrCooldownActive) {
			metrics.CodeChecks.WithLabelValues(string(services.CodeKindPasswordReset), metrics.ResultCooldown).Inc()
		}
		return err
	}
	metrics.CodeChecks.WithLabelValues(string(services.CodeKindPasswordReset), metrics.ResultIssued).Inc()

	if err := u.sender.SendCode(ctx, services.CodeKindPasswordReset, email, code); err != nil {
		return domainerrors.DeliveryError(err)
	}
	return nil
}

// ConsumeResetCode replaces the password when the reset code matches and has not expired.
// The password length is checked before the store is touched.
func (u *CredentialUsecase) ConsumeResetCode(ctx context.Context, input *entities.ResetPasswordInput) error {
	if utf8.RuneCountInString(input.NewPassword) < u.cfg.MinPasswordLength {
		return domainerrors.ErrWeakPassword
	}

	passwordHash, err := crypto.HashPasswordWithCost(input.NewPassword, u.cfg.BcryptCost)
	if err != nil {
		return err
	}

	err = u.repo.ConsumeResetCode(ctx, normalizeEmail(input.Email), strings.TrimSpace(input.Code), passwordHash, u.now())
	u.recordCheck(services.CodeKindPasswordReset, err)
	return err
}

// QueryResetStatus reports how many seconds the current reset code stays valid.
func (u *CredentialUsecase) QueryResetStatus(ctx context.Context, email string) (*entities.ResetStatus, error) {
	account, err := u.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return &entities.ResetStatus{}, nil
		}
		return nil, err
	}
	if !account.ResetPasswordCode.Valid || !account.ResetPasswordCodeExpires.Valid {
		return &entities.ResetStatus{}, nil
	}

	remaining := account.ResetPasswordCodeExpires.Time.Sub(u.now())
	if remaining <= 0 {
		return &entities.ResetStatus{}, nil
	}
	return &entities.ResetStatus{TimeRemaining: int(remaining / time.Second)}, nil
}

// SweepExpired deletes unverified registrations whose deletion time has passed.
func (u *CredentialUsecase) SweepExpired(ctx context.Context) (int64, error) {
	removed, err := u.repo.DeleteExpiredRegistrations(ctx, u.now())
	if err != nil {
		return 0, err
	}
	metrics.AccountsSwept.Add(float64(removed))
	return removed, nil
}

// EnsureIndexes prepares the store's unique and expiry indexes.
func (u *CredentialUsecase) EnsureIndexes(ctx context.Context) error {
	return u.repo.EnsureIndexes(ctx)
}

func (u *CredentialUsecase) recordCheck(kind services.CodeKind, err error) {
	result := metrics.ResultAccepted
	if err != nil {
		result = metrics.ResultRejected
	}
	metrics.CodeChecks.WithLabelValues(string(kind), result).Inc()
}
