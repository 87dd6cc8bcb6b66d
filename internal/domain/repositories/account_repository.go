package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"kwala.backend/internal/domain/entities"
)

// AccountRepository is the persistent store for user accounts.
//
// Every conditional method is a single atomic match-and-update on the store, so two
// concurrent callers can never both consume the same code or both pass a cooldown.
type AccountRepository interface {
	// EnsureIndexes creates the unique email index and the deleteAt expiry index.
	EnsureIndexes(ctx context.Context) error

	// Create inserts a new account. Returns ErrDuplicateEmail when the email exists.
	Create(ctx context.Context, account *entities.UserAccount) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.UserAccount, error)
	GetByEmail(ctx context.Context, email string) (*entities.UserAccount, error)

	// SetVerificationCode replaces the code of an unverified account. For new
	// registrations deleteAt is pushed to the given instant. ErrNotFound when no
	// unverified account matches.
	SetVerificationCode(ctx context.Context, email, code string, expiresAt, deleteAt time.Time) error

	// ConsumeVerificationCode marks the account verified if email and code match and the
	// code expires after now. ErrInvalidOrExpiredCode otherwise.
	ConsumeVerificationCode(ctx context.Context, email, code string, now time.Time) error

	// SetResetCode stores a reset code unless the current one expires after
	// cooldownUntil. ErrCooldownActive when that guard fails, ErrNotFound when there is
	// no account.
	SetResetCode(ctx context.Context, email, code string, expiresAt, cooldownUntil time.Time) error

	// ConsumeResetCode swaps the password hash if email and code match and the code
	// expires after now. ErrInvalidOrExpiredCode otherwise.
	ConsumeResetCode(ctx context.Context, email, code, passwordHash string, now time.Time) error

	// DeleteExpiredRegistrations removes unverified new registrations whose deleteAt is
	// before now and reports how many were removed.
	DeleteExpiredRegistrations(ctx context.Context, now time.Time) (int64, error)
}
