package usecases_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/volatiletech/null/v8"
	"kwala.backend/internal/domain/entities"
	domainerrors "kwala.backend/internal/domain/errors"
	"kwala.backend/internal/domain/services"
)

// memoryAccountRepo mirrors the conditional updates of the real stores.
type memoryAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*entities.UserAccount
	err      error
}

func newMemoryAccountRepo() *memoryAccountRepo {
	return &memoryAccountRepo{accounts: map[string]*entities.UserAccount{}}
}

func (r *memoryAccountRepo) get(email string) *entities.UserAccount {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[email]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

func (r *memoryAccountRepo) EnsureIndexes(context.Context) error { return r.err }

func (r *memoryAccountRepo) Create(_ context.Context, a *entities.UserAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.accounts[a.Email]; ok {
		return domainerrors.ErrDuplicateEmail
	}
	cp := *a
	r.accounts[a.Email] = &cp
	return nil
}

func (r *memoryAccountRepo) GetByID(_ context.Context, id uuid.UUID) (*entities.UserAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, a := range r.accounts {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domainerrors.ErrNotFound
}

func (r *memoryAccountRepo) GetByEmail(_ context.Context, email string) (*entities.UserAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	a, ok := r.accounts[email]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memoryAccountRepo) SetVerificationCode(_ context.Context, email, code string, expiresAt, deleteAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[email]
	if !ok || a.IsVerified {
		return domainerrors.ErrNotFound
	}
	a.VerificationCode = null.StringFrom(code)
	a.VerificationCodeExpires = null.TimeFrom(expiresAt)
	if a.IsNewRegistration {
		a.DeleteAt = null.TimeFrom(deleteAt)
	} else {
		a.DeleteAt = null.Time{}
	}
	return nil
}

func (r *memoryAccountRepo) ConsumeVerificationCode(_ context.Context, email, code string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[email]
	if !ok || a.VerificationCode.String != code || !a.VerificationCode.Valid || !a.VerificationCodeExpires.Time.After(now) {
		return domainerrors.ErrInvalidOrExpiredCode
	}
	a.IsVerified = true
	a.IsNewRegistration = false
	a.VerificationCode = null.String{}
	a.VerificationCodeExpires = null.Time{}
	a.DeleteAt = null.Time{}
	return nil
}

func (r *memoryAccountRepo) SetResetCode(_ context.Context, email, code string, expiresAt, cooldownUntil time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[email]
	if !ok {
		return domainerrors.ErrNotFound
	}
	if a.ResetPasswordCodeExpires.Valid && a.ResetPasswordCodeExpires.Time.After(cooldownUntil) {
		return domainerrors.ErrCooldownActive
	}
	a.ResetPasswordCode = null.StringFrom(code)
	a.ResetPasswordCodeExpires = null.TimeFrom(expiresAt)
	return nil
}

func (r *memoryAccountRepo) ConsumeResetCode(_ context.Context, email, code, passwordHash string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[email]
	if !ok || !a.ResetPasswordCode.Valid || a.ResetPasswordCode.String != code || !a.ResetPasswordCodeExpires.Time.After(now) {
		return domainerrors.ErrInvalidOrExpiredCode
	}
	a.PasswordHash = passwordHash
	a.ResetPasswordCode = null.String{}
	a.ResetPasswordCodeExpires = null.Time{}
	return nil
}

func (r *memoryAccountRepo) DeleteExpiredRegistrations(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	var n int64
	for email, a := range r.accounts {
		if a.DeleteAt.Valid && a.DeleteAt.Time.Before(now) && !a.IsVerified && a.IsNewRegistration {
			delete(r.accounts, email)
			n++
		}
	}
	return n, nil
}

// MockCodeSender records delivered codes.
type MockCodeSender struct {
	mock.Mock
}

func (m *MockCodeSender) SendCode(ctx context.Context, kind services.CodeKind, email, code string) error {
	args := m.Called(ctx, kind, email, code)
	return args.Error(0)
}

// MockThrottler stands in for the redis throttle. Releases are counted per key.
type MockThrottler struct {
	mock.Mock
	mu       sync.Mutex
	released map[string]int
}

func (m *MockThrottler) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	args := m.Called(ctx, key, ttl)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.released == nil {
			m.released = map[string]int{}
		}
		m.released[key]++
		return nil
	}, nil
}

func (m *MockThrottler) releases(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released[key]
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
