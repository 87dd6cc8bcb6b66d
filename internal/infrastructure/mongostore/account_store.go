// Package mongostore keeps accounts in a MongoDB collection whose deleteAt field carries a TTL index.
package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"kwala.backend/internal/domain/entities"
	domainerrors "kwala.backend/internal/domain/errors"
)

type countryDocument struct {
	Name      string `bson:"name"`
	PhoneCode string `bson:"phoneCode"`
}

type accountDocument struct {
	ID                       string          `bson:"_id"`
	Email                    string          `bson:"email"`
	Name                     string          `bson:"name"`
	PhoneNumber              string          `bson:"phoneNumber"`
	Country                  countryDocument `bson:"country"`
	Password                 string          `bson:"password"`
	IsVerified               bool            `bson:"isVerified"`
	VerificationCode         *string         `bson:"verificationCode"`
	VerificationCodeExpires  *time.Time      `bson:"verificationCodeExpires"`
	ResetPasswordCode        *string         `bson:"resetPasswordCode"`
	ResetPasswordCodeExpires *time.Time      `bson:"resetPasswordCodeExpires"`
	IsNewRegistration        bool            `bson:"isNewRegistration"`
	DeleteAt                 *time.Time      `bson:"deleteAt"`
	CreatedAt                time.Time       `bson:"createdAt"`
	UpdatedAt                time.Time       `bson:"updatedAt"`
}

// AccountStore implements the account repository on MongoDB.
type AccountStore struct {
	coll *mongo.Collection
}

// NewAccountStore wraps an existing collection.
func NewAccountStore(coll *mongo.Collection) *AccountStore {
	return &AccountStore{coll: coll}
}

// Connect dials uri, checks the connection and returns the store plus a disconnect func.
func Connect(ctx context.Context, uri, database, collection string) (*AccountStore, func(context.Context) error, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, domainerrors.StoreError(err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, domainerrors.StoreError(err)
	}
	return NewAccountStore(client.Database(database).Collection(collection)), client.Disconnect, nil
}

func indexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			// mongod removes the document once deleteAt is in the past; null is never expired
			Keys:    bson.D{{Key: "deleteAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("deleteAt_ttl"),
		},
	}
}

// EnsureIndexes creates the unique email index and the TTL index on deleteAt.
func (s *AccountStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.coll.Indexes().CreateMany(ctx, indexModels()); err != nil {
		return domainerrors.StoreError(err)
	}
	return nil
}

// Create inserts a new account.
func (s *AccountStore) Create(ctx context.Context, account *entities.UserAccount) error {
	if _, err := s.coll.InsertOne(ctx, toDocument(account)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainerrors.ErrDuplicateEmail
		}
		return domainerrors.StoreError(err)
	}
	return nil
}

// GetByID loads an account by id.
func (s *AccountStore) GetByID(ctx context.Context, id uuid.UUID) (*entities.UserAccount, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: id.String()}})
}

// GetByEmail loads an account by email.
func (s *AccountStore) GetByEmail(ctx context.Context, email string) (*entities.UserAccount, error) {
	return s.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (s *AccountStore) findOne(ctx context.Context, filter bson.D) (*entities.UserAccount, error) {
	var doc accountDocument
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, domainerrors.StoreError(err)
	}
	return doc.toEntity()
}

// SetVerificationCode replaces the code of an unverified account.
func (s *AccountStore) SetVerificationCode(ctx context.Context, email, code string, expiresAt, deleteAt time.Time) error {
	res, err := s.coll.UpdateOne(ctx, issueVerificationFilter(email), issueVerificationUpdate(code, expiresAt, deleteAt))
	if err != nil {
		return domainerrors.StoreError(err)
	}
	if res.MatchedCount == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// ConsumeVerificationCode verifies the account in one conditional update.
func (s *AccountStore) ConsumeVerificationCode(ctx context.Context, email, code string, now time.Time) error {
	res, err := s.coll.UpdateOne(ctx, codeFilter(email, "verificationCode", code, now), consumeVerificationUpdate(now))
	if err != nil {
		return domainerrors.StoreError(err)
	}
	if res.MatchedCount == 0 {
		return domainerrors.ErrInvalidOrExpiredCode
	}
	return nil
}

// SetResetCode stores a reset code unless the previous one is still inside the cooldown.
func (s *AccountStore) SetResetCode(ctx context.Context, email, code string, expiresAt, cooldownUntil time.Time) error {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "resetPasswordCode", Value: code},
		{Key: "resetPasswordCodeExpires", Value: expiresAt.UTC()},
		{Key: "updatedAt", Value: time.Now().UTC()},
	}}}
	res, err := s.coll.UpdateOne(ctx, issueResetFilter(email, cooldownUntil), update)
	if err != nil {
		return domainerrors.StoreError(err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	if _, err := s.GetByEmail(ctx, email); err != nil {
		return err
	}
	return domainerrors.ErrCooldownActive
}

// ConsumeResetCode swaps the password hash and clears the reset code.
func (s *AccountStore) ConsumeResetCode(ctx context.Context, email, code, passwordHash string, now time.Time) error {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "password", Value: passwordHash},
		{Key: "resetPasswordCode", Value: nil},
		{Key: "resetPasswordCodeExpires", Value: nil},
		{Key: "updatedAt", Value: now.UTC()},
	}}}
	res, err := s.coll.UpdateOne(ctx, codeFilter(email, "resetPasswordCode", code, now), update)
	if err != nil {
		return domainerrors.StoreError(err)
	}
	if res.MatchedCount == 0 {
		return domainerrors.ErrInvalidOrExpiredCode
	}
	return nil
}

// DeleteExpiredRegistrations removes unverified registrations past their deleteAt.
func (s *AccountStore) DeleteExpiredRegistrations(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, expiredRegistrationFilter(now))
	if err != nil {
		return 0, domainerrors.StoreError(err)
	}
	return res.DeletedCount, nil
}

func issueVerificationFilter(email string) bson.D {
	return bson.D{
		{Key: "email", Value: email},
		{Key: "isVerified", Value: false},
	}
}

// issueVerificationUpdate is a pipeline so deleteAt can depend on isNewRegistration atomically.
func issueVerificationUpdate(code string, expiresAt, deleteAt time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "verificationCode", Value: code},
			{Key: "verificationCodeExpires", Value: expiresAt.UTC()},
			{Key: "deleteAt", Value: bson.D{{Key: "$cond", Value: bson.A{"$isNewRegistration", deleteAt.UTC(), nil}}}},
			{Key: "updatedAt", Value: time.Now().UTC()},
		}}},
	}
}

func codeFilter(email, field, code string, now time.Time) bson.D {
	return bson.D{
		{Key: "email", Value: email},
		{Key: field, Value: code},
		{Key: field + "Expires", Value: bson.D{{Key: "$gt", Value: now.UTC()}}},
	}
}

func consumeVerificationUpdate(now time.Time) bson.D {
	return bson.D{{Key: "$set", Value: bson.D{
		{Key: "isVerified", Value: true},
		{Key: "verificationCode", Value: nil},
		{Key: "verificationCodeExpires", Value: nil},
		{Key: "isNewRegistration", Value: false},
		{Key: "deleteAt", Value: nil},
		{Key: "updatedAt", Value: now.UTC()},
	}}}
}

func issueResetFilter(email string, cooldownUntil time.Time) bson.D {
	return bson.D{
		{Key: "email", Value: email},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "resetPasswordCodeExpires", Value: nil}},
			bson.D{{Key: "resetPasswordCodeExpires", Value: bson.D{{Key: "$lte", Value: cooldownUntil.UTC()}}}},
		}},
	}
}

func expiredRegistrationFilter(now time.Time) bson.D {
	return bson.D{
		{Key: "deleteAt", Value: bson.D{{Key: "$lt", Value: now.UTC()}}},
		{Key: "isVerified", Value: false},
		{Key: "isNewRegistration", Value: true},
	}
}

func toDocument(a *entities.UserAccount) *accountDocument {
	return &accountDocument{
		ID:                       a.ID.String(),
		Email:                    a.Email,
		Name:                     a.Name,
		PhoneNumber:              a.PhoneNumber,
		Country:                  countryDocument{Name: a.Country.Name, PhoneCode: a.Country.PhoneCode},
		Password:                 a.PasswordHash,
		IsVerified:               a.IsVerified,
		VerificationCode:         a.VerificationCode.Ptr(),
		VerificationCodeExpires:  utcPtr(a.VerificationCodeExpires),
		ResetPasswordCode:        a.ResetPasswordCode.Ptr(),
		ResetPasswordCodeExpires: utcPtr(a.ResetPasswordCodeExpires),
		IsNewRegistration:        a.IsNewRegistration,
		DeleteAt:                 utcPtr(a.DeleteAt),
		CreatedAt:                a.CreatedAt.UTC(),
		UpdatedAt:                a.UpdatedAt.UTC(),
	}
}

func (d *accountDocument) toEntity() (*entities.UserAccount, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, domainerrors.StoreError(err)
	}
	return &entities.UserAccount{
		ID:                       id,
		Email:                    d.Email,
		Name:                     d.Name,
		PhoneNumber:              d.PhoneNumber,
		Country:                  entities.Country{Name: d.Country.Name, PhoneCode: d.Country.PhoneCode},
		PasswordHash:             d.Password,
		IsVerified:               d.IsVerified,
		VerificationCode:         null.StringFromPtr(d.VerificationCode),
		VerificationCodeExpires:  null.TimeFromPtr(d.VerificationCodeExpires),
		ResetPasswordCode:        null.StringFromPtr(d.ResetPasswordCode),
		ResetPasswordCodeExpires: null.TimeFromPtr(d.ResetPasswordCodeExpires),
		IsNewRegistration:        d.IsNewRegistration,
		DeleteAt:                 null.TimeFromPtr(d.DeleteAt),
		CreatedAt:                d.CreatedAt,
		UpdatedAt:                d.UpdatedAt,
	}, nil
}

func utcPtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	u := t.Time.UTC()
	return &u
}
