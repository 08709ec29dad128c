package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/uoknil/tauschBar/internal/apperr"
	"github.com/uoknil/tauschBar/internal/auth"
	"github.com/uoknil/tauschBar/internal/db"
	"github.com/uoknil/tauschBar/internal/models"
	"github.com/uoknil/tauschBar/internal/utils"
)

// IUserService defines the interface for account operations.
type IUserService interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Authenticate(ctx context.Context, login, password string) (*models.User, error)
	FindByID(ctx context.Context, id utils.SixID) (*models.User, error)
	UpdateProfile(ctx context.Context, id utils.SixID, address, zip string) (*models.User, error)
	SetProfilePicture(ctx context.Context, id utils.SixID, url string) error
	ClearProfilePicture(ctx context.Context, id utils.SixID) error
	IncrementWarnings(ctx context.Context, id utils.SixID) error
	Exists(ctx context.Context, id utils.SixID) (bool, error)
}

const usersCollection = "users"

type userService struct {
	db *mongo.Database
}

// NewUserService creates a new UserService.
func NewUserService(database *mongo.Database) IUserService {
	return &userService{db: database}
}

// Register validates credentials and stores a new account. Usernames and
// emails are unique; duplicates surface as a conflict rather than an
// internal error.
func (s *userService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if len(username) < 3 {
		return nil, apperr.Validation("username must be at least 3 characters")
	}
	if len(email) < 5 || !strings.Contains(email, "@") {
		return nil, apperr.Validation("a valid email address is required")
	}
	if len(password) < 6 {
		return nil, apperr.Validation("password must be at least 6 characters")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, apperr.Internal(err, "failed to hash password")
	}

	var user *models.User
	operation := func() error {
		user = &models.User{
			ID:           utils.NewSixID(),
			Username:     username,
			Email:        email,
			PasswordHash: hash,
			CreatedAt:    time.Now().UTC(),
		}
		_, insertErr := s.db.Collection(usersCollection).InsertOne(ctx, user)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperr.Conflict("username or email is already taken")
		}
		return nil, apperr.Internal(err, "failed to store user %s", username)
	}
	return user, nil
}

// Authenticate verifies credentials by username or email. A banned account
// authenticates correctly but is refused.
func (s *userService) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	login = strings.TrimSpace(login)
	filter := bson.M{"$or": bson.A{
		bson.M{"username": login},
		bson.M{"email": strings.ToLower(login)},
	}}

	var user models.User
	err := s.db.Collection(usersCollection).FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.Forbidden("invalid credentials")
		}
		return nil, apperr.Internal(err, "error looking up account %s", login)
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, apperr.Forbidden("invalid credentials")
	}
	if user.IsBanned {
		return nil, apperr.Forbidden("account is banned")
	}
	return &user, nil
}

// FindByID returns the user with the given ID.
func (s *userService) FindByID(ctx context.Context, id utils.SixID) (*models.User, error) {
	var user models.User
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("user %s not found", id.String())
		}
		return nil, apperr.Internal(err, "error looking up user %s", id.String())
	}
	return &user, nil
}

// UpdateProfile sets the user's address and zip code.
func (s *userService) UpdateProfile(ctx context.Context, id utils.SixID, address, zip string) (*models.User, error) {
	zip = strings.TrimSpace(zip)
	if zip != "" && len(zip) < 3 {
		return nil, apperr.Validation("zip code must be at least 3 characters")
	}

	update := bson.M{"$set": bson.M{
		"address": strings.TrimSpace(address),
		"zip":     zip,
	}}
	result, err := s.db.Collection(usersCollection).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return nil, apperr.Internal(err, "failed to update profile for user %s", id.String())
	}
	if result.MatchedCount == 0 {
		return nil, apperr.NotFound("user %s not found", id.String())
	}
	return s.FindByID(ctx, id)
}

// SetProfilePicture stores the picture URL on the user document.
func (s *userService) SetProfilePicture(ctx context.Context, id utils.SixID, url string) error {
	return s.setPictureField(ctx, id, url)
}

// ClearProfilePicture removes the picture URL from the user document.
func (s *userService) ClearProfilePicture(ctx context.Context, id utils.SixID) error {
	return s.setPictureField(ctx, id, "")
}

func (s *userService) setPictureField(ctx context.Context, id utils.SixID, url string) error {
	result, err := s.db.Collection(usersCollection).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"profile_picture": url}},
	)
	if err != nil {
		return apperr.Internal(err, "failed to update profile picture for user %s", id.String())
	}
	if result.MatchedCount == 0 {
		return apperr.NotFound("user %s not found", id.String())
	}
	return nil
}

// IncrementWarnings bumps the user's moderation warning counter.
func (s *userService) IncrementWarnings(ctx context.Context, id utils.SixID) error {
	result, err := s.db.Collection(usersCollection).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"warnings": 1}},
	)
	if err != nil {
		return apperr.Internal(err, "failed to warn user %s", id.String())
	}
	if result.MatchedCount == 0 {
		return apperr.NotFound("user %s not found", id.String())
	}
	return nil
}

// Exists reports whether a user with the given ID is present.
func (s *userService) Exists(ctx context.Context, id utils.SixID) (bool, error) {
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": id}).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, apperr.Internal(err, "error checking user %s", id.String())
	}
	return true, nil
}
