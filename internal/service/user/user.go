package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/repository"
)

// Ends every session of the user within the given transaction, implemented by auth.AuthService
type SessionRevoker interface {
	RevokeAllForUserTx(ctx context.Context, tx repository.Storage, userID uuid.UUID) error
}

type UserService struct {
	hasher      PasswordHasher
	storage     repository.Storage
	revoker     SessionRevoker
	defaultRole string
}

func NewService(hasher PasswordHasher, storage repository.Storage, revoker SessionRevoker, defaultRole string) *UserService {
	if hasher == nil {
		hasher = DefaultHasher
	}
	if defaultRole == "" {
		defaultRole = models.DefaultRole
	}

	return &UserService{
		hasher:      hasher,
		storage:     storage,
		revoker:     revoker,
		defaultRole: defaultRole,
	}
}

func (s *UserService) CreateUser(ctx context.Context, username string, password string) (models.User, error) {
	var user models.User
	if password == "" {
		return user, errors.New("password must not be empty")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	user, err = s.storage.User().CreateUser(ctx, username, hash, s.defaultRole)
	if err != nil {
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}

// Authenticate user by credentials
// Unknown user and wrong password are indistinguishable: both return apperrors.ErrInvalidCredentials
func (s *UserService) Authenticate(ctx context.Context, username string, password string) (models.User, error) {
	user, err := s.storage.User().GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.User{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return models.User{}, err
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.User{}, apperrors.ErrInvalidCredentials
	}

	return user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, userID)
}

// Change password and end every session of the user
func (s *UserService) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword string, newPassword string) error {
	if newPassword == "" {
		return errors.New("password must not be empty")
	}

	user, err := s.storage.User().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.hasher.Compare(user.HashedPassword, oldPassword); err != nil {
		return apperrors.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("can't use this as password, Err: %w", err)
	}

	// Password stays unchanged if sessions can't be revoked
	return s.storage.InTx(ctx, func(tx repository.Storage) error {
		if err := tx.User().SetPassword(ctx, userID, hash); err != nil {
			return fmt.Errorf("can't change password. Err: %w", err)
		}

		if s.revoker == nil {
			return nil
		}

		return s.revoker.RevokeAllForUserTx(ctx, tx, userID)
	})
}
