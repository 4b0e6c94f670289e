package user

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/repository"
	"github.com/nkiryanov/authkeeper/internal/repository/postgres"
	"github.com/nkiryanov/authkeeper/internal/testutil"
)

type revokerStub struct {
	revoked []uuid.UUID
	err     error
}

// Delete sessions as the real revoker does, then fail with err if set
func (r *revokerStub) RevokeAllForUserTx(ctx context.Context, tx repository.Storage, userID uuid.UUID) error {
	r.revoked = append(r.revoked, userID)
	if _, err := tx.Session().DeleteByUser(ctx, userID); err != nil {
		return err
	}
	return r.err
}

func saveSession(t *testing.T, storage repository.Storage, userID uuid.UUID, access string) {
	t.Helper()
	now := time.Now().Truncate(time.Second)
	err := storage.Session().Save(t.Context(), models.Session{
		Family:      "family-" + access,
		UserID:      userID,
		AccessToken: access,
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
	})
	require.NoError(t, err, "session has to be saved")
}

func TestUser(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Helper function to create UserService within transaction
	inTx := func(t *testing.T, fn func(s *UserService, revoker *revokerStub, storage repository.Storage)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			revoker := &revokerStub{}
			userService := NewService(DefaultHasher, storage, revoker, "")
			fn(userService, revoker, storage)
		})
	}

	t.Run("CreateUser", func(t *testing.T) {
		t.Run("create ok", func(t *testing.T) {
			inTx(t, func(s *UserService, _ *revokerStub, _ repository.Storage) {
				user, err := s.CreateUser(t.Context(), "test-user", "password123")

				require.NoError(t, err, "creating new user should be ok")
				require.NotEmpty(t, user.ID, "user ID should not be empty")
				require.Equal(t, "test-user", user.Username, "username should match")
				require.Equal(t, "user", user.Role, "default role has to be set")
				require.NotEmpty(t, user.HashedPassword, "password hash should not be empty")
				require.NotEqual(t, "password123", user.HashedPassword, "password should be hashed")
				require.NotZero(t, user.CreatedAt, "created at should be set")
			})
		})

		t.Run("configured default role", func(t *testing.T) {
			testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
				s := NewService(nil, postgres.NewStorage(tx), nil, "patient")

				user, err := s.CreateUser(t.Context(), "test-user", "password123")

				require.NoError(t, err)
				require.Equal(t, "patient", user.Role)
			})
		})

		t.Run("empty password fail", func(t *testing.T) {
			inTx(t, func(s *UserService, _ *revokerStub, _ repository.Storage) {
				_, err := s.CreateUser(t.Context(), "test-user", "")

				require.Error(t, err, "creating user with empty password should fail")
			})
		})

		t.Run("create duplicate user fail", func(t *testing.T) {
			inTx(t, func(s *UserService, _ *revokerStub, _ repository.Storage) {
				_, err := s.CreateUser(t.Context(), "test-user", "password123")
				require.NoError(t, err, "first user creation should succeed")

				_, err = s.CreateUser(t.Context(), "test-user", "different_password")

				require.Error(t, err, "creating duplicate user should fail")
				require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
			})
		})
	})

	t.Run("Authenticate", func(t *testing.T) {
		t.Run("authenticate ok", func(t *testing.T) {
			inTx(t, func(s *UserService, _ *revokerStub, _ repository.Storage) {
				createdUser, err := s.CreateUser(t.Context(), "test-user", "password123")
				require.NoError(t, err)

				user, err := s.Authenticate(t.Context(), "test-user", "password123")

				require.NoError(t, err, "login with correct credentials should succeed")
				require.Equal(t, createdUser.ID, user.ID, "user ID should match")
				require.Equal(t, createdUser.Role, user.Role)
			})
		})

		t.Run("invalid password fail", func(t *testing.T) {
			inTx(t, func(s *UserService, _ *revokerStub, _ repository.Storage) {
				_, err := s.CreateUser(t.Context(), "test-user", "password123")
				require.NoError(t, err)

				_, err = s.Authenticate(t.Context(), "test-user", "wrong-password")

				require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
			})
		})

		t.Run("not existed user fail", func(t *testing.T) {
			inTx(t, func(s *UserService, _ *revokerStub, _ repository.Storage) {
				_, err := s.Authenticate(t.Context(), "non-existed-user", "password123")

				require.ErrorIs(t, err, apperrors.ErrInvalidCredentials, "unknown user looks like wrong password")
			})
		})
	})

	t.Run("GetUserByID", func(t *testing.T) {
		t.Run("existed ok", func(t *testing.T) {
			inTx(t, func(s *UserService, _ *revokerStub, _ repository.Storage) {
				createdUser, err := s.CreateUser(t.Context(), "test-user", "password123")
				require.NoError(t, err)

				user, err := s.GetUserByID(t.Context(), createdUser.ID)

				require.NoError(t, err, "getting existing user by ID should succeed")
				require.Equal(t, createdUser, user)
			})
		})

		t.Run("not existed fail", func(t *testing.T) {
			inTx(t, func(s *UserService, _ *revokerStub, _ repository.Storage) {
				_, err := s.GetUserByID(t.Context(), uuid.New())

				require.ErrorIs(t, err, apperrors.ErrUserNotFound)
			})
		})
	})

	t.Run("ChangePassword", func(t *testing.T) {
		t.Run("change ok", func(t *testing.T) {
			inTx(t, func(s *UserService, revoker *revokerStub, storage repository.Storage) {
				user, err := s.CreateUser(t.Context(), "test-user", "password123")
				require.NoError(t, err)
				saveSession(t, storage, user.ID, "laptop-access")

				err = s.ChangePassword(t.Context(), user.ID, "password123", "new-password")

				require.NoError(t, err)
				require.Equal(t, []uuid.UUID{user.ID}, revoker.revoked, "every session of the user has to be revoked")
				_, err = storage.Session().GetByAccess(t.Context(), "laptop-access")
				require.ErrorIs(t, err, apperrors.ErrSessionNotFound)

				_, err = s.Authenticate(t.Context(), "test-user", "password123")
				require.ErrorIs(t, err, apperrors.ErrInvalidCredentials, "old password must not work")
				_, err = s.Authenticate(t.Context(), "test-user", "new-password")
				require.NoError(t, err)
			})
		})

		t.Run("wrong old password", func(t *testing.T) {
			inTx(t, func(s *UserService, revoker *revokerStub, _ repository.Storage) {
				user, err := s.CreateUser(t.Context(), "test-user", "password123")
				require.NoError(t, err)

				err = s.ChangePassword(t.Context(), user.ID, "wrong", "new-password")

				require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
				require.Empty(t, revoker.revoked, "nothing has to be revoked")
			})
		})

		t.Run("empty new password", func(t *testing.T) {
			inTx(t, func(s *UserService, revoker *revokerStub, _ repository.Storage) {
				user, err := s.CreateUser(t.Context(), "test-user", "password123")
				require.NoError(t, err)

				err = s.ChangePassword(t.Context(), user.ID, "password123", "")

				require.Error(t, err)
				require.Empty(t, revoker.revoked)
			})
		})

		t.Run("revocation error keeps password and sessions", func(t *testing.T) {
			inTx(t, func(s *UserService, revoker *revokerStub, storage repository.Storage) {
				user, err := s.CreateUser(t.Context(), "test-user", "password123")
				require.NoError(t, err)
				saveSession(t, storage, user.ID, "laptop-access")
				revoker.err = fmt.Errorf("db error: %w: connection reset", apperrors.ErrStoreUnavailable)

				err = s.ChangePassword(t.Context(), user.ID, "password123", "new-password")

				require.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
				require.Equal(t, []uuid.UUID{user.ID}, revoker.revoked)

				_, err = s.Authenticate(t.Context(), "test-user", "password123")
				require.NoError(t, err, "old password has to work until sessions are revoked")
				_, err = s.Authenticate(t.Context(), "test-user", "new-password")
				require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

				_, err = storage.Session().GetByAccess(t.Context(), "laptop-access")
				require.NoError(t, err, "session deletion has to be rolled back")

				revoker.err = nil
				err = s.ChangePassword(t.Context(), user.ID, "password123", "new-password")
				require.NoError(t, err, "retry with old password has to succeed")

				_, err = storage.Session().GetByAccess(t.Context(), "laptop-access")
				require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
			})
		})
	})
}
