package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/repository/postgres"
	"github.com/nkiryanov/authkeeper/internal/testutil"
)

func mustParseTime(value string) time.Time {
	dt, err := time.Parse("2006-01-02 15:04:05Z07:00", value)
	if err != nil {
		panic(err)
	}
	return dt
}

func Test_Sweeper(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("new without interval fails", func(t *testing.T) {
		_, err := New(Config{}, postgres.NewStorage(pg.Pool))
		require.Error(t, err)
	})

	t.Run("sweep keeps rows within retention", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			clock := testutil.NewClock(mustParseTime("2025-01-10 10:00:00Z"))
			s, err := New(Config{Interval: time.Hour, Retention: 24 * time.Hour, Now: clock.Now}, storage)
			require.NoError(t, err)

			userID := uuid.New()
			save := func(family string, expiresAt time.Time) {
				require.NoError(t, storage.Session().Save(t.Context(), models.Session{
					Family: family, UserID: userID, AccessToken: "access-" + family,
					CreatedAt: expiresAt.Add(-time.Hour), ExpiresAt: expiresAt,
				}))
				require.NoError(t, storage.Refresh().Save(t.Context(), models.RefreshToken{
					ID: uuid.New(), UserID: userID, TokenHash: "hash-" + family, Family: family,
					CreatedAt: expiresAt.Add(-time.Hour), ExpiresAt: expiresAt,
				}))
			}
			save("long-dead", mustParseTime("2025-01-05 10:00:00Z"))
			save("recently-dead", mustParseTime("2025-01-10 09:00:00Z"))
			save("alive", mustParseTime("2025-01-17 10:00:00Z"))

			err = s.Sweep(t.Context())
			require.NoError(t, err)

			_, err = storage.Session().GetByAccess(t.Context(), "access-long-dead")
			require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
			_, err = storage.Refresh().Get(t.Context(), "hash-long-dead")
			require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)

			for _, family := range []string{"recently-dead", "alive"} {
				_, err = storage.Session().GetByAccess(t.Context(), "access-"+family)
				require.NoError(t, err, "session within retention must be kept")
				_, err = storage.Refresh().Get(t.Context(), "hash-"+family)
				require.NoError(t, err, "token within retention must be kept")
			}
		})
	})

	t.Run("run stops on context cancel", func(t *testing.T) {
		s, err := New(Config{Interval: 10 * time.Millisecond}, postgres.NewStorage(pg.Pool))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(t.Context())
		stopped := s.Run(ctx)
		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case <-stopped:
		case <-time.After(time.Second):
			t.Fatal("sweeper has to stop after context cancel")
		}
	})
}
