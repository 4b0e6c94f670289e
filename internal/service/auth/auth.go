package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/logger"
	"github.com/nkiryanov/authkeeper/internal/metrics"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/repository"
)

const (
	defaultAccessCookieName  = "session"
	defaultRefreshCookieName = "refresh_token"
	defaultRefreshCookiePath = "/api/auth/refresh"
	defaultSessionTTL        = 7 * 24 * time.Hour
)

// Issues and verifies tokens, implemented by tokenmanager.TokenManager
type TokenManager interface {
	IssueAccess(userID uuid.UUID, role string) (models.IssuedToken, error)
	ParseAccess(access string) (models.Identity, error)
	NewRefreshSecret() (string, error)
	NewFamilyID() (string, error)
	HashRefresh(secret string) string
}

type Config struct {
	// Cookie names and the only path refresh cookie is sent to
	// If not set than default is used
	AccessCookieName  string
	RefreshCookieName string
	RefreshCookiePath string

	// Hard upper bound for session and refresh token lifetime
	// Access token expires sooner, see tokenmanager.Config
	SessionTTL time.Duration

	// Set 'Secure' flag on cookies, has to be true in production
	SecureCookies bool

	// Clock, time.Now if not set
	Now func() time.Time

	Logger  logger.Logger
	Metrics *metrics.Auth
}

// Auth service
type AuthService struct {
	tokens  TokenManager
	storage repository.Storage

	accessCookieName  string
	refreshCookieName string
	refreshCookiePath string
	secureCookies     bool
	sessionTTL        time.Duration

	now     func() time.Time
	logger  logger.Logger
	metrics *metrics.Auth
}

func NewService(cfg Config, tokens TokenManager, storage repository.Storage) (*AuthService, error) {
	if tokens == nil || storage == nil {
		return nil, errors.New("token manager and storage must not be nil")
	}

	setDefault := func(field *string, def string) {
		if *field == "" {
			*field = def
		}
	}
	setDefault(&cfg.AccessCookieName, defaultAccessCookieName)
	setDefault(&cfg.RefreshCookieName, defaultRefreshCookieName)
	setDefault(&cfg.RefreshCookiePath, defaultRefreshCookiePath)

	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}

	return &AuthService{
		tokens:            tokens,
		storage:           storage,
		accessCookieName:  cfg.AccessCookieName,
		refreshCookieName: cfg.RefreshCookieName,
		refreshCookiePath: cfg.RefreshCookiePath,
		secureCookies:     cfg.SecureCookies,
		sessionTTL:        cfg.SessionTTL,
		now:               cfg.Now,
		logger:            cfg.Logger.With("component", "auth"),
		metrics:           cfg.Metrics,
	}, nil
}

// Login starts a new token family and a session for the user
// Session and refresh token are saved in one transaction: either both or none
func (s *AuthService) Login(ctx context.Context, userID uuid.UUID) (models.SessionCookies, error) {
	var cookies models.SessionCookies
	now := s.now().Truncate(time.Second)

	family, err := s.tokens.NewFamilyID()
	if err != nil {
		return cookies, err
	}

	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		user, err := st.User().GetUserByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("can't resolve user role. Err: %w", err)
		}

		cookies, err = s.issue(ctx, st, user, family, now)
		return err
	})
	if err != nil {
		return models.SessionCookies{}, fmt.Errorf("login failed. Err: %w", err)
	}

	s.metrics.Login()
	s.logger.Info("session created", "user_id", userID)

	return cookies, nil
}

// Issue access token and refresh secret in the family and persist both
// The caller has to revoke the previous active token of the family before
func (s *AuthService) issue(ctx context.Context, st repository.Storage, user models.User, family string, now time.Time) (models.SessionCookies, error) {
	var cookies models.SessionCookies
	expiresAt := now.Add(s.sessionTTL)

	access, err := s.tokens.IssueAccess(user.ID, user.Role)
	if err != nil {
		return cookies, err
	}

	secret, err := s.tokens.NewRefreshSecret()
	if err != nil {
		return cookies, err
	}

	err = st.Refresh().Save(ctx, models.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: s.tokens.HashRefresh(secret),
		Family:    family,
		CreatedAt: now,
		ExpiresAt: expiresAt,
		RevokedAt: nil,
	})
	if err != nil {
		return cookies, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	err = st.Session().Save(ctx, models.Session{
		Family:      family,
		UserID:      user.ID,
		AccessToken: access.Value,
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		return cookies, fmt.Errorf("error while saving session. Err: %w", err)
	}

	return models.SessionCookies{
		Access:         access,
		SessionExpires: expiresAt,
		Refresh:        models.IssuedToken{Value: secret, ExpiresAt: expiresAt},
	}, nil
}
