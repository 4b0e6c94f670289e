package auth

import (
	"net/http"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/models"
)

// Write both cookies to the response
// Access cookie lives as long as the session; the token inside expires sooner
func (s *AuthService) SetCookies(w http.ResponseWriter, cookies models.SessionCookies) {
	now := s.now()

	http.SetCookie(w, &http.Cookie{
		Name:     s.accessCookieName,
		Value:    cookies.Access.Value,
		Path:     "/",
		Expires:  cookies.SessionExpires,
		MaxAge:   int(cookies.SessionExpires.Sub(now).Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    cookies.Refresh.Value,
		Path:     s.refreshCookiePath,
		Expires:  cookies.Refresh.ExpiresAt,
		MaxAge:   int(cookies.Refresh.ExpiresAt.Sub(now).Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

// Ask the client to drop both cookies
func (s *AuthService) ClearCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.accessCookieName,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Path:     s.refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

// Access token from request cookie, empty if not set
func (s *AuthService) AccessFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(s.accessCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Refresh secret from request cookie
// Return apperrors.ErrRefreshTokenNotFound if not set
func (s *AuthService) RefreshFromRequest(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.refreshCookieName)
	if err != nil || cookie.Value == "" {
		return "", apperrors.ErrRefreshTokenNotFound
	}
	return cookie.Value, nil
}
