package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/newsrack/newsrack/pkg/models"
	"github.com/pkg/errors"
)

const (
	// CookieName is the name of the session cookie.
	CookieName = "newsrack_session"
	// CookieMaxAge is how long the cookie is valid.
	CookieMaxAge = 7 * 24 * time.Hour
)

type handler struct {
	authService *Service
}

func (h *handler) setSessionCookie(c echo.Context, token string, maxAge int) {
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Request().TLS != nil || c.Request().Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	})
}

func buildMeResponse(credential *models.Credential) MeResponse {
	return MeResponse{
		ID:       credential.ID,
		Username: credential.Username,
	}
}

func (h *handler) login(c echo.Context) error {
	ctx := c.Request().Context()

	params := LoginPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	credential, err := h.authService.Authenticate(ctx, params.Username, params.Password)
	if err != nil {
		return err
	}

	token, err := h.authService.GenerateToken(credential)
	if err != nil {
		return err
	}

	h.setSessionCookie(c, token, int(CookieMaxAge.Seconds()))

	return c.JSON(http.StatusOK, buildMeResponse(credential))
}

func (h *handler) logout(c echo.Context) error {
	h.setSessionCookie(c, "", -1)
	return c.JSON(http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// me returns the authenticated identity, or 401 without a valid session.
func (h *handler) me(c echo.Context) error {
	ctx := c.Request().Context()

	cookie, err := c.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
	}

	claims, err := h.authService.ValidateToken(cookie.Value)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
	}

	credential, err := h.authService.retrieveByID(ctx, claims.CredentialID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Credential not found"})
	}

	return c.JSON(http.StatusOK, buildMeResponse(credential))
}

// status reports whether initial setup is still pending.
func (h *handler) status(c echo.Context) error {
	ctx := c.Request().Context()

	needsSetup, err := h.authService.NeedsSetup(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, StatusResponse{NeedsSetup: needsSetup})
}

// setup creates the credential and logs the caller in.
func (h *handler) setup(c echo.Context) error {
	ctx := c.Request().Context()

	params := SetupPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	credential, err := h.authService.Setup(ctx, params.Username, params.Password)
	if err != nil {
		return err
	}

	token, err := h.authService.GenerateToken(credential)
	if err != nil {
		return err
	}

	h.setSessionCookie(c, token, int(CookieMaxAge.Seconds()))

	return c.JSON(http.StatusOK, buildMeResponse(credential))
}

func (h *handler) changePassword(c echo.Context) error {
	ctx := c.Request().Context()

	params := ChangePasswordPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	if err := h.authService.ChangePassword(ctx, params.CurrentPassword, params.NewPassword); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Password updated"})
}
