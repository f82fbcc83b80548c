package auth

import (
	"github.com/labstack/echo/v4"
	"github.com/newsrack/newsrack/pkg/errcodes"
	"github.com/newsrack/newsrack/pkg/models"
)

// Echo context keys set by the middleware.
const (
	ContextKeyCredentialID = "credential_id"
	ContextKeyUsername     = "username"
	ContextKeyCredential   = "credential"
)

// Middleware guards routes behind the session cookie.
type Middleware struct {
	authService *Service
}

func NewMiddleware(authService *Service) *Middleware {
	return &Middleware{
		authService: authService,
	}
}

// Authenticate validates the session cookie, reloads the credential, and
// stores identity on the request context. Unauthenticated requests get a
// 401.
func (m *Middleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		cookie, err := c.Cookie(CookieName)
		if err != nil || cookie.Value == "" {
			return errcodes.Unauthorized("Authentication required")
		}

		claims, err := m.authService.ValidateToken(cookie.Value)
		if err != nil {
			return errcodes.Unauthorized("Invalid or expired token")
		}

		credential, err := m.authService.retrieveByID(ctx, claims.CredentialID)
		if err != nil {
			return errcodes.Unauthorized("Credential not found")
		}

		c.Set(ContextKeyCredentialID, credential.ID)
		c.Set(ContextKeyUsername, credential.Username)
		c.Set(ContextKeyCredential, credential)

		return next(c)
	}
}

// CredentialFromContext retrieves the authenticated credential from the
// Echo context.
func CredentialFromContext(c echo.Context) *models.Credential {
	credential, _ := c.Get(ContextKeyCredential).(*models.Credential)
	return credential
}
