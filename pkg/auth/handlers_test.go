package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/newsrack/newsrack/pkg/binder"
	"github.com/newsrack/newsrack/pkg/errcodes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func newTestEcho(t *testing.T) (*echo.Echo, *bun.DB, *Service) {
	t.Helper()

	db := newTestDB(t)

	e := echo.New()
	e.Binder = binder.New()
	e.HTTPErrorHandler = errcodes.NewHandler().Handle
	authService := RegisterRoutes(e, db, "test-secret")

	return e, db, authService
}

func doJSON(e *echo.Echo, method, path, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSetupAndLogin(t *testing.T) {
	t.Parallel()

	e, _, _ := newTestEcho(t)

	// Fresh install needs setup.
	rec := doJSON(e, http.MethodGet, "/auth/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := StatusResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.NeedsSetup)

	rec = doJSON(e, http.MethodPost, "/auth/setup", `{"username":"admin","password":"correct horse battery"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Result().Cookies())

	// Setup is a one-shot.
	rec = doJSON(e, http.MethodPost, "/auth/setup", `{"username":"admin2","password":"another password!"}`, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(e, http.MethodGet, "/auth/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.NeedsSetup)

	// Correct credentials log in and set the session cookie.
	rec = doJSON(e, http.MethodPost, "/auth/login", `{"username":"admin","password":"correct horse battery"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := MeResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "admin", me.Username)

	var session *http.Cookie
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == CookieName {
			session = cookie
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	// The cookie authenticates /auth/me.
	rec = doJSON(e, http.MethodGet, "/auth/me", "", []*http.Cookie{session})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "admin", me.Username)
}

func TestLogin_WrongPassword(t *testing.T) {
	t.Parallel()

	e, _, authService := newTestEcho(t)
	_, err := authService.Setup(t.Context(), "admin", "correct horse battery")
	require.NoError(t, err)

	rec := doJSON(e, http.MethodPost, "/auth/login", `{"username":"admin","password":"wrong password!"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Username casing is irrelevant; the password is not.
	rec = doJSON(e, http.MethodPost, "/auth/login", `{"username":"ADMIN","password":"correct horse battery"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMe_Unauthenticated(t *testing.T) {
	t.Parallel()

	e, _, _ := newTestEcho(t)

	rec := doJSON(e, http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	e, _, authService := newTestEcho(t)
	ctx := t.Context()

	credential, err := authService.Setup(ctx, "admin", "correct horse battery")
	require.NoError(t, err)
	token, err := authService.GenerateToken(credential)
	require.NoError(t, err)
	session := &http.Cookie{Name: CookieName, Value: token}

	rec := doJSON(e, http.MethodPost, "/auth/password", `{"current_password":"wrong password!","new_password":"a brand new password"}`, []*http.Cookie{session})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(e, http.MethodPost, "/auth/password", `{"current_password":"correct horse battery","new_password":"a brand new password"}`, []*http.Cookie{session})
	require.Equal(t, http.StatusOK, rec.Code)

	_, err = authService.Authenticate(ctx, "admin", "a brand new password")
	assert.NoError(t, err)
	_, err = authService.Authenticate(ctx, "admin", "correct horse battery")
	assert.Error(t, err)
}

func TestLogout_ClearsCookie(t *testing.T) {
	t.Parallel()

	e, _, _ := newTestEcho(t)

	rec := doJSON(e, http.MethodPost, "/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var session *http.Cookie
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == CookieName {
			session = cookie
		}
	}
	require.NotNil(t, session)
	assert.Empty(t, session.Value)
	assert.Negative(t, session.MaxAge)
}
