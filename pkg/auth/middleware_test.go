package auth

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/newsrack/newsrack/pkg/errcodes"
	"github.com/newsrack/newsrack/pkg/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func invokeAuthenticate(t *testing.T, middleware *Middleware, cookie *http.Cookie) (bool, error) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/periodicals", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	nextCalled := false
	err := middleware.Authenticate(func(_ echo.Context) error {
		nextCalled = true
		return nil
	})(c)
	return nextCalled, err
}

func TestMiddlewareAuthenticate(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	authService := NewService(db, "test-secret")
	middleware := NewMiddleware(authService)
	ctx := context.Background()

	credential, err := authService.Setup(ctx, "admin", "correct horse battery")
	require.NoError(t, err)

	token, err := authService.GenerateToken(credential)
	require.NoError(t, err)

	nextCalled, err := invokeAuthenticate(t, middleware, &http.Cookie{Name: CookieName, Value: token})
	require.NoError(t, err)
	assert.True(t, nextCalled)
}

func TestMiddlewareAuthenticate_MissingCookie(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	middleware := NewMiddleware(NewService(db, "test-secret"))

	nextCalled, err := invokeAuthenticate(t, middleware, nil)
	require.Error(t, err)
	assert.False(t, nextCalled)

	var codeErr *errcodes.Error
	require.ErrorAs(t, err, &codeErr)
	assert.Equal(t, http.StatusUnauthorized, codeErr.HTTPCode)
}

func TestMiddlewareAuthenticate_GarbageToken(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	middleware := NewMiddleware(NewService(db, "test-secret"))

	nextCalled, err := invokeAuthenticate(t, middleware, &http.Cookie{Name: CookieName, Value: "not-a-token"})
	require.Error(t, err)
	assert.False(t, nextCalled)
}

func TestMiddlewareAuthenticate_WrongSecret(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	otherService := NewService(db, "other-secret")
	credential, err := otherService.Setup(ctx, "admin", "correct horse battery")
	require.NoError(t, err)
	token, err := otherService.GenerateToken(credential)
	require.NoError(t, err)

	middleware := NewMiddleware(NewService(db, "test-secret"))
	nextCalled, err := invokeAuthenticate(t, middleware, &http.Cookie{Name: CookieName, Value: token})
	require.Error(t, err)
	assert.False(t, nextCalled)
}
