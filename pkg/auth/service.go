// Package auth implements the single-user authentication layer: one
// credential row, bcrypt-verified, exchanged for an HS256 session token.
package auth

import (
	"context"
	"database/sql"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/newsrack/newsrack/pkg/errcodes"
	"github.com/newsrack/newsrack/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing.
	BcryptCost = 12
	// TokenExpiry is how long session tokens are valid.
	TokenExpiry = 7 * 24 * time.Hour
)

// JWTClaims are the claims carried in a session token.
type JWTClaims struct {
	CredentialID int    `json:"credential_id"`
	Username     string `json:"username"`
	jwt.RegisteredClaims
}

type Service struct {
	db        *bun.DB
	jwtSecret []byte
}

func NewService(db *bun.DB, jwtSecret string) *Service {
	return &Service{
		db:        db,
		jwtSecret: []byte(jwtSecret),
	}
}

// NeedsSetup reports whether no credential has been created yet.
func (svc *Service) NeedsSetup(ctx context.Context) (bool, error) {
	count, err := svc.db.NewSelect().Model((*models.Credential)(nil)).Count(ctx)
	if err != nil {
		return false, errors.WithStack(err)
	}
	return count == 0, nil
}

// Setup creates the credential. There is exactly one; calling Setup again
// is forbidden.
func (svc *Service) Setup(ctx context.Context, username, password string) (*models.Credential, error) {
	needsSetup, err := svc.NeedsSetup(ctx)
	if err != nil {
		return nil, err
	}
	if !needsSetup {
		return nil, errcodes.Forbidden("Setup has already been completed")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	credential := &models.Credential{
		CreatedAt:    now,
		UpdatedAt:    now,
		Username:     username,
		PasswordHash: hash,
	}
	if _, err := svc.db.NewInsert().Model(credential).Exec(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	return credential, nil
}

// Authenticate verifies the username and password against the stored
// credential.
func (svc *Service) Authenticate(ctx context.Context, username, password string) (*models.Credential, error) {
	credential := &models.Credential{}
	err := svc.db.NewSelect().
		Model(credential).
		Where("c.username = ? COLLATE NOCASE", username).
		Scan(ctx)
	if err != nil {
		return nil, errcodes.Unauthorized("Invalid username or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(credential.PasswordHash), []byte(password)); err != nil {
		return nil, errcodes.Unauthorized("Invalid username or password")
	}

	return credential, nil
}

// ChangePassword rotates the stored password after verifying the current
// one.
func (svc *Service) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	credential := &models.Credential{}
	err := svc.db.NewSelect().Model(credential).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Credential")
		}
		return errors.WithStack(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(credential.PasswordHash), []byte(currentPassword)); err != nil {
		return errcodes.Unauthorized("Invalid username or password")
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	credential.PasswordHash = hash
	credential.UpdatedAt = time.Now()
	_, err = svc.db.NewUpdate().
		Model(credential).
		Column("password_hash", "updated_at").
		WherePK().
		Exec(ctx)
	return errors.WithStack(err)
}

// retrieveByID reloads the credential referenced by a token.
func (svc *Service) retrieveByID(ctx context.Context, id int) (*models.Credential, error) {
	credential := &models.Credential{}
	err := svc.db.NewSelect().
		Model(credential).
		Where("c.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return credential, nil
}

// GenerateToken creates a signed session token for the credential.
func (svc *Service) GenerateToken(credential *models.Credential) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		CredentialID: credential.ID,
		Username:     credential.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(svc.jwtSecret)
	if err != nil {
		return "", errors.WithStack(err)
	}

	return signedToken, nil
}

// ValidateToken parses and verifies a session token.
func (svc *Service) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return svc.jwtSecret, nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return string(hashedPassword), nil
}
