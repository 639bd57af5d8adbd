// Package auth implements the token issuer: signed access and refresh JWTs
// carrying issuer and audience claims. Access tokens are stateless; refresh
// tokens are additionally backed by a persisted session row, which the
// sessions package manages.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gestion-comercial/backend/internal/common"
	"github.com/gestion-comercial/backend/internal/server/config"
	"github.com/gestion-comercial/backend/internal/server/models"
)

// AccessClaims is the payload of a short-lived access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	RoleID   int64  `json:"roleId"`
	RoleName string `json:"roleName"`
}

// RefreshClaims is the payload of a refresh token. It carries only the user
// id; everything else lives in the refresh-session row.
type RefreshClaims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"userId"`
}

// Issuer mints and verifies both token kinds. Access and refresh tokens are
// signed with distinct secrets so one can never be presented as the other.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	audience      string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewIssuer constructs an Issuer from server config.
func NewIssuer(cfg *config.Config) *Issuer {
	return &Issuer{
		accessSecret:  []byte(cfg.JWTSecret),
		refreshSecret: []byte(cfg.JWTRefreshSecret),
		issuer:        cfg.JWTIssuer,
		audience:      cfg.JWTAudience,
		accessTTL:     cfg.AccessTokenValidityDuration,
		refreshTTL:    cfg.RefreshTokenValidityDuration,
	}
}

// AccessTokenTTL returns the configured access-token lifetime.
func (i *Issuer) AccessTokenTTL() time.Duration { return i.accessTTL }

// RefreshTokenTTL returns the configured refresh-token lifetime.
func (i *Issuer) RefreshTokenTTL() time.Duration { return i.refreshTTL }

// IssueAccessToken signs an access token for the user and its role.
func (i *Issuer) IssueAccessToken(user *models.User, role *models.Role) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		RegisteredClaims: i.registeredClaims(user.ID, now, i.accessTTL),
		UserID:           user.ID,
		Username:         user.Username,
		Email:            user.Email,
		RoleID:           role.ID,
		RoleName:         role.Name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.accessSecret)
}

// IssueRefreshToken signs a refresh token for the user and returns it along
// with its expiry, which the caller persists on the session row.
func (i *Issuer) IssueRefreshToken(userID int64) (string, time.Time, error) {
	now := time.Now()
	claims := RefreshClaims{
		RegisteredClaims: i.registeredClaims(userID, now, i.refreshTTL),
		UserID:           userID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.refreshSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

// ParseAccessToken verifies signature, expiry, issuer and audience of an
// access token. Expired tokens map to common.ErrTokenExpired; anything else
// wrong maps to common.ErrTokenInvalid.
func (i *Issuer) ParseAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := i.parse(tokenString, claims, i.accessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseRefreshToken verifies a refresh token the same way, against the
// refresh secret. Signature validity alone does not make the token usable;
// the sessions registry still has to find a live session row for it.
func (i *Issuer) ParseRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := i.parse(tokenString, claims, i.refreshSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (i *Issuer) registeredClaims(userID int64, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    i.issuer,
		Audience:  jwt.ClaimStrings{i.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (i *Issuer) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return common.ErrTokenExpired
		}
		return common.ErrTokenInvalid
	}
	if !token.Valid {
		return common.ErrTokenInvalid
	}
	return nil
}
