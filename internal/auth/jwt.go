// Package auth verifies access tokens minted by the external identity
// provider. The service never stores credentials; it trusts the HS256
// signature of the shared secret.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the subset of the provider's access token payload the service
// reads.
type Claims struct {
	jwt.RegisteredClaims
	Email        string       `json:"email"`
	Role         string       `json:"role,omitempty"`
	UserMetadata UserMetadata `json:"user_metadata"`
	AppMetadata  AppMetadata  `json:"app_metadata"`
}

type UserMetadata struct {
	FullName    string `json:"full_name,omitempty"`
	Name        string `json:"name,omitempty"`
	IsSuperuser bool   `json:"is_superuser,omitempty"`
}

type AppMetadata struct {
	Superuser bool   `json:"superuser,omitempty"`
	Role      string `json:"role,omitempty"`
}

// Identity is the authenticated caller derived from a token.
type Identity struct {
	UserID      uuid.UUID
	Email       string
	DisplayName string
	Superuser   bool
}

// ErrInvalidToken is returned when a JWT cannot be parsed or has expired.
var ErrInvalidToken = errors.New("auth: invalid or expired token")

const issuer = "orim"

// IssueToken creates a signed access token for id. Production tokens come
// from the identity provider; this is used by tests and the CLI for local
// development.
func IssueToken(secret string, id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
		Email:        id.Email,
		Role:         "authenticated",
		UserMetadata: UserMetadata{FullName: id.DisplayName},
		AppMetadata:  AppMetadata{Superuser: id.Superuser},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("auth.IssueToken: %w", err)
	}

	return signed, nil
}

// ValidateToken parses and validates a token string and returns the caller.
func ValidateToken(secret, tokenString string) (*Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("auth.ValidateToken: %w", ErrInvalidToken)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("auth.ValidateToken: subject: %w", ErrInvalidToken)
	}

	return &Identity{
		UserID:      userID,
		Email:       strings.ToLower(strings.TrimSpace(claims.Email)),
		DisplayName: claims.displayName(),
		Superuser:   claims.superuser(),
	}, nil
}

func (c *Claims) displayName() string {
	if c.UserMetadata.FullName != "" {
		return c.UserMetadata.FullName
	}
	if c.UserMetadata.Name != "" {
		return c.UserMetadata.Name
	}
	if at := strings.IndexByte(c.Email, '@'); at > 0 {
		return c.Email[:at]
	}
	return ""
}

func (c *Claims) superuser() bool {
	return c.AppMetadata.Superuser || c.UserMetadata.IsSuperuser || c.AppMetadata.Role == "superuser"
}
