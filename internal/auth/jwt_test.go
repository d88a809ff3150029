package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/orim/internal/auth"
)

const secret = "test-secret-key-very-long-and-secure"

func TestToken_IssueAndValidateRoundTrip(t *testing.T) {
	t.Parallel()

	id := auth.Identity{
		UserID:      uuid.New(),
		Email:       "Alice@Example.com",
		DisplayName: "Alice",
		Superuser:   true,
	}

	token, err := auth.IssueToken(secret, id, 5*time.Minute)
	require.NoError(t, err)

	got, err := auth.ValidateToken(secret, token)
	require.NoError(t, err)

	assert.Equal(t, id.UserID, got.UserID)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, "Alice", got.DisplayName)
	assert.True(t, got.Superuser)
}

func TestValidateToken_Rejections(t *testing.T) {
	t.Parallel()

	id := auth.Identity{UserID: uuid.New(), Email: "bob@example.com"}

	expired, err := auth.IssueToken(secret, id, -time.Second)
	require.NoError(t, err)

	valid, err := auth.IssueToken(secret, id, time.Minute)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: id.UserID.String(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "not-a-uuid",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"expired", secret, expired},
		{"wrong secret", "another-secret-that-is-long-enough!", valid},
		{"missing expiry", secret, noExpiry},
		{"subject is not a uuid", secret, badSubject},
		{"garbage", secret, "not.a.jwt"},
		{"empty", secret, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := auth.ValidateToken(tt.secret, tt.token)

			require.ErrorIs(t, err, auth.ErrInvalidToken)
			assert.Nil(t, got)
		})
	}
}

func TestValidateToken_ProviderClaims(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	sign := func(t *testing.T, c auth.Claims) string {
		t.Helper()
		c.Subject = userID.String()
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Minute))
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name          string
		claims        auth.Claims
		wantName      string
		wantSuperuser bool
	}{
		{
			name:     "name falls back to email local part",
			claims:   auth.Claims{Email: "carol@example.com"},
			wantName: "carol",
		},
		{
			name:     "metadata name",
			claims:   auth.Claims{Email: "d@example.com", UserMetadata: auth.UserMetadata{Name: "Dee"}},
			wantName: "Dee",
		},
		{
			name:          "user metadata superuser flag",
			claims:        auth.Claims{Email: "e@example.com", UserMetadata: auth.UserMetadata{IsSuperuser: true}},
			wantName:      "e",
			wantSuperuser: true,
		},
		{
			name:          "app metadata role",
			claims:        auth.Claims{Email: "f@example.com", AppMetadata: auth.AppMetadata{Role: "superuser"}},
			wantName:      "f",
			wantSuperuser: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := auth.ValidateToken(secret, sign(t, tt.claims))

			require.NoError(t, err)
			assert.Equal(t, tt.wantName, got.DisplayName)
			assert.Equal(t, tt.wantSuperuser, got.Superuser)
		})
	}
}
