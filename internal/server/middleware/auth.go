package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/orim/internal/auth"
	"github.com/gosuda/orim/internal/domain"
)

// ProfileSyncer refreshes the local profile row of an authenticated caller.
type ProfileSyncer interface {
	Upsert(ctx context.Context, p *domain.Profile) (*domain.Profile, error)
}

// Auth verifies the provider-issued access token. Browsers cannot set headers
// on WebSocket upgrades, so the token is also accepted from the access_token
// query parameter.
//
// When profiles is non-nil the caller's profile row is refreshed and its
// locally granted superuser flag is merged into the identity.
func Auth(jwtSecret string, profiles ProfileSyncer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := extractBearer(r)
			if tok == "" {
				tok = r.URL.Query().Get("access_token")
			}
			if tok == "" {
				http.Error(w, `{"title":"Unauthorized","status":401,"detail":"missing credentials"}`, http.StatusUnauthorized)
				return
			}

			id, err := auth.ValidateToken(jwtSecret, tok)
			if err != nil {
				http.Error(w, `{"title":"Unauthorized","status":401,"detail":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}

			if profiles != nil {
				stored, syncErr := profiles.Upsert(r.Context(), &domain.Profile{
					ID:          id.UserID,
					Email:       id.Email,
					DisplayName: id.DisplayName,
				})
				if syncErr != nil {
					log.Warn().Err(syncErr).Str("user_id", id.UserID.String()).Msg("auth: profile sync failed")
				} else {
					id.Superuser = id.Superuser || stored.Superuser
					if id.DisplayName == "" {
						id.DisplayName = stored.DisplayName
					}
				}
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), *id)))
		})
	}
}

func extractBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return header[7:]
	}
	return ""
}
