package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/zapdeck/session-server/internal/errors"
	"github.com/zapdeck/session-server/internal/httputil"
	"github.com/zapdeck/session-server/internal/model"
	"github.com/zapdeck/session-server/internal/util"
)

type contextKey string

const OwnerContextKey contextKey = "owner"

func GetOwner(ctx context.Context) *model.Owner {
	if owner, ok := ctx.Value(OwnerContextKey).(*model.Owner); ok {
		return owner
	}
	return nil
}

// WithOwner attaches an authenticated owner to ctx.
func WithOwner(ctx context.Context, owner *model.Owner) context.Context {
	return context.WithValue(ctx, OwnerContextKey, owner)
}

// OwnerLookup resolves an owner from the hash of an API token.
type OwnerLookup interface {
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.Owner, error)
}

type AuthMiddleware struct {
	owners OwnerLookup
}

func NewAuthMiddleware(owners OwnerLookup) *AuthMiddleware {
	return &AuthMiddleware{owners: owners}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			httputil.WriteError(w, apperrors.Unauthorized("Missing authentication token"))
			return
		}

		owner, err := m.owners.FindByTokenHash(r.Context(), util.HashToken(token))
		if err != nil {
			log.Error().Err(err).Msg("auth middleware: database error")
			httputil.WriteError(w, apperrors.Database(err))
			return
		}

		if owner == nil {
			log.Warn().Str("token", util.MaskToken(token)).Msg("auth middleware: invalid token attempt")
			httputil.WriteError(w, apperrors.InvalidToken("Invalid token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
	})
}

// extractToken reads the bearer header. The query parameter exists for EventSource clients, which cannot set headers.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return r.URL.Query().Get("token")
}
