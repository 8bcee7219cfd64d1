package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/zapdeck/session-server/internal/audit"
	apperrors "github.com/zapdeck/session-server/internal/errors"
	"github.com/zapdeck/session-server/internal/httputil"
	"github.com/zapdeck/session-server/internal/util"
)

const adminRealm = `Basic realm="admin", charset="UTF-8"`

// AdminAuthMiddleware guards operator routes with HTTP basic auth against a bcrypt hash.
type AdminAuthMiddleware struct {
	user         string
	passwordHash string
	limiter      *LoginRateLimiter
}

func NewAdminAuthMiddleware(user, passwordHash string, limiter *LoginRateLimiter) *AdminAuthMiddleware {
	if limiter == nil {
		limiter = NewLoginRateLimiter()
	}
	return &AdminAuthMiddleware{
		user:         user,
		passwordHash: passwordHash,
		limiter:      limiter,
	}
}

func (m *AdminAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.passwordHash == "" {
			httputil.WriteError(w, apperrors.Forbidden("Admin access is disabled"))
			return
		}

		ip := clientIP(r)
		if m.limiter.Blocked(ip) {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAdminLockout})
			w.Header().Set("Retry-After", "60")
			httputil.WriteError(w, apperrors.RateLimitExceeded())
			return
		}

		user, password, ok := r.BasicAuth()
		if !ok || !util.ConstantTimeEqual(user, m.user) || !util.CheckPasswordHash(password, m.passwordHash) {
			m.limiter.Fail(ip)
			log.Warn().Str("ip", ip).Msg("admin auth failed")
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAdminAuthFailure, Actor: user})
			w.Header().Set("WWW-Authenticate", adminRealm)
			httputil.WriteError(w, apperrors.Unauthorized("Unauthorized"))
			return
		}

		m.limiter.Reset(ip)
		next.ServeHTTP(w, r)
	})
}
