package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	coreauth "github.com/NordCoder/Stocker/internal/auth"
	"github.com/NordCoder/Stocker/internal/domain/user"
	"github.com/NordCoder/Stocker/internal/obs"
)

// Identity is what the gate attaches to an authenticated request.
type Identity struct {
	SubjectID int64
	Username  string
	Role      user.Role
}

type ctxKey int

const identityKey ctxKey = 1

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromCtx(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

type Gate struct {
	codec      *coreauth.TokenCodec
	cookieName string
	log        *zap.Logger
}

func NewGate(codec *coreauth.TokenCodec, accessCookie string, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{codec: codec, cookieName: accessCookie, log: log}
}

// Middleware admits requests carrying a valid access token. No token is 403,
// an expired token is 401 token_expired so the client knows to refresh, any
// other defect is 401 invalid_token.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := g.token(r)
		if token == "" {
			mGateRejected.WithLabelValues("missing").Inc()
			writeErr(w, ErrUnauthenticated)
			return
		}

		claims, err := g.codec.VerifyKind(token, coreauth.KindAccess)
		if err != nil {
			if errors.Is(err, coreauth.ErrTokenExpired) {
				mGateRejected.WithLabelValues("expired").Inc()
				writeErr(w, ErrTokenExpired)
				return
			}
			mGateRejected.WithLabelValues("invalid").Inc()
			obs.WithTrace(r.Context(), g.log).Debug("gate rejected token", zap.Error(err))
			writeErr(w, ErrInvalidToken)
			return
		}
		subject, err := claims.SubjectID()
		if err != nil {
			mGateRejected.WithLabelValues("invalid").Inc()
			writeErr(w, ErrInvalidToken)
			return
		}

		ctx := WithIdentity(r.Context(), Identity{
			SubjectID: subject,
			Username:  claims.Username,
			Role:      user.Role(claims.Role),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *Gate) token(r *http.Request) string {
	if c, err := r.Cookie(g.cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return bearer(r)
}

// RequireRole must sit behind Gate.Middleware.
func RequireRole(roles ...user.Role) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromCtx(r.Context())
			if !ok {
				writeErr(w, ErrUnauthenticated)
				return
			}
			for _, role := range roles {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			mGateRejected.WithLabelValues("role").Inc()
			writeErr(w, ErrForbiddenRole)
		})
	}
}

func bearer(r *http.Request) string {
	v := r.Header.Get("Authorization")
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return ""
}
