package access

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/ixdir/core/csql"
	"github.com/relabs-tech/ixdir/core/logger"
)

// SessionMiddlewareBuilder is a helper builder for the session middleware
type SessionMiddlewareBuilder struct {
	// Secret is the HMAC secret the service signs session tokens with.
	Secret []byte
	// Issuer is the accepted issuer for the token
	Issuer string
	// DB is the postgres database holding the account, group and
	// permission tables.
	DB *csql.DB
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// IssueSessionToken signs a session token for the identity. The identity must
// have an account for the token to authorize anything later.
func (b *SessionMiddlewareBuilder) IssueSessionToken(identity string, lifetime time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			Issuer:    b.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.Secret)
}

// NewSessionMiddleware returns a middleware handler to validate session
// bearer tokens.
//
// Tokens are accepted as "Authorization: Bearer" header. The subject claim is
// the account identity; the effective authorization is the account's rules
// merged with the rules of all groups the account belongs to.
//
// This is a final handler with regards to the bearer token. It returns
// http.StatusUnauthorized when a token is present but invalid.
func NewSessionMiddleware(b *SessionMiddlewareBuilder) mux.MiddlewareFunc {

	authCache := NewAuthorizationCache()

	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := AuthorizationFromContext(r.Context())
			identity := IdentityFromContext(r.Context())

			if auth != nil || len(identity) > 0 { // already authorized or at least authenticated?
				h.ServeHTTP(w, r)
				return
			}

			tokenString := ""
			bearer := r.Header.Get("Authorization")
			if len(bearer) >= 8 && strings.EqualFold(bearer[:7], "bearer ") {
				tokenString = bearer[7:]
			}
			if len(tokenString) == 0 {
				h.ServeHTTP(w, r) // no token no auth, moving on
				return
			}

			rlog := logger.FromContext(r.Context())

			claims := sessionClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
				return b.Secret, nil
			})
			if err != nil || !token.Valid || claims.Issuer != b.Issuer {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			identity = claims.Subject

			// now that we have authenticated the requester, we store their identity in the context
			ctx := ContextWithIdentity(r.Context(), identity)
			ctx, rlog = logger.ContextWithLoggerIdentity(ctx, identity)

			// look up the authorization by token, not by identity, so the
			// frontend can enforce a new database lookup with a new token
			auth = authCache.Read(tokenString)
			if auth == nil {
				auth, err = AccountAuthorization(b.DB, identity)
				if err != nil {
					rlog.WithError(err).Errorf("Error 4723: cannot load authorization for %s", identity)
					http.Error(w, "Error 4723", http.StatusInternalServerError)
					return
				}
				if auth != nil {
					authCache.Write(tokenString, auth)
				}
			}

			ctx = ContextWithAuthorization(ctx, auth)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
