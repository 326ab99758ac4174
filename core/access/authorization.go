/*Package access provides utilities for access control

Principals are accounts, groups, organizations and API keys. Each principal
can hold permission rules, a namespace with a bitmask of flags. The effective
authorization of a request is the merged rule set of the authenticated
principal, carried through the request context.
*/
package access

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/ixdir/core/logger"
	"github.com/relabs-tech/ixdir/core/perms"
)

// contextKey is the type for context keys. Go linter does not like plain strings
type contextKey string

// the predefined context keys
const (
	contextKeyAuthorization contextKey = "_authorization_"
	contextKeyIdentity      contextKey = "_identity_"
)

// Authorization is a context object which stores who the requester is and
// which namespace permissions they hold.
//
// Authorizations are added to a request context by the session and API key
// middlewares and retrieved with AuthorizationFromContext(). A nil
// authorization means the request is anonymous.
type Authorization struct {
	// Identity is the authenticated identity, e.g. "alice@example.com" or
	// "apikey|F7dEq01a" for requests authenticated with an API key.
	Identity string `json:"identity"`
	// Superuser short-circuits all permission checks.
	Superuser bool `json:"superuser,omitempty"`
	// Permissions is the merged rule set of the principal.
	Permissions perms.Set `json:"permissions,omitempty"`
}

// CanDo returns true if the authorization grants the requested flags on the
// namespace. The nil authorization can do nothing.
func (a *Authorization) CanDo(namespace perms.Namespace, flags perms.Flag) bool {
	if a == nil {
		return false
	}
	if a.Superuser {
		return true
	}
	return a.Permissions.Check(namespace, flags)
}

// CanDoExplicit returns true if the authorization grants the requested
// flags through a rule of the namespace's own depth. Broad parent grants do
// not count here, this is what visibility scoped namespaces are checked
// with.
func (a *Authorization) CanDoExplicit(namespace perms.Namespace, flags perms.Flag) bool {
	if a == nil {
		return false
	}
	if a.Superuser {
		return true
	}
	return a.Permissions.CheckExplicit(namespace, flags)
}

// Resolve returns the effective flags of the authorization on the namespace.
func (a *Authorization) Resolve(namespace perms.Namespace) perms.Flag {
	if a == nil {
		return perms.PermDenied
	}
	if a.Superuser {
		return perms.PermCRUD
	}
	return a.Permissions.Resolve(namespace)
}

// ContextWithAuthorization returns a new context with this authorization added to it
func (a *Authorization) ContextWithAuthorization(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKeyAuthorization, a)
}

// ContextWithAuthorization returns a new context with the authorization added to it
func ContextWithAuthorization(ctx context.Context, a *Authorization) context.Context {
	return context.WithValue(ctx, contextKeyAuthorization, a)
}

// AuthorizationFromContext retrieves an authorization from the context
func AuthorizationFromContext(ctx context.Context) *Authorization {
	a, ok := ctx.Value(contextKeyAuthorization).(*Authorization)
	if ok {
		return a
	}
	return nil
}

// ContextWithIdentity returns a new context with the authenticated identity added to it
func ContextWithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, identity)
}

// IdentityFromContext retrieves the authenticated identity from the context
func IdentityFromContext(ctx context.Context) string {
	identity, _ := ctx.Value(contextKeyIdentity).(string)
	return identity
}

// AuthorizationCache is an in-memory cache for authorizations. It is used by
// the credential middlewares to cache authorization objects for tokens and
// API keys. The purpose of the cache is to reduce the number of database
// queries, without the cache the middleware would have to lookup the
// authorization for every single request.
type AuthorizationCache struct {
	mutex sync.RWMutex
	cache map[string]*Authorization
}

// NewAuthorizationCache creates a new authorization cache
func NewAuthorizationCache() *AuthorizationCache {
	return &AuthorizationCache{cache: make(map[string]*Authorization)}
}

// Read returns an authorization from in-process cache.
// Token should be the credential the authorization was derived from, not any of the ids.
// This function is go-routine safe
func (a *AuthorizationCache) Read(token string) *Authorization {
	a.mutex.RLock()
	auth, ok := a.cache[token]
	a.mutex.RUnlock()
	if ok {
		return auth
	}
	return nil
}

// Write stores an authorization in the in-memory cache.
// Token should be the credential it was derived from, not any of the ids.
// This function is go-routine safe
func (a *AuthorizationCache) Write(token string, auth *Authorization) {
	a.mutex.Lock()
	a.cache[token] = auth
	a.mutex.Unlock()
}

// Invalidate drops a cached authorization, e.g. after a key was revoked.
func (a *AuthorizationCache) Invalidate(token string) {
	a.mutex.Lock()
	delete(a.cache, token)
	a.mutex.Unlock()
}

// HandleAuthorizationRoute adds a route /authorization GET to the router
//
// The route returns the current authorization for the provided credentials.
func HandleAuthorizationRoute(router *mux.Router) {
	logger.Default().Debugln("handle route: /authorization GET")
	router.HandleFunc("/authorization", func(w http.ResponseWriter, r *http.Request) {
		auth := AuthorizationFromContext(r.Context())
		if auth == nil {
			w.WriteHeader(http.StatusNoContent)
		} else {
			jsonData, _ := json.MarshalIndent(auth, "", " ")
			w.Header().Set("Content-Type", "application/json")
			w.Write(jsonData)
		}
	}).Methods(http.MethodGet)
}
