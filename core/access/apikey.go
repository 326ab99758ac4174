// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package access

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/ixdir/core/csql"
	"github.com/relabs-tech/ixdir/core/logger"
)

const (
	apiKeyPrefixLength = 8
	apiKeySecretLength = 32
	apiKeyScheme       = "api-key "
)

// APIKey is the stored metadata of an API key. The key string itself is
// shown once at creation time and never stored.
type APIKey struct {
	KeyID          uuid.UUID  `json:"apikey_id"`
	Prefix         string     `json:"prefix"`
	Name           string     `json:"name"`
	Email          string     `json:"email,omitempty"`
	AccountID      *uuid.UUID `json:"account_id,omitempty"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	Revoked        bool       `json:"revoked"`
}

func randomHex(n int) string {
	buf := make([]byte, (n+1)/2)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)[:n]
}

func digestKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// generateKey creates a new key string "<prefix>.<secret>" together with the
// digest that gets stored instead of the key.
func generateKey() (key, prefix, digest string) {
	prefix = randomHex(apiKeyPrefixLength)
	key = prefix + "." + randomHex(apiKeySecretLength)
	return key, prefix, digestKey(key)
}

// CreateUserAPIKey creates an API key owned by the account. It returns the
// key metadata and the key string. The key string cannot be retrieved later.
func CreateUserAPIKey(db *csql.DB, accountID uuid.UUID, name string) (APIKey, string, error) {
	key, prefix, digest := generateKey()
	apiKey := APIKey{Prefix: prefix, Name: name, AccountID: &accountID}
	err := db.QueryRow(`INSERT INTO `+db.Schema+`.apikey(prefix,digest,name,account_id)
VALUES($1,$2,$3,$4) RETURNING apikey_id;`, prefix, digest, name, accountID).Scan(&apiKey.KeyID)
	if err != nil {
		return APIKey{}, "", err
	}
	return apiKey, key, nil
}

// CreateOrganizationAPIKey creates an API key owned by an organization. The
// email identifies the human contact responsible for the key. It returns the
// key metadata and the key string. The key string cannot be retrieved later.
func CreateOrganizationAPIKey(db *csql.DB, organizationID uuid.UUID, name, email string) (APIKey, string, error) {
	key, prefix, digest := generateKey()
	apiKey := APIKey{Prefix: prefix, Name: name, Email: email, OrganizationID: &organizationID}
	err := db.QueryRow(`INSERT INTO `+db.Schema+`.apikey(prefix,digest,name,email,organization_id)
VALUES($1,$2,$3,$4,$5) RETURNING apikey_id;`, prefix, digest, name, email, organizationID).Scan(&apiKey.KeyID)
	if err != nil {
		return APIKey{}, "", err
	}
	return apiKey, key, nil
}

// RevokeAPIKey marks the key revoked. Requests with a revoked key are
// rejected with 401.
func RevokeAPIKey(db *csql.DB, keyID uuid.UUID) error {
	_, err := db.Exec(`UPDATE `+db.Schema+`.apikey SET revoked=true WHERE apikey_id=$1;`, keyID)
	return err
}

// APIKeyMiddlewareBuilder is a helper builder for the API key middleware
type APIKeyMiddlewareBuilder struct {
	// DB is the postgres database holding the apikey and permission tables.
	DB *csql.DB
	// Cache is an optional shared cache for the key permission sets. Share
	// a cache and call Invalidate to push out permission changes for a key
	// that is still valid; SkipCache disables caching altogether.
	Cache     *AuthorizationCache
	SkipCache bool
}

// NewAPIKeyMiddleware returns a middleware handler that authenticates
// requests carrying an "Authorization: Api-Key <key>" header.
//
// The key's own permission rules become the request authorization,
// independent of the permissions of the account or organization owning the
// key. Invalid, unknown and revoked keys are rejected with
// http.StatusUnauthorized. Requests without an Api-Key header pass through
// untouched.
//
// The digest and the revoked flag are verified against the database on every
// single request, so revocation takes effect immediately. Only the permission
// set of a verified key is cached.
func NewAPIKeyMiddleware(b *APIKeyMiddlewareBuilder) mux.MiddlewareFunc {

	keyQuery := `SELECT apikey_id, digest, revoked FROM ` + b.DB.Schema + `.apikey WHERE prefix=$1;`
	cache := b.Cache
	if cache == nil {
		cache = NewAuthorizationCache()
	}

	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if AuthorizationFromContext(r.Context()) != nil { // already authorized?
				h.ServeHTTP(w, r)
				return
			}
			header := r.Header.Get("Authorization")
			if len(header) < len(apiKeyScheme) || !strings.EqualFold(header[:len(apiKeyScheme)], apiKeyScheme) {
				h.ServeHTTP(w, r) // not an api key, moving on
				return
			}
			key := strings.TrimSpace(header[len(apiKeyScheme):])
			rlog := logger.FromContext(r.Context())

			prefix, _, found := strings.Cut(key, ".")
			if !found {
				http.Error(w, "invalid api key", http.StatusUnauthorized)
				return
			}

			var keyID uuid.UUID
			var digest string
			var revoked bool
			err := b.DB.QueryRow(keyQuery, prefix).Scan(&keyID, &digest, &revoked)
			if err == csql.ErrNoRows {
				http.Error(w, "invalid api key", http.StatusUnauthorized)
				return
			}
			if err != nil {
				rlog.WithError(err).Errorf("Error 4810: cannot execute api key query")
				http.Error(w, "Error 4810", http.StatusInternalServerError)
				return
			}
			if revoked || subtle.ConstantTimeCompare([]byte(digest), []byte(digestKey(key))) != 1 {
				http.Error(w, "invalid api key", http.StatusUnauthorized)
				return
			}

			auth := (*Authorization)(nil)
			if !b.SkipCache {
				auth = cache.Read(key)
			}
			if auth == nil {
				set, err := PermissionsOf(b.DB, HolderAPIKey, keyID)
				if err != nil {
					rlog.WithError(err).Errorf("Error 4811: cannot load api key permissions")
					http.Error(w, "Error 4811", http.StatusInternalServerError)
					return
				}
				auth = &Authorization{
					Identity:    "apikey|" + prefix,
					Permissions: set,
				}
				if !b.SkipCache {
					cache.Write(key, auth)
				}
			}

			ctx := ContextWithIdentity(r.Context(), auth.Identity)
			ctx, _ = logger.ContextWithLoggerIdentity(ctx, auth.Identity)
			ctx = ContextWithAuthorization(ctx, auth)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
